// Completion: 100% - Platform-specific module complete
//go:build !linux || (!amd64 && !arm64)

package main

import (
	"fmt"
	"os"
	"runtime"
)

// run_other.go - Stub harness for hosts without native execution
//
// Code generation itself is portable (either backend can cross-generate
// anywhere), but executable memory and the syscall ABI the generated
// code relies on are only wired up for linux/amd64 and linux/arm64.

func runNative(code []byte, in, out *os.File) error {
	return &AllocationError{
		Size: len(code),
		Err:  fmt.Errorf("native execution is not supported on %s/%s", runtime.GOOS, runtime.GOARCH),
	}
}
