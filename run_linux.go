// Completion: 100% - Runtime harness complete
//go:build linux && (amd64 || arm64)

package main

import (
	"os"
	"runtime"
	"unsafe"
)

// run_linux.go - Runtime harness
//
// Allocates the zeroed tape, hands the generated function its base and
// end addresses plus the input/output file descriptors, and blocks until
// it returns. The generated code performs its own byte I/O via inlined
// syscalls, so the harness only has to interpret the status register on
// the way out. The image is released on every exit path.
//
// The generated code runs outside the Go scheduler's view: its blocking
// read/write syscalls are invisible to the runtime and the locked thread
// cannot be preempted. Callers must not rely on goroutines in this
// process to unblock the program's I/O; the fds have to be fed and
// drained from outside the call (another process, or data buffered in a
// pipe beforehand).

// callNative transfers control to generated code at the given address.
// Implemented in callnative_linux_amd64.s / callnative_linux_arm64.s.
//
//go:noescape
func callNative(code uintptr, tape, tapeEnd unsafe.Pointer, infd, outfd uintptr) uint64

// runNative executes a finished code buffer against in and out
func runNative(code []byte, in, out *os.File) error {
	img, err := newExecImage(code)
	if err != nil {
		return err
	}
	defer img.Close()

	tape := make([]byte, tapeSize())

	// The generated code runs outside the Go scheduler's view; keep the
	// whole run on one OS thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	base := unsafe.Pointer(&tape[0])
	status := callNative(img.Entry(), base, unsafe.Add(base, len(tape)), in.Fd(), out.Fd())
	runtime.KeepAlive(tape)

	if status != statusOK {
		return &TrapError{Status: status}
	}
	return nil
}
