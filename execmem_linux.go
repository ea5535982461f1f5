// Completion: 100% - Platform-specific module complete
//go:build linux && (amd64 || arm64)

package main

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// execmem_linux.go - Executable memory manager
//
// The only place in the program that deals with raw addresses. A
// finished code buffer is copied into a page-rounded anonymous mapping
// which is then flipped from RW to RX, so no page is ever writable and
// executable at the same time (W^X). The image is immutable from the
// moment it becomes executable until Close unmaps it.

// ExecImage is an invocable region of native code
type ExecImage struct {
	mem []byte
}

// newExecImage copies code into fresh executable memory
func newExecImage(code []byte) (*ExecImage, error) {
	if len(code) == 0 {
		return nil, &AllocationError{Size: 0}
	}
	pagesize := unix.Getpagesize()
	size := (len(code) + pagesize - 1) &^ (pagesize - 1)
	mem, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, &AllocationError{Size: size, Err: err}
	}
	copy(mem, code)
	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		_ = unix.Munmap(mem)
		return nil, &AllocationError{Size: size, Err: err}
	}
	return &ExecImage{mem: mem}, nil
}

// Entry returns the address of the generated function
func (img *ExecImage) Entry() uintptr {
	return uintptr(unsafe.Pointer(&img.mem[0]))
}

// Close unmaps the image; safe to call more than once
func (img *ExecImage) Close() error {
	if img.mem == nil {
		return nil
	}
	mem := img.mem
	img.mem = nil
	return unix.Munmap(mem)
}
