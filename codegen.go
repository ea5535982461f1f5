// Completion: 95% - Core codegen complete for x86_64 and ARM64
package main

import (
	"encoding/binary"
	"fmt"
	"os"
)

// codegen.go - Shared code generation machinery
//
// A Backend walks the IR stream and emits raw machine instructions into
// a CodeBuffer. Jumps whose target is not yet known are recorded as
// fixups keyed by buffer offset and kind, then patched exactly once:
// loop-forward fixups when the matching ']' is emitted, trap fixups when
// the epilogue lays down the shared trap stubs. Anything left pending
// after that is an internal invariant violation, not a user error.
//
// The generated function uses one fixed calling convention, entered
// through the callnative trampoline: tape base, tape end (one past the
// last cell), input fd and output fd in the platform's first four
// argument registers; termination status in the return register.

// fixupKind says what a pending jump is waiting for
type fixupKind int

const (
	fixupLoopForward fixupKind = iota // '[' jump-if-zero awaiting its ']'
	fixupPtrTrap                      // bounds-check jump awaiting the trap stub
	fixupIOTrap                       // syscall-failure jump awaiting the trap stub
)

// fixup is a pending patch at a known buffer offset
type fixup struct {
	offset int
	kind   fixupKind
}

// CodeBuffer accumulates emitted machine code plus pending fixups
type CodeBuffer struct {
	code  []byte
	traps []fixup // fixupPtrTrap / fixupIOTrap, resolved by the epilogue
	loops []fixup // fixupLoopForward stack, resolved by matching ']'
	heads []int   // loop head offsets, parallel to loops
}

func newCodeBuffer() *CodeBuffer {
	return &CodeBuffer{code: make([]byte, 0, 4096)}
}

func (cb *CodeBuffer) emit(bs ...byte) {
	cb.code = append(cb.code, bs...)
}

func (cb *CodeBuffer) emitU32(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	cb.code = append(cb.code, buf[:]...)
}

func (cb *CodeBuffer) len() int {
	return len(cb.code)
}

// patchU32 overwrites 4 bytes at pos (x86-64 rel32 backpatching)
func (cb *CodeBuffer) patchU32(pos int, v uint32) {
	binary.LittleEndian.PutUint32(cb.code[pos:pos+4], v)
}

// orU32 ORs bits into the 32-bit word at pos (ARM64 branch backpatching:
// the placeholder word already encodes the instruction with a zero
// offset field, the patch fills the offset in)
func (cb *CodeBuffer) orU32(pos int, bits uint32) {
	v := binary.LittleEndian.Uint32(cb.code[pos : pos+4])
	binary.LittleEndian.PutUint32(cb.code[pos:pos+4], v|bits)
}

// pushLoop records the forward jump of a '[' together with the offset of
// its loop head (the re-test target for the matching ']').
func (cb *CodeBuffer) pushLoop(patchPos, headPos int) {
	cb.loops = append(cb.loops, fixup{offset: patchPos, kind: fixupLoopForward})
	cb.heads = append(cb.heads, headPos)
}

// popLoop returns the pending forward-jump offset and loop head of the
// innermost open loop.
func (cb *CodeBuffer) popLoop() (patchPos, headPos int, ok bool) {
	if len(cb.loops) == 0 {
		return 0, 0, false
	}
	n := len(cb.loops) - 1
	patchPos, headPos = cb.loops[n].offset, cb.heads[n]
	cb.loops, cb.heads = cb.loops[:n], cb.heads[:n]
	return patchPos, headPos, true
}

// trapFixup records a jump to a trap stub that does not exist yet
func (cb *CodeBuffer) trapFixup(pos int, kind fixupKind) {
	cb.traps = append(cb.traps, fixup{offset: pos, kind: kind})
}

// Backend emits native code for one target architecture
type Backend interface {
	Arch() Arch
	Prologue()
	MovePtr(delta int)
	AddVal(delta int)
	SetVal(v byte)
	Output()
	Input()
	LoopStart()
	LoopEnd() error
	ScanUntilZero(step int)
	MultiplyAdd(offset int, factor byte)
	// Epilogue emits the success path, the shared trap stubs and the
	// register-restore tail, and resolves every pending trap fixup.
	Epilogue()
	// Finalize returns the finished buffer. A non-empty loop stack here
	// means the IR was not validated and is reported as an internal error.
	Finalize() ([]byte, error)
}

// newBackend returns the code generator for the given architecture
func newBackend(arch Arch) (Backend, error) {
	switch arch {
	case ArchX86_64:
		return newX86_64Backend(), nil
	case ArchARM64:
		return newARM64Backend(), nil
	default:
		return nil, fmt.Errorf("no code generator for architecture %q", arch)
	}
}

// compileNative lowers a validated IR stream to machine code for arch
func compileNative(ops []Op, arch Arch) ([]byte, error) {
	b, err := newBackend(arch)
	if err != nil {
		return nil, err
	}
	b.Prologue()
	for i, op := range ops {
		switch op.Kind {
		case OpMovePtr:
			b.MovePtr(op.Delta)
		case OpAddVal:
			b.AddVal(op.Delta)
		case OpSetVal:
			b.SetVal(op.Val)
		case OpOutput:
			b.Output()
		case OpInput:
			b.Input()
		case OpLoopStart:
			b.LoopStart()
		case OpLoopEnd:
			if err := b.LoopEnd(); err != nil {
				return nil, fmt.Errorf("internal error at IR index %d: %w", i, err)
			}
		case OpScanUntilZero:
			b.ScanUntilZero(op.Delta)
		case OpMultiplyAdd:
			b.MultiplyAdd(op.Offset, op.Factor)
		default:
			return nil, fmt.Errorf("internal error: unknown IR operation %v at index %d", op.Kind, i)
		}
	}
	b.Epilogue()
	code, err := b.Finalize()
	if err != nil {
		return nil, err
	}
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "codegen: %d IR operations -> %d bytes of %s machine code\n",
			len(ops), len(code), arch)
	}
	return code, nil
}
