// Completion: 100% - ARM64 backend complete
package main

import "fmt"

// arm64_codegen.go - ARM64 (AAPCS64) code generator
//
// ARM64 uses fixed 32-bit little-endian instructions, so every branch is
// patched by OR-ing the offset field into a placeholder word that
// already encodes the instruction with offset zero.
//
// Register plan, fixed for the whole function:
//
//	x19  tape pointer
//	x20  tape base  (lower excursion bound)
//	x21  tape end   (upper excursion bound, one past the last cell)
//	x22  input fd
//	x23  output fd
//	w9   scratch (cell values)
//	w10  scratch (multiply factor, target bytes)
//	x11  scratch (MultiplyAdd target address)
//	x12  scratch (large immediates)
//
// x19-x23 are callee-saved, and svc #0 returns with everything but x0
// intact, so byte I/O needs no save/restore around the syscall. The
// Linux syscall numbers differ from x86-64: read is 63, write is 64.

// b.cond condition codes
const (
	condHS = 0x2 // unsigned >=
	condLO = 0x3 // unsigned <
	condLT = 0xB // signed <
	condGT = 0xC // signed >
	condLE = 0xD // signed <=
)

type arm64Backend struct {
	cb  *CodeBuffer
	err error // first branch-range violation, reported by Finalize
}

func newARM64Backend() *arm64Backend {
	return &arm64Backend{cb: newCodeBuffer()}
}

func (b *arm64Backend) Arch() Arch { return ArchARM64 }

// word appends one 32-bit instruction
func (b *arm64Backend) word(instr uint32) {
	b.cb.emitU32(instr)
}

// patch19 resolves an imm19 branch (b.cond, cbz, cbnz) at pos to target
func (b *arm64Backend) patch19(pos, target int) {
	delta := target - pos
	if delta < -(1<<20) || delta >= 1<<20 {
		b.rangeError(delta)
		return
	}
	b.cb.orU32(pos, (uint32(delta/4)&0x7FFFF)<<5)
}

// imm26 computes the offset field of an unconditional b
func (b *arm64Backend) imm26(delta int) uint32 {
	if delta < -(1<<27) || delta >= 1<<27 {
		b.rangeError(delta)
		return 0
	}
	return uint32(delta/4) & 0x3FFFFFF
}

func (b *arm64Backend) rangeError(delta int) {
	if b.err == nil {
		b.err = fmt.Errorf("branch offset %d exceeds ARM64 branch range", delta)
	}
}

// Prologue saves the callee-saved registers and pins the arguments:
// x0 = tape base, x1 = tape end, x2 = input fd, x3 = output fd.
func (b *arm64Backend) Prologue() {
	b.word(0xA9BF53F3) // stp x19, x20, [sp, #-16]!
	b.word(0xA9BF5BF5) // stp x21, x22, [sp, #-16]!
	b.word(0xA9BF63F7) // stp x23, x24, [sp, #-16]!
	b.word(0xAA0003F4) // mov x20, x0
	b.word(0xAA0103F5) // mov x21, x1
	b.word(0xAA0203F6) // mov x22, x2
	b.word(0xAA0303F7) // mov x23, x3
	b.word(0xAA1403F3) // mov x19, x20   (ptr = base)
}

// addImm adds delta to register rn, writing rd. Deltas outside the
// 12-bit immediate range go through a movz/movk load into x12.
func (b *arm64Backend) addImm(rd, rn uint32, delta int) {
	switch {
	case delta >= 0 && delta < 4096:
		b.word(0x91000000 | uint32(delta)<<10 | rn<<5 | rd) // add rd, rn, #delta
	case delta < 0 && delta > -4096:
		b.word(0xD1000000 | uint32(-delta)<<10 | rn<<5 | rd) // sub rd, rn, #-delta
	default:
		mag := delta
		opcode := uint32(0x8B0C0000) // add rd, rn, x12
		if delta < 0 {
			mag = -delta
			opcode = 0xCB0C0000 // sub rd, rn, x12
		}
		b.word(0xD280000C | uint32(mag&0xFFFF)<<5) // movz x12, #lo16
		if mag > 0xFFFF {
			b.word(0xF2A0000C | uint32(mag>>16&0xFFFF)<<5) // movk x12, #hi16, lsl #16
		}
		b.word(opcode | rn<<5 | rd)
	}
}

// checkPtr bounds-checks register r against [x20, x21); an excursion
// branches to the pointer trap stub emitted by the epilogue.
func (b *arm64Backend) checkPtr(r uint32) {
	cb := b.cb
	b.word(0xEB14001F | r<<5) // cmp r, x20
	cb.trapFixup(cb.len(), fixupPtrTrap)
	b.word(0x54000000 | condLO) // b.lo trap
	b.word(0xEB15001F | r<<5)   // cmp r, x21
	cb.trapFixup(cb.len(), fixupPtrTrap)
	b.word(0x54000000 | condHS) // b.hs trap
}

// MovePtr adds delta to the tape pointer and bounds-checks the result
func (b *arm64Backend) MovePtr(delta int) {
	b.addImm(19, 19, delta)
	b.checkPtr(19)
}

// AddVal adds delta (mod 256) to the current cell
func (b *arm64Backend) AddVal(delta int) {
	b.word(0x39400269)                           // ldrb w9, [x19]
	b.word(0x11000129 | uint32(byte(delta))<<10) // add w9, w9, #delta
	b.word(0x39000269)                           // strb w9, [x19]
}

// SetVal stores v into the current cell
func (b *arm64Backend) SetVal(v byte) {
	b.word(0x52800009 | uint32(v)<<5) // movz w9, #v
	b.word(0x39000269)                // strb w9, [x19]
}

// Output emits write(outfd, ptr, 1)
func (b *arm64Backend) Output() {
	cb := b.cb
	b.word(0xD2800808) // movz x8, #64 (SYS_write)
	b.word(0xAA1703E0) // mov x0, x23
	b.word(0xAA1303E1) // mov x1, x19
	b.word(0xD2800022) // movz x2, #1
	b.word(0xD4000001) // svc #0
	b.word(0xF100001F) // cmp x0, #0
	cb.trapFixup(cb.len(), fixupIOTrap)
	b.word(0x54000000 | condLE) // b.le io trap (0 or negative errno)
}

// Input emits read(infd, ptr, 1); end of stream stores the 0 sentinel
func (b *arm64Backend) Input() {
	cb := b.cb
	b.word(0xD28007E8) // movz x8, #63 (SYS_read)
	b.word(0xAA1603E0) // mov x0, x22
	b.word(0xAA1303E1) // mov x1, x19
	b.word(0xD2800022) // movz x2, #1
	b.word(0xD4000001) // svc #0
	b.word(0xF100001F) // cmp x0, #0
	cb.trapFixup(cb.len(), fixupIOTrap)
	b.word(0x54000000 | condLT) // b.lt io trap (negative errno)
	donePos := cb.len()
	b.word(0x54000000 | condGT) // b.gt past the sentinel store (read 1 byte)
	b.word(0x3900027F)          // strb wzr, [x19] (EOF sentinel)
	b.patch19(donePos, cb.len())
}

// LoopStart tests the current cell and branches forward if zero; the
// branch target is unknown until the matching LoopEnd.
func (b *arm64Backend) LoopStart() {
	cb := b.cb
	b.word(0x39400269) // ldrb w9, [x19]
	patchPos := cb.len()
	b.word(0x34000009) // cbz w9, forward
	cb.pushLoop(patchPos, cb.len())
}

// LoopEnd branches back to just after the matching test and resolves
// the pending forward branch to the instruction that follows.
func (b *arm64Backend) LoopEnd() error {
	cb := b.cb
	patchPos, headPos, ok := cb.popLoop()
	if !ok {
		return fmt.Errorf("']' with no open loop during code generation")
	}
	b.word(0x39400269) // ldrb w9, [x19]
	backPos := cb.len()
	b.word(0x35000009) // cbnz w9, head
	b.patch19(backPos, headPos)
	b.patch19(patchPos, cb.len())
	return nil
}

// ScanUntilZero emits a self-contained test/step loop with local
// branches; only the bounds checks escape to the shared trap stub.
func (b *arm64Backend) ScanUntilZero(step int) {
	cb := b.cb
	head := cb.len()
	b.word(0x39400269) // ldrb w9, [x19]
	donePos := cb.len()
	b.word(0x34000009) // cbz w9, done
	if step > 0 {
		b.word(0x91000673) // add x19, x19, #1
	} else {
		b.word(0xD1000673) // sub x19, x19, #1
	}
	b.checkPtr(19)
	b.word(0x14000000 | b.imm26(head-cb.len())) // b head
	b.patch19(donePos, cb.len())
}

// MultiplyAdd adds cell*factor into the cell at offset. The whole
// operation is skipped when the source cell is zero so that the closed
// form cannot trap where the open loop would never have run.
func (b *arm64Backend) MultiplyAdd(offset int, factor byte) {
	cb := b.cb
	b.word(0x39400269) // ldrb w9, [x19]
	skipPos := cb.len()
	b.word(0x34000009) // cbz w9, skip
	b.addImm(11, 19, offset)
	b.checkPtr(11)
	b.word(0x5280000A | uint32(factor)<<5) // movz w10, #factor
	b.word(0x1B0A7D29)                     // mul w9, w9, w10
	b.word(0x3940016A)                     // ldrb w10, [x11]
	b.word(0x0B09014A)                     // add w10, w10, w9
	b.word(0x3900016A)                     // strb w10, [x11]
	b.patch19(skipPos, cb.len())
}

// Epilogue lays down the success path, both trap stubs and the shared
// register-restore tail, then resolves every pending trap fixup.
func (b *arm64Backend) Epilogue() {
	cb := b.cb
	b.word(0xD2800000) // movz x0, #0 (statusOK)
	okJmp := cb.len()
	b.word(0x14000000) // b tail

	ptrStub := cb.len()
	b.word(0xD2800020) // movz x0, #1 (statusPtrTrap)
	ptrJmp := cb.len()
	b.word(0x14000000) // b tail

	ioStub := cb.len()
	b.word(0xD2800040) // movz x0, #2 (statusByteIO)

	tail := cb.len()
	b.word(0xA8C163F7) // ldp x23, x24, [sp], #16
	b.word(0xA8C15BF5) // ldp x21, x22, [sp], #16
	b.word(0xA8C153F3) // ldp x19, x20, [sp], #16
	b.word(0xD65F03C0) // ret

	cb.orU32(okJmp, b.imm26(tail-okJmp))
	cb.orU32(ptrJmp, b.imm26(tail-ptrJmp))
	for _, f := range cb.traps {
		target := ptrStub
		if f.kind == fixupIOTrap {
			target = ioStub
		}
		b.patch19(f.offset, target)
	}
	cb.traps = cb.traps[:0]
}

func (b *arm64Backend) Finalize() ([]byte, error) {
	if b.err != nil {
		return nil, fmt.Errorf("internal error: %w", b.err)
	}
	if len(b.cb.loops) != 0 {
		return nil, fmt.Errorf("internal error: %d unresolved loop fixups after code generation", len(b.cb.loops))
	}
	if len(b.cb.traps) != 0 {
		return nil, fmt.Errorf("internal error: %d unresolved trap fixups after code generation", len(b.cb.traps))
	}
	return b.cb.code, nil
}
