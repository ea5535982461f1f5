// Completion: 100% - x86_64 backend complete
package main

import "fmt"

// x86_64_codegen.go - x86-64 (System V) code generator
//
// Register plan, fixed for the whole function:
//
//	r15  tape pointer
//	r13  tape base  (lower excursion bound)
//	r14  tape end   (upper excursion bound, one past the last cell)
//	r12  input fd
//	rbx  output fd
//	rax  scratch / syscall number / status result
//	rcx  scratch for MultiplyAdd target addresses
//
// All five pinned registers are callee-saved under the System V ABI and
// are also the registers the Linux syscall instruction leaves alone
// (syscall clobbers rcx and r11), so I/O needs no save/restore dance.
// Byte I/O is inlined as read(2)/write(2) on the fds received as
// arguments. Every pointer move is bounds-checked and escapes to a
// shared trap stub emitted by the epilogue; loop brackets use rel32
// jumps resolved by backpatching.

type x86_64Backend struct {
	cb *CodeBuffer
}

func newX86_64Backend() *x86_64Backend {
	return &x86_64Backend{cb: newCodeBuffer()}
}

func (b *x86_64Backend) Arch() Arch { return ArchX86_64 }

// Prologue saves the callee-saved registers and pins the arguments:
// rdi = tape base, rsi = tape end, rdx = input fd, rcx = output fd.
func (b *x86_64Backend) Prologue() {
	cb := b.cb
	cb.emit(0x53)       // push rbx
	cb.emit(0x41, 0x54) // push r12
	cb.emit(0x41, 0x55) // push r13
	cb.emit(0x41, 0x56) // push r14
	cb.emit(0x41, 0x57) // push r15
	cb.emit(0x49, 0x89, 0xFD) // mov r13, rdi
	cb.emit(0x49, 0x89, 0xF6) // mov r14, rsi
	cb.emit(0x49, 0x89, 0xD4) // mov r12, rdx
	cb.emit(0x48, 0x89, 0xCB) // mov rbx, rcx
	cb.emit(0x4D, 0x89, 0xEF) // mov r15, r13   (ptr = base)
}

// MovePtr adds delta to the tape pointer and bounds-checks the result
func (b *x86_64Backend) MovePtr(delta int) {
	cb := b.cb
	if delta >= -128 && delta <= 127 {
		cb.emit(0x49, 0x83, 0xC7, byte(delta)) // add r15, imm8
	} else {
		cb.emit(0x49, 0x81, 0xC7) // add r15, imm32
		cb.emitU32(uint32(int32(delta)))
	}
	b.checkPtr(0xEF, 0xF7) // cmp r15, r13 / cmp r15, r14
}

// checkPtr emits the two-sided excursion check for a pointer register.
// lowModRM/highModRM are the ModRM bytes for cmp <reg>, r13 and
// cmp <reg>, r14 respectively.
func (b *x86_64Backend) checkPtr(lowModRM, highModRM byte) {
	cb := b.cb
	rexLow := byte(0x4C)
	rexHigh := byte(0x4C)
	if lowModRM&0x07 == 0x07 { // r/m is r15, needs REX.B as well
		rexLow, rexHigh = 0x4D, 0x4D
	}
	cb.emit(rexLow, 0x39, lowModRM) // cmp reg, r13
	cb.emit(0x0F, 0x82)             // jb trap
	cb.trapFixup(cb.len(), fixupPtrTrap)
	cb.emitU32(0)
	cb.emit(rexHigh, 0x39, highModRM) // cmp reg, r14
	cb.emit(0x0F, 0x83)               // jae trap
	cb.trapFixup(cb.len(), fixupPtrTrap)
	cb.emitU32(0)
}

// AddVal adds delta (mod 256) to the current cell
func (b *x86_64Backend) AddVal(delta int) {
	b.cb.emit(0x41, 0x80, 0x07, byte(delta)) // add byte [r15], imm8
}

// SetVal stores v into the current cell
func (b *x86_64Backend) SetVal(v byte) {
	b.cb.emit(0x41, 0xC6, 0x07, v) // mov byte [r15], imm8
}

// Output emits write(outfd, ptr, 1)
func (b *x86_64Backend) Output() {
	cb := b.cb
	cb.emit(0xB8, 0x01, 0x00, 0x00, 0x00) // mov eax, 1 (SYS_write)
	cb.emit(0x48, 0x89, 0xDF)             // mov rdi, rbx
	cb.emit(0x4C, 0x89, 0xFE)             // mov rsi, r15
	cb.emit(0xBA, 0x01, 0x00, 0x00, 0x00) // mov edx, 1
	cb.emit(0x0F, 0x05)                   // syscall
	cb.emit(0x48, 0x85, 0xC0)             // test rax, rax
	cb.emit(0x0F, 0x8E)                   // jle io trap (0 or error)
	cb.trapFixup(cb.len(), fixupIOTrap)
	cb.emitU32(0)
}

// Input emits read(infd, ptr, 1); end of stream stores the 0 sentinel
func (b *x86_64Backend) Input() {
	cb := b.cb
	cb.emit(0x31, 0xC0)                   // xor eax, eax (SYS_read)
	cb.emit(0x4C, 0x89, 0xE7)             // mov rdi, r12
	cb.emit(0x4C, 0x89, 0xFE)             // mov rsi, r15
	cb.emit(0xBA, 0x01, 0x00, 0x00, 0x00) // mov edx, 1
	cb.emit(0x0F, 0x05)                   // syscall
	cb.emit(0x48, 0x85, 0xC0)             // test rax, rax
	cb.emit(0x0F, 0x88)                   // js io trap (negative errno)
	cb.trapFixup(cb.len(), fixupIOTrap)
	cb.emitU32(0)
	cb.emit(0x75, 0x04)             // jnz past the sentinel store (read 1 byte)
	cb.emit(0x41, 0xC6, 0x07, 0x00) // mov byte [r15], 0 (EOF sentinel)
}

// LoopStart tests the current cell and jumps forward if zero; the jump
// target is unknown until the matching LoopEnd and is left as a fixup.
func (b *x86_64Backend) LoopStart() {
	cb := b.cb
	cb.emit(0x41, 0x80, 0x3F, 0x00) // cmp byte [r15], 0
	cb.emit(0x0F, 0x84)             // jz forward
	patchPos := cb.len()
	cb.emitU32(0)
	cb.pushLoop(patchPos, cb.len())
}

// LoopEnd jumps back to just after the matching test and resolves the
// pending forward jump to the instruction that follows.
func (b *x86_64Backend) LoopEnd() error {
	cb := b.cb
	patchPos, headPos, ok := cb.popLoop()
	if !ok {
		return fmt.Errorf("']' with no open loop during code generation")
	}
	cb.emit(0x41, 0x80, 0x3F, 0x00) // cmp byte [r15], 0
	cb.emit(0x0F, 0x85)             // jnz back to loop head
	cb.emitU32(uint32(int32(headPos - (cb.len() + 4))))
	cb.patchU32(patchPos, uint32(int32(cb.len()-(patchPos+4))))
	return nil
}

// ScanUntilZero emits a self-contained test/step loop. Its jumps are
// local and known at emission time, so the fixup stack is not involved
// (the bounds checks still escape to the shared trap stub).
func (b *x86_64Backend) ScanUntilZero(step int) {
	cb := b.cb
	head := cb.len()
	cb.emit(0x41, 0x80, 0x3F, 0x00) // cmp byte [r15], 0
	cb.emit(0x0F, 0x84)             // jz done
	donePos := cb.len()
	cb.emitU32(0)
	cb.emit(0x49, 0x83, 0xC7, byte(step)) // add r15, imm8 (+1 or -1)
	b.checkPtr(0xEF, 0xF7)
	cb.emit(0xE9) // jmp head
	cb.emitU32(uint32(int32(head - (cb.len() + 4))))
	cb.patchU32(donePos, uint32(int32(cb.len()-(donePos+4))))
}

// MultiplyAdd adds cell*factor into the cell at offset. The whole
// operation is skipped when the source cell is zero so that the closed
// form cannot trap where the open loop would never have run.
func (b *x86_64Backend) MultiplyAdd(offset int, factor byte) {
	cb := b.cb
	cb.emit(0x41, 0x0F, 0xB6, 0x07) // movzx eax, byte [r15]
	cb.emit(0x84, 0xC0)             // test al, al
	cb.emit(0x0F, 0x84)             // jz skip
	skipPos := cb.len()
	cb.emitU32(0)
	cb.emit(0x6B, 0xC0, factor) // imul eax, eax, imm8
	cb.emit(0x49, 0x8D, 0x8F)   // lea rcx, [r15+disp32]
	cb.emitU32(uint32(int32(offset)))
	b.checkPtr(0xE9, 0xF1) // cmp rcx, r13 / cmp rcx, r14
	cb.emit(0x00, 0x01)    // add byte [rcx], al
	cb.patchU32(skipPos, uint32(int32(cb.len()-(skipPos+4))))
}

// Epilogue lays down the success path, both trap stubs and the shared
// register-restore tail, then resolves every pending trap fixup.
func (b *x86_64Backend) Epilogue() {
	cb := b.cb
	cb.emit(0x31, 0xC0) // xor eax, eax (statusOK)
	cb.emit(0xE9)       // jmp tail
	okJmp := cb.len()
	cb.emitU32(0)

	ptrStub := cb.len()
	cb.emit(0xB8, 0x01, 0x00, 0x00, 0x00) // mov eax, statusPtrTrap
	cb.emit(0xE9)                         // jmp tail
	ptrJmp := cb.len()
	cb.emitU32(0)

	ioStub := cb.len()
	cb.emit(0xB8, 0x02, 0x00, 0x00, 0x00) // mov eax, statusByteIO

	tail := cb.len()
	cb.emit(0x41, 0x5F) // pop r15
	cb.emit(0x41, 0x5E) // pop r14
	cb.emit(0x41, 0x5D) // pop r13
	cb.emit(0x41, 0x5C) // pop r12
	cb.emit(0x5B)       // pop rbx
	cb.emit(0xC3)       // ret

	cb.patchU32(okJmp, uint32(int32(tail-(okJmp+4))))
	cb.patchU32(ptrJmp, uint32(int32(tail-(ptrJmp+4))))
	for _, f := range cb.traps {
		target := ptrStub
		if f.kind == fixupIOTrap {
			target = ioStub
		}
		cb.patchU32(f.offset, uint32(int32(target-(f.offset+4))))
	}
	cb.traps = cb.traps[:0]
}

func (b *x86_64Backend) Finalize() ([]byte, error) {
	if len(b.cb.loops) != 0 {
		return nil, fmt.Errorf("internal error: %d unresolved loop fixups after code generation", len(b.cb.loops))
	}
	if len(b.cb.traps) != 0 {
		return nil, fmt.Errorf("internal error: %d unresolved trap fixups after code generation", len(b.cb.traps))
	}
	return b.cb.code, nil
}
