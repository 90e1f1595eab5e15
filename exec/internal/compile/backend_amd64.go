// Copyright 2019 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build amd64 && !appengine

package compile

import (
	"fmt"

	asm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"

	"github.com/pigletvm/pigletvm/isa"
)

// Details of the AMD64 backend:
// Reserved registers:
//  - R10 - stack base pointer, constant for the life of the block
//  - R11 - memory base pointer, constant for the life of the block
//  - R14 - pointer to the shared stack-depth cell
//  - R15 - pointer to the shared ip cell, written once on exit
// Scratch registers:
//  - AX, BX, CX, DX, R8, R9, R12, R13
//
// Every opcode that touches the operand stack reloads the depth from the
// shared cell and stores it straight back rather than keeping it live in
// a register across the whole block; this keeps each lowering
// self-contained and matches exec.State's own Push/Pop bookkeeping. A
// peephole pass that hoists the depth into a register for the block's
// duration is a reasonable follow-up once there is a benchmark to
// justify it.
//
// PRINT is the one opcode that calls back into Go code (hostPrintBridge).
// Go's internal ABI treats R14 as the running goroutine's g and is free
// to clobber R10/R11/R15 across any call, so emitCallHostPrint spills all
// four reserved registers before the call and reloads them after.

const (
	stackCapacity  = 8096
	memoryCapacity = 140000
)

// AMD64Backend is the native compiler backend for x86-64.
type AMD64Backend struct{}

// DefaultBackend returns the Backend this platform supports.
func DefaultBackend() Backend { return AMD64Backend{} }

// Build lowers the opcodes in [block.Entry, block.End) to native code.
// Label markers inside the range are skipped. The jump, terminator, or
// unrecognized opcode that ends the block (its word is block.End-1, see
// Discover) is not lowered; the block exits with ip = block.End.
func (b AMD64Backend) Build(alloc Allocator, code []int32, block Block) (NativeCodeUnit, error) {
	builder, err := asm.NewBuilder("amd64", 64)
	if err != nil {
		return nil, err
	}

	ip := block.Entry
	for ip < block.End {
		op := code[ip]
		if op == isa.LabelCafe {
			ip += 2
			continue
		}
		if !isa.Valid(op) {
			break
		}
		info := isa.Table[isa.Op(op)]
		if info.IsJump || info.IsTerm {
			break
		}
		opIP := ip
		var imm int32
		if info.HasImm {
			imm = code[ip+1]
		}
		if err := b.emitOp(builder, isa.Op(op), imm, opIP); err != nil {
			return nil, err
		}
		if info.HasImm {
			ip += 2
		} else {
			ip++
		}
	}
	exitSignal := ExitContinue
	if block.AtEOF {
		exitSignal = ExitTruncated
	}
	b.emitExit(builder, exitSignal, block.End)

	raw := builder.Assemble()
	mem, err := alloc.AllocateExec(raw)
	if err != nil {
		return nil, err
	}
	return &asmBlock{mem: mem}, nil
}

func (b AMD64Backend) emitOp(builder *asm.Builder, op isa.Op, imm int32, opIP int32) error {
	switch op {
	case isa.PUSHI:
		b.emitMovConst(builder, x86.REG_AX, int64(imm))
		b.emitPush(builder, x86.REG_AX, opIP)
	case isa.LOADI:
		b.emitMovConst(builder, x86.REG_AX, int64(imm))
		b.emitMemLoad(builder, x86.REG_AX, x86.REG_BX, opIP)
		b.emitPush(builder, x86.REG_BX, opIP)
	case isa.LOADADDI:
		b.emitMovConst(builder, x86.REG_AX, int64(imm))
		b.emitMemLoad(builder, x86.REG_AX, x86.REG_BX, opIP)
		b.emitPop(builder, x86.REG_CX, opIP)
		b.emitAddl(builder, x86.REG_BX, x86.REG_CX)
		b.emitPush(builder, x86.REG_CX, opIP)
	case isa.STOREI:
		b.emitPop(builder, x86.REG_AX, opIP)
		b.emitMovConst(builder, x86.REG_BX, int64(imm))
		b.emitMemStore(builder, x86.REG_BX, x86.REG_AX, opIP)
	case isa.LOAD:
		b.emitPop(builder, x86.REG_AX, opIP)
		b.emitMemLoad(builder, x86.REG_AX, x86.REG_BX, opIP)
		b.emitPush(builder, x86.REG_BX, opIP)
	case isa.STORE:
		b.emitPop(builder, x86.REG_AX, opIP) // value
		b.emitPop(builder, x86.REG_BX, opIP) // address
		b.emitMemStore(builder, x86.REG_BX, x86.REG_AX, opIP)
	case isa.DUP:
		b.emitPeek(builder, x86.REG_AX, opIP)
		b.emitPush(builder, x86.REG_AX, opIP)
	case isa.DISCARD, isa.POP_RES:
		b.emitPop(builder, x86.REG_AX, opIP)
	case isa.ADD:
		b.emitPop(builder, x86.REG_AX, opIP) // b
		b.emitPop(builder, x86.REG_BX, opIP) // a
		b.emitAddl(builder, x86.REG_AX, x86.REG_BX)
		b.emitPush(builder, x86.REG_BX, opIP)
	case isa.ADDI:
		b.emitPop(builder, x86.REG_AX, opIP)
		b.emitAddlConst(builder, x86.REG_AX, int64(imm))
		b.emitPush(builder, x86.REG_AX, opIP)
	case isa.SUB:
		b.emitPop(builder, x86.REG_AX, opIP) // b
		b.emitPop(builder, x86.REG_BX, opIP) // a
		b.emitSubl(builder, x86.REG_AX, x86.REG_BX)
		b.emitPush(builder, x86.REG_BX, opIP)
	case isa.MUL:
		b.emitPop(builder, x86.REG_AX, opIP) // b
		b.emitPop(builder, x86.REG_BX, opIP) // a
		b.emitImull(builder, x86.REG_AX, x86.REG_BX)
		b.emitPush(builder, x86.REG_BX, opIP)
	case isa.DIV:
		b.emitPop(builder, x86.REG_CX, opIP) // b (divisor)
		b.emitPop(builder, x86.REG_AX, opIP) // a (dividend)
		b.emitGuard(builder, x86.REG_CX, 0, x86.AJNE, ExitDivisionByZero, opIP)
		cdq := builder.NewProg()
		cdq.As = x86.ACDQ
		builder.AddInstruction(cdq)
		idiv := builder.NewProg()
		idiv.As = x86.AIDIVL
		idiv.To.Type = obj.TYPE_REG
		idiv.To.Reg = x86.REG_CX
		builder.AddInstruction(idiv)
		b.emitPush(builder, x86.REG_AX, opIP)
	case isa.GREATER_OR_EQUALI:
		b.emitPop(builder, x86.REG_AX, opIP)
		b.emitCmpSetConst(builder, x86.REG_AX, int64(imm), x86.ASETGE, x86.REG_BX)
		b.emitPush(builder, x86.REG_BX, opIP)
	case isa.EQUAL:
		b.emitCompare(builder, x86.ASETEQ, opIP)
	case isa.LESS:
		b.emitCompare(builder, x86.ASETLT, opIP)
	case isa.LESS_OR_EQUAL:
		b.emitCompare(builder, x86.ASETLE, opIP)
	case isa.GREATER:
		b.emitCompare(builder, x86.ASETGT, opIP)
	case isa.GREATER_OR_EQUAL:
		b.emitCompare(builder, x86.ASETGE, opIP)
	case isa.PRINT:
		b.emitPop(builder, x86.REG_AX, opIP)
		b.emitCallHostPrint(builder)
	default:
		return fmt.Errorf("compile: amd64 backend cannot lower opcode %d", op)
	}
	return nil
}

// emitCompare pops b then a, sets dest to (a <cond> b) as 0 or 1, and
// pushes it. Reused by EQUAL/LESS/LESS_OR_EQUAL/GREATER/GREATER_OR_EQUAL.
func (b AMD64Backend) emitCompare(builder *asm.Builder, setcc obj.As, opIP int32) {
	b.emitPop(builder, x86.REG_AX, opIP) // b
	b.emitPop(builder, x86.REG_BX, opIP) // a
	xor := builder.NewProg()
	xor.As = x86.AXORL
	xor.From.Type = obj.TYPE_REG
	xor.From.Reg = x86.REG_CX
	xor.To.Type = obj.TYPE_REG
	xor.To.Reg = x86.REG_CX
	builder.AddInstruction(xor)

	cmp := builder.NewProg()
	cmp.As = x86.ACMPL
	cmp.From.Type = obj.TYPE_REG
	cmp.From.Reg = x86.REG_BX
	cmp.To.Type = obj.TYPE_REG
	cmp.To.Reg = x86.REG_AX
	builder.AddInstruction(cmp)

	set := builder.NewProg()
	set.As = setcc
	set.To.Type = obj.TYPE_REG
	set.To.Reg = x86.REG_CX
	builder.AddInstruction(set)

	b.emitPush(builder, x86.REG_CX, opIP)
}

func (b AMD64Backend) emitCmpSetConst(builder *asm.Builder, reg int16, imm int64, setcc obj.As, dest int16) {
	xor := builder.NewProg()
	xor.As = x86.AXORL
	xor.From.Type = obj.TYPE_REG
	xor.From.Reg = dest
	xor.To.Type = obj.TYPE_REG
	xor.To.Reg = dest
	builder.AddInstruction(xor)

	cmp := builder.NewProg()
	cmp.As = x86.ACMPL
	cmp.From.Type = obj.TYPE_REG
	cmp.From.Reg = reg
	cmp.To.Type = obj.TYPE_CONST
	cmp.To.Offset = imm
	builder.AddInstruction(cmp)

	set := builder.NewProg()
	set.As = setcc
	set.To.Type = obj.TYPE_REG
	set.To.Reg = dest
	builder.AddInstruction(set)
}

// emitCallHostPrint calls hostPrintBridge with the argument already
// sitting in AX (left there by the PRINT opcode's preceding emitPop).
// hostPrintBridge is an ordinary Go function: under Go's internal ABI it
// freely clobbers R10/R11/R15, and R14 is the running goroutine's g
// register, which this backend repurposes to hold the depth cell
// pointer for the rest of the block. Both facts mean every reserved
// register must be spilled before the call and restored after it, or
// the call corrupts the runtime's notion of g and leaves the block
// running on garbage stack/memory bases.
func (b AMD64Backend) emitCallHostPrint(builder *asm.Builder) {
	b.emitPushReg(builder, x86.REG_R10)
	b.emitPushReg(builder, x86.REG_R11)
	b.emitPushReg(builder, x86.REG_R14)
	b.emitPushReg(builder, x86.REG_R15)

	b.emitMovConst(builder, x86.REG_DX, int64(funcPC(hostPrintBridge)))
	call := builder.NewProg()
	call.As = obj.ACALL
	call.To.Type = obj.TYPE_REG
	call.To.Reg = x86.REG_DX
	builder.AddInstruction(call)

	b.emitPopReg(builder, x86.REG_R15)
	b.emitPopReg(builder, x86.REG_R14)
	b.emitPopReg(builder, x86.REG_R11)
	b.emitPopReg(builder, x86.REG_R10)
}

func (b AMD64Backend) emitPushReg(builder *asm.Builder, reg int16) {
	p := builder.NewProg()
	p.As = x86.APUSHQ
	p.From.Type = obj.TYPE_REG
	p.From.Reg = reg
	builder.AddInstruction(p)
}

func (b AMD64Backend) emitPopReg(builder *asm.Builder, reg int16) {
	p := builder.NewProg()
	p.As = x86.APOPQ
	p.To.Type = obj.TYPE_REG
	p.To.Reg = reg
	builder.AddInstruction(p)
}

func (b AMD64Backend) emitMovConst(builder *asm.Builder, reg int16, c int64) {
	p := builder.NewProg()
	p.As = x86.AMOVQ
	p.From.Type = obj.TYPE_CONST
	p.From.Offset = c
	p.To.Type = obj.TYPE_REG
	p.To.Reg = reg
	builder.AddInstruction(p)
}

func (b AMD64Backend) emitAddl(builder *asm.Builder, src, dst int16) {
	p := builder.NewProg()
	p.As = x86.AADDL
	p.From.Type = obj.TYPE_REG
	p.From.Reg = src
	p.To.Type = obj.TYPE_REG
	p.To.Reg = dst
	builder.AddInstruction(p)
}

func (b AMD64Backend) emitAddlConst(builder *asm.Builder, dst int16, imm int64) {
	p := builder.NewProg()
	p.As = x86.AADDL
	p.From.Type = obj.TYPE_CONST
	p.From.Offset = imm
	p.To.Type = obj.TYPE_REG
	p.To.Reg = dst
	builder.AddInstruction(p)
}

func (b AMD64Backend) emitSubl(builder *asm.Builder, src, dst int16) {
	p := builder.NewProg()
	p.As = x86.ASUBL
	p.From.Type = obj.TYPE_REG
	p.From.Reg = src
	p.To.Type = obj.TYPE_REG
	p.To.Reg = dst
	builder.AddInstruction(p)
}

func (b AMD64Backend) emitImull(builder *asm.Builder, src, dst int16) {
	p := builder.NewProg()
	p.As = x86.AIMULL
	p.From.Type = obj.TYPE_REG
	p.From.Reg = src
	p.To.Type = obj.TYPE_REG
	p.To.Reg = dst
	builder.AddInstruction(p)
}

// loadDepth/storeDepth read and write the shared stack-depth cell (an
// int32) through R14. The 32-bit load zero-extends into reg.
func (b AMD64Backend) loadDepth(builder *asm.Builder, reg int16) {
	p := builder.NewProg()
	p.As = x86.AMOVL
	p.To.Type = obj.TYPE_REG
	p.To.Reg = reg
	p.From.Type = obj.TYPE_MEM
	p.From.Reg = x86.REG_R14
	builder.AddInstruction(p)
}

func (b AMD64Backend) storeDepth(builder *asm.Builder, reg int16) {
	p := builder.NewProg()
	p.As = x86.AMOVL
	p.From.Type = obj.TYPE_REG
	p.From.Reg = reg
	p.To.Type = obj.TYPE_MEM
	p.To.Reg = x86.REG_R14
	builder.AddInstruction(p)
}

// emitPop guards against underflow, decrements and writes back the
// shared depth, and loads the popped element into dest.
func (b AMD64Backend) emitPop(builder *asm.Builder, dest int16, opIP int32) {
	b.loadDepth(builder, x86.REG_R13)
	b.emitGuard(builder, x86.REG_R13, 0, x86.AJGT, ExitStackUnderflow, opIP)
	dec := builder.NewProg()
	dec.As = x86.ADECQ
	dec.To.Type = obj.TYPE_REG
	dec.To.Reg = x86.REG_R13
	builder.AddInstruction(dec)
	b.storeDepth(builder, x86.REG_R13)

	load := builder.NewProg()
	load.As = x86.AMOVL
	load.To.Type = obj.TYPE_REG
	load.To.Reg = dest
	load.From.Type = obj.TYPE_MEM
	load.From.Reg = x86.REG_R10
	load.From.Scale = 4
	load.From.Index = x86.REG_R13
	builder.AddInstruction(load)
}

// emitPeek loads the top-of-stack element into dest without popping it.
func (b AMD64Backend) emitPeek(builder *asm.Builder, dest int16, opIP int32) {
	b.loadDepth(builder, x86.REG_R13)
	b.emitGuard(builder, x86.REG_R13, 0, x86.AJGT, ExitStackUnderflow, opIP)
	dec := builder.NewProg()
	dec.As = x86.ADECQ
	dec.To.Type = obj.TYPE_REG
	dec.To.Reg = x86.REG_R13
	builder.AddInstruction(dec)

	load := builder.NewProg()
	load.As = x86.AMOVL
	load.To.Type = obj.TYPE_REG
	load.To.Reg = dest
	load.From.Type = obj.TYPE_MEM
	load.From.Reg = x86.REG_R10
	load.From.Scale = 4
	load.From.Index = x86.REG_R13
	builder.AddInstruction(load)
}

// emitPush guards against overflow, stores src at the current depth, and
// writes back the incremented depth.
func (b AMD64Backend) emitPush(builder *asm.Builder, src int16, opIP int32) {
	b.loadDepth(builder, x86.REG_R13)
	b.emitGuard(builder, x86.REG_R13, stackCapacity, x86.AJLT, ExitStackOverflow, opIP)

	store := builder.NewProg()
	store.As = x86.AMOVL
	store.To.Type = obj.TYPE_MEM
	store.To.Reg = x86.REG_R10
	store.To.Scale = 4
	store.To.Index = x86.REG_R13
	store.From.Type = obj.TYPE_REG
	store.From.Reg = src
	builder.AddInstruction(store)

	inc := builder.NewProg()
	inc.As = x86.AINCQ
	inc.To.Type = obj.TYPE_REG
	inc.To.Reg = x86.REG_R13
	builder.AddInstruction(inc)
	b.storeDepth(builder, x86.REG_R13)
}

// emitMemLoad guards addr against the memory capacity (unsigned, so a
// negative int32 bit pattern traps the same as an address past the end)
// and loads memory[addr] into dest.
func (b AMD64Backend) emitMemLoad(builder *asm.Builder, addr, dest int16, opIP int32) {
	b.emitGuard(builder, addr, memoryCapacity, x86.AJCS, ExitMemoryOutOfRange, opIP)
	p := builder.NewProg()
	p.As = x86.AMOVL
	p.To.Type = obj.TYPE_REG
	p.To.Reg = dest
	p.From.Type = obj.TYPE_MEM
	p.From.Reg = x86.REG_R11
	p.From.Scale = 4
	p.From.Index = addr
	builder.AddInstruction(p)
}

func (b AMD64Backend) emitMemStore(builder *asm.Builder, addr, src int16, opIP int32) {
	b.emitGuard(builder, addr, memoryCapacity, x86.AJCS, ExitMemoryOutOfRange, opIP)
	p := builder.NewProg()
	p.As = x86.AMOVL
	p.To.Type = obj.TYPE_MEM
	p.To.Reg = x86.REG_R11
	p.To.Scale = 4
	p.To.Index = addr
	p.From.Type = obj.TYPE_REG
	p.From.Reg = src
	builder.AddInstruction(p)
}

// emitGuard compares reg against limit and, unless safeCond holds,
// writes trapSignal and opIP to the host data block and returns. It is
// the single mechanism behind every stack and memory bounds check, as
// well as DIV's zero check: a runtime check emitted before the faulting
// instruction, matching spec §7's requirement that these conditions be
// fatal rather than undefined.
func (b AMD64Backend) emitGuard(builder *asm.Builder, reg int16, limit int64, safeCond obj.As, trapSignal ExitSignal, opIP int32) {
	cmp := builder.NewProg()
	cmp.As = x86.ACMPL
	cmp.From.Type = obj.TYPE_REG
	cmp.From.Reg = reg
	cmp.To.Type = obj.TYPE_CONST
	cmp.To.Offset = limit
	builder.AddInstruction(cmp)

	jmp := builder.NewProg()
	jmp.As = safeCond
	jmp.To.Type = obj.TYPE_BRANCH
	builder.AddInstruction(jmp)

	b.emitExit(builder, trapSignal, opIP)

	land := builder.NewProg()
	land.As = obj.ANOP
	builder.AddInstruction(land)
	jmp.To.SetTarget(land)
}

// emitExit writes signal and ip to the host data block and returns.
// Called both for the block's normal fallthrough exit and from inside
// emitGuard for a trapped fault.
func (b AMD64Backend) emitExit(builder *asm.Builder, signal ExitSignal, ipVal int32) {
	movSig := builder.NewProg()
	movSig.As = x86.AMOVQ
	movSig.From.Type = obj.TYPE_CONST
	movSig.From.Offset = int64(signal)
	movSig.To.Type = obj.TYPE_REG
	movSig.To.Reg = x86.REG_AX
	builder.AddInstruction(movSig)

	movIP := builder.NewProg()
	movIP.As = x86.AMOVL
	movIP.From.Type = obj.TYPE_CONST
	movIP.From.Offset = int64(ipVal)
	movIP.To.Type = obj.TYPE_MEM
	movIP.To.Reg = x86.REG_R15
	builder.AddInstruction(movIP)

	ret := builder.NewProg()
	ret.As = obj.ARET
	builder.AddInstruction(ret)
}
