// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package exec

import (
	"io"
	"os"

	"github.com/pigletvm/pigletvm/exec/internal/compile"
	"github.com/pigletvm/pigletvm/isa"
)

// VM is the execution context combining the interpreter and the basic
// block JIT behind the supervisor loop (spec §4.4). It implements the
// mandatory "simple" supervisor variant: every jump and every terminator
// is always handled by the interpreter, and only straight-line runs
// between them are ever compiled.
type VM struct {
	interp  *Interpreter
	state   *State
	backend compile.Backend
}

// NewVM builds a VM over code, writing PRINT output to stdout. A nil
// stdout defaults to os.Stdout.
func NewVM(code Code, stdout io.Writer) *VM {
	if stdout == nil {
		stdout = os.Stdout
	}
	backend := compile.DefaultBackend()
	state := NewState(newDefaultAllocator())
	compile.Stdout = stdout
	return &VM{
		interp:  &Interpreter{Code: code, State: state, Stdout: stdout},
		state:   state,
		backend: backend,
	}
}

// State exposes the VM's execution state, primarily so callers and tests
// can inspect stack depth or memory contents after a run.
func (vm *VM) State() *State { return vm.state }

// Run drives the supervisor loop to completion: jumps and terminators
// are always interpreted directly; every other instruction is handed to
// the JIT as the entry of a cached or freshly compiled basic block. On a
// platform with no native backend, blocks fall back to being interpreted
// one opcode at a time, exactly as if the JIT were never consulted.
func (vm *VM) Run() error {
	s := vm.state
	code := vm.interp.Code
	for s.ip >= 0 && s.ip < code.Len() {
		op := code.Word(s.ip)
		if op == isa.LabelCafe {
			s.ip += 2
			continue
		}
		if !isa.Valid(op) {
			return &Fault{Kind: UnknownOpcode, Offset: s.ip}
		}
		info := isa.Table[isa.Op(op)]
		if info.IsJump || info.IsTerm {
			res, err := vm.interp.Step()
			if err != nil {
				return err
			}
			if res.Done {
				return nil
			}
			if res.Aborted {
				return &Fault{Kind: Aborted, Offset: res.Offset}
			}
			continue
		}

		block, err := s.blocks.Build(vm.backend, code.Words(), s.ip)
		if err == compile.ErrNativeCompileUnavailable {
			done, err := vm.interpretStraightLine()
			if err != nil {
				return err
			}
			if done {
				return nil
			}
			continue
		}
		if err != nil {
			return err
		}

		signal := block.Invoke(s.StackBase(), s.MemoryBase(), s.DepthPtr(), &s.ip)
		switch signal {
		case compile.ExitContinue:
			// The compiled block's own last write to s.ip already points
			// one past the opcode word that ended it (see compile.Block);
			// undo the interpreter's pre-increment convention so the
			// supervisor re-reads that same opcode next iteration.
			s.ip--
		case compile.ExitTruncated:
			// The block ran off the physical end of the program with no
			// terminator at all: s.ip already equals code.Len(), and
			// there is no opcode to rewind to and re-dispatch, unlike
			// ExitContinue.
			return &Fault{Kind: Truncated, Offset: s.ip}
		case compile.ExitDivisionByZero:
			return &Fault{Kind: DivisionByZero, Offset: s.ip}
		case compile.ExitMemoryOutOfRange:
			return &Fault{Kind: MemoryOutOfRange, Offset: s.ip}
		case compile.ExitStackOverflow:
			return &Fault{Kind: StackOverflow, Offset: s.ip}
		case compile.ExitStackUnderflow:
			return &Fault{Kind: StackUnderflow, Offset: s.ip}
		default:
			return &Fault{Kind: UnknownOpcode, Offset: s.ip}
		}
	}
	return &Fault{Kind: Truncated, Offset: s.ip}
}

// interpretStraightLine steps the interpreter one opcode at a time until
// it reaches a jump, a terminator, or the end of the program, used when
// no native backend is available for this platform. done reports
// whether the program reached DONE; Run returns immediately when it has.
func (vm *VM) interpretStraightLine() (done bool, err error) {
	s := vm.state
	code := vm.interp.Code
	for {
		res, err := vm.interp.Step()
		if err != nil {
			return false, err
		}
		if res.Done {
			return true, nil
		}
		if res.Aborted {
			return false, &Fault{Kind: Aborted, Offset: res.Offset}
		}
		if s.ip >= code.Len() {
			return false, nil
		}
		next := code.Word(s.ip)
		if next == isa.LabelCafe {
			continue
		}
		if !isa.Valid(next) || isa.Table[isa.Op(next)].IsJump || isa.Table[isa.Op(next)].IsTerm {
			return false, nil
		}
	}
}
