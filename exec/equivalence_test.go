package exec

import (
	"bytes"
	"testing"

	"github.com/pigletvm/pigletvm/isa"
)

// equivalencePrograms exercises every opcode family at least once, so
// that comparing the pure-interpreter path against VM.Run's mixed
// interpreter/JIT path covers arithmetic, memory, comparisons, and
// control flow alike (spec Testable Property 2: interpreter and JIT
// agree on every well-formed program).
var equivalencePrograms = map[string][]int32{
	"arithmetic": {
		int32(isa.PUSHI), 6,
		int32(isa.PUSHI), 7,
		int32(isa.MUL),
		int32(isa.PUSHI), 2,
		int32(isa.SUB),
		int32(isa.PRINT),
		int32(isa.DONE),
	},
	"memory": {
		int32(isa.PUSHI), 10,
		int32(isa.STOREI), 4,
		int32(isa.LOADI), 4,
		int32(isa.PUSHI), 5,
		int32(isa.LOADADDI), 4,
		int32(isa.PRINT),
		int32(isa.DONE),
	},
	"comparisons": {
		int32(isa.PUSHI), 3,
		int32(isa.PUSHI), 3,
		int32(isa.EQUAL),
		int32(isa.PRINT),
		int32(isa.PUSHI), 1,
		int32(isa.PUSHI), 2,
		int32(isa.LESS_OR_EQUAL),
		int32(isa.PRINT),
		int32(isa.DONE),
	},
	"dup_discard_popres": {
		int32(isa.PUSHI), 9,
		int32(isa.DUP),
		int32(isa.PRINT),
		int32(isa.PUSHI), 1,
		int32(isa.DISCARD),
		int32(isa.POP_RES),
		int32(isa.DONE),
	},
	"forward_jump": {
		int32(isa.PUSHI), 1,
		int32(isa.JUMP_IF_TRUE), 6,
		int32(isa.PUSHI), 999,
		int32(isa.PRINT),
		int32(isa.DONE),
	},
	"countdown_loop": {
		int32(isa.PUSHI), 3,
		int32(isa.STOREI), 0,
		int32(isa.LOADI), 0,
		int32(isa.PUSHI), 0,
		int32(isa.GREATER),
		int32(isa.JUMP_IF_FALSE), 23,
		int32(isa.LOADI), 0,
		int32(isa.PRINT),
		int32(isa.LOADI), 0,
		int32(isa.PUSHI), 1,
		int32(isa.SUB),
		int32(isa.STOREI), 0,
		int32(isa.JUMP), 4,
		int32(isa.DONE),
	},
	"abort": {
		int32(isa.PUSHI), 1,
		int32(isa.PRINT),
		int32(isa.ABORT),
	},
	"division_by_zero": {
		int32(isa.PUSHI), 1,
		int32(isa.PUSHI), 0,
		int32(isa.DIV),
		int32(isa.DONE),
	},
}

func TestInterpreterAndVMAgree(t *testing.T) {
	for name, prog := range equivalencePrograms {
		t.Run(name, func(t *testing.T) {
			code := wordsCode(append([]int32(nil), prog...))

			var interpOut bytes.Buffer
			interpState := NewState(newDefaultAllocator())
			in := &Interpreter{Code: code, State: interpState, Stdout: &interpOut}
			interpErr := in.Run()

			var vmOut bytes.Buffer
			vm := NewVM(code, &vmOut)
			vmErr := vm.Run()

			if interpOut.String() != vmOut.String() {
				t.Errorf("output differs: interpreter %q, VM %q", interpOut.String(), vmOut.String())
			}

			interpFault, _ := interpErr.(*Fault)
			vmFault, _ := vmErr.(*Fault)
			switch {
			case interpErr == nil && vmErr == nil:
				// both succeeded
			case interpFault != nil && vmFault != nil:
				if interpFault.Kind != vmFault.Kind {
					t.Errorf("fault kind differs: interpreter %v, VM %v", interpFault.Kind, vmFault.Kind)
				}
			default:
				t.Errorf("outcome differs: interpreter err=%v, VM err=%v", interpErr, vmErr)
			}
		})
	}
}
