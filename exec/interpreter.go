package exec

import (
	"fmt"
	"io"

	"github.com/pigletvm/pigletvm/isa"
)

// StepResult reports what a single dispatched instruction did.
type StepResult struct {
	Done    bool
	Aborted bool
	// Offset is the instruction's own starting offset, recorded so a
	// caller building an Aborted Fault can cite the ABORT's location.
	Offset int32
}

// Interpreter provides direct-dispatch reference semantics for every
// opcode (spec §4.3), and is also the control-flow driver the supervisor
// loop uses for jumps and termination in mixed interpreter/JIT mode.
type Interpreter struct {
	Code   Code
	State  *State
	Stdout io.Writer
}

// Run executes the program to completion using only the interpreter, no
// JIT. It returns nil on DONE, a *Fault{Kind: Aborted} on ABORT, or any
// other *Fault for a fatal condition encountered along the way.
func (in *Interpreter) Run() error {
	for {
		res, err := in.Step()
		if err != nil {
			return err
		}
		if res.Done {
			return nil
		}
		if res.Aborted {
			return &Fault{Kind: Aborted, Offset: res.Offset}
		}
	}
}

// Step executes exactly one instruction at State.ip, advancing ip past it
// (and its immediate, if any). It returns a non-nil error for any of the
// fatal conditions in spec §7, or a StepResult reporting DONE/ABORT.
func (in *Interpreter) Step() (res StepResult, err error) {
	s := in.State
	if s.ip < 0 || s.ip >= in.Code.Len() {
		return StepResult{}, &Fault{Kind: Truncated, Offset: s.ip}
	}
	opIP := s.ip
	// State's bounds checks record s.ip, which by then is already past the
	// opcode and its immediate; report stack and memory faults at the
	// opcode itself, as the JIT does.
	defer func() {
		if f, ok := err.(*Fault); ok && (f.Kind == StackUnderflow || f.Kind == StackOverflow || f.Kind == MemoryOutOfRange) {
			f.Offset = opIP
		}
	}()
	op := in.Code.Word(s.ip)
	s.ip++

	if op == isa.LabelCafe {
		s.ip++ // skip the paired 0xBABE word
		return StepResult{}, nil
	}
	if !isa.Valid(op) {
		return StepResult{}, &Fault{Kind: UnknownOpcode, Offset: opIP}
	}

	switch isa.Op(op) {
	case isa.PUSHI:
		arg, err := in.fetchImm()
		if err != nil {
			return StepResult{}, err
		}
		return StepResult{}, s.Push(arg)

	case isa.LOADI:
		addr, err := in.fetchImm()
		if err != nil {
			return StepResult{}, err
		}
		v, err := s.MemLoad(addr)
		if err != nil {
			return StepResult{}, err
		}
		return StepResult{}, s.Push(v)

	case isa.LOADADDI:
		addr, err := in.fetchImm()
		if err != nil {
			return StepResult{}, err
		}
		mv, err := s.MemLoad(addr)
		if err != nil {
			return StepResult{}, err
		}
		top, err := s.Pop()
		if err != nil {
			return StepResult{}, err
		}
		return StepResult{}, s.Push(top + mv)

	case isa.STOREI:
		addr, err := in.fetchImm()
		if err != nil {
			return StepResult{}, err
		}
		v, err := s.Pop()
		if err != nil {
			return StepResult{}, err
		}
		return StepResult{}, s.MemStore(addr, v)

	case isa.LOAD:
		addr, err := s.Pop()
		if err != nil {
			return StepResult{}, err
		}
		v, err := s.MemLoad(addr)
		if err != nil {
			return StepResult{}, err
		}
		return StepResult{}, s.Push(v)

	case isa.STORE:
		// The value is popped before the address: the assembler's
		// emission order for STORE relies on this verbatim.
		v, err := s.Pop()
		if err != nil {
			return StepResult{}, err
		}
		addr, err := s.Pop()
		if err != nil {
			return StepResult{}, err
		}
		return StepResult{}, s.MemStore(addr, v)

	case isa.DUP:
		v, err := s.Peek()
		if err != nil {
			return StepResult{}, err
		}
		return StepResult{}, s.Push(v)

	case isa.DISCARD, isa.POP_RES:
		_, err := s.Pop()
		return StepResult{}, err

	case isa.ADD:
		b, a, err := in.pop2()
		if err != nil {
			return StepResult{}, err
		}
		return StepResult{}, s.Push(a + b)

	case isa.ADDI:
		arg, err := in.fetchImm()
		if err != nil {
			return StepResult{}, err
		}
		top, err := s.Pop()
		if err != nil {
			return StepResult{}, err
		}
		return StepResult{}, s.Push(top + arg)

	case isa.SUB:
		b, a, err := in.pop2()
		if err != nil {
			return StepResult{}, err
		}
		return StepResult{}, s.Push(a - b)

	case isa.DIV:
		b, a, err := in.pop2()
		if err != nil {
			return StepResult{}, err
		}
		if b == 0 {
			return StepResult{}, &Fault{Kind: DivisionByZero, Offset: opIP}
		}
		return StepResult{}, s.Push(a / b)

	case isa.MUL:
		b, a, err := in.pop2()
		if err != nil {
			return StepResult{}, err
		}
		return StepResult{}, s.Push(a * b)

	case isa.JUMP:
		target, err := in.fetchImm()
		if err != nil {
			return StepResult{}, err
		}
		s.ip = target
		return StepResult{}, nil

	case isa.JUMP_IF_TRUE:
		target, err := in.fetchImm()
		if err != nil {
			return StepResult{}, err
		}
		v, err := s.Pop()
		if err != nil {
			return StepResult{}, err
		}
		if v != 0 {
			s.ip = target
		}
		return StepResult{}, nil

	case isa.JUMP_IF_FALSE:
		target, err := in.fetchImm()
		if err != nil {
			return StepResult{}, err
		}
		v, err := s.Pop()
		if err != nil {
			return StepResult{}, err
		}
		if v == 0 {
			s.ip = target
		}
		return StepResult{}, nil

	case isa.EQUAL:
		return StepResult{}, in.cmp(func(a, b int32) bool { return a == b })
	case isa.LESS:
		return StepResult{}, in.cmp(func(a, b int32) bool { return a < b })
	case isa.LESS_OR_EQUAL:
		return StepResult{}, in.cmp(func(a, b int32) bool { return a <= b })
	case isa.GREATER:
		return StepResult{}, in.cmp(func(a, b int32) bool { return a > b })
	case isa.GREATER_OR_EQUAL:
		return StepResult{}, in.cmp(func(a, b int32) bool { return a >= b })

	case isa.GREATER_OR_EQUALI:
		arg, err := in.fetchImm()
		if err != nil {
			return StepResult{}, err
		}
		top, err := s.Pop()
		if err != nil {
			return StepResult{}, err
		}
		return StepResult{}, s.Push(boolToWord(top >= arg))

	case isa.PRINT:
		v, err := s.Pop()
		if err != nil {
			return StepResult{}, err
		}
		fmt.Fprintf(in.Stdout, "%d\n", v)
		return StepResult{}, nil

	case isa.DONE:
		return StepResult{Done: true, Offset: opIP}, nil

	case isa.ABORT:
		return StepResult{Aborted: true, Offset: opIP}, nil

	default:
		return StepResult{}, &Fault{Kind: UnknownOpcode, Offset: opIP}
	}
}

// fetchImm reads the immediate word following an immediate-taking opcode.
// A program that ends right after such an opcode has no word left to
// read; that is spec §7 Truncated, not a slice-index panic.
func (in *Interpreter) fetchImm() (int32, error) {
	if in.State.ip >= in.Code.Len() {
		return 0, &Fault{Kind: Truncated, Offset: in.State.ip}
	}
	v := in.Code.Word(in.State.ip)
	in.State.ip++
	return v, nil
}

// pop2 pops the top two stack elements, returning (top, under) as (b, a)
// — the convention every binary opcode in spec §4.3 uses: the most
// recently pushed operand is the right-hand side.
func (in *Interpreter) pop2() (top, under int32, err error) {
	top, err = in.State.Pop()
	if err != nil {
		return 0, 0, err
	}
	under, err = in.State.Pop()
	if err != nil {
		return 0, 0, err
	}
	return top, under, nil
}

func (in *Interpreter) cmp(pred func(a, b int32) bool) error {
	top, under, err := in.pop2()
	if err != nil {
		return err
	}
	return in.State.Push(boolToWord(pred(under, top)))
}
