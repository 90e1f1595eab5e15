package exec

import (
	"bytes"
	"testing"

	"github.com/pigletvm/pigletvm/isa"
)

// wordsCode adapts a plain []int32 to the Code interface for tests that
// don't need a real image.Image.
type wordsCode []int32

func (w wordsCode) Word(i int32) int32 { return w[i] }
func (w wordsCode) Len() int32         { return int32(len(w)) }
func (w wordsCode) Words() []int32     { return w }

func newInterp(code []int32) (*Interpreter, *bytes.Buffer) {
	var buf bytes.Buffer
	s := NewState(newDefaultAllocator())
	return &Interpreter{Code: wordsCode(code), State: s, Stdout: &buf}, &buf
}

func TestInterpreterArithmeticAndPrint(t *testing.T) {
	code := []int32{
		int32(isa.PUSHI), 2,
		int32(isa.PUSHI), 3,
		int32(isa.ADD),
		int32(isa.PRINT),
		int32(isa.DONE),
	}
	in, buf := newInterp(code)
	if err := in.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, want := buf.String(), "5\n"; got != want {
		t.Errorf("printed %q, want %q", got, want)
	}
}

func TestInterpreterStoreOperandOrder(t *testing.T) {
	// STORE pops the value first, then the address: push address 5, then
	// value 77, STORE must write 77 at address 5, not the reverse.
	code := []int32{
		int32(isa.PUSHI), 5,
		int32(isa.PUSHI), 77,
		int32(isa.STORE),
		int32(isa.DONE),
	}
	in, _ := newInterp(code)
	if err := in.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	v, err := in.State.MemLoad(5)
	if err != nil {
		t.Fatalf("MemLoad: %v", err)
	}
	if v != 77 {
		t.Errorf("memory[5] = %d, want 77", v)
	}
}

func TestInterpreterComparisonOperandOrder(t *testing.T) {
	// 3 LESS 5 must be true: the operand pushed first (3) is the
	// left-hand side, the operand pushed last (5) is the right-hand side.
	code := []int32{
		int32(isa.PUSHI), 3,
		int32(isa.PUSHI), 5,
		int32(isa.LESS),
		int32(isa.DONE),
	}
	in, _ := newInterp(code)
	if err := in.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	v, err := in.State.Pop()
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if v != 1 {
		t.Errorf("3 LESS 5 = %d, want 1 (true)", v)
	}
}

func TestInterpreterJumpIfFalse(t *testing.T) {
	code := []int32{
		int32(isa.PUSHI), 0,
		int32(isa.JUMP_IF_FALSE), 6,
		int32(isa.PUSHI), 1, // skipped
		int32(isa.PUSHI), 2,
		int32(isa.DONE),
	}
	in, _ := newInterp(code)
	if err := in.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	v, err := in.State.Pop()
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if v != 2 {
		t.Errorf("top = %d, want 2", v)
	}
}

func TestInterpreterDivisionByZero(t *testing.T) {
	code := []int32{
		int32(isa.PUSHI), 10,
		int32(isa.PUSHI), 0,
		int32(isa.DIV),
		int32(isa.DONE),
	}
	in, _ := newInterp(code)
	err := in.Run()
	f, ok := err.(*Fault)
	if !ok {
		t.Fatalf("err = %v, want *Fault", err)
	}
	if f.Kind != DivisionByZero {
		t.Errorf("Kind = %v, want DivisionByZero", f.Kind)
	}
	if f.Offset != 4 {
		t.Errorf("Offset = %d, want 4 (the DIV opcode's offset)", f.Offset)
	}
}

func TestInterpreterAbortReturnsFault(t *testing.T) {
	code := []int32{int32(isa.ABORT)}
	in, _ := newInterp(code)
	err := in.Run()
	f, ok := err.(*Fault)
	if !ok {
		t.Fatalf("err = %v, want *Fault", err)
	}
	if f.Kind != Aborted {
		t.Errorf("Kind = %v, want Aborted", f.Kind)
	}
}

func TestInterpreterLabelMarkerSkipped(t *testing.T) {
	code := []int32{
		int32(isa.JUMP), 2,
		isa.LabelCafe, isa.LabelBabe,
		int32(isa.PUSHI), 9,
		int32(isa.DONE),
	}
	in, _ := newInterp(code)
	if err := in.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	v, err := in.State.Pop()
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if v != 9 {
		t.Errorf("top = %d, want 9", v)
	}
}

func TestInterpreterUnknownOpcodeFaults(t *testing.T) {
	code := []int32{999}
	in, _ := newInterp(code)
	err := in.Run()
	f, ok := err.(*Fault)
	if !ok {
		t.Fatalf("err = %v, want *Fault", err)
	}
	if f.Kind != UnknownOpcode {
		t.Errorf("Kind = %v, want UnknownOpcode", f.Kind)
	}
}

func TestInterpreterTruncatedProgramFaults(t *testing.T) {
	code := []int32{int32(isa.PUSHI), 1}
	in, _ := newInterp(code)
	err := in.Run()
	f, ok := err.(*Fault)
	if !ok {
		t.Fatalf("err = %v, want *Fault", err)
	}
	if f.Kind != Truncated {
		t.Errorf("Kind = %v, want Truncated", f.Kind)
	}
}

func TestInterpreterTruncatedImmediateFaults(t *testing.T) {
	// PUSHI's immediate word is missing entirely: the image ends right
	// after the opcode, so fetchImm must fault Truncated rather than
	// index past the end of the word array.
	code := []int32{int32(isa.PUSHI)}
	in, _ := newInterp(code)
	err := in.Run()
	f, ok := err.(*Fault)
	if !ok {
		t.Fatalf("err = %v, want *Fault", err)
	}
	if f.Kind != Truncated {
		t.Errorf("Kind = %v, want Truncated", f.Kind)
	}
	if f.Offset != 1 {
		t.Errorf("Offset = %d, want 1 (one past PUSHI's own word)", f.Offset)
	}
}
