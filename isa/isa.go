// Package isa defines the Piglet bytecode instruction set: the numeric
// opcode assignment, the label marker sentinel, and the arity table both
// the assembler and the execution engine drive their decoding from.
package isa

// Op is a single Piglet opcode.
type Op int32

// Numeric opcode assignment. This is binary-compatible wire format: the
// declaration order here is the only order that may ever exist.
const (
	PUSHI Op = iota
	LOADI
	LOADADDI
	STOREI
	LOAD
	STORE
	DUP
	DISCARD
	ADD
	ADDI
	SUB
	DIV
	MUL
	JUMP
	JUMP_IF_TRUE
	JUMP_IF_FALSE
	EQUAL
	LESS
	LESS_OR_EQUAL
	GREATER
	GREATER_OR_EQUAL
	GREATER_OR_EQUALI
	POP_RES
	DONE
	PRINT
	ABORT

	opCount
)

// Label marker sentinel. The two words are emitted adjacently at the point
// a label's target instruction begins; they carry no runtime effect beyond
// being skipped.
const (
	LabelCafe int32 = 0xCAFE
	LabelBabe int32 = 0xBABE
)

// Info describes one opcode's shape: whether it carries an immediate
// argument, and its net effect on the operand stack depth.
type Info struct {
	Mnemonic  string
	HasImm    bool
	StackDiff int32 // net depth change when executed (ignores control flow)
	IsJump    bool
	IsTerm    bool // DONE or ABORT
}

// Table is the single authoritative opcode table. exec and
// internal/compile read it to decide immediate arity and whether an
// opcode is a jump or terminator; asm.Assemble reads it to map mnemonics
// to numeric opcodes. StackDiff is recorded here but not read by either.
var Table = [opCount]Info{
	PUSHI:              {"PUSHI", true, 1, false, false},
	LOADI:              {"LOADI", true, 1, false, false},
	LOADADDI:           {"LOADADDI", true, 0, false, false},
	STOREI:             {"STOREI", true, -1, false, false},
	LOAD:               {"LOAD", false, 0, false, false},
	STORE:              {"STORE", false, -2, false, false},
	DUP:                {"DUP", false, 1, false, false},
	DISCARD:            {"DISCARD", false, -1, false, false},
	ADD:                {"ADD", false, -1, false, false},
	ADDI:               {"ADDI", true, 0, false, false},
	SUB:                {"SUB", false, -1, false, false},
	DIV:                {"DIV", false, -1, false, false},
	MUL:                {"MUL", false, -1, false, false},
	JUMP:               {"JUMP", true, 0, true, false},
	JUMP_IF_TRUE:       {"JUMP_IF_TRUE", true, -1, true, false},
	JUMP_IF_FALSE:      {"JUMP_IF_FALSE", true, -1, true, false},
	EQUAL:              {"EQUAL", false, -1, false, false},
	LESS:               {"LESS", false, -1, false, false},
	LESS_OR_EQUAL:      {"LESS_OR_EQUAL", false, -1, false, false},
	GREATER:            {"GREATER", false, -1, false, false},
	GREATER_OR_EQUAL:   {"GREATER_OR_EQUAL", false, -1, false, false},
	GREATER_OR_EQUALI:  {"GREATER_OR_EQUALI", true, 0, false, false},
	POP_RES:            {"POP_RES", false, -1, false, false},
	DONE:               {"DONE", false, 0, false, true},
	PRINT:              {"PRINT", false, -1, false, false},
	ABORT:              {"ABORT", false, 0, false, true},
}

// ByMnemonic maps an assembler token to its opcode, including the PRES
// synonym for POP_RES (spec Open Question: treated as identical code).
var ByMnemonic = func() map[string]Op {
	m := make(map[string]Op, opCount+1)
	for op, info := range Table {
		m[info.Mnemonic] = Op(op)
	}
	m["PRES"] = POP_RES
	return m
}()

// JumpOpcodes are the mnemonics whose single immediate is a label
// reference rather than a literal, per the assembler interface (spec §6).
var JumpOpcodes = map[string]bool{
	"JUMP":         true,
	"JUMP_IF_TRUE": true,
	"JUMP_IF_FALSE": true,
}

// Valid reports whether op is a defined opcode.
func Valid(op int32) bool {
	return op >= 0 && op < int32(opCount)
}
