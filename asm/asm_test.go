package asm

import (
	"strings"
	"testing"

	"github.com/pigletvm/pigletvm/isa"
)

func TestAssembleLiteralArguments(t *testing.T) {
	words, err := Assemble(strings.NewReader("PUSHI 2\nPUSHI 3\nADD\nDONE"))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	want := []int32{
		int32(isa.PUSHI), 2,
		int32(isa.PUSHI), 3,
		int32(isa.ADD),
		int32(isa.DONE),
	}
	assertWords(t, words, want)
}

func TestAssembleForwardLabelReference(t *testing.T) {
	src := `
		PUSHI 1
		JUMP_IF_TRUE skip
		PUSHI 999
		skip:
		PUSHI 2
		DONE
	`
	words, err := Assemble(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	want := []int32{
		int32(isa.PUSHI), 1,
		int32(isa.JUMP_IF_TRUE), 6,
		int32(isa.PUSHI), 999,
		isa.LabelCafe, isa.LabelBabe,
		int32(isa.PUSHI), 2,
		int32(isa.DONE),
	}
	assertWords(t, words, want)
}

func TestAssembleBackwardLabelReference(t *testing.T) {
	src := `
		loop:
		PUSHI 1
		JUMP loop
	`
	words, err := Assemble(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	want := []int32{
		isa.LabelCafe, isa.LabelBabe,
		int32(isa.PUSHI), 1,
		int32(isa.JUMP), 0,
	}
	assertWords(t, words, want)
}

func TestAssemblePresSynonymForPopRes(t *testing.T) {
	words, err := Assemble(strings.NewReader("PUSHI 1\nPRES\nDONE"))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	want := []int32{
		int32(isa.PUSHI), 1,
		int32(isa.POP_RES),
		int32(isa.DONE),
	}
	assertWords(t, words, want)
}

func TestAssembleUnknownMnemonicErrors(t *testing.T) {
	_, err := Assemble(strings.NewReader("FROBNICATE"))
	if err == nil {
		t.Fatal("want error for unknown mnemonic, got nil")
	}
}

func TestAssembleUndefinedLabelErrors(t *testing.T) {
	_, err := Assemble(strings.NewReader("JUMP nowhere"))
	if err == nil {
		t.Fatal("want error for undefined label, got nil")
	}
}

func TestAssembleDuplicateLabelErrors(t *testing.T) {
	_, err := Assemble(strings.NewReader("a: DONE a: DONE"))
	if err == nil {
		t.Fatal("want error for duplicate label, got nil")
	}
}

func TestAssembleMissingArgumentErrors(t *testing.T) {
	_, err := Assemble(strings.NewReader("PUSHI"))
	if err == nil {
		t.Fatal("want error for missing argument, got nil")
	}
}

func assertWords(t *testing.T, got, want []int32) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d (%v vs %v)", len(got), len(want), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("words[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}
