// Package asm assembles Piglet bytecode text into the word array image
// loads (spec §6). It is a two-pass translator: the first pass emits
// opcodes and literal immediates while recording each label's resolved
// offset and every jump's label reference, backward or forward; the
// second pass patches those references once every label has a known
// offset. This mirrors original_source/asm.cpp's labels/labels_to_fill
// split, rewritten as the fixup table below.
package asm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/pigletvm/pigletvm/isa"
)

// fixup records one JUMP-family immediate still waiting on a label.
type fixup struct {
	label string
	at    int
	token int
}

// Assemble reads whitespace-separated Piglet assembly from r and returns
// the decoded word array, ready to be wrapped with image.FromWords. A
// token ending in ':' emits a 0xCAFE 0xBABE marker and declares the label
// at the marker's first word; every other token is either a mnemonic (consuming its
// immediate argument, a literal or a label reference, from the next
// token) or malformed input. Token positions in error messages count
// whitespace-separated tokens from the start of the stream, since the
// format itself carries no line structure.
func Assemble(r io.Reader) ([]int32, error) {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)

	var (
		words  []int32
		labels = make(map[string]int32)
		fixups []fixup
		tokPos int
	)

	next := func() (string, bool) {
		if !sc.Scan() {
			return "", false
		}
		tokPos++
		return sc.Text(), true
	}

	for {
		tok, ok := next()
		if !ok {
			break
		}
		if n := len(tok); n > 0 && tok[n-1] == ':' {
			name := tok[:n-1]
			if name == "" {
				return nil, fmt.Errorf("asm: token %d: empty label name", tokPos)
			}
			if _, dup := labels[name]; dup {
				return nil, fmt.Errorf("asm: token %d: label %q redefined", tokPos, name)
			}
			labels[name] = int32(len(words))
			words = append(words, isa.LabelCafe, isa.LabelBabe)
			continue
		}

		op, ok := isa.ByMnemonic[tok]
		if !ok {
			return nil, fmt.Errorf("asm: token %d: unknown mnemonic %q", tokPos, tok)
		}
		words = append(words, int32(op))

		if !isa.Table[op].HasImm {
			continue
		}
		argPos := tokPos
		argTok, ok := next()
		if !ok {
			return nil, fmt.Errorf("asm: token %d: %s: missing argument", argPos, tok)
		}
		if isa.JumpOpcodes[tok] {
			words = append(words, 0)
			fixups = append(fixups, fixup{label: argTok, at: len(words) - 1, token: argPos + 1})
			continue
		}
		n, err := strconv.ParseInt(argTok, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("asm: token %d: %s: invalid integer argument %q", argPos+1, tok, argTok)
		}
		words = append(words, int32(n))
	}

	for _, f := range fixups {
		target, ok := labels[f.label]
		if !ok {
			return nil, fmt.Errorf("asm: token %d: undefined label %q", f.token, f.label)
		}
		words[f.at] = target
	}
	return words, nil
}
