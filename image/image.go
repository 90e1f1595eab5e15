// Package image loads a Piglet bytecode program image: a flat sequence of
// little-endian signed 32-bit words produced by the assembler (package
// asm). It validates the byte stream and exposes an immutable, indexable
// view; it does not interpret opcodes (that is exec's job).
package image

import (
	"encoding/binary"
	"io"

	"github.com/pigletvm/pigletvm/exec"
)

// Image is an immutable, indexable view over a loaded program's words.
type Image struct {
	words []int32
}

// Load reads a full byte stream and decodes it into an Image. The stream
// length must be a non-zero multiple of 4; any other shape is a
// *exec.Fault{Kind: exec.MalformedImage}.
func Load(r io.Reader) (*Image, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return FromBytes(raw)
}

// FromBytes decodes an already-read byte slice the same way Load does.
func FromBytes(raw []byte) (*Image, error) {
	if len(raw) == 0 || len(raw)%4 != 0 {
		return nil, &exec.Fault{Kind: exec.MalformedImage, Offset: int32(len(raw))}
	}
	words := make([]int32, len(raw)/4)
	for i := range words {
		words[i] = int32(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return &Image{words: words}, nil
}

// FromWords wraps an already-decoded word slice, the form asm.Assemble
// produces, as an Image without a further encode/decode round-trip.
func FromWords(words []int32) (*Image, error) {
	if len(words) == 0 {
		return nil, &exec.Fault{Kind: exec.MalformedImage, Offset: 0}
	}
	cp := make([]int32, len(words))
	copy(cp, words)
	return &Image{words: cp}, nil
}

// Len returns the number of words in the image.
func (img *Image) Len() int32 {
	return int32(len(img.words))
}

// Word returns the i-th word. Callers (exec) are responsible for keeping i
// in [0, Len()); Image performs no bounds interpretation of its own, as it
// does not know which words are opcodes versus immediates.
func (img *Image) Word(i int32) int32 {
	return img.words[i]
}

// Words returns the full backing word array, for the JIT backend to scan
// a basic block out of. Callers must not mutate the returned slice.
func (img *Image) Words() []int32 {
	return img.words
}
