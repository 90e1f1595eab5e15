// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package exec drives execution of a loaded Piglet bytecode program: a
// switch-dispatch interpreter for every opcode, and a supervisor loop
// that hands straight-line runs to a basic-block JIT (internal/compile)
// while keeping jumps and termination in the interpreter.
package exec

import "github.com/pigletvm/pigletvm/exec/internal/compile"

// StackCapacity and MemoryCapacity are the fixed sizes of the operand
// stack and linear memory, set by the wire format and never configurable
// (spec §2 "Data model").
const (
	StackCapacity  = 8096
	MemoryCapacity = 140000
)

// Code is the read-only, indexable instruction word array the engine
// executes. *image.Image implements it structurally, without exec
// importing the image package (image already imports exec for Fault, and
// a two-way dependency would be a cycle).
type Code interface {
	Word(i int32) int32
	Len() int32
	Words() []int32
}

// State owns the fixed-size operand stack and linear memory, the current
// stack depth, the instruction pointer, and the cache of compiled native
// blocks. It is not safe for concurrent use: spec §5 assumes a single
// synchronous thread of control.
type State struct {
	stack  [StackCapacity]int32
	memory [MemoryCapacity]int32
	depth  int32
	ip     int32
	blocks *compile.Cache
}

// NewState returns a State with an empty stack, zeroed memory, and a
// fresh block cache backed by alloc.
func NewState(alloc compile.Allocator) *State {
	return &State{blocks: compile.NewCache(alloc)}
}

// IP returns the current instruction pointer.
func (s *State) IP() int32 { return s.ip }

// Depth returns the current operand stack depth.
func (s *State) Depth() int32 { return s.depth }

// Push places v on top of the operand stack.
func (s *State) Push(v int32) error {
	if s.depth >= StackCapacity {
		return &Fault{Kind: StackOverflow, Offset: s.ip}
	}
	s.stack[s.depth] = v
	s.depth++
	return nil
}

// Pop removes and returns the top of the operand stack.
func (s *State) Pop() (int32, error) {
	if s.depth <= 0 {
		return 0, &Fault{Kind: StackUnderflow, Offset: s.ip}
	}
	s.depth--
	return s.stack[s.depth], nil
}

// Peek returns the top of the operand stack without removing it.
func (s *State) Peek() (int32, error) {
	if s.depth <= 0 {
		return 0, &Fault{Kind: StackUnderflow, Offset: s.ip}
	}
	return s.stack[s.depth-1], nil
}

// MemLoad reads the word at addr in linear memory.
func (s *State) MemLoad(addr int32) (int32, error) {
	if addr < 0 || addr >= MemoryCapacity {
		return 0, &Fault{Kind: MemoryOutOfRange, Offset: s.ip}
	}
	return s.memory[addr], nil
}

// MemStore writes v to addr in linear memory.
func (s *State) MemStore(addr, v int32) error {
	if addr < 0 || addr >= MemoryCapacity {
		return &Fault{Kind: MemoryOutOfRange, Offset: s.ip}
	}
	s.memory[addr] = v
	return nil
}

// StackBase, MemoryBase, and DepthPtr expose the raw addresses the JIT
// backend treats as constants for the lifetime of a compiled block
// (spec §4.2's host data block). Never read or write through these
// except to hand them to internal/compile; every other access to state
// must go through Push/Pop/Peek/MemLoad/MemStore so bounds are enforced
// uniformly in the interpreter, and explicitly guarded in JIT-compiled
// code.
func (s *State) StackBase() *int32  { return &s.stack[0] }
func (s *State) MemoryBase() *int32 { return &s.memory[0] }
func (s *State) DepthPtr() *int32   { return &s.depth }

func boolToWord(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
