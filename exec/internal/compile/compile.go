// Package compile lifts a straight-line run of Piglet bytecode ("a basic
// block") into native code, caches it by entry offset, and exposes it to
// the supervisor loop in exec as a NativeCodeUnit. It plays the same role
// wagon's exec/internal/compile package played for WebAssembly control
// structures, translating them into an unstructured form suitable for
// direct execution; Piglet bytecode is already unstructured, so this
// package only has to decide where one straight-line run ends.
package compile

import (
	"errors"
	"unsafe"

	"github.com/pigletvm/pigletvm/isa"
)

// ExitSignal is what a compiled block's native code returns to the
// supervisor loop. ExitContinue covers every non-fault reason a block
// stops running at a *real* instruction still needing dispatch (it
// reached a jump, a terminator, or an unrecognized opcode): the
// supervisor re-reads the instruction at the restored ip and decides
// what happens next, exactly as if the JIT had never run that span.
// ExitTruncated is distinct: it means the block ran off the physical end
// of the instruction array with no terminator at all, so there is no
// instruction left to rewind to and restore. The remaining signals are
// the fatal conditions of spec §7 a block can detect itself.
type ExitSignal int64

const (
	ExitContinue ExitSignal = iota
	ExitTruncated
	ExitDivisionByZero
	ExitMemoryOutOfRange
	ExitStackOverflow
	ExitStackUnderflow
)

// Block is a maximal straight-line run of opcodes starting at Entry. End
// points one word past the run's last *opcode word*: if the run ended
// because of a jump, a terminator, or an unrecognized opcode, that
// opcode's own word is included but its immediate (if any) is not, so
// that End decremented by one lands back on the opcode needing
// interpretation. This mirrors the original template JIT's instruction
// pointer arithmetic (see DESIGN.md, "compile package").
//
// AtEOF is set when the run instead fell off the physical end of the
// instruction array without ever finding a jump, terminator, or
// unrecognized opcode to stop at — a malformed program missing DONE or
// ABORT. There is no opcode at End to rewind to in that case, unlike
// every other reason a block stops.
type Block struct {
	Entry int32
	End   int32
	AtEOF bool
}

// Discover finds the basic block beginning at entry. code is the full
// instruction word array; entry must point at an opcode that is neither a
// jump nor a terminator, since the supervisor only ever asks the JIT to
// compile such offsets. Label markers are traversed rather than ending
// the block (spec §4.4): they carry no runtime effect and the mandatory
// simple supervisor variant never branches to a mid-block offset anyway.
func Discover(code []int32, entry int32) Block {
	n := int32(len(code))
	ip := entry
	for ip < n {
		op := code[ip]
		if op == isa.LabelCafe {
			ip += 2
			continue
		}
		if !isa.Valid(op) {
			return Block{Entry: entry, End: ip + 1}
		}
		info := isa.Table[op]
		if info.IsJump || info.IsTerm {
			return Block{Entry: entry, End: ip + 1}
		}
		if info.HasImm {
			ip += 2
		} else {
			ip++
		}
	}
	return Block{Entry: entry, End: ip, AtEOF: true}
}

// NativeCodeUnit is one compiled basic block, ready to run against a
// host data block: the owning exec.State's stack base, memory base, and
// shared depth cell. ipPtr receives the post-exit instruction pointer.
type NativeCodeUnit interface {
	Invoke(stackBase, memBase, depthPtr, ipPtr *int32) ExitSignal
}

// Allocator supplies the executable memory compiled code is written
// into. *MMapAllocator is the production implementation, built on
// github.com/edsrzf/mmap-go.
type Allocator interface {
	AllocateExec(code []byte) (unsafe.Pointer, error)
}

// Backend turns a discovered basic block into a NativeCodeUnit.
type Backend interface {
	Build(alloc Allocator, code []int32, block Block) (NativeCodeUnit, error)
}

// ErrNativeCompileUnavailable is returned by a Backend with no native
// codegen for the running platform (appengine, or any non-amd64 GOARCH).
// The supervisor loop falls back to pure interpretation when it sees
// this error, the same way wagon disables its native exec path entirely
// on builds tagged appengine or non-amd64.
var ErrNativeCompileUnavailable = errors.New("compile: native code generation unavailable on this platform")

// Cache owns the mapping from a block's entry offset to its compiled
// artifact (spec §4.2, §4.4 "Caching"). Lookups borrow; Cache exclusively
// owns each unit's lifetime, and there is no eviction at this scale: a
// program that jumps into the same handful of offsets forever compiles
// each of them exactly once.
type Cache struct {
	alloc  Allocator
	blocks map[int32]NativeCodeUnit
}

// NewCache creates an empty cache backed by alloc.
func NewCache(alloc Allocator) *Cache {
	return &Cache{alloc: alloc, blocks: make(map[int32]NativeCodeUnit)}
}

// Lookup returns the cached unit at entry, if any.
func (c *Cache) Lookup(entry int32) (NativeCodeUnit, bool) {
	u, ok := c.blocks[entry]
	return u, ok
}

// Build retrieves the cached block at entry, or discovers and compiles
// one with backend on a miss.
func (c *Cache) Build(backend Backend, code []int32, entry int32) (NativeCodeUnit, error) {
	if u, ok := c.blocks[entry]; ok {
		return u, nil
	}
	block := Discover(code, entry)
	unit, err := backend.Build(c.alloc, code, block)
	if err != nil {
		return nil, err
	}
	c.blocks[entry] = unit
	return unit, nil
}
