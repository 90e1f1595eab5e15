//go:build amd64 && !appengine

package compile

import (
	"unsafe"

	mmap "github.com/edsrzf/mmap-go"
)

// minAllocSize is the size of each executable arena requested from the
// OS. Individual compiled blocks are bump-allocated out of the current
// arena; a block that doesn't fit triggers a new arena, sized to fit it
// if it alone exceeds minAllocSize.
const minAllocSize = 64 * 1024

// allocationAlignment is the byte boundary each compiled block is padded
// to start on.
const allocationAlignment = 16

type arena struct {
	mem       mmap.MMap
	consumed  uint32
	remaining uint32
}

// MMapAllocator hands out executable memory for compiled basic blocks,
// backed by github.com/edsrzf/mmap-go. It owns every arena it maps and
// unmaps them all on Close; no NativeCodeUnit built from its memory may
// be invoked afterward.
type MMapAllocator struct {
	arenas []*arena
	last   *arena
}

// AllocateExec copies code into executable memory and returns a pointer
// to its first byte.
func (a *MMapAllocator) AllocateExec(code []byte) (unsafe.Pointer, error) {
	size := alignUp(uint32(len(code)), allocationAlignment)
	if a.last == nil || a.last.remaining < size {
		if err := a.newArena(size); err != nil {
			return nil, err
		}
	}
	ar := a.last
	off := ar.consumed
	copy(ar.mem[off:], code)
	ar.consumed += size
	ar.remaining -= size
	return unsafe.Pointer(&ar.mem[off]), nil
}

func (a *MMapAllocator) newArena(minSize uint32) error {
	size := uint32(minAllocSize)
	if minSize > size {
		size = alignUp(minSize, allocationAlignment)
	}
	m, err := mmap.MapRegion(nil, int(size), mmap.RDWR|mmap.EXEC, mmap.ANON, 0)
	if err != nil {
		return err
	}
	ar := &arena{mem: m, remaining: size}
	a.arenas = append(a.arenas, ar)
	a.last = ar
	return nil
}

func alignUp(n, to uint32) uint32 {
	if n == 0 {
		return to
	}
	if rem := n % to; rem != 0 {
		return n + (to - rem)
	}
	return n
}

// Close unmaps every arena this allocator has created.
func (a *MMapAllocator) Close() error {
	var firstErr error
	for _, ar := range a.arenas {
		if err := ar.mem.Unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.arenas = nil
	a.last = nil
	return firstErr
}
