// Copyright 2019 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build amd64 && !appengine

package compile

import (
	"testing"
	"unsafe"
)

func TestMMapAllocatorBumpsWithinArena(t *testing.T) {
	a := &MMapAllocator{}
	defer a.Close()

	if _, err := a.AllocateExec([]byte{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	if want := uint32(16); a.last.consumed != want {
		t.Errorf("consumed = %d, want %d", a.last.consumed, want)
	}
	if want := uint32(minAllocSize - 16); a.last.remaining != want {
		t.Errorf("remaining = %d, want %d", a.last.remaining, want)
	}

	if _, err := a.AllocateExec([]byte{4, 3, 2, 1}); err != nil {
		t.Fatal(err)
	}
	if want := uint32(32); a.last.consumed != want {
		t.Errorf("consumed = %d, want %d", a.last.consumed, want)
	}
	if len(a.arenas) != 1 {
		t.Errorf("expected a single arena for two small allocations, got %d", len(a.arenas))
	}
}

func TestMMapAllocatorCopiesCodeVerbatim(t *testing.T) {
	a := &MMapAllocator{}
	defer a.Close()

	code := []byte{0x90, 0x90, 0xC3} // NOP NOP RET
	ptr, err := a.AllocateExec(code)
	if err != nil {
		t.Fatal(err)
	}
	got := *(*[3]byte)(unsafe.Pointer(ptr))
	if got != [3]byte{0x90, 0x90, 0xC3} {
		t.Errorf("copied code = %v, want %v", got, code)
	}
}

func TestMMapAllocatorGrowsNewArenaWhenFull(t *testing.T) {
	a := &MMapAllocator{}
	defer a.Close()

	if _, err := a.AllocateExec(make([]byte, 4)); err != nil {
		t.Fatal(err)
	}
	// An allocation larger than what remains in the current arena must
	// start a fresh one rather than overflow.
	big := make([]byte, minAllocSize)
	if _, err := a.AllocateExec(big); err != nil {
		t.Fatal(err)
	}
	if len(a.arenas) != 2 {
		t.Errorf("expected a second arena once the first ran out of room, got %d", len(a.arenas))
	}
	if a.last.consumed != uint32(minAllocSize) {
		t.Errorf("consumed = %d, want %d", a.last.consumed, minAllocSize)
	}
}

func TestMMapAllocatorCloseUnmapsEverything(t *testing.T) {
	a := &MMapAllocator{}
	if _, err := a.AllocateExec([]byte{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if a.last != nil || len(a.arenas) != 0 {
		t.Errorf("Close left allocator state behind")
	}
}
