// Copyright 2019 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !amd64 || appengine

package compile

// NoBackend is the Backend used on platforms the template JIT has no
// native codegen for: appengine sandboxes, which forbid the executable
// mappings MMapAllocator needs, and any GOARCH other than amd64, which
// AMD64Backend simply does not target. Build always fails with
// ErrNativeCompileUnavailable, and the supervisor loop in exec falls
// back to interpreting every instruction, straight-line runs included.
type NoBackend struct{}

// DefaultBackend returns the Backend this platform supports.
func DefaultBackend() Backend { return NoBackend{} }

func (NoBackend) Build(alloc Allocator, code []int32, block Block) (NativeCodeUnit, error) {
	return nil, ErrNativeCompileUnavailable
}
