// Copyright 2019 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build amd64 && !appengine

package compile

import "unsafe"

// jitcall is implemented in jitcall_amd64.s. It transfers control to the
// native code at code, handing it the host data block (stack base,
// memory base, the shared depth cell, and the shared ip cell) in the
// registers AMD64Backend documents, and returns the block's ExitSignal.
func jitcall(code unsafe.Pointer, stackBase, memBase, depthPtr, ipPtr *int32) int64

// asmBlock wraps one compiled basic block's executable memory.
type asmBlock struct {
	mem unsafe.Pointer
}

func (b *asmBlock) Invoke(stackBase, memBase, depthPtr, ipPtr *int32) ExitSignal {
	return ExitSignal(jitcall(b.mem, stackBase, memBase, depthPtr, ipPtr))
}
