//go:build !amd64 || appengine

package exec

import (
	"unsafe"

	"github.com/pigletvm/pigletvm/exec/internal/compile"
)

// noAllocator satisfies compile.Allocator on platforms with no native
// backend (see compile.NoBackend). Its AllocateExec is never called:
// compile.NoBackend.Build always fails before needing one.
type noAllocator struct{}

func (noAllocator) AllocateExec(code []byte) (unsafe.Pointer, error) {
	return nil, compile.ErrNativeCompileUnavailable
}

func newDefaultAllocator() compile.Allocator {
	return noAllocator{}
}
