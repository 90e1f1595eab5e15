//go:build amd64 && !appengine

package exec

import "github.com/pigletvm/pigletvm/exec/internal/compile"

func newDefaultAllocator() compile.Allocator {
	return &compile.MMapAllocator{}
}
