package compile

import (
	"fmt"
	"io"
	"os"
	"unsafe"
)

// Stdout is where PRINT writes when executed from JIT-compiled code. The
// supervisor's interpreter fallback writes to the same sink, so a mixed
// interpreter/JIT run produces one coherent output stream.
var Stdout io.Writer = os.Stdout

// hostPrintBridge is called directly from JIT-generated machine code (see
// AMD64Backend's PRINT lowering). Its argument arrives in AX, the first
// integer-argument register under Go's internal register calling
// convention, matching what the backend's stack-pop sequence already
// leaves there before the call.
func hostPrintBridge(n int32) {
	fmt.Fprintf(Stdout, "%d\n", n)
}

// funcPC recovers the entry address of a Go function value. golang-asm
// gives us a way to emit a CALL to an absolute address but no portable
// way to ask "where does this Go func live"; this is the same
// interface-layout trick small JIT-in-Go projects have used since before
// Go had a stable ABI, kept here to a single narrow use.
//
// A func value itself is one word: a pointer to a funcval whose first
// word is the code's entry address. That word lines up with the typ
// field of the two-word iface layout below, not data (data would be the
// adjacent, uninitialized stack slot for a bare func parameter).
func funcPC(f func(int32)) uintptr {
	type iface struct {
		typ  unsafe.Pointer
		data unsafe.Pointer
	}
	return *(*uintptr)((*iface)(unsafe.Pointer(&f)).typ)
}
