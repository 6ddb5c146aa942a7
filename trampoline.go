package uvw

import (
	"unsafe"

	"github.com/sledgeh/uvw/internal/native"
)

// slot is a native resource slot, e.g. *native.Timer, or *native.Handle for
// callbacks taking the common prefix.
type slot[N any] interface {
	*N
	Base() *native.Handle
}

// member selects, at compile time, the operation a native callback is
// bound to. Implementations are empty structs, so selecting one costs
// nothing at runtime.
type member[T any, N any] interface {
	~struct{}
	invoke(owner *T, slot *N)
}

// bind stores owner as the opaque user data of s, returning the plain
// callback that will recover it, and invoke M.
//
// The returned function is a static instantiation: it captures nothing, so
// s.Base().Data is its only context. Owner must stay reachable until the
// native loop can no longer call it, which holds for as long as the slot is
// registered with the loop, since the loop references the slot, and the
// slot's user data references the owner.
func bind[M member[T, N], T any, N any, P slot[N]](owner *T, s P) func(*N) {
	s.Base().Data = unsafe.Pointer(owner)
	return trampoline[M, T, N, P]
}

func trampoline[M member[T, N], T any, N any, P slot[N]](s *N) {
	var m M
	m.invoke((*T)(P(s).Base().Data), s)
}

// ownerOf recovers the owner stored by bind, or nil.
func ownerOf[T any](h *native.Handle) *T {
	return (*T)(h.Data)
}
