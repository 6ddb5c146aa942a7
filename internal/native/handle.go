package native

import (
	"unsafe"
)

// HandleType identifies the kind of resource a [Handle] slot belongs to.
type HandleType uint8

const (
	TypeUnknown HandleType = iota
	TypeTimer
)

// String returns a human-readable representation of the type.
func (t HandleType) String() string {
	switch t {
	case TypeTimer:
		return "timer"
	default:
		return "unknown"
	}
}

const (
	flagActive uint8 = 1 << iota
	flagRef
	flagClosing
	flagClosed
)

// Handle is the common prefix of every resource slot. Concrete slots embed
// it as their FIRST field, so a *Handle may be converted back to the
// concrete slot pointer.
type Handle struct {
	// Data is opaque user data, never read by this package.
	Data unsafe.Pointer

	loop      *Loop
	closeCb   func(*Handle)
	closeHook func(*Handle)
	typ       HandleType
	flags     uint8
}

// Base returns h. Concrete slots inherit it, which gives generic code a way
// to reach the common prefix.
func (h *Handle) Base() *Handle { return h }

func initHandle(loop *Loop, h *Handle, typ HandleType, closeHook func(*Handle)) Errno {
	if loop == nil {
		return EINVAL
	}
	if loop.closed.Load() {
		return EBADF
	}
	if h.loop != nil && h.flags&flagClosed == 0 {
		// still registered with a loop
		return EINVAL
	}
	h.loop = loop
	h.typ = typ
	h.flags = flagRef
	h.closeCb = nil
	h.closeHook = closeHook
	loop.addHandle(h)
	return 0
}

func (h *Handle) activate() {
	if h.flags&flagActive != 0 {
		return
	}
	h.flags |= flagActive
	if h.flags&flagRef != 0 {
		h.loop.metrics.activeHandles.Add(1)
	}
}

func (h *Handle) deactivate() {
	if h.flags&flagActive == 0 {
		return
	}
	h.flags &^= flagActive
	if h.flags&flagRef != 0 {
		h.loop.metrics.activeHandles.Add(-1)
	}
}

// LoopOf returns the loop h was initialised against, or nil.
func LoopOf(h *Handle) *Loop { return h.loop }

// TypeOf returns the type h was initialised as.
func TypeOf(h *Handle) HandleType { return h.typ }

// IsActive reports whether h is doing something that keeps the loop alive,
// e.g. an armed timer.
func IsActive(h *Handle) bool { return h.flags&flagActive != 0 }

// IsClosing reports whether Close has been called on h.
func IsClosing(h *Handle) bool { return h.flags&(flagClosing|flagClosed) != 0 }

// Close stops h and schedules its release. The callback (which may be nil)
// is invoked from the closing phase of a later loop iteration, after which
// the slot is no longer referenced by the loop.
//
// Closing an already closing or closed handle is a no-op.
func Close(h *Handle, cb func(*Handle)) Errno {
	if h.loop == nil {
		return EINVAL
	}
	if h.flags&(flagClosing|flagClosed) != 0 {
		return 0
	}
	if h.closeHook != nil {
		h.closeHook(h)
	}
	h.deactivate()
	h.flags |= flagClosing
	h.closeCb = cb
	h.loop.closing.Add(h)
	return 0
}

// Ref marks h as referenced: while active, it keeps the loop alive.
// Handles are referenced by default.
func Ref(h *Handle) {
	if h.flags&flagRef != 0 {
		return
	}
	h.flags |= flagRef
	if h.flags&flagActive != 0 {
		h.loop.metrics.activeHandles.Add(1)
	}
}

// Unref marks h as unreferenced: it no longer keeps the loop alive, even
// while active.
func Unref(h *Handle) {
	if h.flags&flagRef == 0 {
		return
	}
	h.flags &^= flagRef
	if h.flags&flagActive != 0 {
		h.loop.metrics.activeHandles.Add(-1)
	}
}

// HasRef reports whether h is referenced.
func HasRef(h *Handle) bool { return h.flags&flagRef != 0 }
