package uvw

import (
	"unsafe"

	"github.com/sledgeh/uvw/internal/native"
)

// HandleType identifies the kind of a handle.
type HandleType = native.HandleType

// Handle types.
const (
	TypeUnknown = native.TypeUnknown
	TypeTimer   = native.TypeTimer
)

// BaseHandle is implemented by every handle type, e.g. [*Timer].
type BaseHandle interface {
	Valid() bool
	Loop() *Loop
	Type() HandleType
	Active() bool
	Closing() bool
	Close()
	Reference()
	Unreference()
	Referenced() bool
}

type resource interface {
	Base() *native.Handle
}

// Handle implements the lifecycle common to every handle type O, backed by
// a native resource slot of type R. It is embedded by the concrete types,
// and is not usable on its own.
//
// Operations never report failure directly. Instead, an [ErrorEvent] is
// published to the handle's listeners, which may call further operations.
type Handle[O any, R resource] struct {
	Emitter[*O]
	loop        *Loop
	res         R
	initialized bool
}

var _ BaseHandle = (*Timer)(nil)

// initialize records the result of the native init call, for owner, which
// must embed h as its first field.
func (h *Handle[O, R]) initialize(owner *O, loop *Loop, code Errno) {
	h.owner = owner
	h.loop = loop
	h.initialized = code == 0
	if !h.initialized {
		loop.warning().
			Str(`handle`, h.Type().String()).
			Str(`errno`, code.Name()).
			Err(code).
			Log(`handle initialization failed`)
		return
	}
	// Loop.Walk maps slots back to their owner via this
	h.res.Base().Data = unsafe.Pointer(h)
	loop.debug().
		Str(`handle`, h.Type().String()).
		Log(`handle initialized`)
}

// Valid reports whether the native resource was successfully initialized.
// Constructors always return a handle, which must be checked before use.
func (h *Handle[O, R]) Valid() bool { return h.initialized }

// Loop returns the loop the handle was created against.
func (h *Handle[O, R]) Loop() *Loop { return h.loop }

// Type returns the kind of the handle, or [TypeUnknown] if it is not valid.
func (h *Handle[O, R]) Type() HandleType { return native.TypeOf(h.res.Base()) }

// Active reports whether the handle is active, which depends on the handle
// type, e.g. a timer is active while it is started.
func (h *Handle[O, R]) Active() bool { return h.initialized && native.IsActive(h.res.Base()) }

// Closing reports whether the handle is closing or closed.
func (h *Handle[O, R]) Closing() bool { return h.initialized && native.IsClosing(h.res.Base()) }

// Close requests the handle be closed. A [CloseEvent] is published once
// the native resource is released, from a later iteration of the loop.
// Calling Close again, before or after that, has no effect.
func (h *Handle[O, R]) Close() {
	base := h.res.Base()
	if h.initialized && native.IsClosing(base) {
		return
	}
	if h.publishErr(native.Close(base, bind[handleClosed[O, R]](h, base))) {
		return
	}
	h.loop.debug().
		Str(`handle`, h.Type().String()).
		Log(`handle closing`)
}

// Reference marks the handle as referenced. While active, a referenced
// handle keeps [RunDefault] from returning. Handles are referenced by
// default.
func (h *Handle[O, R]) Reference() {
	if h.initialized {
		native.Ref(h.res.Base())
	}
}

// Unreference marks the handle as unreferenced.
func (h *Handle[O, R]) Unreference() {
	if h.initialized {
		native.Unref(h.res.Base())
	}
}

// Referenced reports whether the handle is referenced.
func (h *Handle[O, R]) Referenced() bool { return h.initialized && native.HasRef(h.res.Base()) }

// publishErr publishes an ErrorEvent for code, if it is non-zero, and
// reports whether it did.
func (h *Handle[O, R]) publishErr(code Errno) bool {
	if code == 0 {
		return false
	}
	if h.loop != nil {
		h.loop.metrics.handleError(code)
	}
	h.loop.debug().
		Str(`handle`, h.Type().String()).
		Str(`errno`, code.Name()).
		Log(`handle operation failed`)
	publish(&h.Emitter, ErrorEvent{code: code})
	return true
}

type handleClosed[O any, R resource] struct{}

func (handleClosed[O, R]) invoke(h *Handle[O, R], _ *native.Handle) {
	h.loop.debug().
		Str(`handle`, h.Type().String()).
		Log(`handle closed`)
	publish(&h.Emitter, CloseEvent{})
}
