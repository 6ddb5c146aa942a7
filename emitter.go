package uvw

import (
	"reflect"
	"slices"
)

// Connection identifies a registered listener, for [Erase]. Go function
// values cannot be compared, so the connection is the listener's identity.
// The zero value identifies nothing.
type Connection struct {
	event reflect.Type
	list  any // the *listenerList that issued it
	id    uint64
}

// Source is implemented by everything that publishes events to listeners
// with an owner of type T. [Emitter] implements it, as does every handle, by
// embedding.
type Source[T any] interface {
	emitter() *Emitter[T]
}

// Emitter keeps, per event type, an ordered list of listeners, and
// dispatches events to them synchronously. Listeners receive the event and
// the emitter's owner.
//
// Emitter is NOT safe for concurrent use. Like every other type in this
// package, it is meant to be used from the loop goroutine.
type Emitter[T any] struct {
	owner    T
	handlers map[reflect.Type]any // *listenerList[E, T]
	nextID   uint64
}

type listenerEntry[E, T any] struct {
	fn   func(E, T)
	id   uint64
	once bool
}

type listenerList[E, T any] struct {
	entries []listenerEntry[E, T]
}

// NewEmitter returns an emitter passing owner to its listeners.
func NewEmitter[T any](owner T) *Emitter[T] {
	return &Emitter[T]{owner: owner}
}

func (e *Emitter[T]) emitter() *Emitter[T] { return e }

// On registers fn for events of type E, returning its connection. Listeners
// run in registration order and are not deduplicated. A nil fn registers
// nothing and returns the zero Connection.
func On[E any, T any](src Source[T], fn func(ev E, owner T)) Connection {
	return add(src.emitter(), fn, false)
}

// Once is like [On], but the listener is removed just before it is first
// invoked.
func Once[E any, T any](src Source[T], fn func(ev E, owner T)) Connection {
	return add(src.emitter(), fn, true)
}

// Erase removes the listener identified by conn, returning true if it was
// registered. A dispatch already in progress still calls it, unless it was
// registered with [Once].
func Erase[T any](src Source[T], conn Connection) bool {
	e := src.emitter()
	if conn.id == 0 || e.handlers == nil {
		return false
	}
	l, ok := e.handlers[conn.event].(interface{ remove(uint64) bool })
	return ok && l == conn.list && l.remove(conn.id)
}

// Clear removes every listener for events of type E.
func Clear[E any, T any](src Source[T]) {
	delete(src.emitter().handlers, reflect.TypeFor[E]())
}

// ClearAll removes every listener.
func ClearAll[T any](src Source[T]) {
	clear(src.emitter().handlers)
}

// Empty reports whether there are no listeners for events of type E.
func Empty[E any, T any](src Source[T]) bool {
	l, _ := src.emitter().handlers[reflect.TypeFor[E]()].(*listenerList[E, T])
	return l == nil || len(l.entries) == 0
}

// EmptyAll reports whether there are no listeners at all.
func EmptyAll[T any](src Source[T]) bool {
	for _, l := range src.emitter().handlers {
		if l.(interface{ size() int }).size() != 0 {
			return false
		}
	}
	return true
}

// Publish synchronously invokes, in registration order, every listener
// currently registered for events of type E. Listeners added or removed
// during the dispatch take effect from the next one.
//
// A listener panic is not recovered: it propagates to the caller, which for
// events published by handles is the loop's Run.
func Publish[E any, T any](src Source[T], ev E) {
	publish(src.emitter(), ev)
}

func add[E any, T any](e *Emitter[T], fn func(E, T), once bool) Connection {
	if fn == nil {
		return Connection{}
	}
	key := reflect.TypeFor[E]()
	if e.handlers == nil {
		e.handlers = make(map[reflect.Type]any)
	}
	l, _ := e.handlers[key].(*listenerList[E, T])
	if l == nil {
		l = new(listenerList[E, T])
		e.handlers[key] = l
	}
	e.nextID++
	l.entries = append(l.entries, listenerEntry[E, T]{fn: fn, id: e.nextID, once: once})
	return Connection{event: key, list: l, id: e.nextID}
}

func publish[E any, T any](e *Emitter[T], ev E) {
	l, _ := e.handlers[reflect.TypeFor[E]()].(*listenerList[E, T])
	if l == nil || len(l.entries) == 0 {
		return
	}
	// remove never modifies the backing array, so this is a snapshot
	for _, entry := range l.entries {
		if entry.once && !l.remove(entry.id) {
			// erased earlier in this dispatch
			continue
		}
		entry.fn(ev, e.owner)
	}
}

func (l *listenerList[E, T]) remove(id uint64) bool {
	for i, entry := range l.entries {
		if entry.id == id {
			l.entries = slices.Delete(slices.Clone(l.entries), i, i+1)
			return true
		}
	}
	return false
}

func (l *listenerList[E, T]) size() int { return len(l.entries) }
