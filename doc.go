// Package uvw provides typed, event-emitting handles on top of a C-style
// event loop, whose resources are untyped slots, and whose completions are
// plain callbacks.
//
// # Architecture
//
// Every handle type, such as [Timer], embeds a [Handle], which implements
// the common lifecycle: created against a [Loop], operated, then closed.
// Handles are also emitters. Listeners are registered per event type with
// [On] or [Once], and receive each event along with the handle that
// published it. Native completions are routed back to their handle by a
// statically instantiated callback, which recovers the handle from the
// slot's user data.
//
// # Errors
//
// Handle operations do not return errors. Failures are published as an
// [ErrorEvent], through the same channel as every other event, and an
// application that does not listen for them will not see them. The one
// exception is construction: a handle that could not be initialized is
// still returned, but reports false from Valid.
//
// # Lifetime
//
// A [Loop] must outlive every handle created against it. [Scoped] enforces
// that, by shutting the loop down (closing all handles, then waiting for
// their [CloseEvent]) once the caller is done with it.
//
// # Thread Safety
//
// Loops, handles and emitters are single threaded. Listeners are called
// synchronously, from [Loop.Run], and may freely call into the loop and its
// handles, including operations that publish further events. Only
// [Loop.Submit], [Loop.Metrics], [Loop.Closed] and [Loop.ID] are safe to
// call from other goroutines.
//
// # Usage
//
//	err := uvw.Scoped(ctx, func(loop *uvw.Loop) error {
//		timer := uvw.NewTimer(loop)
//		if !timer.Valid() {
//			return errors.New("timer init failed")
//		}
//		uvw.On(timer, func(_ uvw.TimerEvent, t *uvw.Timer) {
//			fmt.Println("tick")
//			t.Close()
//		})
//		uvw.On(timer, func(ev uvw.ErrorEvent, t *uvw.Timer) {
//			fmt.Println("error:", ev)
//		})
//		timer.Start(100*time.Millisecond, 0)
//		return loop.Run(ctx, uvw.RunDefault)
//	})
package uvw
