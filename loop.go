package uvw

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/rs/xid"
	"go.uber.org/multierr"

	"github.com/sledgeh/uvw/internal/native"
)

// Standard errors.
var (
	// ErrLoopClosed is returned when operating on a closed loop.
	ErrLoopClosed = native.ErrLoopClosed

	// ErrReentrantRun is returned when Run is called while the loop is
	// already running, including from one of its own callbacks.
	ErrReentrantRun = native.ErrReentrantRun

	errNilRegisterer = errors.New("uvw: nil prometheus registerer")
)

// RunMode selects how long [Loop.Run] keeps iterating.
type RunMode = native.RunMode

const (
	// RunDefault runs until there are no active, referenced handles left,
	// or Stop is called.
	RunDefault = native.RunDefault
	// RunOnce runs a single iteration, blocking if there is nothing to do.
	RunOnce = native.RunOnce
	// RunNoWait runs a single iteration without blocking.
	RunNoWait = native.RunNoWait
)

// Loop is an event loop, against which handles are created. A Loop must
// outlive every handle created against it, see [Scoped].
//
// With the exception of Submit, Closed and ID, methods must only be called
// from the goroutine running the loop, or while it is not running.
type Loop struct {
	native  *native.Loop
	id      xid.ID
	name    string
	logger  *logiface.Logger[logiface.Event]
	metrics *loopMetrics
}

// NewLoop creates a new loop.
func NewLoop(opts ...LoopOption) (*Loop, error) {
	cfg, err := newLoopOptions(opts)
	if err != nil {
		return nil, err
	}

	n, err := native.NewLoop(cfg.clock)
	if err != nil {
		return nil, fmt.Errorf("uvw: new loop: %w", err)
	}

	l := &Loop{
		native: n,
		id:     xid.New(),
		logger: cfg.logger,
	}
	l.name = l.id.String()

	if cfg.registerer != nil {
		if l.metrics, err = newLoopMetrics(cfg.registerer, l.name, n); err != nil {
			return nil, multierr.Append(err, n.Close())
		}
	}

	l.debug().Log(`loop created`)

	return l, nil
}

// ID returns the unique ID of the loop, which labels its logs and metrics.
func (l *Loop) ID() xid.ID { return l.id }

// Run runs the loop, per mode, dispatching the callbacks of its handles.
// It returns early, with the context error, if ctx is canceled.
//
// Panics raised by listeners are not recovered. They unwind out of Run,
// after which the loop may be run again.
func (l *Loop) Run(ctx context.Context, mode RunMode) error {
	l.debug().
		Str(`mode`, mode.String()).
		Log(`loop running`)
	alive, err := l.native.Run(ctx, mode)
	b := l.debug().
		Str(`mode`, mode.String()).
		Bool(`alive`, alive)
	if err != nil {
		b = b.Err(err)
	}
	b.Log(`loop returned`)
	return err
}

// Stop makes Run return after the current iteration.
func (l *Loop) Stop() { l.native.Stop() }

// Alive reports whether there are active, referenced handles, or pending
// close callbacks or tasks.
func (l *Loop) Alive() bool { return l.native.Alive() }

// Now returns the loop's cached time, relative to its creation, in
// millisecond precision. It is updated at the start of each iteration.
func (l *Loop) Now() time.Duration {
	return time.Duration(l.native.Now()) * time.Millisecond
}

// UpdateTime refreshes the cached time.
func (l *Loop) UpdateTime() { l.native.UpdateTime() }

// Walk calls fn for every handle on the loop that is not yet fully closed,
// in creation order.
func (l *Loop) Walk(fn func(h BaseHandle)) {
	l.native.Walk(func(h *native.Handle) {
		if v := handleOf(h); v != nil {
			fn(v)
		}
	})
}

// Submit schedules fn to be called from the loop goroutine. It may be
// called from any goroutine, and wakes the loop if it is waiting.
func (l *Loop) Submit(fn func()) error {
	if err := l.native.Submit(fn); err != nil {
		return fmt.Errorf("uvw: submit: %w", err)
	}
	return nil
}

// Metrics returns a snapshot of the loop's counters. It may be called from
// any goroutine.
func (l *Loop) Metrics() Metrics { return l.native.Metrics() }

// Close releases the loop. It fails with [EBUSY] while the loop is running,
// or while any handle has not been fully closed, see Shutdown.
func (l *Loop) Close() error {
	if err := l.native.Close(); err != nil {
		if !errors.Is(err, ErrLoopClosed) {
			l.err().
				Err(err).
				Log(`loop close failed`)
		}
		return fmt.Errorf("uvw: close loop: %w", err)
	}
	err := l.metrics.unregister()
	l.debug().Log(`loop closed`)
	return err
}

// Closed reports whether Close succeeded.
func (l *Loop) Closed() bool { return l.native.Closed() }

// Shutdown closes every handle, runs the loop until their close callbacks
// are done, then closes the loop.
func (l *Loop) Shutdown(ctx context.Context) error {
	if l.Closed() {
		return ErrLoopClosed
	}
	var n int
	l.Walk(func(h BaseHandle) {
		if !h.Closing() {
			h.Close()
			n++
		}
	})
	l.debug().
		Int(`handles`, n).
		Log(`loop shutting down`)
	if err := l.Run(ctx, RunDefault); err != nil {
		return fmt.Errorf("uvw: shutdown: %w", err)
	}
	return l.Close()
}

// Scoped creates a loop, passes it to fn, then shuts it down, ensuring the
// loop outlives every handle created by fn. It is typical for fn to create
// handles, then run the loop.
//
// The shutdown is not subject to the cancellation of ctx, and is skipped if
// fn closed the loop. Its errors are combined with the result of fn.
func Scoped(ctx context.Context, fn func(loop *Loop) error, opts ...LoopOption) (err error) {
	loop, err := NewLoop(opts...)
	if err != nil {
		return err
	}
	defer func() {
		if !loop.Closed() {
			err = multierr.Append(err, loop.Shutdown(context.WithoutCancel(ctx)))
		}
	}()
	return fn(loop)
}

// handleOf maps a native slot to the handle that owns it, or nil.
func handleOf(h *native.Handle) BaseHandle {
	if h.Data == nil {
		return nil
	}
	switch native.TypeOf(h) {
	case native.TypeTimer:
		return ownerOf[Timer](h)
	default:
		return nil
	}
}

// debug returns a debug level builder, with the loop field set. It is safe
// to call on a nil *Loop.
func (l *Loop) debug() *logiface.Builder[logiface.Event] {
	if l == nil {
		return nil
	}
	return l.logger.Debug().Str(`loop`, l.name)
}

func (l *Loop) warning() *logiface.Builder[logiface.Event] {
	if l == nil {
		return nil
	}
	return l.logger.Warning().Str(`loop`, l.name)
}

func (l *Loop) err() *logiface.Builder[logiface.Event] {
	if l == nil {
		return nil
	}
	return l.logger.Err().Str(`loop`, l.name)
}
