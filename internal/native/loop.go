package native

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/eapache/queue"
)

// Standard errors.
var (
	// ErrLoopClosed is returned when operating on a closed loop.
	ErrLoopClosed = errors.New("native: loop is closed")

	// ErrReentrantRun is returned when Run is called while the loop is
	// already running, including from one of its own callbacks.
	ErrReentrantRun = errors.New("native: loop is already running")
)

// RunMode selects how long [Loop.Run] keeps iterating.
type RunMode int

const (
	// RunDefault runs until there are no active, referenced handles (or
	// closing handles, or submitted tasks) left, or Stop is called.
	RunDefault RunMode = iota
	// RunOnce runs a single iteration, blocking for I/O or the next timer
	// if there is nothing to do.
	RunOnce
	// RunNoWait runs a single iteration without blocking.
	RunNoWait
)

// String returns a human-readable representation of the mode.
func (m RunMode) String() string {
	switch m {
	case RunDefault:
		return "default"
	case RunOnce:
		return "once"
	case RunNoWait:
		return "nowait"
	default:
		return fmt.Sprintf("RunMode(%d)", int(m))
	}
}

// Metrics is a snapshot of a loop's counters.
type Metrics struct {
	Iterations    uint64
	TimersFired   uint64
	TasksRun      uint64
	Handles       int64
	ActiveHandles int64
}

// counters are updated on the loop goroutine, and may be read from any.
type counters struct {
	iterations    atomic.Uint64
	timersFired   atomic.Uint64
	tasksRun      atomic.Uint64
	handles       atomic.Int64
	activeHandles atomic.Int64
}

// Loop owns every handle initialised against it, dispatching their
// callbacks from Run.
type Loop struct {
	// Prevent copying
	_ [0]func()

	clock   clock.Clock
	epoch   time.Time
	backend *poller

	timers       timerHeap
	handles      []*Handle
	closing      *queue.Queue
	now          uint64
	timerCounter uint64
	stopFlag     bool

	// mu guards tasks, and the backend once the loop may be closed
	mu    sync.Mutex
	tasks *queue.Queue

	metrics counters
	running atomic.Bool
	closed  atomic.Bool
}

// NewLoop creates a loop reading time from clk, which defaults to the real
// clock if nil.
func NewLoop(clk clock.Clock) (*Loop, error) {
	if clk == nil {
		clk = clock.New()
	}
	backend, err := newPoller()
	if err != nil {
		return nil, fmt.Errorf("native: create poller: %w", err)
	}
	return &Loop{
		clock:   clk,
		epoch:   clk.Now(),
		backend: backend,
		timers:  make(timerHeap, 0),
		closing: queue.New(),
		tasks:   queue.New(),
	}, nil
}

// Run processes the loop, per mode, returning true if it is still alive.
//
// Panics raised by callbacks are not recovered, they unwind out of Run. The
// loop stays usable afterwards.
func (l *Loop) Run(ctx context.Context, mode RunMode) (bool, error) {
	if l.closed.Load() {
		return false, ErrLoopClosed
	}
	if !l.running.CompareAndSwap(false, true) {
		return l.Alive(), ErrReentrantRun
	}
	defer func() {
		l.stopFlag = false
		l.running.Store(false)
	}()

	if err := ctx.Err(); err != nil {
		return l.Alive(), err
	}
	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, l.wakeup)
		defer stop()
	}

	alive := l.Alive()
	if !alive {
		l.UpdateTime()
	}

	for alive && !l.stopFlag {
		l.UpdateTime()
		l.runTimers()
		l.runTasks()

		timeout := 0
		if mode == RunDefault || (mode == RunOnce && !l.hasTasks()) {
			timeout = l.backendTimeout()
		}
		if err := l.backend.wait(timeout); err != nil {
			return l.Alive(), fmt.Errorf("native: poll: %w", err)
		}
		l.runTasks()

		if mode == RunOnce {
			l.UpdateTime()
			l.runTimers()
		}

		l.runClosing()
		l.metrics.iterations.Add(1)

		alive = l.Alive()
		if err := ctx.Err(); err != nil {
			return alive, err
		}
		if mode != RunDefault {
			break
		}
	}

	return alive, nil
}

// Stop makes Run return at the end of the current iteration.
func (l *Loop) Stop() { l.stopFlag = true }

// Alive reports whether there are active and referenced handles, closing
// handles, or submitted tasks.
func (l *Loop) Alive() bool {
	return l.metrics.activeHandles.Load() > 0 ||
		l.closing.Length() > 0 ||
		l.hasTasks()
}

// Now returns the cached loop time, in milliseconds since the loop was
// created. It is updated at the start of every iteration.
func (l *Loop) Now() uint64 { return l.now }

// UpdateTime refreshes the cached loop time.
func (l *Loop) UpdateTime() {
	if d := l.clock.Since(l.epoch); d > 0 {
		l.now = uint64(d / time.Millisecond)
	}
}

// Walk calls fn for every handle that has not finished closing, in
// initialisation order. fn may close handles.
func (l *Loop) Walk(fn func(*Handle)) {
	for _, h := range slices.Clone(l.handles) {
		if h.flags&flagClosed == 0 {
			fn(h)
		}
	}
}

// Submit queues fn to run on the loop goroutine, waking the loop if it is
// blocked. It is safe to call from any goroutine. Tasks still queued when
// the loop is closed are discarded.
func (l *Loop) Submit(fn func()) error {
	if fn == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed.Load() {
		return ErrLoopClosed
	}
	l.tasks.Add(fn)
	l.backend.wake()
	return nil
}

// Close releases the loop. It fails with EBUSY while running, or while any
// handle has not finished closing.
func (l *Loop) Close() error {
	if l.running.Load() {
		return EBUSY
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed.Load() {
		return ErrLoopClosed
	}
	if len(l.handles) > 0 || l.closing.Length() > 0 {
		return EBUSY
	}
	l.closed.Store(true)
	return l.backend.close()
}

// Closed reports whether Close has succeeded.
func (l *Loop) Closed() bool { return l.closed.Load() }

// Metrics returns a snapshot of the loop's counters. Safe to call from any
// goroutine.
func (l *Loop) Metrics() Metrics {
	return Metrics{
		Iterations:    l.metrics.iterations.Load(),
		TimersFired:   l.metrics.timersFired.Load(),
		TasksRun:      l.metrics.tasksRun.Load(),
		Handles:       l.metrics.handles.Load(),
		ActiveHandles: l.metrics.activeHandles.Load(),
	}
}

func (l *Loop) wakeup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed.Load() {
		l.backend.wake()
	}
}

func (l *Loop) hasTasks() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tasks.Length() > 0
}

// backendTimeout returns how long, in milliseconds, the poll may block,
// where -1 means until woken.
func (l *Loop) backendTimeout() int {
	if l.stopFlag ||
		l.metrics.activeHandles.Load() == 0 ||
		l.closing.Length() > 0 ||
		l.hasTasks() {
		return 0
	}
	if len(l.timers) == 0 {
		return -1
	}
	due := l.timers[0].due
	if due <= l.now {
		return 0
	}
	diff := due - l.now
	if diff > math.MaxInt32 {
		diff = math.MaxInt32
	}
	return int(diff)
}

// runTimers fires the timers due at the start of the call. Timers started
// or re-armed by callbacks wait for the next pass, even if already due.
func (l *Loop) runTimers() {
	last := l.timerCounter
	for len(l.timers) > 0 {
		t := l.timers[0]
		if t.due > l.now || t.startID > last {
			break
		}
		TimerStop(t)
		TimerAgain(t)
		l.metrics.timersFired.Add(1)
		t.cb(t)
	}
}

// runTasks runs the tasks queued before it was called, so tasks submitted
// by tasks wait for the next pass.
func (l *Loop) runTasks() {
	l.mu.Lock()
	n := l.tasks.Length()
	l.mu.Unlock()
	for ; n > 0; n-- {
		l.mu.Lock()
		fn := l.tasks.Remove().(func())
		l.mu.Unlock()
		l.metrics.tasksRun.Add(1)
		fn()
	}
}

// runClosing finishes closing the handles queued before it was called.
func (l *Loop) runClosing() {
	for n := l.closing.Length(); n > 0; n-- {
		h := l.closing.Remove().(*Handle)
		h.flags |= flagClosed
		l.removeHandle(h)
		if cb := h.closeCb; cb != nil {
			h.closeCb = nil
			cb(h)
		}
	}
}

func (l *Loop) addHandle(h *Handle) {
	l.handles = append(l.handles, h)
	l.metrics.handles.Add(1)
}

func (l *Loop) removeHandle(h *Handle) {
	if i := slices.Index(l.handles, h); i >= 0 {
		l.handles = slices.Delete(l.handles, i, i+1)
		l.metrics.handles.Add(-1)
	}
}
