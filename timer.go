package uvw

import (
	"time"

	"github.com/sledgeh/uvw/internal/native"
)

// Timer schedules a [TimerEvent] after a timeout, optionally repeating at a
// fixed interval.
//
// Timers have millisecond granularity: durations are truncated to whole
// milliseconds, and negative durations are treated as zero.
//
// Events:
//   - [TimerEvent] each time the timer fires
//   - [ErrorEvent] if an operation fails
//   - [CloseEvent] once closed
type Timer struct {
	Handle[Timer, *native.Timer]
}

// NewTimer creates a timer on loop. The result is never nil, but is not
// [Timer.Valid] if loop is nil or closed.
func NewTimer(loop *Loop) *Timer {
	t := &Timer{Handle: Handle[Timer, *native.Timer]{res: new(native.Timer)}}
	var nl *native.Loop
	if loop != nil {
		nl = loop.native
	}
	t.initialize(t, loop, native.TimerInit(nl, t.res))
	return t
}

// Start arms the timer to fire after timeout, then every repeat, if repeat
// is non-zero. Starting an active timer replaces its schedule.
func (t *Timer) Start(timeout, repeat time.Duration) {
	t.publishErr(native.TimerStart(t.res, bind[timerFired](&t.Handle, t.res), millis(timeout), millis(repeat)))
}

// Stop disarms the timer. Stopping an inactive timer has no effect.
func (t *Timer) Stop() {
	t.publishErr(native.TimerStop(t.res))
}

// Again restarts the timer with its repeat interval as the timeout, if the
// interval is non-zero. An [ErrorEvent] with [EINVAL] is published if the
// timer was never started.
func (t *Timer) Again() {
	t.publishErr(native.TimerAgain(t.res))
}

// SetRepeat sets the repeat interval, taking effect from the next time the
// timer fires, or from Again. It does not otherwise restart the timer.
func (t *Timer) SetRepeat(repeat time.Duration) {
	native.TimerSetRepeat(t.res, millis(repeat))
}

// Repeat returns the repeat interval.
func (t *Timer) Repeat() time.Duration {
	return time.Duration(native.TimerGetRepeat(t.res)) * time.Millisecond
}

// DueIn returns the time until the timer next fires, relative to the loop's
// cached time, or zero if it is not active.
func (t *Timer) DueIn() time.Duration {
	return time.Duration(native.TimerGetDueIn(t.res)) * time.Millisecond
}

type timerFired struct{}

func (timerFired) invoke(h *Handle[Timer, *native.Timer], _ *native.Timer) {
	publish(&h.Emitter, TimerEvent{})
}

func millis(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	return uint64(d / time.Millisecond)
}
