package native

import (
	"container/heap"
	"math"
	"unsafe"
)

// Timer is the slot for a timer resource.
type Timer struct {
	Handle // must be first, see Handle

	cb      func(*Timer)
	due     uint64
	repeat  uint64
	startID uint64
	index   int
}

// TimerInit initialises t against loop. The slot must be zeroed, or fully
// closed, beforehand.
func TimerInit(loop *Loop, t *Timer) Errno {
	if err := initHandle(loop, &t.Handle, TypeTimer, timerCloseHook); err != 0 {
		return err
	}
	t.cb = nil
	t.due = 0
	t.repeat = 0
	t.index = -1
	return 0
}

func timerCloseHook(h *Handle) {
	TimerStop((*Timer)(unsafe.Pointer(h)))
}

// TimerStart arms t to call cb after timeout milliseconds, then every repeat
// milliseconds if repeat is non-zero. An armed timer is re-armed.
func TimerStart(t *Timer, cb func(*Timer), timeout, repeat uint64) Errno {
	if cb == nil || t.loop == nil || t.flags&(flagClosing|flagClosed) != 0 {
		return EINVAL
	}
	if t.flags&flagActive != 0 {
		TimerStop(t)
	}

	due := t.loop.now + timeout
	if due < timeout {
		due = math.MaxUint64
	}

	t.cb = cb
	t.due = due
	t.repeat = repeat
	t.loop.timerCounter++
	t.startID = t.loop.timerCounter

	heap.Push(&t.loop.timers, t)
	t.activate()
	return 0
}

// TimerStop disarms t. Stopping an inactive timer is a no-op.
func TimerStop(t *Timer) Errno {
	if t.flags&flagActive == 0 {
		return 0
	}
	if t.index >= 0 {
		heap.Remove(&t.loop.timers, t.index)
	}
	t.deactivate()
	return 0
}

// TimerAgain restarts t using its repeat interval as the timeout. It fails
// with EINVAL if t was never started, and does nothing if the repeat
// interval is zero.
func TimerAgain(t *Timer) Errno {
	if t.cb == nil {
		return EINVAL
	}
	if t.repeat != 0 {
		TimerStop(t)
		return TimerStart(t, t.cb, t.repeat, t.repeat)
	}
	return 0
}

// TimerSetRepeat sets the repeat interval, taking effect from the next
// (re)arm.
func TimerSetRepeat(t *Timer, repeat uint64) { t.repeat = repeat }

// TimerGetRepeat returns the repeat interval.
func TimerGetRepeat(t *Timer) uint64 { return t.repeat }

// TimerGetDueIn returns the milliseconds until t fires, or 0 if it is not
// armed or already due.
func TimerGetDueIn(t *Timer) uint64 {
	if t.flags&flagActive == 0 || t.due <= t.loop.now {
		return 0
	}
	return t.due - t.loop.now
}

// timerHeap orders armed timers by due time, then by start order.
type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].due != h[j].due {
		return h[i].due < h[j].due
	}
	return h[i].startID < h[j].startID
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
