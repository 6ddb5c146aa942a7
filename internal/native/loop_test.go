package native

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_RunEmpty(t *testing.T) {
	loop, err := NewLoop(nil)
	require.NoError(t, err)
	defer loop.Close()

	for _, mode := range []RunMode{RunDefault, RunOnce, RunNoWait} {
		alive, err := loop.Run(context.Background(), mode)
		assert.NoError(t, err, mode.String())
		assert.False(t, alive, mode.String())
	}
}

func TestLoop_RunDefault_RealClock(t *testing.T) {
	loop, err := NewLoop(nil)
	require.NoError(t, err)
	defer loop.Close()

	var timer Timer
	require.Zero(t, TimerInit(loop, &timer))
	var fired int
	require.Zero(t, TimerStart(&timer, func(tm *Timer) {
		fired++
		if fired == 3 {
			TimerStop(tm)
		}
	}, 5, 5))

	start := time.Now()
	alive, err := loop.Run(context.Background(), RunDefault)
	require.NoError(t, err)
	assert.False(t, alive)
	assert.Equal(t, 3, fired)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
	assert.GreaterOrEqual(t, loop.Now(), uint64(15))

	require.Zero(t, Close(&timer.Handle, nil))
	_, err = loop.Run(context.Background(), RunDefault)
	require.NoError(t, err)
}

func TestLoop_Close(t *testing.T) {
	loop, _ := newMockLoop(t)

	var timer Timer
	require.Zero(t, TimerInit(loop, &timer))
	assert.Equal(t, EBUSY, loop.Close())

	var closed []*Handle
	require.Zero(t, Close(&timer.Handle, func(h *Handle) { closed = append(closed, h) }))
	assert.True(t, IsClosing(&timer.Handle))
	assert.Equal(t, EBUSY, loop.Close(), "close callback still pending")
	assert.True(t, loop.Alive())

	assert.False(t, runNoWait(t, loop))
	assert.Equal(t, []*Handle{&timer.Handle}, closed)
	assert.True(t, IsClosing(&timer.Handle))

	require.NoError(t, loop.Close())
	assert.True(t, loop.Closed())
	assert.ErrorIs(t, loop.Close(), ErrLoopClosed)

	_, err := loop.Run(context.Background(), RunDefault)
	assert.ErrorIs(t, err, ErrLoopClosed)
	assert.ErrorIs(t, loop.Submit(func() {}), ErrLoopClosed)
}

func TestClose_Idempotent(t *testing.T) {
	loop, _ := newMockLoop(t)
	var timer Timer
	require.Zero(t, TimerInit(loop, &timer))

	var calls int
	cb := func(*Handle) { calls++ }
	require.Zero(t, Close(&timer.Handle, cb))
	require.Zero(t, Close(&timer.Handle, cb))
	runNoWait(t, loop)
	require.Zero(t, Close(&timer.Handle, cb))
	runNoWait(t, loop)
	assert.Equal(t, 1, calls)
	assert.Zero(t, loop.Metrics().Handles)

	var uninitialised Timer
	assert.Equal(t, EINVAL, Close(&uninitialised.Handle, cb))
}

func TestClose_StopsActiveTimer(t *testing.T) {
	loop, mock := newMockLoop(t)
	var timer Timer
	require.Zero(t, TimerInit(loop, &timer))
	var fired int
	require.Zero(t, TimerStart(&timer, func(*Timer) { fired++ }, 0, 10))
	require.Zero(t, Close(&timer.Handle, nil))
	assert.False(t, IsActive(&timer.Handle))

	mock.Add(time.Second)
	assert.False(t, runNoWait(t, loop))
	assert.Zero(t, fired)
	assert.Empty(t, loop.timers)
}

func TestTimerInit_ReuseAfterClose(t *testing.T) {
	loop, _ := newMockLoop(t)
	var timer Timer
	require.Zero(t, TimerInit(loop, &timer))
	require.Zero(t, Close(&timer.Handle, nil))
	runNoWait(t, loop)

	require.Zero(t, TimerInit(loop, &timer))
	assert.False(t, IsClosing(&timer.Handle))
	assert.True(t, HasRef(&timer.Handle))
}

func TestRefUnref(t *testing.T) {
	loop, _ := newMockLoop(t)
	var timer Timer
	require.Zero(t, TimerInit(loop, &timer))
	assert.True(t, HasRef(&timer.Handle))
	require.Zero(t, TimerStart(&timer, func(*Timer) {}, 1000, 0))
	assert.True(t, loop.Alive())

	Unref(&timer.Handle)
	Unref(&timer.Handle)
	assert.False(t, HasRef(&timer.Handle))
	assert.False(t, loop.Alive())
	assert.True(t, IsActive(&timer.Handle))

	alive, err := loop.Run(context.Background(), RunDefault)
	require.NoError(t, err)
	assert.False(t, alive)

	Ref(&timer.Handle)
	Ref(&timer.Handle)
	assert.True(t, loop.Alive())
	assert.Equal(t, int64(1), loop.Metrics().ActiveHandles)

	TimerStop(&timer)
	assert.Zero(t, loop.Metrics().ActiveHandles)
}

func TestLoop_Walk(t *testing.T) {
	loop, _ := newMockLoop(t)
	timers := make([]Timer, 3)
	for i := range timers {
		require.Zero(t, TimerInit(loop, &timers[i]))
	}
	require.Zero(t, Close(&timers[1].Handle, nil))
	runNoWait(t, loop)

	var seen []*Handle
	loop.Walk(func(h *Handle) {
		assert.Equal(t, TypeTimer, TypeOf(h))
		assert.Same(t, loop, LoopOf(h))
		seen = append(seen, h)
		Close(h, nil)
	})
	assert.Equal(t, []*Handle{&timers[0].Handle, &timers[2].Handle}, seen)

	runNoWait(t, loop)
	require.NoError(t, loop.Close())
}

func TestLoop_Stop(t *testing.T) {
	loop, mock := newMockLoop(t)
	var timer Timer
	require.Zero(t, TimerInit(loop, &timer))
	var fired int
	require.Zero(t, TimerStart(&timer, func(*Timer) {
		fired++
		loop.Stop()
	}, 0, 1))
	mock.Add(time.Second)

	alive, err := loop.Run(context.Background(), RunDefault)
	require.NoError(t, err)
	assert.True(t, alive)
	assert.Equal(t, 1, fired)
	assert.False(t, loop.stopFlag)
}

func TestLoop_StopThenPanic(t *testing.T) {
	loop, mock := newMockLoop(t)
	var timer Timer
	require.Zero(t, TimerInit(loop, &timer))
	var fired int
	require.Zero(t, TimerStart(&timer, func(*Timer) {
		fired++
		if fired == 1 {
			loop.Stop()
			panic("boom")
		}
	}, 0, 10))

	assert.PanicsWithValue(t, "boom", func() {
		_, _ = loop.Run(context.Background(), RunNoWait)
	})
	assert.False(t, loop.stopFlag)

	mock.Add(10 * time.Millisecond)
	runNoWait(t, loop)
	assert.Equal(t, 2, fired)
}

func TestLoop_ReentrantRun(t *testing.T) {
	loop, _ := newMockLoop(t)
	var timer Timer
	require.Zero(t, TimerInit(loop, &timer))
	var reentrant error
	require.Zero(t, TimerStart(&timer, func(*Timer) {
		_, reentrant = loop.Run(context.Background(), RunNoWait)
		assert.Equal(t, EBUSY, loop.Close())
	}, 0, 0))
	runNoWait(t, loop)
	assert.ErrorIs(t, reentrant, ErrReentrantRun)
}

func TestLoop_CallbackPanicPropagates(t *testing.T) {
	loop, _ := newMockLoop(t)
	var timer Timer
	require.Zero(t, TimerInit(loop, &timer))
	require.Zero(t, TimerStart(&timer, func(*Timer) { panic("boom") }, 0, 0))

	assert.PanicsWithValue(t, "boom", func() {
		_, _ = loop.Run(context.Background(), RunNoWait)
	})

	alive, err := loop.Run(context.Background(), RunNoWait)
	require.NoError(t, err, "loop usable after panic")
	assert.False(t, alive)
}

func TestLoop_ContextCancel(t *testing.T) {
	loop, err := NewLoop(nil)
	require.NoError(t, err)

	var timer Timer
	require.Zero(t, TimerInit(loop, &timer))
	require.Zero(t, TimerStart(&timer, func(*Timer) {}, uint64(time.Hour/time.Millisecond), 0))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	alive, err := loop.Run(ctx, RunDefault)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, alive)

	_, err = loop.Run(ctx, RunDefault)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	Close(&timer.Handle, nil)
	_, err = loop.Run(context.Background(), RunDefault)
	require.NoError(t, err)
	require.NoError(t, loop.Close())
}

func TestLoop_Submit(t *testing.T) {
	loop, err := NewLoop(nil)
	require.NoError(t, err)
	defer loop.Close()

	// keeps the loop alive until the submitted task stops it
	var timer Timer
	require.Zero(t, TimerInit(loop, &timer))
	require.Zero(t, TimerStart(&timer, func(*Timer) {}, uint64(time.Hour/time.Millisecond), 0))

	var (
		wg  sync.WaitGroup
		ran []int
	)
	const n = 10
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			assert.NoError(t, loop.Submit(func() {
				ran = append(ran, i)
				if len(ran) == n {
					Close(&timer.Handle, nil)
				}
			}))
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = loop.Run(ctx, RunDefault)
	require.NoError(t, err)
	wg.Wait()
	assert.Len(t, ran, n)
	assert.Equal(t, uint64(n), loop.Metrics().TasksRun)
	assert.NoError(t, loop.Submit(nil))
}

func TestLoop_Metrics(t *testing.T) {
	loop, mock := newMockLoop(t)
	var timer Timer
	require.Zero(t, TimerInit(loop, &timer))
	require.Zero(t, TimerStart(&timer, func(*Timer) {}, 10, 10))

	m := loop.Metrics()
	assert.Equal(t, int64(1), m.Handles)
	assert.Equal(t, int64(1), m.ActiveHandles)

	for i := 0; i < 3; i++ {
		mock.Add(10 * time.Millisecond)
		runNoWait(t, loop)
	}
	m = loop.Metrics()
	assert.Equal(t, uint64(3), m.Iterations)
	assert.Equal(t, uint64(3), m.TimersFired)
}

func TestErrno(t *testing.T) {
	for _, tc := range []struct {
		code Errno
		name string
		msg  string
	}{
		{0, "OK", "success"},
		{EBADF, "EBADF", "bad file descriptor"},
		{EBUSY, "EBUSY", "resource busy or locked"},
		{EINVAL, "EINVAL", "invalid argument"},
		{ECANCELED, "ECANCELED", "operation canceled"},
		{-1, "E-1", "unknown error -1"},
	} {
		assert.Equal(t, tc.name, tc.code.Name())
		assert.Equal(t, tc.msg, tc.code.Error())
	}
	assert.Equal(t, "timer", TypeTimer.String())
	assert.Equal(t, "unknown", TypeUnknown.String())
	assert.Equal(t, "RunMode(7)", RunMode(7).String())
}
