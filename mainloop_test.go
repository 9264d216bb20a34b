// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package mainloop

import (
	"context"
	"testing"
	"time"

	"github.com/joeycumines/go-mainloop/reactor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_errors(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNilReactor)

	loop, err := reactor.New()
	require.NoError(t, err)
	defer loop.Close()

	_, err = New(loop, WithDeferredPassBudget(-1))
	assert.Error(t, err)

	m, err := New(loop, nil, WithDeferredPassBudget(0))
	require.NoError(t, err)
	assert.Zero(t, m.opts.deferredBudget)
	assert.NotNil(t, m.API())
}

func TestQuit_deliversOnce(t *testing.T) {
	_, m := newIdleMainloop(t)
	a := m.API()

	assert.False(t, m.Quitting())
	a.Quit(a, 5)
	a.Quit(a, 7)
	assert.True(t, m.Quitting())

	select {
	case code := <-m.Quit():
		assert.Equal(t, 5, code)
	default:
		t.Fatal("quit not delivered")
	}
	select {
	case code := <-m.Quit():
		t.Fatalf("quit delivered twice: %d", code)
	default:
	}
}

func TestClose_destroysEverythingOnce(t *testing.T) {
	loop, m := newRunningMainloop(t)
	a := m.API()
	r, w := newPipe(t)

	destroyed := map[string]int{}
	var order []string
	track := func(name string) func() {
		return func() {
			destroyed[name]++
			order = append(order, name)
		}
	}

	onLoop(t, loop, func() {
		io1 := a.IONew(a, r, IOEventInput, func(*API, *IOEvent, int, IOEventFlags, any) {}, nil)
		a.IOSetDestroy(io1, func(*API, *IOEvent, any) { track("io")() })
		io2 := a.IONew(a, w, IOEventNull, func(*API, *IOEvent, int, IOEventFlags, any) {}, nil)
		a.IOSetDestroy(io2, func(*API, *IOEvent, any) { track("io")() })

		armed := a.TimeNew(a, time.Now().Add(time.Hour), func(*API, *TimeEvent, time.Time, any) {}, nil)
		a.TimeSetDestroy(armed, func(*API, *TimeEvent, any) { track("time")() })
		disarmed := a.TimeNew(a, time.Time{}, func(*API, *TimeEvent, time.Time, any) {}, nil)
		a.TimeSetDestroy(disarmed, func(*API, *TimeEvent, any) { track("time")() })

		enabled := a.DeferNew(a, func(a *API, e *DeferEvent, _ any) { a.DeferEnable(e, false) }, nil)
		a.DeferSetDestroy(enabled, func(*API, *DeferEvent, any) { track("defer")() })

		// freed within this dispatch, so its destroy is still pending
		freed := a.TimeNew(a, time.Now().Add(time.Hour), func(*API, *TimeEvent, time.Time, any) {}, nil)
		a.TimeSetDestroy(freed, func(*API, *TimeEvent, any) { track("pending")() })
		a.TimeFree(freed)

		assert.NoError(t, m.Close())
		assert.NoError(t, m.Close())

		assert.Equal(t, map[string]int{"pending": 1, "defer": 1, "time": 2, "io": 2}, destroyed)
		assert.Equal(t, []string{"pending", "defer", "time", "time", "io", "io"}, order)
		assert.Empty(t, m.io.events)
		assert.Empty(t, m.io.watchers)
		assert.Empty(t, m.timers.events)
		assert.Empty(t, m.deferred.records)
		assert.Empty(t, m.pending)
	})

	// queued tasks observe the closed mainloop and do nothing
	time.Sleep(20 * time.Millisecond)
	onLoop(t, loop, func() {
		assert.Equal(t, map[string]int{"pending": 1, "defer": 1, "time": 2, "io": 2}, destroyed)
	})
}

func TestClose_registrationAfterClose(t *testing.T) {
	_, m := newIdleMainloop(t)
	a := m.API()
	require.NoError(t, m.Close())

	requireViolation(t, ErrClosed, func() { a.DeferNew(a, func(*API, *DeferEvent, any) {}, nil) })
	requireViolation(t, ErrClosed, func() { a.TimeNew(a, time.Now(), func(*API, *TimeEvent, time.Time, any) {}, nil) })
	requireViolation(t, ErrClosed, func() { a.IONew(a, 0, IOEventInput, func(*API, *IOEvent, int, IOEventFlags, any) {}, nil) })
}

func TestContractViolations(t *testing.T) {
	_, m := newIdleMainloop(t)
	a := m.API()

	requireViolation(t, ErrNilHandle, func() { a.IOFree(nil) })
	requireViolation(t, ErrNilHandle, func() { a.TimeFree(nil) })
	requireViolation(t, ErrNilHandle, func() { a.DeferFree(nil) })
	requireViolation(t, ErrNilHandle, func() { a.Quit(nil, 1) })
	requireViolation(t, ErrNilHandle, func() { a.DeferNew(&API{}, nil, nil) })

	// never issued by any mainloop
	requireViolation(t, ErrStaleHandle, func() { a.IOEnable(&IOEvent{}, IOEventInput) })
	requireViolation(t, ErrStaleHandle, func() { a.TimeRestart(&TimeEvent{}, time.Now()) })
	requireViolation(t, ErrStaleHandle, func() { a.DeferEnable(&DeferEvent{}, true) })

	requireViolation(t, ErrInvalidArgument, func() { a.IONew(a, -1, IOEventInput, func(*API, *IOEvent, int, IOEventFlags, any) {}, nil) })
	requireViolation(t, ErrInvalidArgument, func() { a.IONew(a, 0, IOEventInput, nil, nil) })
	requireViolation(t, ErrInvalidArgument, func() { a.TimeNew(a, time.Now(), nil, nil) })
	requireViolation(t, ErrInvalidArgument, func() { a.DeferNew(a, nil, nil) })
}

func TestContractViolation_foreignMainloop(t *testing.T) {
	_, m1 := newIdleMainloop(t)
	_, m2 := newIdleMainloop(t)

	e := m1.API().DeferNew(m1.API(), func(*API, *DeferEvent, any) {}, nil)

	// handles resolve through their own mainloop, so freeing via another
	// vtable still targets m1
	m2.API().DeferFree(e)
	assert.Empty(t, m1.deferred.records)
}

func TestWithFatalHandler(t *testing.T) {
	var buf syncBuffer
	var got []*ContractError
	_, m := newIdleMainloop(t, WithLogger(newTestLogger(&buf)), WithFatalHandler(func(ce *ContractError) {
		got = append(got, ce)
	}))
	a := m.API()

	assert.Nil(t, a.TimeNew(a, time.Now(), nil, nil))
	e := a.DeferNew(a, func(*API, *DeferEvent, any) {}, nil)
	a.DeferFree(e)
	a.DeferFree(e)

	require.Len(t, got, 2)
	assert.Equal(t, "time_new", got[0].Op)
	assert.ErrorIs(t, got[0], ErrInvalidArgument)
	assert.Equal(t, "defer_free", got[1].Op)
	assert.ErrorIs(t, got[1], ErrDoubleFree)
	assert.Contains(t, got[1].Error(), "contract violation in defer_free")
	assert.Contains(t, buf.String(), "contract violation")
}

func TestRunUntilQuit(t *testing.T) {
	loop, err := reactor.New()
	require.NoError(t, err)
	m, err := New(loop)
	require.NoError(t, err)
	a := m.API()

	var destroys int
	var ticks int
	e := a.TimeNew(a, time.Now().Add(time.Millisecond), func(a *API, e *TimeEvent, _ time.Time, _ any) {
		ticks++
		if ticks < 3 {
			a.TimeRestart(e, time.Now().Add(time.Millisecond))
			return
		}
		a.Quit(a, 3)
	}, nil)
	a.TimeSetDestroy(e, func(*API, *TimeEvent, any) { destroys++ })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	code, err := RunUntilQuit(ctx, loop, m)
	require.NoError(t, err)
	assert.Equal(t, 3, code)
	assert.Equal(t, 3, ticks)
	assert.Equal(t, 1, destroys)
	assert.Equal(t, reactor.StateTerminated, loop.State())
}

func TestRunUntilQuit_contextCancelled(t *testing.T) {
	loop, err := reactor.New()
	require.NoError(t, err)
	m, err := New(loop)
	require.NoError(t, err)
	a := m.API()

	var destroys int
	e := a.DeferNew(a, func(a *API, e *DeferEvent, _ any) { a.DeferEnable(e, false) }, nil)
	a.DeferSetDestroy(e, func(*API, *DeferEvent, any) { destroys++ })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	code, err := RunUntilQuit(ctx, loop, m)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, code)
	assert.Equal(t, 1, destroys)
}
