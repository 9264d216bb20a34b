// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package mainloop

import (
	"time"
)

type (
	// IOEventCallback is invoked when fd has at least one of the conditions
	// the watch is interested in. events holds the ready conditions,
	// restricted to the watch's interest.
	IOEventCallback func(a *API, e *IOEvent, fd int, events IOEventFlags, userdata any)

	// IOEventDestroyCallback is invoked exactly once after an I/O watch is
	// freed.
	IOEventDestroyCallback func(a *API, e *IOEvent, userdata any)

	// TimeEventCallback is invoked once a timer's deadline passes. deadline
	// is the deadline the timer was armed with.
	TimeEventCallback func(a *API, e *TimeEvent, deadline time.Time, userdata any)

	// TimeEventDestroyCallback is invoked exactly once after a timer is freed.
	TimeEventDestroyCallback func(a *API, e *TimeEvent, userdata any)

	// DeferEventCallback is invoked once per main loop iteration while the
	// deferred event is enabled.
	DeferEventCallback func(a *API, e *DeferEvent, userdata any)

	// DeferEventDestroyCallback is invoked exactly once after a deferred
	// event is freed.
	DeferEventDestroyCallback func(a *API, e *DeferEvent, userdata any)
)

// API is the vtable handed to foreign code. Its entries are bound by [New]
// and must only be called from the reactor's goroutine, or while the reactor
// is not running.
//
// A zero deadline passed to TimeNew or TimeRestart disarms the timer.
type API struct {
	m *Mainloop

	// Userdata is reserved for the foreign side, and is not used by this
	// package.
	Userdata any

	IONew        func(a *API, fd int, events IOEventFlags, cb IOEventCallback, userdata any) *IOEvent
	IOEnable     func(e *IOEvent, events IOEventFlags)
	IOFree       func(e *IOEvent)
	IOSetDestroy func(e *IOEvent, cb IOEventDestroyCallback)

	TimeNew        func(a *API, deadline time.Time, cb TimeEventCallback, userdata any) *TimeEvent
	TimeRestart    func(e *TimeEvent, deadline time.Time)
	TimeFree       func(e *TimeEvent)
	TimeSetDestroy func(e *TimeEvent, cb TimeEventDestroyCallback)

	DeferNew        func(a *API, cb DeferEventCallback, userdata any) *DeferEvent
	DeferEnable     func(e *DeferEvent, enabled bool)
	DeferFree       func(e *DeferEvent)
	DeferSetDestroy func(e *DeferEvent, cb DeferEventDestroyCallback)

	Quit func(a *API, retval int)
}

func newAPI(m *Mainloop) *API {
	return &API{
		m: m,

		IONew:        apiIONew,
		IOEnable:     apiIOEnable,
		IOFree:       apiIOFree,
		IOSetDestroy: apiIOSetDestroy,

		TimeNew:        apiTimeNew,
		TimeRestart:    apiTimeRestart,
		TimeFree:       apiTimeFree,
		TimeSetDestroy: apiTimeSetDestroy,

		DeferNew:        apiDeferNew,
		DeferEnable:     apiDeferEnable,
		DeferFree:       apiDeferFree,
		DeferSetDestroy: apiDeferSetDestroy,

		Quit: apiQuit,
	}
}

// mainloop resolves the driver behind a vtable pointer.
func (a *API) mainloop(op string) *Mainloop {
	if a == nil || a.m == nil {
		violation(nil, op, ErrNilHandle)
		return nil
	}
	return a.m
}

func apiIONew(a *API, fd int, events IOEventFlags, cb IOEventCallback, userdata any) *IOEvent {
	const op = "io_new"
	m := a.mainloop(op)
	if m == nil || !m.checkOpen(op) {
		return nil
	}
	if fd < 0 || cb == nil {
		violation(m, op, ErrInvalidArgument)
		return nil
	}
	return m.io.spawn(op, fd, events, cb, userdata)
}

func apiIOEnable(e *IOEvent, events IOEventFlags) {
	const op = "io_enable"
	if m := e.mainloop(op); m != nil {
		m.io.enable(op, e, events)
	}
}

func apiIOFree(e *IOEvent) {
	const op = "io_free"
	if m := e.mainloop(op); m != nil {
		m.io.free(op, e)
	}
}

func apiIOSetDestroy(e *IOEvent, cb IOEventDestroyCallback) {
	const op = "io_set_destroy"
	if m := e.mainloop(op); m != nil {
		m.io.setDestroy(op, e, cb)
	}
}

func apiTimeNew(a *API, deadline time.Time, cb TimeEventCallback, userdata any) *TimeEvent {
	const op = "time_new"
	m := a.mainloop(op)
	if m == nil || !m.checkOpen(op) {
		return nil
	}
	if cb == nil {
		violation(m, op, ErrInvalidArgument)
		return nil
	}
	return m.timers.spawn(deadline, cb, userdata)
}

func apiTimeRestart(e *TimeEvent, deadline time.Time) {
	const op = "time_restart"
	if m := e.mainloop(op); m != nil {
		m.timers.restart(op, e, deadline)
	}
}

func apiTimeFree(e *TimeEvent) {
	const op = "time_free"
	if m := e.mainloop(op); m != nil {
		m.timers.free(op, e)
	}
}

func apiTimeSetDestroy(e *TimeEvent, cb TimeEventDestroyCallback) {
	const op = "time_set_destroy"
	if m := e.mainloop(op); m != nil {
		m.timers.setDestroy(op, e, cb)
	}
}

func apiDeferNew(a *API, cb DeferEventCallback, userdata any) *DeferEvent {
	const op = "defer_new"
	m := a.mainloop(op)
	if m == nil || !m.checkOpen(op) {
		return nil
	}
	if cb == nil {
		violation(m, op, ErrInvalidArgument)
		return nil
	}
	return m.deferred.add(cb, userdata)
}

func apiDeferEnable(e *DeferEvent, enabled bool) {
	const op = "defer_enable"
	if m := e.mainloop(op); m != nil {
		m.deferred.enable(op, e, enabled)
	}
}

func apiDeferFree(e *DeferEvent) {
	const op = "defer_free"
	if m := e.mainloop(op); m != nil {
		m.deferred.free(op, e)
	}
}

func apiDeferSetDestroy(e *DeferEvent, cb DeferEventDestroyCallback) {
	const op = "defer_set_destroy"
	if m := e.mainloop(op); m != nil {
		m.deferred.setDestroy(op, e, cb)
	}
}

func apiQuit(a *API, retval int) {
	if m := a.mainloop("quit"); m != nil {
		m.requestQuit(retval)
	}
}
