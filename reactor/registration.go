// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"go.uber.org/atomic"
)

// Registration is the edge-triggered registration of a single file
// descriptor with a [Loop].
//
// The kernel only reports transitions, so the registration accumulates
// reported events in a readiness cache. The owner must call
// [Registration.ClearReady] for a direction once it has observed that
// direction not ready (e.g. after EAGAIN), otherwise the cache would keep
// reporting stale readiness.
type Registration struct {
	loop     *Loop
	onReady  func()
	interest *atomic.Uint32
	ready    *atomic.Uint32
	active   *atomic.Bool
	fd       int
}

// Register adds fd to the poller, edge-triggered, for interest. onReady runs
// on the loop each time the kernel reports a new event for fd. Error and
// hangup conditions are reported regardless of interest.
func (l *Loop) Register(fd int, interest IOEvents, onReady func()) (*Registration, error) {
	if fd < 0 {
		return nil, ErrFDOutOfRange
	}
	if l.state.IsTerminal() {
		return nil, ErrLoopTerminated
	}

	r := &Registration{
		loop:     l,
		onReady:  onReady,
		interest: atomic.NewUint32(uint32(interest)),
		ready:    atomic.NewUint32(0),
		active:   atomic.NewBool(true),
		fd:       fd,
	}

	if err := l.poller.register(fd, interest, r.notify); err != nil {
		return nil, err
	}

	return r, nil
}

// notify is invoked by the poller, on the loop goroutine.
func (r *Registration) notify(events IOEvents) {
	if !r.active.Load() {
		return
	}
	r.setReady(events)
	if r.onReady != nil {
		r.loop.safeExecute(r.onReady)
	}
}

func (r *Registration) setReady(events IOEvents) {
	for {
		old := r.ready.Load()
		if r.ready.CAS(old, old|uint32(events)) {
			return
		}
	}
}

// FD returns the registered file descriptor.
func (r *Registration) FD() int { return r.fd }

// Interest returns the events currently registered with the poller.
func (r *Registration) Interest() IOEvents { return IOEvents(r.interest.Load()) }

// Ready returns the cached readiness.
func (r *Registration) Ready() IOEvents { return IOEvents(r.ready.Load()) }

// ClearReady drops events from the readiness cache, re-arming those
// directions so that only a new edge sets them again.
func (r *Registration) ClearReady(events IOEvents) {
	for {
		old := r.ready.Load()
		if r.ready.CAS(old, old&^uint32(events)) {
			return
		}
	}
}

// SetInterest changes the events registered with the poller. It is a no-op
// if interest is unchanged.
func (r *Registration) SetInterest(interest IOEvents) error {
	if !r.active.Load() {
		return ErrFDNotRegistered
	}
	if IOEvents(r.interest.Load()) == interest {
		return nil
	}
	if err := r.loop.poller.modify(r.fd, interest); err != nil {
		return err
	}
	r.interest.Store(uint32(interest))
	return nil
}

// Deregister removes the descriptor from the poller. Subsequent calls
// return [ErrFDNotRegistered].
func (r *Registration) Deregister() error {
	if !r.active.CAS(true, false) {
		return ErrFDNotRegistered
	}
	return r.loop.poller.unregister(r.fd)
}

// Active reports whether the registration has not been deregistered.
func (r *Registration) Active() bool { return r.active.Load() }
