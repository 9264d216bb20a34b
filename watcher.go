// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package mainloop

import (
	"golang.org/x/sys/unix"

	"github.com/joeycumines/go-mainloop/reactor"
)

// osEvents are the conditions requested from the reactor, error and hangup
// are reported regardless.
const osEvents = reactor.EventRead | reactor.EventWrite

// watcher drives the watches of a single fd. It reschedules itself every
// pass while any interested condition is ready, turning the reactor's
// edge-triggered notifications into level-triggered callbacks.
type watcher struct {
	io        *ioSubsystem
	interests map[*IOEvent]reactor.IOEvents
	reg       *reactor.Registration
	fd        int
	scheduled bool
	done      bool
	regFailed bool
}

func newWatcher(x *ioSubsystem, fd int) *watcher {
	return &watcher{
		io:        x,
		interests: make(map[*IOEvent]reactor.IOEvents),
		fd:        fd,
	}
}

// wake schedules a pass, unless one is already queued.
func (w *watcher) wake() {
	if w.done || w.scheduled {
		return
	}
	w.scheduled = true
	if err := w.io.m.reactor.Submit(w.run); err != nil {
		w.scheduled = false
		w.io.m.logger.Debug().Int("fd", w.fd).Err(err).Log("mainloop: watcher not scheduled")
	}
}

func (w *watcher) aggregate() reactor.IOEvents {
	var agg reactor.IOEvents
	for _, interest := range w.interests {
		agg |= interest
	}
	return agg
}

func (w *watcher) run() {
	w.scheduled = false
	if w.done {
		return
	}
	if w.io.m.closed {
		w.teardown()
		return
	}

	agg := w.aggregate()
	if agg == 0 {
		w.teardown()
		return
	}

	osInterest := agg & osEvents
	if !w.sync(osInterest) {
		if w.regFailed {
			return
		}
		// reported once to every watch, until the interest changes
		w.regFailed = true
		w.dispatch(reactor.EventError, false)
		return
	}

	ready := w.reg.Ready()
	if ready&agg == 0 {
		// wait for the next edge
		return
	}

	// the cache may be stale, re-check the level
	ready &= w.pollLevel(agg)

	if agg&^reactor.EventWrite != 0 && ready&^reactor.EventWrite == 0 {
		w.reg.ClearReady(reactor.EventRead | reactor.EventHangup | reactor.EventError)
	}
	if agg&reactor.EventWrite != 0 && ready&reactor.EventWrite == 0 {
		w.reg.ClearReady(reactor.EventWrite)
	}

	if ready&agg == 0 {
		return
	}

	w.dispatch(ready, true)

	// level-triggered: check again next pass
	w.wake()
}

// sync brings the reactor registration in line with interest, registering
// on first use. A failed update is retried as a fresh registration, since
// the fd may have been closed and reused.
func (w *watcher) sync(interest reactor.IOEvents) bool {
	if w.reg != nil {
		err := w.reg.SetInterest(interest)
		if err == nil {
			return true
		}
		w.io.m.logger.Debug().Int("fd", w.fd).Err(err).Log("mainloop: fd interest update failed, re-registering")
		_ = w.reg.Deregister()
		w.reg = nil
	}
	if w.regFailed {
		return false
	}
	return w.register(interest) == nil
}

// register creates the reactor registration, if there is none.
func (w *watcher) register(interest reactor.IOEvents) error {
	if w.reg != nil {
		return nil
	}
	reg, err := w.io.m.reactor.Register(w.fd, interest, w.wake)
	if err != nil {
		w.io.m.logger.Err().Int("fd", w.fd).Err(err).Log("mainloop: fd registration failed")
		return err
	}
	w.reg = reg
	return nil
}

// pollLevel performs a zero-timeout poll(2) of the fd.
func (w *watcher) pollLevel(interest reactor.IOEvents) reactor.IOEvents {
	fds := []unix.PollFd{{Fd: int32(w.fd), Events: pollEvents(interest)}}
	for {
		n, err := unix.Poll(fds, 0)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return reactor.EventError
		}
		if n == 0 {
			return 0
		}
		return eventsFromPoll(fds[0].Revents)
	}
}

// dispatch invokes every interested watch's callback, with the ready
// conditions restricted to that watch's interest unless mask is false.
// Watches freed or changed by earlier callbacks in the same pass are
// re-checked.
func (w *watcher) dispatch(ready reactor.IOEvents, mask bool) {
	type target struct {
		e   *IOEvent
		rec *ioRecord
	}
	targets := make([]target, 0, len(w.interests))
	for e := range w.interests {
		if rec, ok := w.io.events[e]; ok {
			targets = append(targets, target{e, rec})
		}
	}
	m := w.io.m
	for _, t := range targets {
		if m.closed || w.io.events[t.e] != t.rec {
			continue
		}
		got := ready
		if mask {
			got &= w.interests[t.e]
		}
		if got == 0 {
			continue
		}
		t.rec.cb(m.api, t.e, w.fd, flagsFromReactor(got), t.rec.userdata)
	}
}

// teardown deregisters the fd and detaches the watcher from the table.
func (w *watcher) teardown() {
	if w.done {
		return
	}
	w.done = true
	if w.reg != nil {
		if err := w.reg.Deregister(); err != nil {
			w.io.m.logger.Debug().Int("fd", w.fd).Err(err).Log("mainloop: deregister failed")
		}
		w.reg = nil
	}
	if w.io.watchers[w.fd] == w {
		delete(w.io.watchers, w.fd)
	}
	w.io.m.logger.Debug().Int("fd", w.fd).Log("mainloop: watcher stopped")
}
