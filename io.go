// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package mainloop

import (
	"errors"

	"github.com/joeycumines/go-mainloop/reactor"
)

type ioRecord struct {
	cb       IOEventCallback
	destroy  IOEventDestroyCallback
	userdata any
	fd       int
}

// ioSubsystem owns the I/O watches. Watches on the same fd share a single
// watcher, and a single reactor registration.
type ioSubsystem struct {
	m      *Mainloop
	events map[*IOEvent]*ioRecord
	// dying holds events freed within a dispatch until their destroy runs
	dying    map[*IOEvent]*ioRecord
	watchers map[int]*watcher
}

func (x *ioSubsystem) init(m *Mainloop) {
	x.m = m
	x.events = make(map[*IOEvent]*ioRecord)
	x.dying = make(map[*IOEvent]*ioRecord)
	x.watchers = make(map[int]*watcher)
}

func (x *ioSubsystem) spawn(op string, fd int, events IOEventFlags, cb IOEventCallback, userdata any) *IOEvent {
	e := &IOEvent{ref: newRef(x.m)}
	if !x.setInterest(op, fd, e, events.toReactor()) {
		return nil
	}
	x.events[e] = &ioRecord{
		cb:       cb,
		userdata: userdata,
		fd:       fd,
	}
	return e
}

func (x *ioSubsystem) lookup(op string, e *IOEvent) *ioRecord {
	rec, ok := x.events[e]
	if !ok {
		violation(x.m, op, ErrUnknownHandle)
		return nil
	}
	return rec
}

func (x *ioSubsystem) enable(op string, e *IOEvent, events IOEventFlags) {
	rec := x.lookup(op, e)
	if rec == nil {
		return
	}
	x.setInterest(op, rec.fd, e, events.toReactor())
}

// setDestroy also applies to an event freed within the current dispatch,
// whose destroy has yet to run.
func (x *ioSubsystem) setDestroy(op string, e *IOEvent, cb IOEventDestroyCallback) {
	if rec, ok := x.dying[e]; ok {
		rec.destroy = cb
		return
	}
	if rec := x.lookup(op, e); rec != nil {
		rec.destroy = cb
	}
}

// free releases the interest synchronously. The destroy callback runs
// immediately outside a dispatch, or from a fresh task within one.
func (x *ioSubsystem) free(op string, e *IOEvent) {
	rec, ok := x.events[e]
	if !ok {
		violation(x.m, op, ErrDoubleFree)
		return
	}
	x.setInterest(op, rec.fd, e, 0)
	delete(x.events, e)
	if x.m.inDispatch() {
		x.dying[e] = rec
		x.m.later(func() {
			delete(x.dying, e)
			x.callDestroy(e, rec)
		})
	} else {
		x.callDestroy(e, rec)
	}
}

func (x *ioSubsystem) callDestroy(e *IOEvent, rec *ioRecord) {
	if rec.destroy != nil {
		rec.destroy(x.m.api, e, rec.userdata)
	}
}

// setInterest routes every interest change to the fd's watcher, creating
// one if none is live and interest is non-empty. A new watcher registers
// the fd immediately: an fd registered with the reactor by someone else is
// a contract violation, reported against op, and setInterest returns false.
func (x *ioSubsystem) setInterest(op string, fd int, e *IOEvent, interest reactor.IOEvents) bool {
	if w := x.watchers[fd]; w != nil {
		if interest == 0 {
			delete(w.interests, e)
			if len(w.interests) == 0 {
				// the caller may close fd as soon as this returns
				w.teardown()
				return true
			}
		} else {
			w.interests[e] = interest
		}
		w.regFailed = false
		w.wake()
		return true
	}
	if interest == 0 || x.m.closed {
		return true
	}
	w := newWatcher(x, fd)
	if err := w.register(interest & osEvents); errors.Is(err, reactor.ErrFDAlreadyRegistered) {
		violation(x.m, op, err)
		return false
	}
	w.interests[e] = interest
	x.watchers[fd] = w
	x.m.logger.Debug().Int("fd", fd).Log("mainloop: watcher created")
	w.wake()
	return true
}

// freeAll destroys every registered watch, then tears down the watchers.
func (x *ioSubsystem) freeAll() {
	for len(x.events) > 0 {
		for e, rec := range x.events {
			if x.events[e] != rec {
				continue
			}
			x.setInterest("free_all", rec.fd, e, 0)
			delete(x.events, e)
			x.callDestroy(e, rec)
		}
	}
	for _, w := range x.watchers {
		w.teardown()
	}
}
