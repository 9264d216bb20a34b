// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package mainloop

import (
	"slices"
)

type deferRecord struct {
	cb       DeferEventCallback
	destroy  DeferEventDestroyCallback
	userdata any
	enabled  bool
	// dead marks an event freed during a dispatch, awaiting reaping
	dead bool
}

// deferSubsystem runs enabled deferred events from a single drain task,
// repeating passes until one makes no progress.
type deferSubsystem struct {
	m       *Mainloop
	records map[*DeferEvent]*deferRecord
	// order is the pass order, staged holds events added mid-drain
	order  []*DeferEvent
	staged []*DeferEvent

	draining  bool
	scheduled bool
	// wakes counts drain task runs
	wakes int
}

func (x *deferSubsystem) init(m *Mainloop) {
	x.m = m
	x.records = make(map[*DeferEvent]*deferRecord)
}

func (x *deferSubsystem) add(cb DeferEventCallback, userdata any) *DeferEvent {
	e := &DeferEvent{ref: newRef(x.m)}
	x.records[e] = &deferRecord{
		cb:       cb,
		userdata: userdata,
		enabled:  true,
	}
	if x.draining {
		x.staged = append(x.staged, e)
	} else {
		x.order = append(x.order, e)
	}
	x.wake()
	return e
}

func (x *deferSubsystem) lookup(op string, e *DeferEvent) *deferRecord {
	rec, ok := x.records[e]
	if !ok {
		violation(x.m, op, ErrUnknownHandle)
		return nil
	}
	return rec
}

// enable is ignored for dead events.
func (x *deferSubsystem) enable(op string, e *DeferEvent, enabled bool) {
	rec := x.lookup(op, e)
	if rec == nil || rec.dead || rec.enabled == enabled {
		return
	}
	rec.enabled = enabled
	if enabled {
		x.wake()
	}
}

// setDestroy also applies to a dead event, which is destroyed when reaped.
func (x *deferSubsystem) setDestroy(op string, e *DeferEvent, cb DeferEventDestroyCallback) {
	if rec := x.lookup(op, e); rec != nil {
		rec.destroy = cb
	}
}

// free destroys synchronously outside a dispatch. Within one, the event is
// disabled and marked dead, and reaped by the drain task.
func (x *deferSubsystem) free(op string, e *DeferEvent) {
	rec, ok := x.records[e]
	if !ok || rec.dead {
		violation(x.m, op, ErrDoubleFree)
		return
	}
	if x.m.inDispatch() {
		rec.enabled = false
		rec.dead = true
		x.wake()
		return
	}
	x.remove(e)
	x.callDestroy(e, rec)
}

func (x *deferSubsystem) remove(e *DeferEvent) {
	delete(x.records, e)
	x.order = slices.DeleteFunc(x.order, func(v *DeferEvent) bool { return v == e })
	x.staged = slices.DeleteFunc(x.staged, func(v *DeferEvent) bool { return v == e })
}

func (x *deferSubsystem) callDestroy(e *DeferEvent, rec *deferRecord) {
	if rec.destroy != nil {
		rec.destroy(x.m.api, e, rec.userdata)
	}
}

// wake schedules the drain task. Changes made while draining are picked up
// by the running drain.
func (x *deferSubsystem) wake() {
	if x.draining || x.scheduled || x.m.closed {
		return
	}
	x.scheduled = true
	if err := x.m.reactor.Submit(x.drain); err != nil {
		x.scheduled = false
		x.m.logger.Debug().Err(err).Log("mainloop: deferred drain not scheduled")
	}
}

func (x *deferSubsystem) drain() {
	x.scheduled = false
	if x.m.closed {
		return
	}
	x.wakes++
	x.draining = true

	budget := x.m.opts.deferredBudget
	for passes := 1; ; passes++ {
		progress := x.pass()
		if x.m.closed {
			x.draining = false
			return
		}
		if len(x.staged) > 0 {
			x.order = append(x.order, x.staged...)
			x.staged = x.staged[:0]
			progress = true
		}
		if x.reap() {
			progress = true
		}
		if !progress {
			break
		}
		if budget > 0 && passes >= budget {
			x.draining = false
			x.m.logger.Debug().Int("passes", passes).Log("mainloop: deferred pass budget exhausted, yielding")
			x.wake()
			return
		}
	}

	x.draining = false
}

// pass invokes every enabled, live event once, reporting whether any ran.
func (x *deferSubsystem) pass() bool {
	var ran bool
	for _, e := range slices.Clone(x.order) {
		rec, ok := x.records[e]
		if !ok || !rec.enabled || rec.dead {
			continue
		}
		ran = true
		rec.cb(x.m.api, e, rec.userdata)
		if x.m.closed {
			break
		}
	}
	return ran
}

// reap removes and destroys dead events, reporting whether there were any.
func (x *deferSubsystem) reap() bool {
	var dead []*DeferEvent
	for _, e := range x.order {
		if rec := x.records[e]; rec != nil && rec.dead {
			dead = append(dead, e)
		}
	}
	for _, e := range x.staged {
		if rec := x.records[e]; rec != nil && rec.dead {
			dead = append(dead, e)
		}
	}
	for _, e := range dead {
		rec, ok := x.records[e]
		if !ok {
			continue
		}
		x.remove(e)
		x.callDestroy(e, rec)
	}
	return len(dead) > 0
}

// freeAll destroys every deferred event, dead or not.
func (x *deferSubsystem) freeAll() {
	for len(x.records) > 0 {
		events := slices.Concat(x.order, x.staged)
		if len(events) == 0 {
			break
		}
		for _, e := range events {
			rec, ok := x.records[e]
			if !ok {
				continue
			}
			x.remove(e)
			x.callDestroy(e, rec)
		}
	}
}
