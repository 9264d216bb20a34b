// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package mainloop

import (
	"time"

	"github.com/joeycumines/go-mainloop/reactor"
)

// timerOutcome is delivered through a cancellation slot. A nil outcome
// silently discards the armed timer, anything else runs in place of firing.
type timerOutcome func()

// timerArm is a single arming of a timer. It settles exactly once, either
// by elapsing or by processing its cancellation slot, whichever runs first.
type timerArm struct {
	cancel  chan timerOutcome
	id      reactor.TimerID
	settled bool
}

type timerRecord struct {
	cb       TimeEventCallback
	destroy  TimeEventDestroyCallback
	userdata any
	deadline time.Time
	arm      *timerArm
}

type timerSubsystem struct {
	m      *Mainloop
	events map[*TimeEvent]*timerRecord
	// dying holds timers freed within a dispatch until their destroy runs
	dying map[*TimeEvent]*timerRecord
}

func (x *timerSubsystem) init(m *Mainloop) {
	x.m = m
	x.events = make(map[*TimeEvent]*timerRecord)
	x.dying = make(map[*TimeEvent]*timerRecord)
}

func (x *timerSubsystem) spawn(deadline time.Time, cb TimeEventCallback, userdata any) *TimeEvent {
	e := &TimeEvent{ref: newRef(x.m)}
	rec := &timerRecord{
		cb:       cb,
		userdata: userdata,
		deadline: deadline,
	}
	x.events[e] = rec
	if !deadline.IsZero() {
		x.arm(e, rec)
	}
	return e
}

func (x *timerSubsystem) lookup(op string, e *TimeEvent) *timerRecord {
	rec, ok := x.events[e]
	if !ok {
		violation(x.m, op, ErrUnknownHandle)
		return nil
	}
	return rec
}

// restart discards any pending arming, then re-arms unless deadline is zero.
func (x *timerSubsystem) restart(op string, e *TimeEvent, deadline time.Time) {
	rec := x.lookup(op, e)
	if rec == nil {
		return
	}
	if rec.arm != nil {
		x.send(rec.arm, nil)
		rec.arm = nil
	}
	rec.deadline = deadline
	if !deadline.IsZero() {
		x.arm(e, rec)
	}
}

// setDestroy also applies to a timer freed within the current dispatch,
// whose destroy has yet to run.
func (x *timerSubsystem) setDestroy(op string, e *TimeEvent, cb TimeEventDestroyCallback) {
	if rec, ok := x.dying[e]; ok {
		rec.destroy = cb
		return
	}
	if rec := x.lookup(op, e); rec != nil {
		rec.destroy = cb
	}
}

func (x *timerSubsystem) free(op string, e *TimeEvent) {
	rec, ok := x.events[e]
	if !ok {
		violation(x.m, op, ErrDoubleFree)
		return
	}
	delete(x.events, e)
	arm := rec.arm
	rec.arm = nil

	if !x.m.inDispatch() {
		if arm != nil {
			x.settle(arm)
		}
		x.callDestroy(e, rec)
		return
	}

	x.dying[e] = rec
	destroy := timerOutcome(func() {
		delete(x.dying, e)
		x.callDestroy(e, rec)
	})
	if arm == nil || !x.send(arm, destroy) {
		x.m.later(destroy)
	}
}

func (x *timerSubsystem) callDestroy(e *TimeEvent, rec *timerRecord) {
	if rec.destroy != nil {
		rec.destroy(x.m.api, e, rec.userdata)
	}
}

func (x *timerSubsystem) arm(e *TimeEvent, rec *timerRecord) {
	arm := &timerArm{cancel: make(chan timerOutcome, 1)}
	delay := max(time.Until(rec.deadline), 0)
	id, err := x.m.reactor.ScheduleTimer(delay, func() { x.elapse(e, rec, arm) })
	if err != nil {
		x.m.logger.Err().Err(err).Log("mainloop: timer not scheduled")
		arm.settled = true
		return
	}
	arm.id = id
	rec.arm = arm
}

// send delivers outcome to arm's cancellation slot, and schedules the slot
// to be processed. It reports false if the arm already settled.
func (x *timerSubsystem) send(arm *timerArm, outcome timerOutcome) bool {
	if arm.settled {
		return false
	}
	select {
	case arm.cancel <- outcome:
	default:
		return false
	}
	x.m.later(func() { x.settle(arm) })
	return true
}

// settle processes the cancellation slot, if the arm has not elapsed.
func (x *timerSubsystem) settle(arm *timerArm) {
	if arm.settled {
		return
	}
	arm.settled = true
	_ = x.m.reactor.CancelTimer(arm.id)
	select {
	case outcome := <-arm.cancel:
		if outcome != nil {
			outcome()
		}
	default:
	}
}

func (x *timerSubsystem) elapse(e *TimeEvent, rec *timerRecord, arm *timerArm) {
	if arm.settled {
		return
	}
	arm.settled = true

	// a cancellation may have raced the deadline, it wins if present
	select {
	case outcome := <-arm.cancel:
		if outcome != nil {
			outcome()
		}
		return
	default:
	}

	if x.m.closed || x.events[e] != rec || rec.arm != arm {
		return
	}
	rec.arm = nil
	rec.cb(x.m.api, e, rec.deadline, rec.userdata)
}

// freeAll cancels and destroys every timer.
func (x *timerSubsystem) freeAll() {
	for len(x.events) > 0 {
		for e, rec := range x.events {
			if x.events[e] != rec {
				continue
			}
			delete(x.events, e)
			if arm := rec.arm; arm != nil {
				rec.arm = nil
				x.settle(arm)
			}
			x.callDestroy(e, rec)
		}
	}
}
