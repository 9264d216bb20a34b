// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"container/heap"
	"time"
)

// TimerID identifies a scheduled timer. IDs are never reused by a loop.
type TimerID uint64

type timer struct {
	fn    func()
	when  time.Time
	id    TimerID
	index int
}

// timerHeap is a min-heap of timers ordered by deadline, then by ID.
type timerHeap []*timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].id < h[j].id
	}
	return h[i].when.Before(h[j].when)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*timer)
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

// ScheduleTimer schedules fn to run on the loop after delay. A negative delay
// is treated as zero. Safe to call from any goroutine.
func (l *Loop) ScheduleTimer(delay time.Duration, fn func()) (TimerID, error) {
	if fn == nil {
		return 0, nil
	}
	if delay < 0 {
		delay = 0
	}

	l.mu.Lock()
	if l.state.IsTerminal() {
		l.mu.Unlock()
		return 0, ErrLoopTerminated
	}
	l.nextTimerID++
	t := &timer{
		fn:   fn,
		when: time.Now().Add(delay),
		id:   l.nextTimerID,
	}
	heap.Push(&l.timers, t)
	l.timerByID[t.id] = t
	l.wakeIfSleepingLocked()
	l.mu.Unlock()

	return t.id, nil
}

// CancelTimer cancels a pending timer. It returns [ErrTimerNotFound] if the
// timer already fired, was already cancelled, or never existed.
func (l *Loop) CancelTimer(id TimerID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.timerByID[id]
	if !ok {
		return ErrTimerNotFound
	}
	delete(l.timerByID, id)
	heap.Remove(&l.timers, t.index)
	return nil
}

// runTimers executes timers that were due when the pass started. Timers
// scheduled by those callbacks wait for the next pass.
func (l *Loop) runTimers() {
	now := time.Now()

	l.mu.Lock()
	limit := l.nextTimerID
	l.mu.Unlock()

	for {
		l.mu.Lock()
		if len(l.timers) == 0 {
			l.mu.Unlock()
			return
		}
		t := l.timers[0]
		if t.when.After(now) || t.id > limit {
			l.mu.Unlock()
			return
		}
		heap.Pop(&l.timers)
		delete(l.timerByID, t.id)
		l.mu.Unlock()

		l.safeExecute(t.fn)
	}
}

// calculateTimeout returns the poll timeout in milliseconds. Must be called
// with l.mu held.
func (l *Loop) calculateTimeout() int {
	if l.tasks.Length() > 0 {
		return 0
	}

	maxDelay := l.opts.maxPollTimeout
	if len(l.timers) > 0 {
		delay := time.Until(l.timers[0].when)
		if delay <= 0 {
			return 0
		}
		if delay < maxDelay {
			maxDelay = delay
		}
	}

	// round sub-millisecond delays up, to avoid spinning
	if maxDelay > 0 && maxDelay < time.Millisecond {
		return 1
	}
	return int(maxDelay / time.Millisecond)
}
