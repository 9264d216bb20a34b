// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package mainloop

import (
	"maps"
	"slices"
	"time"

	"github.com/joeycumines/go-mainloop/reactor"
	"github.com/joeycumines/logiface"
	"go.uber.org/atomic"
)

// Reactor is the event loop a [Mainloop] runs on. It is implemented by
// [*reactor.Loop].
type Reactor interface {
	Submit(fn func()) error
	ScheduleTimer(delay time.Duration, fn func()) (reactor.TimerID, error)
	CancelTimer(id reactor.TimerID) error
	Register(fd int, interest reactor.IOEvents, onReady func()) (*reactor.Registration, error)
	InLoop() bool
}

// Mainloop binds the main loop vtable to a reactor. See the package
// documentation for its threading rules.
type Mainloop struct {
	reactor Reactor
	logger  *logiface.Logger[logiface.Event]
	opts    *mainloopOptions
	api     *API

	io       ioSubsystem
	timers   timerSubsystem
	deferred deferSubsystem

	// pending holds continuations (destroy notifications and timer
	// cancellations) submitted to the reactor but not yet run.
	pending   map[uint64]func()
	pendingID uint64

	quitCh   chan int
	quitting *atomic.Bool

	closed bool
}

// New creates a mainloop on r. The reactor must outlive the mainloop.
func New(r Reactor, opts ...Option) (*Mainloop, error) {
	if r == nil {
		return nil, ErrNilReactor
	}
	options, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	m := &Mainloop{
		reactor:  r,
		logger:   options.logger,
		opts:     options,
		pending:  make(map[uint64]func()),
		quitCh:   make(chan int, 1),
		quitting: atomic.NewBool(false),
	}
	m.api = newAPI(m)
	m.io.init(m)
	m.timers.init(m)
	m.deferred.init(m)
	return m, nil
}

// API returns the vtable to hand to foreign code.
func (m *Mainloop) API() *API { return m.api }

// Quit returns a channel that receives the code passed to the first quit
// call. It is delivered at most once.
func (m *Mainloop) Quit() <-chan int { return m.quitCh }

// Quitting reports whether quit has been requested. Safe for concurrent use.
func (m *Mainloop) Quitting() bool { return m.quitting.Load() }

func (m *Mainloop) requestQuit(code int) {
	if !m.quitting.CAS(false, true) {
		return
	}
	m.logger.Debug().Int("code", code).Log("mainloop: quit requested")
	select {
	case m.quitCh <- code:
	default:
	}
}

// Close tears down every registration, invoking each outstanding destroy
// callback exactly once, in the order deferred events, timers, then I/O
// watches. Tasks still queued on the reactor become no-ops. Close is
// idempotent.
func (m *Mainloop) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true

	m.logger.Debug().
		Int("io", len(m.io.events)).
		Int("timers", len(m.timers.events)).
		Int("deferred", len(m.deferred.records)).
		Log("mainloop: closing")

	m.flushPending()
	m.deferred.freeAll()
	m.flushPending()
	m.timers.freeAll()
	m.flushPending()
	m.io.freeAll()
	m.flushPending()

	return nil
}

func (m *Mainloop) checkOpen(op string) bool {
	if m.closed {
		violation(m, op, ErrClosed)
		return false
	}
	return true
}

// inDispatch reports whether the caller is running inside a reactor task,
// i.e. inside one of our callbacks.
func (m *Mainloop) inDispatch() bool {
	return m.reactor.InLoop()
}

// later runs fn from a fresh reactor task. Anything not yet run when the
// mainloop closes is run by Close. If the reactor refuses the task, fn runs
// immediately.
func (m *Mainloop) later(fn func()) {
	m.pendingID++
	id := m.pendingID
	m.pending[id] = fn
	if err := m.reactor.Submit(func() { m.runPending(id) }); err != nil {
		m.logger.Debug().Err(err).Log("mainloop: reactor rejected task, running inline")
		m.runPending(id)
	}
}

func (m *Mainloop) runPending(id uint64) {
	fn, ok := m.pending[id]
	if !ok {
		return
	}
	delete(m.pending, id)
	fn()
}

// flushPending runs pending continuations in submission order, until none
// remain.
func (m *Mainloop) flushPending() {
	for len(m.pending) > 0 {
		for _, id := range slices.Sorted(maps.Keys(m.pending)) {
			m.runPending(id)
		}
	}
}
