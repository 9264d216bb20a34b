// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
	"go.uber.org/atomic"
	"golang.org/x/sys/unix"
)

// Loop is a single-goroutine reactor. Construct with [New].
type Loop struct {
	logger       *logiface.Logger[logiface.Event]
	opts         *loopOptions
	panicLimiter *catrate.Limiter

	// tasks holds func() values, guarded by mu along with the timers.
	tasks       *queue.Queue
	timerByID   map[TimerID]*timer
	timers      timerHeap
	nextTimerID TimerID

	loopDone        chan struct{}
	wakePending     *atomic.Bool
	abort           *atomic.Bool
	loopGoroutineID *atomic.Uint64

	state  fastState
	poller poller

	mu       sync.Mutex
	stopOnce sync.Once
	doneOnce sync.Once
	fdOnce   sync.Once

	wakeFd      int
	wakeWriteFd int
}

// New creates a new loop. The loop does nothing until [Loop.Run] is called.
func New(opts ...LoopOption) (*Loop, error) {
	options, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}

	wakeFd, wakeWriteFd, err := createWakeFd()
	if err != nil {
		return nil, err
	}

	l := &Loop{
		logger:          options.logger,
		opts:            options,
		tasks:           queue.New(),
		timerByID:       make(map[TimerID]*timer),
		loopDone:        make(chan struct{}),
		wakePending:     atomic.NewBool(false),
		abort:           atomic.NewBool(false),
		loopGoroutineID: atomic.NewUint64(0),
		state:           newFastState(),
		wakeFd:          wakeFd,
		wakeWriteFd:     wakeWriteFd,
	}
	if options.panicHandler == nil {
		l.panicLimiter = catrate.NewLimiter(map[time.Duration]int{
			time.Second: 10,
			time.Minute: 100,
		})
	}

	if err := l.poller.init(); err != nil {
		l.closeWakeFds()
		return nil, err
	}

	if err := l.poller.register(wakeFd, EventRead, l.onWake); err != nil {
		_ = l.poller.close()
		l.closeWakeFds()
		return nil, err
	}

	return l, nil
}

// Run runs the loop on the calling goroutine, until [Loop.Shutdown] or
// [Loop.Close] is called, or ctx is cancelled. In the latter case ctx.Err()
// is returned.
func (l *Loop) Run(ctx context.Context) error {
	if l.InLoop() {
		return ErrReentrantRun
	}

	if !l.state.TryTransition(StateAwake, StateRunning) {
		switch l.state.Load() {
		case StateTerminated, StateTerminating:
			return ErrLoopTerminated
		default:
			return ErrLoopAlreadyRunning
		}
	}

	defer l.doneOnce.Do(func() { close(l.loopDone) })

	return l.run(ctx)
}

func (l *Loop) run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	l.loopGoroutineID.Store(getGoroutineID())
	defer l.loopGoroutineID.Store(0)

	l.logger.Debug().Log("reactor: loop started")

	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		select {
		case <-ctx.Done():
			l.requestStop()
		case <-stopWatch:
		}
	}()

	for l.state.Load() != StateTerminating {
		l.tick()
	}

	l.terminate()

	l.logger.Debug().Log("reactor: loop stopped")

	return ctx.Err()
}

func (l *Loop) tick() {
	l.runTimers()
	l.runTasks()
	l.poll()
}

// runTasks runs the tasks queued when the pass started.
func (l *Loop) runTasks() int {
	l.mu.Lock()
	n := l.tasks.Length()
	batch := make([]func(), n)
	for i := range batch {
		batch[i] = l.tasks.Remove().(func())
	}
	l.mu.Unlock()

	for _, fn := range batch {
		l.safeExecute(fn)
	}
	return n
}

func (l *Loop) poll() {
	if !l.state.TryTransition(StateRunning, StateSleeping) {
		return
	}

	// the state must be Sleeping before the queue is checked, see Submit
	l.mu.Lock()
	timeout := l.calculateTimeout()
	l.mu.Unlock()

	_, err := l.poller.poll(timeout)

	l.state.TryTransition(StateSleeping, StateRunning)

	if err != nil {
		l.logger.Err().Err(err).Log("reactor: poll failed")
		l.requestStop()
	}
}

func (l *Loop) onWake(IOEvents) {
	drainWake(l.wakeFd)
	l.wakePending.Store(false)
}

// Submit queues fn to run on the loop. Safe to call from any goroutine,
// including the loop itself, in which case fn runs on the next pass.
func (l *Loop) Submit(fn func()) error {
	if fn == nil {
		return nil
	}

	l.mu.Lock()
	if l.state.IsTerminal() {
		l.mu.Unlock()
		return ErrLoopTerminated
	}
	l.tasks.Add(fn)
	l.wakeIfSleepingLocked()
	l.mu.Unlock()

	return nil
}

// wakeIfSleepingLocked must be called with l.mu held, which also guards the
// wake fd against being closed.
func (l *Loop) wakeIfSleepingLocked() {
	if l.state.Load() == StateSleeping && l.wakePending.CAS(false, true) {
		l.wakeLocked()
	}
}

func (l *Loop) wakeLocked() {
	if l.state.IsTerminal() {
		return
	}
	if err := writeWake(l.wakeWriteFd); err != nil {
		l.logger.Err().Err(err).Log("reactor: wake-up write failed")
	}
}

// requestStop transitions a running loop to Terminating and wakes it.
func (l *Loop) requestStop() bool {
	if _, ok := l.state.TransitionAny([]LoopState{StateRunning, StateSleeping}, StateTerminating); !ok {
		return false
	}
	l.mu.Lock()
	l.wakeLocked()
	l.mu.Unlock()
	return true
}

// terminate runs on the loop goroutine once Terminating is observed.
func (l *Loop) terminate() {
	if !l.abort.Load() {
		for i := 0; i < l.opts.shutdownDrainRounds; i++ {
			if l.runTasks() == 0 {
				break
			}
		}
	}

	l.mu.Lock()
	l.state.Store(StateTerminated)
	dropped := l.tasks.Length()
	for l.tasks.Length() > 0 {
		l.tasks.Remove()
	}
	timers := len(l.timers)
	l.timers = nil
	clear(l.timerByID)
	l.closeFDs()
	l.mu.Unlock()

	if dropped > 0 || timers > 0 {
		l.logger.Warning().
			Int("tasks", dropped).
			Int("timers", timers).
			Log("reactor: discarded pending work on shutdown")
	}
}

// Shutdown gracefully stops the loop, running queued tasks (for a bounded
// number of rounds) before it exits, and waits for the loop to finish.
// Called from the loop itself, it requests the stop and returns immediately.
func (l *Loop) Shutdown(ctx context.Context) error {
	var result = ErrLoopTerminated
	l.stopOnce.Do(func() {
		result = l.shutdownImpl(ctx)
	})
	return result
}

// Close stops the loop without running queued tasks.
func (l *Loop) Close() error {
	l.abort.Store(true)
	var result = ErrLoopTerminated
	l.stopOnce.Do(func() {
		result = l.shutdownImpl(context.Background())
	})
	return result
}

func (l *Loop) shutdownImpl(ctx context.Context) error {
	if l.state.TryTransition(StateAwake, StateTerminated) {
		l.mu.Lock()
		for l.tasks.Length() > 0 {
			l.tasks.Remove()
		}
		l.timers = nil
		clear(l.timerByID)
		l.closeFDs()
		l.mu.Unlock()
		l.doneOnce.Do(func() { close(l.loopDone) })
		return nil
	}

	if !l.requestStop() && l.state.IsTerminal() {
		return ErrLoopTerminated
	}

	if l.InLoop() {
		return nil
	}

	select {
	case <-l.loopDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel closed once the loop has terminated.
func (l *Loop) Done() <-chan struct{} { return l.loopDone }

// State returns the current state of the loop.
func (l *Loop) State() LoopState { return l.state.Load() }

// InLoop reports whether the caller is running on the loop goroutine, i.e.
// inside a task, timer, or readiness callback.
func (l *Loop) InLoop() bool {
	loopID := l.loopGoroutineID.Load()
	if loopID == 0 {
		return false
	}
	return getGoroutineID() == loopID
}

func (l *Loop) safeExecute(fn func()) {
	if fn == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			l.handlePanic(PanicError{Value: r})
		}
	}()

	fn()
}

func (l *Loop) handlePanic(p PanicError) {
	if l.opts.panicHandler != nil {
		l.opts.panicHandler(p)
		return
	}
	if _, ok := l.panicLimiter.Allow(`panic`); !ok {
		return
	}
	l.logger.Err().
		Any("panic", p.Value).
		Str("stack", string(debug.Stack())).
		Log("reactor: task panicked")
}

func (l *Loop) closeFDs() {
	l.fdOnce.Do(func() {
		_ = l.poller.close()
		l.closeWakeFds()
	})
}

func (l *Loop) closeWakeFds() {
	_ = unix.Close(l.wakeFd)
	if l.wakeWriteFd != l.wakeFd {
		_ = unix.Close(l.wakeWriteFd)
	}
}

// getGoroutineID parses the current goroutine's ID from its stack header.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
