// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"errors"
	"time"

	"github.com/joeycumines/logiface"
)

// loopOptions holds configuration options for Loop creation.
type loopOptions struct {
	logger              *logiface.Logger[logiface.Event]
	panicHandler        func(PanicError)
	maxPollTimeout      time.Duration
	shutdownDrainRounds int
}

// LoopOption configures a Loop instance.
type LoopOption interface {
	applyLoop(*loopOptions) error
}

// loopOptionImpl implements LoopOption.
type loopOptionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (l *loopOptionImpl) applyLoop(opts *loopOptions) error {
	return l.applyLoopFunc(opts)
}

// WithLogger sets the structured logger for the loop. A nil logger disables
// logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithPanicHandler replaces the default handling of panics recovered from
// tasks, timers and readiness callbacks, which is to log them (rate
// limited). The loop keeps running after the handler returns.
func WithPanicHandler(fn func(PanicError)) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.panicHandler = fn
		return nil
	}}
}

// WithMaxPollTimeout caps how long a single poll may block. Defaults to 10s.
func WithMaxPollTimeout(d time.Duration) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if d <= 0 {
			return errors.New("reactor: max poll timeout must be positive")
		}
		opts.maxPollTimeout = d
		return nil
	}}
}

// WithShutdownDrainRounds sets how many rounds of queued tasks will be run
// during a graceful shutdown, allowing tasks submitted by other tasks (such
// as cleanup notifications) to complete. Defaults to 16.
func WithShutdownDrainRounds(n int) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if n < 0 {
			return errors.New("reactor: shutdown drain rounds must not be negative")
		}
		opts.shutdownDrainRounds = n
		return nil
	}}
}

// resolveLoopOptions applies LoopOption instances to loopOptions.
func resolveLoopOptions(opts []LoopOption) (*loopOptions, error) {
	cfg := &loopOptions{
		maxPollTimeout:      10 * time.Second,
		shutdownDrainRounds: 16,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
