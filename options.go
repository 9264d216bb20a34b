// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package mainloop

import (
	"errors"

	"github.com/joeycumines/logiface"
)

// Option configures a [Mainloop].
type Option interface {
	apply(*mainloopOptions) error
}

type mainloopOptions struct {
	logger         *logiface.Logger[logiface.Event]
	fatalHandler   func(*ContractError)
	deferredBudget int
}

type optionImpl struct {
	applyFunc func(*mainloopOptions) error
}

func (x *optionImpl) apply(opts *mainloopOptions) error {
	return x.applyFunc(opts)
}

// WithLogger sets the structured logger. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *mainloopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithFatalHandler replaces the default handling of contract violations,
// which is to log at critical level and panic with the [*ContractError].
// If the handler returns, the offending operation has no effect (and New
// operations return nil).
func WithFatalHandler(fn func(*ContractError)) Option {
	return &optionImpl{func(opts *mainloopOptions) error {
		opts.fatalHandler = fn
		return nil
	}}
}

// WithDeferredPassBudget bounds the number of deferred passes run by a
// single wake of the deferred drain task. Once exhausted, the drain yields
// to other work and continues in a later task. Zero means unbounded.
// Defaults to 4096.
func WithDeferredPassBudget(n int) Option {
	return &optionImpl{func(opts *mainloopOptions) error {
		if n < 0 {
			return errors.New("mainloop: deferred pass budget must not be negative")
		}
		opts.deferredBudget = n
		return nil
	}}
}

func resolveOptions(opts []Option) (*mainloopOptions, error) {
	cfg := &mainloopOptions{
		deferredBudget: 4096,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
