// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package session

import (
	"errors"
	"time"

	"github.com/joeycumines/logiface"
)

// Option configures a [Context].
type Option interface {
	apply(*contextOptions) error
}

type contextOptions struct {
	logger         *logiface.Logger[logiface.Event]
	connectTimeout time.Duration
}

type optionImpl struct {
	applyFunc func(*contextOptions) error
}

func (x *optionImpl) apply(opts *contextOptions) error {
	return x.applyFunc(opts)
}

// WithLogger sets the structured logger.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *contextOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithConnectTimeout bounds the time from Connect until Ready. Zero disables
// the timeout. Defaults to 5s.
func WithConnectTimeout(d time.Duration) Option {
	return &optionImpl{func(opts *contextOptions) error {
		if d < 0 {
			return errors.New("session: connect timeout must not be negative")
		}
		opts.connectTimeout = d
		return nil
	}}
}

func resolveOptions(opts []Option) (*contextOptions, error) {
	cfg := &contextOptions{
		connectTimeout: 5 * time.Second,
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
