// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrLoopAlreadyRunning is returned by [Loop.Run] when the loop is
	// already running.
	ErrLoopAlreadyRunning = errors.New("reactor: loop is already running")

	// ErrLoopTerminated is returned when operations are attempted on a
	// loop that has been shut down.
	ErrLoopTerminated = errors.New("reactor: loop has been terminated")

	// ErrReentrantRun is returned when [Loop.Run] is called from within
	// the loop itself.
	ErrReentrantRun = errors.New("reactor: cannot call Run() from within the loop")

	// ErrTimerNotFound is returned by [Loop.CancelTimer] for timers that
	// have already fired, were cancelled, or never existed.
	ErrTimerNotFound = errors.New("reactor: timer not found")

	// ErrFDOutOfRange is returned for negative file descriptors.
	ErrFDOutOfRange = errors.New("reactor: fd out of range")

	// ErrFDAlreadyRegistered is returned when registering a descriptor
	// twice.
	ErrFDAlreadyRegistered = errors.New("reactor: fd already registered")

	// ErrFDNotRegistered is returned when modifying or removing a
	// descriptor that is not registered.
	ErrFDNotRegistered = errors.New("reactor: fd not registered")

	// ErrPollerClosed is returned after the poller has been closed.
	ErrPollerClosed = errors.New("reactor: poller closed")
)

// PanicError wraps a value recovered from a panicking task.
type PanicError struct {
	Value any
}

func (e PanicError) Error() string {
	return fmt.Sprintf("reactor: task panicked: %v", e.Value)
}

// Unwrap returns the recovered value if it is an error.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
