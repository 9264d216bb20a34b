// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"go.uber.org/atomic"
)

// LoopState represents the current state of the loop.
//
//	StateAwake → StateRunning           [Run()]
//	StateRunning → StateSleeping        [poll() via CAS]
//	StateSleeping → StateRunning        [poll() wake via CAS]
//	StateRunning → StateTerminating     [Shutdown()]
//	StateSleeping → StateTerminating    [Shutdown()]
//	StateTerminating → StateTerminated  [shutdown complete]
//
// Use TryTransition for the temporary states (Running, Sleeping) and Store
// only for the terminal one.
type LoopState uint64

const (
	// StateAwake indicates the loop has been created but not started.
	StateAwake LoopState = 0
	// StateTerminated indicates the loop has been stopped and is fully shut down.
	StateTerminated LoopState = 1
	// StateSleeping indicates the loop is blocked in poll waiting for events.
	StateSleeping LoopState = 2
	// StateRunning indicates the loop is actively processing tasks.
	StateRunning LoopState = 3
	// StateTerminating indicates shutdown has been requested but not completed.
	StateTerminating LoopState = 4
)

// String returns a human-readable representation of the state.
func (s LoopState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// fastState is a lock-free state machine.
type fastState struct {
	v *atomic.Uint64
}

func newFastState() fastState {
	return fastState{v: atomic.NewUint64(uint64(StateAwake))}
}

func (s fastState) Load() LoopState {
	return LoopState(s.v.Load())
}

// Store should only be used for StateTerminated.
func (s fastState) Store(state LoopState) {
	s.v.Store(uint64(state))
}

func (s fastState) TryTransition(from, to LoopState) bool {
	return s.v.CAS(uint64(from), uint64(to))
}

// TransitionAny attempts to move from any of the valid source states to the
// target, returning the source state on success.
func (s fastState) TransitionAny(validFrom []LoopState, to LoopState) (LoopState, bool) {
	for _, from := range validFrom {
		if s.v.CAS(uint64(from), uint64(to)) {
			return from, true
		}
	}
	return 0, false
}

// IsTerminal reports whether the state is terminal.
func (s fastState) IsTerminal() bool {
	return s.Load() == StateTerminated
}
