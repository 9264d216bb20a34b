// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package mainloop

import (
	"weak"
)

// ref is the heap cell behind every opaque handle. It refers back to the
// owning mainloop without keeping it alive, and never moves.
type ref struct {
	parent weak.Pointer[Mainloop]
}

func newRef(m *Mainloop) ref {
	return ref{parent: weak.Make(m)}
}

// resolve returns the owning mainloop, or nil if the handle was never issued
// or its mainloop is gone.
func (x *ref) resolve() *Mainloop {
	return x.parent.Value()
}

// IOEvent is the opaque handle of an I/O watch.
type IOEvent struct {
	ref
}

// TimeEvent is the opaque handle of a timer.
type TimeEvent struct {
	ref
}

// DeferEvent is the opaque handle of a deferred callback.
type DeferEvent struct {
	ref
}

func (e *IOEvent) mainloop(op string) *Mainloop {
	if e == nil {
		violation(nil, op, ErrNilHandle)
		return nil
	}
	return resolveRef(&e.ref, op)
}

func (e *TimeEvent) mainloop(op string) *Mainloop {
	if e == nil {
		violation(nil, op, ErrNilHandle)
		return nil
	}
	return resolveRef(&e.ref, op)
}

func (e *DeferEvent) mainloop(op string) *Mainloop {
	if e == nil {
		violation(nil, op, ErrNilHandle)
		return nil
	}
	return resolveRef(&e.ref, op)
}

func resolveRef(x *ref, op string) *Mainloop {
	m := x.resolve()
	if m == nil {
		violation(nil, op, ErrStaleHandle)
	}
	return m
}

// violation reports a contract violation, via m's fatal handler if m is
// known. Without a handler, or without m, it panics.
func violation(m *Mainloop, op string, err error) {
	ce := &ContractError{Op: op, Err: err}
	if m != nil {
		m.logger.Crit().Str("op", op).Err(err).Log("mainloop: contract violation")
		if m.opts.fatalHandler != nil {
			m.opts.fatalHandler(ce)
			return
		}
	}
	panic(ce)
}
