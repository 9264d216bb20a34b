// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package mainloop

import (
	"errors"
)

var (
	// ErrNilHandle indicates a nil handle or vtable was passed.
	ErrNilHandle = errors.New("mainloop: nil handle")

	// ErrStaleHandle indicates a handle whose mainloop no longer exists, or
	// that was never issued by a mainloop.
	ErrStaleHandle = errors.New("mainloop: handle does not belong to a live mainloop")

	// ErrUnknownHandle indicates a handle that is not registered with its
	// mainloop, e.g. because it was already freed.
	ErrUnknownHandle = errors.New("mainloop: handle is not registered")

	// ErrDoubleFree indicates a handle was freed twice.
	ErrDoubleFree = errors.New("mainloop: handle freed twice")

	// ErrInvalidArgument indicates an invalid argument, e.g. a negative fd
	// or a nil callback.
	ErrInvalidArgument = errors.New("mainloop: invalid argument")

	// ErrClosed indicates a registration was attempted after Close.
	ErrClosed = errors.New("mainloop: closed")

	// ErrNilReactor is returned by New if no reactor was provided.
	ErrNilReactor = errors.New("mainloop: nil reactor")
)

// ContractError reports misuse of the main loop API by its caller.
type ContractError struct {
	Err error
	Op  string
}

func (e *ContractError) Error() string {
	return "mainloop: contract violation in " + e.Op + ": " + e.Err.Error()
}

func (e *ContractError) Unwrap() error { return e.Err }
