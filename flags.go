// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package mainloop

import (
	"strings"

	"github.com/joeycumines/go-mainloop/reactor"
	"golang.org/x/sys/unix"
)

// IOEventFlags is the bit set of I/O conditions, as exchanged with foreign
// code. The values are fixed.
type IOEventFlags uint32

const (
	IOEventNull   IOEventFlags = 0
	IOEventInput  IOEventFlags = 1
	IOEventOutput IOEventFlags = 2
	IOEventHangup IOEventFlags = 4
	IOEventError  IOEventFlags = 8
)

func (f IOEventFlags) String() string {
	if f == IOEventNull {
		return "null"
	}
	var parts []string
	if f&IOEventInput != 0 {
		parts = append(parts, "input")
	}
	if f&IOEventOutput != 0 {
		parts = append(parts, "output")
	}
	if f&IOEventHangup != 0 {
		parts = append(parts, "hangup")
	}
	if f&IOEventError != 0 {
		parts = append(parts, "error")
	}
	return strings.Join(parts, "|")
}

// toReactor converts to the reactor's event set. Input and output map to
// read and write, and the error and hangup bits are carried through, so
// they can be matched against reported readiness.
func (f IOEventFlags) toReactor() reactor.IOEvents {
	var events reactor.IOEvents
	if f&IOEventInput != 0 {
		events |= reactor.EventRead
	}
	if f&IOEventOutput != 0 {
		events |= reactor.EventWrite
	}
	if f&IOEventHangup != 0 {
		events |= reactor.EventHangup
	}
	if f&IOEventError != 0 {
		events |= reactor.EventError
	}
	return events
}

func flagsFromReactor(events reactor.IOEvents) IOEventFlags {
	var f IOEventFlags
	if events&reactor.EventRead != 0 {
		f |= IOEventInput
	}
	if events&reactor.EventWrite != 0 {
		f |= IOEventOutput
	}
	if events&reactor.EventHangup != 0 {
		f |= IOEventHangup
	}
	if events&reactor.EventError != 0 {
		f |= IOEventError
	}
	return f
}

// pollEvents returns the poll(2) request bits for interest. Error and hangup
// are always reported by poll, a peer half-close only when hangup is wanted.
func pollEvents(interest reactor.IOEvents) int16 {
	var events int16
	if interest&reactor.EventHangup != 0 {
		events |= pollRDHUP
	}
	if interest&reactor.EventRead != 0 {
		events |= unix.POLLIN
	}
	if interest&reactor.EventWrite != 0 {
		events |= unix.POLLOUT
	}
	return events
}

// eventsFromPoll converts poll(2) result bits. POLLNVAL counts as an error,
// and a peer half-close as a hangup, matching the reactor's pollers.
func eventsFromPoll(revents int16) reactor.IOEvents {
	var events reactor.IOEvents
	if revents&unix.POLLIN != 0 {
		events |= reactor.EventRead
	}
	if revents&unix.POLLOUT != 0 {
		events |= reactor.EventWrite
	}
	if revents&(unix.POLLHUP|pollRDHUP) != 0 {
		events |= reactor.EventHangup
	}
	if revents&(unix.POLLERR|unix.POLLNVAL) != 0 {
		events |= reactor.EventError
	}
	return events
}
