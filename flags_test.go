// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package mainloop

import (
	"testing"

	"github.com/joeycumines/go-mainloop/reactor"
	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestIOEventFlags_values(t *testing.T) {
	assert.Equal(t, IOEventFlags(0), IOEventNull)
	assert.Equal(t, IOEventFlags(1), IOEventInput)
	assert.Equal(t, IOEventFlags(2), IOEventOutput)
	assert.Equal(t, IOEventFlags(4), IOEventHangup)
	assert.Equal(t, IOEventFlags(8), IOEventError)
}

func TestIOEventFlags_String(t *testing.T) {
	assert.Equal(t, "null", IOEventNull.String())
	assert.Equal(t, "input|output", (IOEventInput | IOEventOutput).String())
	assert.Equal(t, "input|output|hangup|error", (IOEventInput | IOEventOutput | IOEventHangup | IOEventError).String())
}

func TestIOEventFlags_reactorRoundTrip(t *testing.T) {
	for f := IOEventNull; f <= IOEventInput|IOEventOutput|IOEventHangup|IOEventError; f++ {
		assert.Equal(t, f, flagsFromReactor(f.toReactor()), f.String())
	}
	assert.Equal(t, reactor.EventRead|reactor.EventHangup, (IOEventInput | IOEventHangup).toReactor())
}

func TestPollConversion(t *testing.T) {
	assert.Equal(t, int16(unix.POLLIN|pollRDHUP), pollEvents(reactor.EventRead|reactor.EventHangup))
	assert.Equal(t, int16(unix.POLLIN), pollEvents(reactor.EventRead|reactor.EventError))
	assert.Equal(t, int16(unix.POLLIN|unix.POLLOUT), pollEvents(reactor.EventRead|reactor.EventWrite))
	assert.Zero(t, pollEvents(reactor.EventError))

	assert.Equal(t, reactor.EventRead|reactor.EventWrite, eventsFromPoll(unix.POLLIN|unix.POLLOUT))
	assert.Equal(t, reactor.EventHangup, eventsFromPoll(unix.POLLHUP))
	assert.Equal(t, reactor.EventError, eventsFromPoll(unix.POLLERR))
	assert.Equal(t, reactor.EventError, eventsFromPoll(unix.POLLNVAL))
}
