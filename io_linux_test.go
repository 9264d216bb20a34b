// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package mainloop

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestIO_registrationFailureReportsError(t *testing.T) {
	loop, m := newRunningMainloop(t)
	a := m.API()

	// epoll refuses regular files
	f, err := os.Create(filepath.Join(t.TempDir(), "regular"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	fd := int(f.Fd())

	got := make(chan IOEventFlags, 4)
	onLoop(t, loop, func() {
		e := a.IONew(a, fd, IOEventInput, func(_ *API, _ *IOEvent, _ int, events IOEventFlags, _ any) {
			got <- events
		}, nil)
		assert.NotNil(t, e)
	})

	select {
	case events := <-got:
		assert.Equal(t, IOEventError, events)
	case <-time.After(5 * time.Second):
		t.Fatal("no error reported")
	}

	// reported once
	select {
	case events := <-got:
		t.Fatalf("unexpected callback: %v", events)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestIO_hangupOnPeerHalfClose(t *testing.T) {
	loop, m := newRunningMainloop(t)
	a := m.API()
	fd, peer := newSocketpair(t)

	got := make(chan IOEventFlags, 1)
	onLoop(t, loop, func() {
		a.IONew(a, fd, IOEventHangup, func(a *API, e *IOEvent, _ int, events IOEventFlags, _ any) {
			a.IOFree(e)
			got <- events
		}, nil)
	})

	require.NoError(t, unix.Shutdown(peer, unix.SHUT_WR))

	select {
	case events := <-got:
		assert.Equal(t, IOEventHangup, events)
	case <-time.After(5 * time.Second):
		t.Fatal("hangup-only watch never fired")
	}
}

func TestEventsFromPoll_rdhup(t *testing.T) {
	assert.Equal(t, IOEventHangup, flagsFromReactor(eventsFromPoll(unix.POLLRDHUP)))
	assert.Equal(t, IOEventInput|IOEventHangup, flagsFromReactor(eventsFromPoll(unix.POLLIN|unix.POLLRDHUP)))
}
