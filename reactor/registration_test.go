// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestRegister_edgeSetsReadyCache(t *testing.T) {
	loop := startLoop(t)
	r, w := newPipe(t)

	notified := make(chan struct{}, 16)
	var reg *Registration
	var err error
	onLoop(t, loop, func() {
		reg, err = loop.Register(r, EventRead, func() { notified <- struct{}{} })
	})
	require.NoError(t, err)

	_, err = unix.Write(w, []byte("x"))
	require.NoError(t, err)

	select {
	case <-notified:
	case <-time.After(5 * time.Second):
		t.Fatal("no readiness notification")
	}

	onLoop(t, loop, func() {
		assert.Equal(t, r, reg.FD())
		assert.Equal(t, EventRead, reg.Interest())
		assert.NotZero(t, reg.Ready()&EventRead)

		// edge-triggered, so the cache stays set until cleared
		reg.ClearReady(EventRead)
		assert.Zero(t, reg.Ready()&EventRead)
	})

	// another write is a new edge
	_, err = unix.Write(w, []byte("y"))
	require.NoError(t, err)
	select {
	case <-notified:
	case <-time.After(5 * time.Second):
		t.Fatal("no readiness notification")
	}
	onLoop(t, loop, func() {
		assert.NotZero(t, reg.Ready()&EventRead)
		assert.NoError(t, reg.Deregister())
		assert.False(t, reg.Active())
		assert.ErrorIs(t, reg.Deregister(), ErrFDNotRegistered)
		assert.ErrorIs(t, reg.SetInterest(EventWrite), ErrFDNotRegistered)
	})
}

func TestRegister_setInterestReportsWritable(t *testing.T) {
	loop := startLoop(t)
	_, w := newPipe(t)

	notified := make(chan struct{}, 16)
	var reg *Registration
	var err error
	onLoop(t, loop, func() {
		reg, err = loop.Register(w, 0, func() { notified <- struct{}{} })
	})
	require.NoError(t, err)
	onLoop(t, loop, func() {
		assert.NoError(t, reg.SetInterest(EventWrite))
		assert.Equal(t, EventWrite, reg.Interest())
		// unchanged
		assert.NoError(t, reg.SetInterest(EventWrite))
	})

	select {
	case <-notified:
	case <-time.After(5 * time.Second):
		t.Fatal("no writable notification")
	}
	onLoop(t, loop, func() {
		assert.NotZero(t, reg.Ready()&EventWrite)
		assert.NoError(t, reg.Deregister())
	})
}

func TestRegister_errors(t *testing.T) {
	loop := startLoop(t)
	r, _ := newPipe(t)

	_, err := loop.Register(-1, EventRead, nil)
	assert.ErrorIs(t, err, ErrFDOutOfRange)

	reg, err := loop.Register(r, EventRead, nil)
	require.NoError(t, err)
	_, err = loop.Register(r, EventRead, nil)
	assert.ErrorIs(t, err, ErrFDAlreadyRegistered)
	require.NoError(t, reg.Deregister())
}

func TestIOEvents_String(t *testing.T) {
	assert.Equal(t, "none", IOEvents(0).String())
	assert.Equal(t, "read|write", (EventRead | EventWrite).String())
	assert.Equal(t, "error|hangup", (EventError | EventHangup).String())
}
