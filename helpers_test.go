// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package mainloop

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/go-mainloop/reactor"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (x *syncBuffer) Write(p []byte) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.Write(p)
}

func (x *syncBuffer) String() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.String()
}

func newTestLogger(w *syncBuffer) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w), stumpy.WithTimeField(``)),
		stumpy.L.WithLevel(logiface.LevelDebug),
	).Logger()
}

// newIdleMainloop returns a mainloop on a reactor that is never run, so API
// calls may be made directly from the test goroutine.
func newIdleMainloop(t *testing.T, opts ...Option) (*reactor.Loop, *Mainloop) {
	t.Helper()
	loop, err := reactor.New()
	require.NoError(t, err)
	m, err := New(loop, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = m.Close()
		_ = loop.Close()
	})
	return loop, m
}

// newRunningMainloop returns a mainloop on a running reactor. API calls must
// be made via onLoop.
func newRunningMainloop(t *testing.T, opts ...Option) (*reactor.Loop, *Mainloop) {
	t.Helper()
	loop, err := reactor.New()
	require.NoError(t, err)
	m, err := New(loop, opts...)
	require.NoError(t, err)
	runErr := make(chan error, 1)
	go func() { runErr <- loop.Run(context.Background()) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = loop.Shutdown(ctx)
		select {
		case <-runErr:
		case <-ctx.Done():
			t.Error("loop did not stop")
		}
		_ = m.Close()
	})
	return loop, m
}

// onLoop runs fn on the loop and waits for it to return. Use assert, not
// require, within fn.
func onLoop(t *testing.T, loop *reactor.Loop, fn func()) {
	t.Helper()
	done := make(chan struct{})
	require.NoError(t, loop.Submit(func() {
		defer close(done)
		fn()
	}))
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for loop")
	}
}

// eventually polls cond on the loop until it holds.
func eventually(t *testing.T, loop *reactor.Loop, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		var ok bool
		onLoop(t, loop, func() { ok = cond() })
		if ok {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(time.Millisecond)
	}
}

// requireViolation asserts that fn panics with a contract violation matching
// target.
func requireViolation(t *testing.T, target error, fn func()) {
	t.Helper()
	var recovered any
	func() {
		defer func() { recovered = recover() }()
		fn()
	}()
	require.NotNil(t, recovered, "expected a contract violation")
	err, ok := recovered.(error)
	require.True(t, ok, "unexpected panic value: %v", recovered)
	var ce *ContractError
	require.True(t, errors.As(err, &ce), "unexpected panic: %v", err)
	require.ErrorIs(t, err, target)
}

func newPipe(t *testing.T) (r, w int) {
	t.Helper()
	var fds [2]int
	require.NoError(t, unix.Pipe(fds[:]))
	require.NoError(t, unix.SetNonblock(fds[0], true))
	require.NoError(t, unix.SetNonblock(fds[1], true))
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func newSocketpair(t *testing.T) (a, b int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	require.NoError(t, unix.SetNonblock(fds[0], true))
	require.NoError(t, unix.SetNonblock(fds[1], true))
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}
