// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package mainloop

import (
	"context"

	"github.com/joeycumines/go-mainloop/reactor"
)

// RunUntilQuit runs loop on the calling goroutine until quit is called
// through m's vtable, then stops the loop and closes m, returning the quit
// code. If ctx is cancelled first, m is still closed, and ctx's error is
// returned.
func RunUntilQuit(ctx context.Context, loop *reactor.Loop, m *Mainloop) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		code     int
		quit     bool
		watching = make(chan struct{})
	)
	go func() {
		defer close(watching)
		select {
		case code = <-m.Quit():
			quit = true
			_ = loop.Shutdown(context.Background())
		case <-ctx.Done():
		}
	}()

	err := loop.Run(ctx)
	cancel()
	<-watching

	if cerr := m.Close(); err == nil {
		err = cerr
	}

	if quit {
		return code, nil
	}
	return 0, err
}
