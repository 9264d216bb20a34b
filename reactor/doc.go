// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package reactor implements a single-goroutine event loop with an
// edge-triggered I/O poller, a timer heap, and a goroutine-safe task queue.
//
// All callbacks (tasks, timers, and readiness notifications) run on the
// goroutine that called [Loop.Run]. The poller registers descriptors
// edge-triggered (EPOLLET on Linux, EV_CLEAR on Darwin), so each
// [Registration] keeps a readiness cache that the kernel sets on every edge
// and the owner clears via [Registration.ClearReady] once a direction has
// been observed not ready.
//
// The tick order is: expired timers, queued tasks (a snapshot, so tasks
// submitted mid-pass run on the next pass), then poll. The poll blocks only
// when no tasks are queued.
package reactor
