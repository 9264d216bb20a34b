// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package mainloop adapts a callback-driven main loop abstraction, in the
// shape of PulseAudio's pa_mainloop_api, onto a single-goroutine
// [reactor.Loop].
//
// Foreign code is handed an [*API] vtable. Through it, it registers I/O
// watches keyed by file descriptor, one-shot timers at absolute deadlines,
// and deferred callbacks that run once per main loop iteration while
// enabled. Each registration returns a stable opaque handle ([*IOEvent],
// [*TimeEvent], [*DeferEvent]) which the foreign code later passes back to
// enable, restart, or free it.
//
// A [Mainloop] is not safe for concurrent use. All calls through its [API]
// and all of its methods, other than [Mainloop.Quit] and
// [Mainloop.Quitting], must happen on the reactor's goroutine, or while the
// reactor is not running. Callbacks are always invoked on the reactor's
// goroutine.
//
// Freeing a handle from within a callback (while dispatching) never runs
// the destroy callback reentrantly: it is delivered from a later task.
// Freeing outside of a dispatch destroys synchronously. Either way, every
// destroy callback runs exactly once, including on [Mainloop.Close].
//
// Misuse, such as passing a freed or foreign handle, is a contract violation
// and is reported as a panic carrying a [*ContractError], unless
// [WithFatalHandler] is used.
package mainloop
