// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build darwin

package reactor

import (
	"sync"

	"go.uber.org/atomic"
	"golang.org/x/sys/unix"
)

// fdInfo stores per-FD callback information.
type fdInfo struct {
	callback func(IOEvents)
	events   IOEvents
}

// poller manages edge-triggered I/O registration using kqueue. Filters are
// added with EV_CLEAR, so each filter reports once per state change.
type poller struct {
	kq       int
	eventBuf [256]unix.Kevent_t
	fdMu     sync.RWMutex
	fds      map[int]*fdInfo
	closed   *atomic.Bool
}

func (p *poller) init() error {
	p.closed = atomic.NewBool(false)
	kq, err := unix.Kqueue()
	if err != nil {
		return err
	}
	unix.CloseOnExec(kq)
	p.kq = kq
	p.fds = make(map[int]*fdInfo)
	return nil
}

func (p *poller) close() error {
	if !p.closed.CAS(false, true) {
		return nil
	}
	return unix.Close(p.kq)
}

func (p *poller) register(fd int, events IOEvents, cb func(IOEvents)) error {
	if p.closed.Load() {
		return ErrPollerClosed
	}
	if fd < 0 {
		return ErrFDOutOfRange
	}

	p.fdMu.Lock()
	defer p.fdMu.Unlock()

	if _, ok := p.fds[fd]; ok {
		return ErrFDAlreadyRegistered
	}

	if kevents := eventsToKevents(fd, events, unix.EV_ADD|unix.EV_ENABLE|unix.EV_CLEAR); len(kevents) > 0 {
		if _, err := unix.Kevent(p.kq, kevents, nil, nil); err != nil {
			return err
		}
	}

	p.fds[fd] = &fdInfo{callback: cb, events: events}
	return nil
}

func (p *poller) unregister(fd int) error {
	if fd < 0 {
		return ErrFDOutOfRange
	}

	p.fdMu.Lock()
	defer p.fdMu.Unlock()

	info, ok := p.fds[fd]
	if !ok {
		return ErrFDNotRegistered
	}
	delete(p.fds, fd)

	if p.closed.Load() {
		return nil
	}
	if kevents := eventsToKevents(fd, info.events, unix.EV_DELETE); len(kevents) > 0 {
		_, _ = unix.Kevent(p.kq, kevents, nil, nil)
	}
	return nil
}

// modify adds and removes filters to match events. A newly added filter
// reports immediately if the direction is already ready.
func (p *poller) modify(fd int, events IOEvents) error {
	if p.closed.Load() {
		return ErrPollerClosed
	}

	p.fdMu.Lock()
	defer p.fdMu.Unlock()

	info, ok := p.fds[fd]
	if !ok {
		return ErrFDNotRegistered
	}

	if del := eventsToKevents(fd, info.events&^events, unix.EV_DELETE); len(del) > 0 {
		_, _ = unix.Kevent(p.kq, del, nil, nil)
	}
	if add := eventsToKevents(fd, events&^info.events, unix.EV_ADD|unix.EV_ENABLE|unix.EV_CLEAR); len(add) > 0 {
		if _, err := unix.Kevent(p.kq, add, nil, nil); err != nil {
			return err
		}
	}
	info.events = events
	return nil
}

// poll waits up to timeoutMs (-1 blocks) and dispatches inline, returning
// the number of events received.
func (p *poller) poll(timeoutMs int) (int, error) {
	if p.closed.Load() {
		return 0, ErrPollerClosed
	}

	var ts *unix.Timespec
	if timeoutMs >= 0 {
		ts = &unix.Timespec{
			Sec:  int64(timeoutMs / 1000),
			Nsec: int64((timeoutMs % 1000) * 1000000),
		}
	}

	n, err := unix.Kevent(p.kq, nil, p.eventBuf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}

	p.dispatchEvents(n)

	return n, nil
}

func (p *poller) dispatchEvents(n int) {
	for i := 0; i < n; i++ {
		fd := int(p.eventBuf[i].Ident)

		p.fdMu.RLock()
		var cb func(IOEvents)
		if info, ok := p.fds[fd]; ok {
			cb = info.callback
		}
		p.fdMu.RUnlock()

		if cb != nil {
			cb(keventToEvents(&p.eventBuf[i]))
		}
	}
}

func eventsToKevents(fd int, events IOEvents, flags uint16) []unix.Kevent_t {
	var kevents []unix.Kevent_t
	if events&EventRead != 0 {
		kevents = append(kevents, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: unix.EVFILT_READ,
			Flags:  flags,
		})
	}
	if events&EventWrite != 0 {
		kevents = append(kevents, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: unix.EVFILT_WRITE,
			Flags:  flags,
		})
	}
	return kevents
}

func keventToEvents(kev *unix.Kevent_t) IOEvents {
	var events IOEvents
	switch kev.Filter {
	case unix.EVFILT_READ:
		events |= EventRead
	case unix.EVFILT_WRITE:
		events |= EventWrite
	}
	if kev.Flags&unix.EV_ERROR != 0 {
		events |= EventError
	}
	if kev.Flags&unix.EV_EOF != 0 {
		events |= EventHangup
	}
	return events
}
