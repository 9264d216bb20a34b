// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux

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

// poller manages edge-triggered I/O registration using epoll.
//
// Callbacks are copied under the read lock and invoked outside it, so a
// callback may still run once after unregister returns, if it was already
// collected by the same poll.
type poller struct {
	epfd     int
	eventBuf [256]unix.EpollEvent
	fdMu     sync.RWMutex
	fds      map[int]*fdInfo
	closed   *atomic.Bool
}

func (p *poller) init() error {
	p.closed = atomic.NewBool(false)
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}
	p.epfd = epfd
	p.fds = make(map[int]*fdInfo)
	return nil
}

func (p *poller) close() error {
	if !p.closed.CAS(false, true) {
		return nil
	}
	return unix.Close(p.epfd)
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

	ev := unix.EpollEvent{
		Events: eventsToEpoll(events),
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return err
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

	if _, ok := p.fds[fd]; !ok {
		return ErrFDNotRegistered
	}
	delete(p.fds, fd)

	if p.closed.Load() {
		return nil
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// modify replaces the monitored events. EPOLL_CTL_MOD re-evaluates the
// descriptor, so an already ready direction produces a fresh edge.
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

	ev := unix.EpollEvent{
		Events: eventsToEpoll(events),
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return err
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

	n, err := unix.EpollWait(p.epfd, p.eventBuf[:], timeoutMs)
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
		fd := int(p.eventBuf[i].Fd)

		p.fdMu.RLock()
		var cb func(IOEvents)
		if info, ok := p.fds[fd]; ok {
			cb = info.callback
		}
		p.fdMu.RUnlock()

		if cb != nil {
			cb(epollToEvents(p.eventBuf[i].Events))
		}
	}
}

// eventsToEpoll converts IOEvents to edge-triggered epoll flags. Error and
// hangup are always reported by the kernel.
func eventsToEpoll(events IOEvents) uint32 {
	epollEvents := uint32(unix.EPOLLET | unix.EPOLLRDHUP)
	if events&EventRead != 0 {
		epollEvents |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		epollEvents |= unix.EPOLLOUT
	}
	return epollEvents
}

func epollToEvents(epollEvents uint32) IOEvents {
	var events IOEvents
	if epollEvents&unix.EPOLLIN != 0 {
		events |= EventRead
	}
	if epollEvents&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if epollEvents&unix.EPOLLERR != 0 {
		events |= EventError
	}
	if epollEvents&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		events |= EventHangup
	}
	return events
}
