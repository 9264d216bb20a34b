// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package session

import (
	"bytes"
	"errors"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/eapache/queue"
	"github.com/joeycumines/go-mainloop"
	"github.com/joeycumines/logiface"
	"golang.org/x/sys/unix"
)

// ProtocolVersion is sent in the AUTH handshake.
const ProtocolVersion = 1

const maxLineLength = 4096

// Context is a client session. It is driven entirely by the
// [mainloop.API] it was created with, and every method must be called from
// that mainloop's dispatch goroutine.
type Context struct {
	api     *mainloop.API
	logger  *logiface.Logger[logiface.Event]
	name    string
	timeout time.Duration

	state State
	errno Errno
	freed bool

	fd    int
	io    *mainloop.IOEvent
	timer *mainloop.TimeEvent
	out   []byte
	in    []byte

	notify  *mainloop.DeferEvent
	changes *queue.Queue
	subs    map[uint64]func(State)
	nextSub uint64
}

// New returns an unconnected session that identifies itself as name.
func New(api *mainloop.API, name string, opts ...Option) (*Context, error) {
	if api == nil {
		return nil, errors.New("session: nil api")
	}
	if name == "" || strings.ContainsAny(name, "\r\n") {
		return nil, ErrInvalid
	}
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	c := &Context{
		api:     api,
		logger:  cfg.logger,
		name:    name,
		timeout: cfg.connectTimeout,
		fd:      -1,
		changes: queue.New(),
		subs:    make(map[uint64]func(State)),
	}
	c.notify = api.DeferNew(api, contextNotify, c)
	if c.notify == nil {
		return nil, errors.New("session: failed to create notify event")
	}
	api.DeferEnable(c.notify, false)
	return c, nil
}

// Name returns the client name.
func (c *Context) Name() string { return c.name }

// State returns the current state.
func (c *Context) State() State { return c.state }

// Errno returns the code of the last failure, or [OK].
func (c *Context) Errno() Errno { return c.errno }

// Subscribe registers fn to receive every subsequent state change, in
// order. Changes are delivered from a deferred event, never from within the
// call that caused them. The returned func unsubscribes.
func (c *Context) Subscribe(fn func(State)) (cancel func()) {
	if fn == nil || c.freed {
		return func() {}
	}
	c.nextSub++
	id := c.nextSub
	c.subs[id] = fn
	return func() { delete(c.subs, id) }
}

// Connect starts connecting to the unix stream socket at addr. Progress is
// reported via the state stream. A synchronous failure moves the session to
// [Failed] and is returned as an [Errno].
func (c *Context) Connect(addr string) error {
	if c.freed || c.state != Unconnected {
		return ErrBadState
	}
	if addr == "" {
		return ErrInvalid
	}

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return c.failNow(ErrInternal, err)
	}
	unix.CloseOnExec(fd)
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return c.failNow(ErrInternal, err)
	}
	err = unix.Connect(fd, &unix.SockaddrUnix{Name: addr})
	switch {
	case err == nil, errors.Is(err, unix.EINPROGRESS), errors.Is(err, unix.EAGAIN):
	case errors.Is(err, unix.ENOENT), errors.Is(err, unix.ECONNREFUSED):
		_ = unix.Close(fd)
		return c.failNow(ErrConnectionRefused, err)
	default:
		_ = unix.Close(fd)
		return c.failNow(ErrInvalidServer, err)
	}

	c.fd = fd
	c.io = c.api.IONew(c.api, fd, mainloop.IOEventOutput, contextIO, c)
	if c.timeout > 0 {
		c.timer = c.api.TimeNew(c.api, time.Now().Add(c.timeout), contextTimeout, c)
	}
	c.logger.Debug().
		Str("addr", addr).
		Str("name", c.name).
		Log("session: connecting")
	c.setState(Connecting)
	return nil
}

// Disconnect closes the connection and moves the session to [Terminated].
// It has no effect once the session has failed or terminated.
func (c *Context) Disconnect() {
	if c.state.IsTerminal() {
		return
	}
	c.teardown()
	c.setState(Terminated)
}

// Free disconnects and releases the notify event. Pending state changes
// are not delivered.
func (c *Context) Free() {
	if c.freed {
		return
	}
	c.Disconnect()
	c.freed = true
	clear(c.subs)
	c.api.DeferFree(c.notify)
	c.notify = nil
}

func (c *Context) failNow(code Errno, cause error) error {
	c.fail(code, cause)
	return code
}

func (c *Context) fail(code Errno, cause error) {
	if c.state.IsTerminal() {
		return
	}
	c.errno = code
	c.logger.Warning().
		Err(cause).
		Str("state", c.state.String()).
		Int("errno", int(code)).
		Log("session: " + Strerror(code))
	c.teardown()
	c.setState(Failed)
}

// teardown releases every connection resource. IOFree removes the last
// interest in fd synchronously, so fd may be closed straight away.
func (c *Context) teardown() {
	if c.io != nil {
		c.api.IOFree(c.io)
		c.io = nil
	}
	if c.timer != nil {
		c.api.TimeFree(c.timer)
		c.timer = nil
	}
	if c.fd >= 0 {
		_ = unix.Close(c.fd)
		c.fd = -1
	}
	c.out = nil
	c.in = nil
}

func (c *Context) setState(s State) {
	if c.state == s {
		return
	}
	c.logger.Debug().
		Str("from", c.state.String()).
		Str("to", s.String()).
		Log("session: state changed")
	c.state = s
	if c.notify != nil && len(c.subs) != 0 {
		c.changes.Add(s)
		c.api.DeferEnable(c.notify, true)
	}
}

func contextNotify(a *mainloop.API, e *mainloop.DeferEvent, userdata any) {
	c := userdata.(*Context)
	a.DeferEnable(e, false)
	for c.changes.Length() != 0 && !c.freed {
		s := c.changes.Remove().(State)
		for _, id := range slices.Sorted(maps.Keys(c.subs)) {
			if fn := c.subs[id]; fn != nil {
				fn(s)
			}
		}
	}
}

func contextTimeout(_ *mainloop.API, _ *mainloop.TimeEvent, _ time.Time, userdata any) {
	c := userdata.(*Context)
	c.fail(ErrTimeout, errors.New("connect timed out"))
}

func contextIO(_ *mainloop.API, _ *mainloop.IOEvent, fd int, events mainloop.IOEventFlags, userdata any) {
	c := userdata.(*Context)
	if fd != c.fd {
		return
	}

	if c.state == Connecting {
		soErr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
		if err == nil && soErr != 0 {
			err = unix.Errno(soErr)
		}
		if err == nil && events&mainloop.IOEventError != 0 {
			err = errors.New("socket error while connecting")
		}
		if err != nil {
			c.fail(ErrConnectionRefused, err)
			return
		}
		c.setState(Authorizing)
		c.send("AUTH " + strconv.Itoa(ProtocolVersion))
		return
	}

	if events&(mainloop.IOEventInput|mainloop.IOEventHangup) != 0 {
		c.receive()
	}
	if c.fd < 0 {
		return
	}
	if events&mainloop.IOEventOutput != 0 {
		c.flush()
	}
	if c.fd >= 0 && events&mainloop.IOEventError != 0 {
		c.fail(ErrConnectionTerminated, errors.New("socket error"))
	}
}

func (c *Context) interest() mainloop.IOEventFlags {
	if len(c.out) != 0 {
		return mainloop.IOEventInput | mainloop.IOEventOutput
	}
	return mainloop.IOEventInput
}

func (c *Context) send(line string) {
	c.out = append(c.out, line...)
	c.out = append(c.out, '\n')
	c.flush()
}

func (c *Context) flush() {
	for len(c.out) != 0 {
		n, err := unix.Write(c.fd, c.out)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if errors.Is(err, unix.EAGAIN) {
			break
		}
		if err != nil {
			c.fail(ErrConnectionTerminated, err)
			return
		}
		c.out = c.out[n:]
	}
	c.api.IOEnable(c.io, c.interest())
}

func (c *Context) receive() {
	var buf [512]byte
	for {
		n, err := unix.Read(c.fd, buf[:])
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if errors.Is(err, unix.EAGAIN) {
			break
		}
		if err != nil {
			c.fail(ErrConnectionTerminated, err)
			return
		}
		if n <= 0 {
			c.fail(ErrConnectionTerminated, errors.New("connection closed by peer"))
			return
		}
		c.in = append(c.in, buf[:n]...)
		if len(c.in) > maxLineLength {
			c.fail(ErrTooLarge, errors.New("line too long"))
			return
		}
	}
	for c.fd >= 0 {
		i := bytes.IndexByte(c.in, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimSuffix(string(c.in[:i]), "\r")
		c.in = c.in[i+1:]
		c.handleLine(line)
	}
}

func (c *Context) handleLine(line string) {
	if code, ok := strings.CutPrefix(line, "ERR "); ok {
		n, err := strconv.Atoi(code)
		if err != nil || n <= 0 {
			c.fail(ErrProtocol, errors.New("malformed error reply: "+line))
			return
		}
		c.fail(Errno(n), errors.New("server reported an error"))
		return
	}
	if line != "OK" {
		c.fail(ErrProtocol, errors.New("unexpected reply: "+line))
		return
	}
	switch c.state {
	case Authorizing:
		c.setState(SettingName)
		c.send("NAME " + c.name)
	case SettingName:
		if c.timer != nil {
			c.api.TimeRestart(c.timer, time.Time{})
		}
		c.logger.Info().
			Str("name", c.name).
			Log("session: ready")
		c.setState(Ready)
	default:
		c.fail(ErrProtocol, errors.New("unsolicited reply"))
	}
}
