// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package session

import (
	"bufio"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/joeycumines/logiface"
)

// Server is a minimal peer for [Context], speaking the line protocol:
//
//	AUTH <version>  ->  OK | ERR <code>
//	NAME <name>     ->  OK | ERR <code>
//
// Unknown commands are answered with ERR [ErrCommand].
type Server struct {
	Logger *logiface.Logger[logiface.Event]
	// AuthError, if not OK, is the reply to every AUTH.
	AuthError Errno
	// Mute suppresses all replies.
	Mute bool

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// Serve accepts connections until ln is closed, then closes every
// connection it accepted and waits for their handlers.
func (s *Server) Serve(ln net.Listener) error {
	defer func() {
		s.mu.Lock()
		for conn := range s.conns {
			_ = conn.Close()
		}
		s.mu.Unlock()
		s.wg.Wait()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.mu.Lock()
		if s.conns == nil {
			s.conns = make(map[net.Conn]struct{})
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				s.mu.Lock()
				delete(s.conns, conn)
				s.mu.Unlock()
				_ = conn.Close()
			}()
			s.handle(conn)
		}()
	}
}

func (s *Server) handle(conn net.Conn) {
	var authed bool
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 256), maxLineLength)
	for scanner.Scan() {
		cmd, arg, _ := strings.Cut(scanner.Text(), " ")
		code := OK
		switch cmd {
		case "AUTH":
			switch v, err := strconv.Atoi(arg); {
			case s.AuthError != OK:
				code = s.AuthError
			case err != nil || v != ProtocolVersion:
				code = ErrVersion
			default:
				authed = true
			}
		case "NAME":
			switch {
			case !authed:
				code = ErrAccess
			case arg == "":
				code = ErrInvalid
			default:
				s.Logger.Info().
					Str("name", arg).
					Log("session server: client connected")
			}
		default:
			code = ErrCommand
		}
		if s.Mute {
			continue
		}
		reply := "OK\n"
		if code != OK {
			reply = "ERR " + strconv.Itoa(int(code)) + "\n"
		}
		if _, err := conn.Write([]byte(reply)); err != nil {
			return
		}
	}
}
