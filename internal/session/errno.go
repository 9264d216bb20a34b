// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package session

import (
	"strconv"
)

// Errno is a session error code. The numbering is part of the wire protocol,
// servers report failures as "ERR <code>".
type Errno int

const (
	OK Errno = iota
	ErrAccess
	ErrCommand
	ErrInvalid
	ErrExist
	ErrNoEntity
	ErrConnectionRefused
	ErrProtocol
	ErrTimeout
	ErrAuthKey
	ErrInternal
	ErrConnectionTerminated
	ErrKilled
	ErrInvalidServer
	ErrModInitFailed
	ErrBadState
	ErrNoData
	ErrVersion
	ErrTooLarge
	ErrNotSupported
	ErrUnknown
	ErrNoExtension
	ErrObsolete
	ErrNotImplemented
	ErrForked
	ErrIO
	ErrBusy
)

var errnoText = [...]string{
	OK:                      "OK",
	ErrAccess:               "Access denied",
	ErrCommand:              "Unknown command",
	ErrInvalid:              "Invalid argument",
	ErrExist:                "Entity exists",
	ErrNoEntity:             "No such entity",
	ErrConnectionRefused:    "Connection refused",
	ErrProtocol:             "Protocol error",
	ErrTimeout:              "Timeout",
	ErrAuthKey:              "No authentication key",
	ErrInternal:             "Internal error",
	ErrConnectionTerminated: "Connection terminated",
	ErrKilled:               "Entity killed",
	ErrInvalidServer:        "Invalid server",
	ErrModInitFailed:        "Module initialization failed",
	ErrBadState:             "Bad state",
	ErrNoData:               "No data",
	ErrVersion:              "Incompatible protocol version",
	ErrTooLarge:             "Too large",
	ErrNotSupported:         "Not supported",
	ErrUnknown:              "Unknown error code",
	ErrNoExtension:          "No such extension",
	ErrObsolete:             "Obsolete functionality",
	ErrNotImplemented:       "Missing implementation",
	ErrForked:               "Client forked",
	ErrIO:                   "Input/Output error",
	ErrBusy:                 "Device or resource busy",
}

// Strerror returns the human readable description of code.
func Strerror(code Errno) string {
	if code >= 0 && int(code) < len(errnoText) {
		return errnoText[code]
	}
	return "Unknown error code " + strconv.Itoa(int(code))
}

// Error implements error. [OK] is not meant to be used as an error.
func (e Errno) Error() string {
	return "session: " + Strerror(e)
}
