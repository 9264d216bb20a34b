// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package session

// State is the connection state of a [Context].
type State int

const (
	// Unconnected is the initial state, before [Context.Connect].
	Unconnected State = iota
	// Connecting means the socket connect is in progress.
	Connecting
	// Authorizing means the protocol handshake has been sent.
	Authorizing
	// SettingName means the client name has been sent.
	SettingName
	// Ready means the connection is established.
	Ready
	// Failed means the connection failed or was lost, see [Context.Errno].
	Failed
	// Terminated means the connection was closed by [Context.Disconnect].
	Terminated
)

// IsGood reports whether the state is not a terminal one.
func (s State) IsGood() bool {
	switch s {
	case Connecting, Authorizing, SettingName, Ready:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions can occur.
func (s State) IsTerminal() bool {
	return s == Failed || s == Terminated
}

func (s State) String() string {
	switch s {
	case Unconnected:
		return "Unconnected"
	case Connecting:
		return "Connecting"
	case Authorizing:
		return "Authorizing"
	case SettingName:
		return "SettingName"
	case Ready:
		return "Ready"
	case Failed:
		return "Failed"
	case Terminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}
