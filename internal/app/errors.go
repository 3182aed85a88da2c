package session

import "errors"

// Sentinel error kinds for the session.
var (
	ErrNotStarted = errors.New("session not started")
	ErrClosed     = errors.New("session closed")
	ErrNoLog      = errors.New("no data log configured")
)
