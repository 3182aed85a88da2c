package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection wraps every dial, read and write failure.
	ErrConnection = errors.New("connection error")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("connection closed")
)

var errNotConnected = fmt.Errorf("%w: not connected", ErrConnection)
