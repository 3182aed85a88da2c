package logfile

import "errors"

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("log file closed")
