package current

import "errors"

// ErrClosed is returned by Next after the holder has been closed.
var ErrClosed = errors.New("current sample holder closed")
