package detect

import "errors"

var (
	// ErrUnknownPolicy is returned for an unrecognized fixation policy name.
	ErrUnknownPolicy = errors.New("unknown fixation policy")
	// ErrUnknownEvent is returned by WaitForEvent for an unsupported kind.
	ErrUnknownEvent = errors.New("unknown event kind")
)
