package protocol

import "errors"

var (
	// ErrMalformed is returned for a message that is not valid JSON or does
	// not match the message envelope.
	ErrMalformed = errors.New("malformed message")
	// ErrUnsupportedValues is returned when Request.Values has a shape
	// other than Params, a list or nil.
	ErrUnsupportedValues = errors.New("unsupported request values")
)

// ErrNoValue is returned by Response.Value when the key is absent.
var ErrNoValue = errors.New("value not present")
