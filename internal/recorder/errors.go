package recorder

import "errors"

var (
	// ErrMalformedEvent reports an input event whose kind and button disagree
	// or whose fields are out of range.
	ErrMalformedEvent = errors.New("malformed input event")
	// ErrNoSession reports an event delivered while no recording is active.
	ErrNoSession = errors.New("no active recording session")
)
