package task

import "errors"

// Sentinel kinds for task errors.
var (
	ErrStopTimeout = errors.New("task stop timed out")
)
