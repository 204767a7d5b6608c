package task

import (
	"time"

	"github.com/okian/mimic/pkg/logger"
)

// Option applies a configuration option to a Task.
type Option func(*Task)

// WithLogger sets a custom logger for the task.
func WithLogger(l logger.Logger) Option {
	return func(t *Task) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithStopTimeout bounds how long Stop waits for the loop to exit.
// Zero means wait until it does.
func WithStopTimeout(d time.Duration) Option {
	return func(t *Task) {
		if d >= 0 {
			t.stopTimeout = d
		}
	}
}
