package replayer

import (
	"time"

	"github.com/okian/mimic/pkg/logger"
)

// Option applies a configuration option to the Replayer.
type Option func(*Replayer)

// WithLogger sets a custom logger for the replayer.
func WithLogger(l logger.Logger) Option {
	return func(r *Replayer) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithPause sets the idle delay between two passes.
func WithPause(d time.Duration) Option {
	return func(r *Replayer) {
		if d >= 0 {
			r.pause = d
		}
	}
}

// WithStopTimeout bounds how long Stop waits for the pass to abort.
func WithStopTimeout(d time.Duration) Option {
	return func(r *Replayer) {
		if d > 0 {
			r.stopTimeout = d
		}
	}
}
