package recorder

import (
	"time"

	"github.com/okian/mimic/pkg/logger"
)

// Option applies a configuration option to the Recorder.
type Option func(*Recorder)

// WithLogger sets a custom logger for the recorder.
func WithLogger(l logger.Logger) Option {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithFlushInterval sets how often buffered events are handed to the
// persister.
func WithFlushInterval(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.flushInterval = d
		}
	}
}

// WithStopTimeout bounds how long Stop waits for the flush loop to exit.
func WithStopTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.stopTimeout = d
		}
	}
}
