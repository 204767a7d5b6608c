package sampler

import (
	"time"

	"github.com/okian/mimic/pkg/logger"
)

// Option applies a configuration option to the Sampler.
type Option func(*Sampler)

// WithLogger sets a custom logger for the sampler.
func WithLogger(l logger.Logger) Option {
	return func(s *Sampler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithInterval sets the time between two samples.
func WithInterval(d time.Duration) Option {
	return func(s *Sampler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithStopTimeout bounds how long Stop waits for the loop to exit.
func WithStopTimeout(d time.Duration) Option {
	return func(s *Sampler) {
		if d > 0 {
			s.stopTimeout = d
		}
	}
}
