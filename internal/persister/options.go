package persister

import (
	"time"

	"github.com/okian/mimic/pkg/logger"
)

// Option applies a configuration option to the Persister.
type Option func(*Persister)

// WithLogger sets a custom logger for the persister.
func WithLogger(l logger.Logger) Option {
	return func(p *Persister) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithRetryBackoff sets the initial and maximum delay between attempts to
// persist after a write failure.
func WithRetryBackoff(initial, maxDelay time.Duration) Option {
	return func(p *Persister) {
		if initial > 0 && maxDelay >= initial {
			p.retryInitial = initial
			p.retryMax = maxDelay
		}
	}
}

// WithStopTimeout bounds how long Stop waits for the writer to exit.
func WithStopTimeout(d time.Duration) Option {
	return func(p *Persister) {
		if d > 0 {
			p.stopTimeout = d
		}
	}
}
