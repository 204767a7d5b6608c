package service

import (
	"time"

	"github.com/okian/mimic/internal/adapters/input"
	"github.com/okian/mimic/internal/sampler"
	"github.com/okian/mimic/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithInputSource sets the hook that feeds the recorder.
func WithInputSource(src input.Source) Option {
	return func(s *Service) {
		if src != nil {
			s.source = src
		}
	}
}

// WithOutputSink sets where replayed events are sent.
func WithOutputSink(sink input.Sink) Option {
	return func(s *Service) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithMemorySource sets the resident memory collaborator of the sampler.
func WithMemorySource(src sampler.Source) Option {
	return func(s *Service) {
		if src != nil {
			s.memory = src
		}
	}
}

// WithFlushInterval sets how often the recorder hands batches over.
func WithFlushInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.flushInterval = d
		}
	}
}

// WithReplayPause sets the idle delay between replay passes.
func WithReplayPause(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.replayPause = d
		}
	}
}

// WithSampleInterval sets the memory sampling period.
func WithSampleInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sampleInterval = d
		}
	}
}

// WithStopTimeout bounds every component's stop join. Zero waits forever.
func WithStopTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.stopTimeout = d
		}
	}
}

// WithPersistRetry sets the backoff range used after a failed write.
func WithPersistRetry(initial, maxDelay time.Duration) Option {
	return func(s *Service) {
		if initial > 0 && maxDelay >= initial {
			s.retryInitial = initial
			s.retryMax = maxDelay
		}
	}
}
