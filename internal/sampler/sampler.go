// Package sampler periodically samples a resource metric and tracks its
// current, minimum and maximum values.
package sampler

import (
	"context"
	"sync"
	"time"

	"github.com/okian/mimic/internal/task"
	"github.com/okian/mimic/pkg/logger"
	"github.com/okian/mimic/pkg/metrics"
)

const defaultInterval = 5 * time.Second

// Source returns the resident memory of the process in bytes.
type Source interface {
	ResidentMemory() (uint64, error)
}

// Stats is a snapshot of the sampled values.
type Stats struct {
	Current uint64
	Min     uint64
	Max     uint64
	Samples int64
}

// Sampler runs the sampling loop.
type Sampler struct {
	source Source
	task   *task.Task
	logger logger.Logger

	interval    time.Duration
	stopTimeout time.Duration

	mu    sync.Mutex
	stats Stats
}

// New creates a stopped sampler and takes the initial sample.
func New(source Source, opts ...Option) *Sampler {
	s := &Sampler{
		source:   source,
		interval: defaultInterval,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("sampler")
	}
	s.task = task.New("sampler", s,
		task.WithLogger(s.logger),
		task.WithStopTimeout(s.stopTimeout),
	)

	s.sample(context.Background())
	return s
}

// Start launches the sampling loop.
func (s *Sampler) Start() { s.task.Start() }

// Stop ends the sampling loop.
func (s *Sampler) Stop() error { return s.task.Stop() }

// Running reports whether the loop is active.
func (s *Sampler) Running() bool { return s.task.Running() }

// Current returns the last sampled value.
func (s *Sampler) Current() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats.Current
}

// Stats returns a snapshot of current, min and max.
func (s *Sampler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// RunLoop implements task.Runner.
func (s *Sampler) RunLoop(ctl *task.Control) error {
	for ctl.Wait(s.interval) {
		s.sample(ctl.Context())
	}
	return nil
}

func (s *Sampler) sample(ctx context.Context) {
	v, err := s.source.ResidentMemory()
	if err != nil {
		s.logger.Warn(ctx, "resident memory sample failed", logger.Error(err))
		return
	}

	s.mu.Lock()
	if s.stats.Samples == 0 || v < s.stats.Min {
		s.stats.Min = v
	}
	if v > s.stats.Max {
		s.stats.Max = v
	}
	s.stats.Current = v
	s.stats.Samples++
	st := s.stats
	s.mu.Unlock()

	metrics.UpdateResidentMemory(st.Current, st.Min, st.Max)
	s.logger.Info(ctx, "memory usage",
		logger.Float64("current_mb", megabytes(st.Current)),
		logger.Float64("min_mb", megabytes(st.Min)),
		logger.Float64("max_mb", megabytes(st.Max)),
	)
}

func megabytes(b uint64) float64 {
	return float64(b) / (1 << 20)
}
