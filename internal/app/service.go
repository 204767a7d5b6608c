// Package service wires the recorder, persister, replayer and sampler
// around one durable store and enforces that recording and replay never
// run at the same time.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/mimic/internal/adapters/input"
	"github.com/okian/mimic/internal/adapters/procmem"
	"github.com/okian/mimic/internal/adapters/repository"
	"github.com/okian/mimic/internal/domain/model"
	"github.com/okian/mimic/internal/persister"
	"github.com/okian/mimic/internal/recorder"
	"github.com/okian/mimic/internal/replayer"
	"github.com/okian/mimic/internal/sampler"
	"github.com/okian/mimic/pkg/logger"
)

// Status is a point-in-time view of the service.
type Status struct {
	Recording bool
	Replaying bool
	Sampling  bool
	Session   string
	Buffered  int
	Pending   int
	Passes    int64
	Memory    sampler.Stats
}

// Service owns the components for one store.
type Service struct {
	// mu serializes lifecycle commands.
	mu sync.Mutex

	// Core components
	store     repository.Store
	persister *persister.Persister
	recorder  *recorder.Recorder
	replayer  *replayer.Replayer
	sampler   *sampler.Sampler

	// Collaborators
	source input.Source
	sink   input.Sink
	memory sampler.Source

	// Configuration
	flushInterval  time.Duration
	replayPause    time.Duration
	sampleInterval time.Duration
	stopTimeout    time.Duration
	retryInitial   time.Duration
	retryMax       time.Duration

	// Input hook of the current recording
	hookCancel context.CancelFunc
	hookDone   chan struct{}

	closed bool
	logger logger.Logger
}

// New constructs a Service over store with default configuration.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:          store,
		flushInterval:  10 * time.Second,
		replayPause:    5 * time.Second,
		sampleInterval: 5 * time.Second,
		retryInitial:   200 * time.Millisecond,
		retryMax:       10 * time.Second,
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.source == nil {
		s.source = input.NopSource{Logger: s.logger}
	}
	if s.sink == nil {
		s.sink = input.NewLogSink(nil)
	}
	if s.memory == nil {
		s.memory = procmem.New()
	}

	s.persister = persister.New(store,
		persister.WithRetryBackoff(s.retryInitial, s.retryMax),
		persister.WithStopTimeout(s.stopTimeout),
	)
	s.recorder = recorder.New(s.persister,
		recorder.WithFlushInterval(s.flushInterval),
		recorder.WithStopTimeout(s.stopTimeout),
	)
	s.replayer = replayer.New(s.persister, s.sink,
		replayer.WithPause(s.replayPause),
		replayer.WithStopTimeout(s.stopTimeout),
	)
	s.sampler = sampler.New(s.memory,
		sampler.WithInterval(s.sampleInterval),
		sampler.WithStopTimeout(s.stopTimeout),
	)

	return s
}

// StartRecording clears the store and starts a new recording session fed by
// the input source. It fails with ErrReplayActive while a replay runs.
func (s *Service) StartRecording(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.replayer.Running() {
		return ErrReplayActive
	}
	if s.recording() {
		s.recorder.Start() // logs the misuse
		return nil
	}

	if s.persister.Running() {
		// A new session replaces the stored sequence, so batches left over
		// from a failed stop are dropped here.
		s.logger.Warn(ctx, "discarding unflushed events of the previous session",
			logger.Int("pending", s.persister.Pending()),
		)
		if err := s.persister.Stop(); err != nil {
			return fmt.Errorf("start recording: %w", err)
		}
	}
	if err := s.persister.Start(ctx); err != nil {
		return fmt.Errorf("start recording: %w", err)
	}
	s.recorder.Start()

	hookCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.hookCancel, s.hookDone = cancel, done
	go func() {
		defer close(done)
		if err := s.source.Run(hookCtx, s.recorder); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error(hookCtx, "input source failed", logger.Error(err))
		}
	}()

	s.logger.Info(ctx, "recording started", logger.String("session", s.recorder.SessionID()))
	return nil
}

// StopRecording ends the session and makes every recorded event durable
// before returning. When the final write fails the error is returned and the
// persister keeps retrying in the background; calling StopRecording again
// retries the flush on the caller's goroutine.
func (s *Service) StopRecording(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stopRecording(ctx)
}

func (s *Service) stopRecording(ctx context.Context) error {
	if !s.recording() {
		if s.persister.Running() {
			if err := s.finishPersist(ctx); err != nil {
				return fmt.Errorf("stop recording: %w", err)
			}
			return nil
		}
		return s.recorder.Stop() // logs the misuse
	}

	s.hookCancel()
	<-s.hookDone
	s.hookCancel, s.hookDone = nil, nil

	var errs []error
	if err := s.recorder.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := s.finishPersist(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("stop recording: %w", err)
	}
	s.logger.Info(ctx, "recording stopped", logger.String("session", s.recorder.SessionID()))
	return nil
}

// finishPersist flushes the queue and stops the persister. On a write error
// the persister is left running with the batches queued.
func (s *Service) finishPersist(ctx context.Context) error {
	if err := s.persister.Flush(ctx); err != nil {
		s.logger.Error(ctx, "final flush failed; events kept for retry",
			logger.Error(err),
			logger.Int("pending", s.persister.Pending()),
		)
		return fmt.Errorf("flush pending events: %w", err)
	}
	return s.persister.Stop()
}

// recording reports whether a session was started and not yet stopped. It
// stays true if the recorder loop died on its own, so the session still gets
// flushed and torn down by stopRecording.
func (s *Service) recording() bool {
	return s.hookCancel != nil
}

// StartReplay loads the stored sequence and starts replaying it. It fails
// with ErrRecordingActive while recording and with the store's read error
// when the sequence is missing or corrupt.
func (s *Service) StartReplay(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recording() {
		return ErrRecordingActive
	}
	if s.persister.Running() {
		if err := s.finishPersist(ctx); err != nil {
			return fmt.Errorf("start replay: %w", err)
		}
	}
	if err := s.replayer.Start(ctx); err != nil {
		return fmt.Errorf("start replay: %w", err)
	}
	return nil
}

// StopReplay aborts the replay.
func (s *Service) StopReplay() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.replayer.Stop()
}

// StartSampling starts the memory sampler. It may run alongside either mode.
func (s *Service) StartSampling() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sampler.Start()
}

// StopSampling stops the memory sampler.
func (s *Service) StopSampling() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sampler.Stop()
}

// Events returns the stored sequence.
func (s *Service) Events(ctx context.Context) ([]model.Event, error) {
	return s.persister.Deserialize(ctx)
}

// Status reports what is running.
func (s *Service) Status() Status {
	return Status{
		Recording: s.recorder.Running(),
		Replaying: s.replayer.Running(),
		Sampling:  s.sampler.Running(),
		Session:   s.recorder.SessionID(),
		Buffered:  s.recorder.Buffered(),
		Pending:   s.persister.Pending(),
		Passes:    s.replayer.Passes(),
		Memory:    s.sampler.Stats(),
	}
}

// Close stops every running component and closes the store. Pending events
// are flushed first; if that flush fails they are dropped and the error is
// returned.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.recording() || s.persister.Running() {
		if err := s.stopRecording(ctx); err != nil {
			errs = append(errs, err)
		}
		if s.persister.Running() {
			s.logger.Error(ctx, "closing with unflushed events",
				logger.Int("pending", s.persister.Pending()),
			)
			errs = append(errs, s.persister.Stop())
		}
	}
	if s.replayer.Running() {
		errs = append(errs, s.replayer.Stop())
	}
	if s.sampler.Running() {
		errs = append(errs, s.sampler.Stop())
	}
	errs = append(errs, s.store.Close())

	s.logger.Info(ctx, "service closed")
	return errors.Join(errs...)
}
