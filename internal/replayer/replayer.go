// Package replayer plays a persisted event sequence back through an output
// sink with its original timing, pass after pass, until stopped.
package replayer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/mimic/internal/adapters/input"
	"github.com/okian/mimic/internal/domain/model"
	"github.com/okian/mimic/internal/task"
	"github.com/okian/mimic/pkg/logger"
	"github.com/okian/mimic/pkg/metrics"
)

const defaultPause = 5 * time.Second

// Source reads the whole persisted sequence.
type Source interface {
	Deserialize(ctx context.Context) ([]model.Event, error)
}

// Replayer drives a sink from a Source.
type Replayer struct {
	source Source
	sink   input.Sink
	task   *task.Task
	logger logger.Logger

	pause       time.Duration
	stopTimeout time.Duration

	mu      sync.Mutex
	preload []model.Event
	loaded  bool

	passes     atomic.Int64
	dispatched atomic.Int64
}

// New creates a stopped replayer.
func New(source Source, sink input.Sink, opts ...Option) *Replayer {
	r := &Replayer{
		source: source,
		sink:   sink,
		pause:  defaultPause,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = logger.Get().Named("replayer")
	}
	r.task = task.New("replayer", r,
		task.WithLogger(r.logger),
		task.WithStopTimeout(r.stopTimeout),
	)

	return r
}

// Start loads the sequence and launches the replay loop. A sequence that
// cannot be read fails Start before anything is dispatched. Starting a
// running replayer logs a warning and returns nil.
func (r *Replayer) Start(ctx context.Context) error {
	if r.task.Running() {
		r.task.Start()
		return nil
	}

	events, err := r.source.Deserialize(ctx)
	if err != nil {
		r.logger.Error(ctx, "cannot load sequence; replay not started", logger.Error(err))
		return fmt.Errorf("load replay sequence: %w", err)
	}

	r.mu.Lock()
	r.preload = events
	r.loaded = true
	r.mu.Unlock()

	r.task.Start()
	return nil
}

// Stop aborts the current pass and waits for the loop to exit.
func (r *Replayer) Stop() error {
	return r.task.Stop()
}

// Running reports whether the replay loop is active.
func (r *Replayer) Running() bool {
	return r.task.Running()
}

// Passes returns the number of passes completed without interruption.
func (r *Replayer) Passes() int64 {
	return r.passes.Load()
}

// Dispatched returns the number of events sent to the sink.
func (r *Replayer) Dispatched() int64 {
	return r.dispatched.Load()
}

// RunLoop implements task.Runner.
func (r *Replayer) RunLoop(ctl *task.Control) error {
	ctx := ctl.Context()
	r.logger.Info(ctx, "replay started")
	defer func() {
		r.logger.Info(context.Background(), "replay stopped",
			logger.Int64("passes", r.passes.Load()),
		)
	}()

	for {
		events, err := r.sequence(ctx)
		if err != nil {
			if ctl.Stopping() {
				return nil
			}
			r.logger.Error(ctx, "cannot load sequence; retrying after pause", logger.Error(err))
		} else {
			if !r.pass(ctl, events) {
				metrics.RecordReplayAbort()
				r.logger.Info(ctx, "replay pass aborted")
				return nil
			}
			n := r.passes.Add(1)
			metrics.RecordReplayPass()
			r.logger.Debug(ctx, "replay pass completed",
				logger.Int64("pass", n),
				logger.Int("events", len(events)),
			)
		}

		if !ctl.Sleep(r.pause) {
			return nil
		}
	}
}

// sequence returns the sequence loaded by Start for the first pass and
// reloads it for every later one.
func (r *Replayer) sequence(ctx context.Context) ([]model.Event, error) {
	r.mu.Lock()
	if r.loaded {
		events := r.preload
		r.preload = nil
		r.loaded = false
		r.mu.Unlock()
		return events, nil
	}
	r.mu.Unlock()

	return r.source.Deserialize(ctx)
}

// pass plays events once. Each wait targets passStart+elapsed, so a late
// dispatch never shifts the events after it. It returns false when the
// pass was stopped.
func (r *Replayer) pass(ctl *task.Control, events []model.Event) bool {
	passStart := time.Now()
	for i := range events {
		e := &events[i]
		target := passStart.Add(time.Duration(e.ElapsedMS) * time.Millisecond)
		if !ctl.Sleep(time.Until(target)) {
			return false
		}
		r.dispatch(ctl.Context(), e, time.Since(target))
	}
	return true
}

func (r *Replayer) dispatch(ctx context.Context, e *model.Event, late time.Duration) {
	if err := r.sink.SetPosition(e.X, e.Y); err != nil {
		r.logger.Warn(ctx, "sink rejected move", logger.Int64("id", e.ID), logger.Error(err))
	}

	var err error
	switch e.Kind {
	case model.ButtonPressed:
		err = r.sink.Press(e.Side)
	case model.ButtonReleased:
		err = r.sink.Release(e.Side)
	}
	if err != nil {
		r.logger.Warn(ctx, "sink rejected button", logger.Int64("id", e.ID), logger.Error(err))
	}

	r.dispatched.Add(1)
	metrics.RecordReplayDispatch(e.Kind.String(), float64(late.Microseconds())/1000)
	r.logger.Debug(ctx, "event replayed",
		logger.String("event", e.String()),
		logger.Duration("late", late),
	)
}
