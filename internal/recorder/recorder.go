// Package recorder buffers pointer events delivered by an input source and
// periodically hands them to a persister as batches.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/mimic/internal/domain/model"
	"github.com/okian/mimic/internal/task"
	"github.com/okian/mimic/pkg/logger"
	"github.com/okian/mimic/pkg/metrics"
)

const defaultFlushInterval = 10 * time.Second

// Scheduler accepts batches for persistence. Implementations must not keep
// blocking the caller on I/O.
type Scheduler interface {
	Schedule(batch model.Batch)
}

// Recorder stamps incoming events relative to the session start and buffers
// them until the next flush.
type Recorder struct {
	sched  Scheduler
	task   *task.Task
	logger logger.Logger

	flushInterval time.Duration
	stopTimeout   time.Duration

	mu      sync.Mutex
	active  bool
	session string
	started time.Time
	nextID  int64
	buffer  []model.Event
}

// New creates a stopped recorder that schedules its batches on sched.
func New(sched Scheduler, opts ...Option) *Recorder {
	r := &Recorder{
		sched:         sched,
		flushInterval: defaultFlushInterval,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = logger.Get().Named("recorder")
	}
	r.task = task.New("recorder", r,
		task.WithLogger(r.logger),
		task.WithStopTimeout(r.stopTimeout),
	)

	return r
}

// Start opens a new recording session and launches the flush loop. Starting
// a running recorder logs a warning and keeps the current session.
func (r *Recorder) Start() {
	if !r.task.Running() {
		r.open()
	}
	r.task.Start()
}

// open switches to a fresh session. Events still buffered from the previous
// session, whose closing flush may not have run yet, are handed off under
// their own session first so every buffered event belongs to r.session.
func (r *Recorder) open() {
	r.mu.Lock()
	leftover := model.Batch{Session: r.session, Events: r.buffer}
	r.buffer = nil
	r.session = uuid.NewString()
	r.started = time.Now()
	r.active = true
	r.mu.Unlock()

	r.schedule(leftover)
}

// Stop ends the session. Events still buffered are handed to the scheduler
// before Stop returns.
func (r *Recorder) Stop() error {
	return r.task.Stop()
}

// Running reports whether a session is being recorded.
func (r *Recorder) Running() bool {
	return r.task.Running()
}

// SessionID returns the id of the current or most recent session.
func (r *Recorder) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// Buffered returns the number of events waiting for the next flush.
func (r *Recorder) Buffered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buffer)
}

// OnPointerMove records a pointer move.
func (r *Recorder) OnPointerMove(x, y int) {
	r.deliver(model.Event{Kind: model.PointerMoved, X: x, Y: y})
}

// OnButtonChange records a button press or release at (x, y).
func (r *Recorder) OnButtonChange(side model.Side, pressed bool, x, y int) {
	kind := model.ButtonReleased
	if pressed {
		kind = model.ButtonPressed
	}
	r.deliver(model.Event{Kind: kind, Side: side, X: x, Y: y})
}

// OnKeyPress notes a key press. Keys are not part of the recorded sequence.
func (r *Recorder) OnKeyPress(key string) {
	r.logger.Debug(context.Background(), "key pressed", logger.String("key", key))
}

// Append stamps e with the next id and the time elapsed since the session
// started, then buffers it. Any ID or ElapsedMS already set on e is
// overwritten. It never blocks on persistence.
func (r *Recorder) Append(e model.Event) error {
	e.ElapsedMS = 0
	if err := e.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}

	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return ErrNoSession
	}
	e.ID = r.nextID
	r.nextID++
	e.ElapsedMS = time.Since(r.started).Milliseconds()
	r.buffer = append(r.buffer, e)
	n := len(r.buffer)
	r.mu.Unlock()

	metrics.RecordEventRecorded(e.Kind.String())
	metrics.UpdateBufferedEvents(n)
	return nil
}

// Flush hands the buffered events to the scheduler now instead of waiting
// for the next interval.
func (r *Recorder) Flush() {
	r.flush("")
}

// RunLoop implements task.Runner.
func (r *Recorder) RunLoop(ctl *task.Control) error {
	ctx := ctl.Context()
	session := r.SessionID()
	r.logger.Info(ctx, "recording started", logger.String("session", session))

	defer func() {
		n := r.flush(session)
		r.logger.Info(context.Background(), "recording stopped",
			logger.String("session", session),
			logger.Int("final_batch", n),
		)
	}()

	for ctl.Wait(r.flushInterval) {
		r.flush("")
	}
	return nil
}

// deliver is the callback path: malformed or out-of-session events are
// logged, counted and dropped.
func (r *Recorder) deliver(e model.Event) {
	err := r.Append(e)
	switch {
	case err == nil:
	case errors.Is(err, ErrNoSession):
		metrics.RecordEventDiscarded()
		r.logger.Debug(context.Background(), "event outside recording session dropped",
			logger.String("event", e.String()),
		)
	default:
		metrics.RecordEventMalformed()
		r.logger.Warn(context.Background(), "malformed input event dropped", logger.Error(err))
	}
}

// flush swaps out the buffer and schedules it. A non-empty closing session
// is deactivated in the same critical section, so no event is stamped after
// its last batch leaves. A newer session opened meanwhile stays active, and
// since open already handed off the older events the batch is tagged with
// the current session.
func (r *Recorder) flush(closing string) int {
	r.mu.Lock()
	batch := model.Batch{Session: r.session, Events: r.buffer}
	r.buffer = nil
	if closing != "" && r.session == closing {
		r.active = false
	}
	r.mu.Unlock()

	metrics.UpdateBufferedEvents(0)
	return r.schedule(batch)
}

func (r *Recorder) schedule(batch model.Batch) int {
	if batch.Len() == 0 {
		return 0
	}

	r.sched.Schedule(batch)
	metrics.RecordBatchScheduled()
	r.logger.Debug(context.Background(), "batch handed to persister",
		logger.String("session", batch.Session),
		logger.Int("events", batch.Len()),
	)
	return batch.Len()
}
