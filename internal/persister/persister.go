// Package persister moves recorded batches into the durable store on a
// background task and serves whole-sequence reads of that store.
package persister

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/okian/mimic/internal/adapters/repository"
	"github.com/okian/mimic/internal/domain/model"
	"github.com/okian/mimic/internal/task"
	"github.com/okian/mimic/pkg/logger"
	"github.com/okian/mimic/pkg/metrics"
)

// Default persister configuration constants.
const (
	defaultRetryInitial = 200 * time.Millisecond
	defaultRetryMax     = 10 * time.Second
)

// Persister is the single writer of a Store.
type Persister struct {
	store  repository.Store
	task   *task.Task
	logger logger.Logger

	retryInitial time.Duration
	retryMax     time.Duration
	stopTimeout  time.Duration

	// mu guards pending. Schedule only ever takes mu, so producers never
	// wait on disk I/O.
	mu      sync.Mutex
	pending []model.Batch

	// storeMu serializes every store access: startup reset, persist cycles
	// and Deserialize. It is always taken before mu.
	storeMu sync.Mutex
}

// New creates a stopped persister for store.
func New(store repository.Store, opts ...Option) *Persister {
	p := &Persister{
		store:        store,
		retryInitial: defaultRetryInitial,
		retryMax:     defaultRetryMax,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = logger.Get().Named("persister")
	}
	p.task = task.New("persister", p,
		task.WithLogger(p.logger),
		task.WithStopTimeout(p.stopTimeout),
	)

	return p
}

// Start discards stale store content and pending batches, then launches the
// background writer. A failed reset is returned and the writer stays
// stopped. Starting a running persister only logs a warning.
func (p *Persister) Start(ctx context.Context) error {
	if p.task.Running() {
		p.task.Start() // logs the misuse
		return nil
	}

	p.storeMu.Lock()
	err := p.store.Reset(ctx)
	if err == nil {
		p.mu.Lock()
		p.pending = nil
		p.mu.Unlock()
	}
	p.storeMu.Unlock()

	if err != nil {
		metrics.RecordPersistError("reset")
		p.logger.Error(ctx, "failed to reset event store", logger.Error(err))
		return fmt.Errorf("reset event store: %w", err)
	}

	metrics.UpdatePendingBatches(0)
	metrics.UpdateStoredEvents(0)
	p.task.Start()
	return nil
}

// Stop ends the background writer. Batches still pending stay queued; call
// Flush first to make them durable.
func (p *Persister) Stop() error {
	return p.task.Stop()
}

// Running reports whether the background writer is active.
func (p *Persister) Running() bool {
	return p.task.Running()
}

// Schedule queues a batch for the next persist cycle. Empty batches are
// ignored and do not wake the writer.
func (p *Persister) Schedule(batch model.Batch) {
	if batch.Len() == 0 {
		return
	}

	p.mu.Lock()
	p.pending = append(p.pending, batch)
	n := len(p.pending)
	p.mu.Unlock()

	metrics.UpdatePendingBatches(n)
	p.logger.Debug(context.Background(), "batch scheduled",
		logger.Int("events", batch.Len()),
		logger.Int("pending", n),
	)
	p.task.Notify()
}

// Pending returns the number of queued batches.
func (p *Persister) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Flush persists everything pending on the caller's goroutine and returns
// the store error, if any. Failed batches stay queued and a running writer
// is woken to keep retrying them.
func (p *Persister) Flush(ctx context.Context) error {
	if err := p.persist(ctx); err != nil {
		p.task.Notify()
		return err
	}
	return nil
}

// Deserialize reads the full stored sequence. It is safe to call while the
// writer runs; reads and writes serialize on the same lock. Errors wrap
// repository.ErrNotFound or repository.ErrCorrupt.
func (p *Persister) Deserialize(ctx context.Context) ([]model.Event, error) {
	p.storeMu.Lock()
	defer p.storeMu.Unlock()

	events, err := p.store.Load(ctx)
	if err != nil {
		metrics.RecordPersistError("read")
		return nil, fmt.Errorf("deserialize events: %w", err)
	}
	return events, nil
}

// RunLoop implements task.Runner.
func (p *Persister) RunLoop(ctl *task.Control) error {
	ctx := ctl.Context()
	p.logger.Info(ctx, "persister started")
	defer p.logger.Info(context.Background(), "persister stopped")

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = p.retryInitial
	retry.MaxInterval = p.retryMax
	retry.MaxElapsedTime = 0
	retry.Reset()

	for {
		if p.Pending() == 0 {
			if !ctl.WaitSignal() {
				return nil
			}
			continue
		}

		if err := p.persist(ctx); err != nil {
			if ctl.Stopping() {
				return nil
			}
			delay := retry.NextBackOff()
			p.logger.Error(ctx, "persist failed; batches kept for retry",
				logger.Error(err),
				logger.Int("pending", p.Pending()),
				logger.Duration("retry_in", delay),
			)
			if !ctl.Sleep(delay) {
				return nil
			}
			continue
		}
		retry.Reset()
	}
}

// persist drains the queue into the store. On failure the unwritten batches
// go back to the front of the queue in their original order.
func (p *Persister) persist(ctx context.Context) error {
	p.storeMu.Lock()
	defer p.storeMu.Unlock()

	p.mu.Lock()
	batches := p.pending
	p.pending = nil
	p.mu.Unlock()

	if len(batches) == 0 {
		return nil
	}

	start := time.Now()
	batches = coalesce(batches)
	written := 0
	stored := 0
	for i, b := range batches {
		n, err := p.store.Append(ctx, b)
		if err != nil {
			p.requeue(batches[i:])
			metrics.RecordPersistError("write")
			return fmt.Errorf("persist %d events: %w", b.Len(), err)
		}
		written += b.Len()
		stored = n
	}

	metrics.RecordPersistCycle(float64(time.Since(start).Milliseconds()))
	metrics.UpdateStoredEvents(stored)
	metrics.UpdatePendingBatches(p.Pending())
	p.logger.Info(ctx, "events persisted",
		logger.Int("written", written),
		logger.Int("stored", stored),
	)
	return nil
}

func (p *Persister) requeue(batches []model.Batch) {
	p.mu.Lock()
	defer p.mu.Unlock()

	merged := make([]model.Batch, 0, len(batches)+len(p.pending))
	merged = append(merged, batches...)
	merged = append(merged, p.pending...)
	p.pending = merged
	metrics.UpdatePendingBatches(len(p.pending))
}

// coalesce joins consecutive batches of the same session so each store
// append covers as much as possible.
func coalesce(batches []model.Batch) []model.Batch {
	out := make([]model.Batch, 0, len(batches))
	for _, b := range batches {
		if last := len(out) - 1; last >= 0 && out[last].Session == b.Session {
			events := make([]model.Event, 0, out[last].Len()+b.Len())
			events = append(events, out[last].Events...)
			out[last].Events = append(events, b.Events...)
			continue
		}
		out = append(out, b)
	}
	return out
}
