// Package task runs a single background loop with an explicit
// Stopped/Running lifecycle and cooperative cancellation.
//
// A Task owns at most one live run at a time. Concrete work is supplied by a
// Runner; the run loop receives a Control that exposes the interruptible
// waits it must suspend on. Stop closes the run's stop channel and joins the
// goroutine, so once Stop returns the loop has exited.
package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/mimic/pkg/logger"
	"github.com/okian/mimic/pkg/metrics"
)

// State is the lifecycle state of a Task.
type State int32

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Runner is the body of a task. RunLoop must suspend only on the waits
// offered by ctl and return promptly once ctl reports a stop.
type Runner interface {
	RunLoop(ctl *Control) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctl *Control) error

// RunLoop calls f.
func (f RunnerFunc) RunLoop(ctl *Control) error { return f(ctl) }

// Task drives a Runner on its own goroutine.
type Task struct {
	name        string
	runner      Runner
	logger      logger.Logger
	stopTimeout time.Duration

	mu    sync.Mutex
	state State
	run   *Control // current or most recent run
	wake  chan struct{}
}

// New creates a stopped task.
func New(name string, runner Runner, opts ...Option) *Task {
	t := &Task{
		name:   name,
		runner: runner,
		state:  Stopped,
		wake:   make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.logger == nil {
		t.logger = logger.Get().Named(name)
	}

	return t
}

// Name returns the task name used in logs and metrics.
func (t *Task) Name() string { return t.name }

// State reports the current lifecycle state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Running is shorthand for State() == Running.
func (t *Task) Running() bool {
	return t.State() == Running
}

// Start launches a fresh run if the task is stopped. Starting a running task
// logs a warning and changes nothing.
func (t *Task) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for {
		if t.state == Running {
			metrics.RecordTaskMisuse(t.name, "start")
			t.logger.Warn(context.Background(), "task already running")
			return
		}
		prev := t.run
		if prev == nil || prev.exited() {
			break
		}
		// A concurrent Stop is still joining the previous run.
		t.mu.Unlock()
		<-prev.done
		t.mu.Lock()
	}

	ctl := newControl(t.wake)
	t.run = ctl
	t.state = Running
	metrics.UpdateTaskRunning(t.name, true)

	go t.execute(ctl)

	t.logger.Debug(context.Background(), "task started")
}

// Stop requests the running loop to exit and blocks until it has. Stopping
// a stopped task logs a warning, still waits for any exiting run, and
// returns nil. When a stop timeout is configured and the loop does not exit
// in time, Stop returns ErrStopTimeout. Stop must not be called from the
// task's own run loop.
func (t *Task) Stop() error {
	t.mu.Lock()
	ctl := t.run
	if t.state != Running {
		t.mu.Unlock()
		metrics.RecordTaskMisuse(t.name, "stop")
		t.logger.Warn(context.Background(), "task already stopped")
		if ctl == nil {
			return nil
		}
		return t.join(ctl)
	}

	t.state = Stopped
	close(ctl.stop)
	ctl.cancel()
	metrics.UpdateTaskRunning(t.name, false)
	t.mu.Unlock()

	if err := t.join(ctl); err != nil {
		return err
	}

	t.logger.Debug(context.Background(), "task stopped")
	return nil
}

// Notify wakes the run loop if it is blocked in Wait or WaitSignal.
// Notifications coalesce; it never blocks.
func (t *Task) Notify() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

func (t *Task) join(ctl *Control) error {
	if t.stopTimeout <= 0 {
		<-ctl.done
		return nil
	}

	timer := time.NewTimer(t.stopTimeout)
	defer timer.Stop()

	select {
	case <-ctl.done:
		return nil
	case <-timer.C:
		t.logger.Warn(context.Background(), "task did not exit in time",
			logger.Duration("timeout", t.stopTimeout),
		)
		return fmt.Errorf("%s: %w", t.name, ErrStopTimeout)
	}
}

func (t *Task) execute(ctl *Control) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordTaskPanic(t.name)
			t.logger.Error(ctl.ctx, "task run loop panicked", logger.Any("panic", r))
		}

		t.mu.Lock()
		if t.run == ctl && t.state == Running {
			// The loop returned without being asked to.
			t.state = Stopped
			metrics.UpdateTaskRunning(t.name, false)
		}
		t.mu.Unlock()

		ctl.cancel()
		close(ctl.done)
	}()

	if err := t.runner.RunLoop(ctl); err != nil {
		t.logger.Error(ctl.ctx, "task run loop failed", logger.Error(err))
	}
}
