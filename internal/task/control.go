package task

import (
	"context"
	"time"
)

// Control is handed to a run loop. It is valid for a single run.
type Control struct {
	stop   chan struct{}
	done   chan struct{}
	wake   <-chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

func newControl(wake <-chan struct{}) *Control {
	ctx, cancel := context.WithCancel(context.Background())
	return &Control{
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		wake:   wake,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Context is cancelled when the run is stopped.
func (c *Control) Context() context.Context { return c.ctx }

// Stopping reports whether Stop has been requested for this run.
func (c *Control) Stopping() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

// Wait blocks for d, until the task is notified, or until it is stopped.
// It returns false only when the run has been stopped. A non-positive d
// performs the stop check without blocking.
func (c *Control) Wait(d time.Duration) bool {
	if d <= 0 {
		return !c.Stopping()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-c.stop:
		return false
	case <-c.wake:
		return !c.Stopping()
	case <-timer.C:
		return !c.Stopping()
	}
}

// Sleep blocks for exactly d unless the run is stopped first. Notifications
// do not shorten it. It returns false when stopped.
func (c *Control) Sleep(d time.Duration) bool {
	if d <= 0 {
		return !c.Stopping()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-c.stop:
		return false
	case <-timer.C:
		return !c.Stopping()
	}
}

// WaitSignal blocks until the task is notified or stopped. It returns false
// when stopped.
func (c *Control) WaitSignal() bool {
	select {
	case <-c.stop:
		return false
	case <-c.wake:
		return !c.Stopping()
	}
}

func (c *Control) exited() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
