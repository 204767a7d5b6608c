// Package input defines the collaborators on either side of a recording:
// the source that delivers pointer callbacks and the sink that replays them.
// The OS-level hook and injection mechanisms live outside this module.
package input

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/mimic/internal/domain/model"
	"github.com/okian/mimic/pkg/logger"
)

// Handler receives callbacks from a Source on a goroutine the source owns.
type Handler interface {
	OnPointerMove(x, y int)
	OnButtonChange(side model.Side, pressed bool, x, y int)
	OnKeyPress(key string)
}

// Source delivers input callbacks to h until ctx is cancelled or the
// source is exhausted.
type Source interface {
	Run(ctx context.Context, h Handler) error
}

// SourceFunc adapts a function literal to the Source interface.
type SourceFunc func(ctx context.Context, h Handler) error

// Run calls the underlying function.
func (f SourceFunc) Run(ctx context.Context, h Handler) error {
	return f(ctx, h)
}

// Sink drives the pointer during replay.
type Sink interface {
	SetPosition(x, y int) error
	Press(side model.Side) error
	Release(side model.Side) error
}

// NopSource is used when no OS hook is bundled. It delivers nothing and
// returns when ctx is done.
type NopSource struct {
	Logger logger.Logger
}

// Run blocks until ctx is cancelled.
func (s NopSource) Run(ctx context.Context, _ Handler) error {
	if s.Logger != nil {
		s.Logger.Warn(ctx, "no input hook available; recording will capture nothing")
	}
	<-ctx.Done()
	return nil
}

// Script is a Source that replays a fixed list of events, ignoring their
// timing. Useful for feeding a recorder without a real hook.
type Script []model.Event

// Run delivers every scripted event in order.
func (s Script) Run(ctx context.Context, h Handler) error {
	for _, e := range s {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch e.Kind {
		case model.PointerMoved:
			h.OnPointerMove(e.X, e.Y)
		case model.ButtonPressed, model.ButtonReleased:
			h.OnButtonChange(e.Side, e.Kind == model.ButtonPressed, e.X, e.Y)
		default:
			return fmt.Errorf("script event %d: unknown kind %s", e.ID, e.Kind)
		}
	}
	return nil
}

// LogSink writes every replayed action to a logger at debug level. It stands
// in for an OS injection layer.
type LogSink struct {
	logger logger.Logger
}

// NewLogSink returns a sink that logs through l, or through a named global
// logger when l is nil.
func NewLogSink(l logger.Logger) *LogSink {
	if l == nil {
		l = logger.Get().Named("sink")
	}
	return &LogSink{logger: l}
}

// SetPosition logs the pointer move.
func (s *LogSink) SetPosition(x, y int) error {
	s.logger.Debug(context.Background(), "pointer moved", logger.Int("x", x), logger.Int("y", y))
	return nil
}

// Press logs a button press.
func (s *LogSink) Press(side model.Side) error {
	s.logger.Debug(context.Background(), "button pressed", logger.String("button", side.String()))
	return nil
}

// Release logs a button release.
func (s *LogSink) Release(side model.Side) error {
	s.logger.Debug(context.Background(), "button released", logger.String("button", side.String()))
	return nil
}

// Action is one call observed by a RecordingSink.
type Action struct {
	Op   string
	X, Y int
	Side model.Side
}

// RecordingSink keeps every call it receives. It is safe for concurrent use.
type RecordingSink struct {
	mu      sync.Mutex
	actions []Action
}

// SetPosition records a move.
func (s *RecordingSink) SetPosition(x, y int) error {
	s.add(Action{Op: "move", X: x, Y: y})
	return nil
}

// Press records a press.
func (s *RecordingSink) Press(side model.Side) error {
	s.add(Action{Op: "press", Side: side})
	return nil
}

// Release records a release.
func (s *RecordingSink) Release(side model.Side) error {
	s.add(Action{Op: "release", Side: side})
	return nil
}

// Actions returns a copy of the calls seen so far.
func (s *RecordingSink) Actions() []Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Action(nil), s.actions...)
}

func (s *RecordingSink) add(a Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, a)
}
