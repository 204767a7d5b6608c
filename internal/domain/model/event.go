// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
)

// Kind is the type of a recorded pointer event.
type Kind uint8

const (
	PointerMoved Kind = iota
	ButtonPressed
	ButtonReleased
)

func (k Kind) String() string {
	switch k {
	case PointerMoved:
		return "pointer_moved"
	case ButtonPressed:
		return "button_pressed"
	case ButtonReleased:
		return "button_released"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool { return k <= ButtonReleased }

// Side identifies a pointer button. Move events carry SideNone.
type Side uint8

const (
	SideNone Side = iota
	SideLeft
	SideRight
	SideMiddle
)

func (s Side) String() string {
	switch s {
	case SideNone:
		return "none"
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	case SideMiddle:
		return "middle"
	default:
		return fmt.Sprintf("side(%d)", uint8(s))
	}
}

// ParseSide maps a button name to a Side.
func ParseSide(name string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "left":
		return SideLeft, nil
	case "right":
		return SideRight, nil
	case "middle":
		return SideMiddle, nil
	default:
		return SideNone, fmt.Errorf("unknown button %q", name)
	}
}

// Event is one timestamped pointer event. ElapsedMS is measured from the
// start of the recording session, never from the wall clock.
type Event struct {
	ID        int64
	Kind      Kind
	Side      Side
	X         int
	Y         int
	ElapsedMS int64
}

// IsButton reports whether the event presses or releases a button.
func (e Event) IsButton() bool {
	return e.Kind == ButtonPressed || e.Kind == ButtonReleased
}

// Validate checks that kind and side agree and elapsed time is not negative.
func (e Event) Validate() error {
	switch {
	case !e.Kind.Valid():
		return fmt.Errorf("invalid kind %s", e.Kind)
	case e.Side > SideMiddle:
		return fmt.Errorf("invalid side %s", e.Side)
	case e.IsButton() && e.Side == SideNone:
		return fmt.Errorf("%s without a button", e.Kind)
	case !e.IsButton() && e.Side != SideNone:
		return fmt.Errorf("%s with button %s", e.Kind, e.Side)
	case e.ElapsedMS < 0:
		return fmt.Errorf("negative elapsed time %d", e.ElapsedMS)
	}
	return nil
}

func (e Event) String() string {
	if e.IsButton() {
		return fmt.Sprintf("Event(id=%d, +%dms, %s %s at (%d,%d))", e.ID, e.ElapsedMS, e.Side, e.Kind, e.X, e.Y)
	}
	return fmt.Sprintf("Event(id=%d, +%dms, %s to (%d,%d))", e.ID, e.ElapsedMS, e.Kind, e.X, e.Y)
}

// Batch is an ordered run of events handed from the recorder to the
// persister by value. Session tags the recording session it came from.
type Batch struct {
	Session string
	Events  []Event
}

// Len returns the number of events in the batch.
func (b Batch) Len() int { return len(b.Events) }
