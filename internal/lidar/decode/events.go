package decode

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// LineDirection is the sweep direction announced by a line-start event.
type LineDirection uint8

const (
	LineUp LineDirection = iota + 1
	LineDown
)

func (d LineDirection) String() string {
	switch d {
	case LineUp:
		return "up"
	case LineDown:
		return "down"
	default:
		return fmt.Sprintf("LineDirection(%d)", uint8(d))
	}
}

// Shot is one laser emission.
type Shot struct {
	TimeSorg  float64 // start of range gate, seconds
	Direction r3.Vec  // beam direction, not necessarily normalised
	Origin    r3.Vec  // beam origin in metres
}

// Echo is one detected return of the current shot.
type Echo struct {
	ReturnIndex uint16  // 1-based index within the shot's returns
	Time        float64 // seconds
	Amplitude   float32 // dB
	Deviation   float32 // pulse shape deviation
	Range       float64 // metres from the optical centre
	Reflectance float32 // dB
	Vertex      r3.Vec  // metres
}

// EventKind identifies the payload of an Event.
type EventKind uint8

const (
	KindShot EventKind = iota + 1
	KindEcho
	KindLineStartUp
	KindLineStartDown
)

func (k EventKind) String() string {
	switch k {
	case KindShot:
		return "shot"
	case KindEcho:
		return "echo"
	case KindLineStartUp:
		return "line_start_up"
	case KindLineStartDown:
		return "line_start_dn"
	default:
		return fmt.Sprintf("EventKind(%d)", uint8(k))
	}
}

// Event is a single decoded unit entry. Only the field matching Kind is
// meaningful.
type Event struct {
	Kind EventKind
	Shot Shot
	Echo Echo
}

// ShotEvent wraps s in an Event.
func ShotEvent(s Shot) Event { return Event{Kind: KindShot, Shot: s} }

// EchoEvent wraps e in an Event.
func EchoEvent(e Echo) Event { return Event{Kind: KindEcho, Echo: e} }

// LineStartEvent returns the line-start event for direction d.
func LineStartEvent(d LineDirection) Event {
	if d == LineDown {
		return Event{Kind: KindLineStartDown}
	}
	return Event{Kind: KindLineStartUp}
}

// Unit is the batch of events produced by one decode step.
type Unit []Event

// Shots returns the number of shot events in u.
func (u Unit) Shots() int {
	n := 0
	for _, ev := range u {
		if ev.Kind == KindShot {
			n++
		}
	}
	return n
}

// Handler receives decoded events in stream order.
type Handler interface {
	// OnShot is invoked once for every shot, whether or not it has returns.
	OnShot(s Shot)
	// OnEcho is invoked for each return of the most recent shot.
	OnEcho(e Echo) error
	// OnLineStart marks a change of sweep direction.
	OnLineStart(d LineDirection)
}

// Dispatch feeds every event of u to h in order and stops at the first
// handler error.
func Dispatch(u Unit, h Handler) error {
	for i := range u {
		ev := &u[i]
		switch ev.Kind {
		case KindShot:
			h.OnShot(ev.Shot)
		case KindEcho:
			if err := h.OnEcho(ev.Echo); err != nil {
				return err
			}
		case KindLineStartUp:
			h.OnLineStart(LineUp)
		case KindLineStartDown:
			h.OnLineStart(LineDown)
		default:
			return fmt.Errorf("dispatch: event %d has unknown kind %v", i, ev.Kind)
		}
	}
	return nil
}
