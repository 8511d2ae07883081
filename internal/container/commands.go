package container

import (
	"errors"
	"fmt"
	"time"
)

var ErrZoneRequired = errors.New("zone name is required")
var ErrPortRequired = errors.New("port name is required")
var ErrSizeRequired = errors.New("size must be positive")
var ErrUsedSizeRequired = errors.New("used size must be positive")
var ErrShipmentRequired = errors.New("shipment id is required")
var ErrDestinationRequired = errors.New("destination zone and port are required")

// IsValidationError reports whether err is a malformed-command rejection,
// raised before any aggregate state is read.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrZoneRequired) ||
		errors.Is(err, ErrPortRequired) ||
		errors.Is(err, ErrSizeRequired) ||
		errors.Is(err, ErrUsedSizeRequired) ||
		errors.Is(err, ErrShipmentRequired) ||
		errors.Is(err, ErrDestinationRequired)
}

// StateConflictError reports a command whose precondition does not hold for
// the container's current status pair. The state is included so callers can
// decide whether a later retry makes sense.
type StateConflictError struct {
	Command string
	State   State
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("cannot %s container %s: operational=%s transmit=%s",
		e.Command, e.State.ID, e.State.Operational, e.State.Transmit)
}

// Command is the closed set of lifecycle commands a container accepts.
type Command interface {
	CommandKind() string
}

type Create struct {
	ID       string
	Size     float64
	ZoneName string
	PortName string
}

type Reserve struct {
	ShipmentID string
	DestZone   string
	DestPort   string
}

type Load struct {
	UsedSize float64
}

type Board struct{}
type Depart struct{}
type Arrive struct{}
type OffBoard struct{}
type OffLoad struct{}
type Release struct{}

func (Create) CommandKind() string   { return "create" }
func (Reserve) CommandKind() string  { return "reserve" }
func (Load) CommandKind() string     { return "load" }
func (Board) CommandKind() string    { return "board" }
func (Depart) CommandKind() string   { return "depart" }
func (Arrive) CommandKind() string   { return "arrive" }
func (OffBoard) CommandKind() string { return "offboard" }
func (OffLoad) CommandKind() string  { return "offload" }
func (Release) CommandKind() string  { return "release" }

// Decide evaluates one command against the current state and either produces
// the single event to append or fails. It performs no I/O and never mutates
// the given state.
func Decide(s State, cmd Command, now time.Time) (Event, error) {
	switch c := cmd.(type) {
	case Create:
		if c.ZoneName == "" {
			return nil, ErrZoneRequired
		}
		if c.PortName == "" {
			return nil, ErrPortRequired
		}
		if c.Size <= 0 {
			return nil, ErrSizeRequired
		}
		return Created{ID: c.ID, Size: c.Size, ZoneName: c.ZoneName, PortName: c.PortName, At: now}, nil

	case Reserve:
		if c.ShipmentID == "" {
			return nil, ErrShipmentRequired
		}
		if c.DestZone == "" || c.DestPort == "" {
			return nil, ErrDestinationRequired
		}
		if s.Operational != StatusReleased || s.Transmit != StatusOffBoarded || s.UsedSize >= s.Size {
			return nil, &StateConflictError{Command: c.CommandKind(), State: s}
		}
		return Reserved{
			ShipmentID: c.ShipmentID,
			OriginZone: s.CurrentZone,
			OriginPort: s.CurrentPort,
			DestZone:   c.DestZone,
			DestPort:   c.DestPort,
			At:         now,
		}, nil

	case Load:
		if c.UsedSize <= 0 {
			return nil, ErrUsedSizeRequired
		}
		if s.Operational != StatusReserved || s.Transmit != StatusOffBoarded || c.UsedSize >= s.Size {
			return nil, &StateConflictError{Command: c.CommandKind(), State: s}
		}
		return Loaded{UsedSize: c.UsedSize, At: now}, nil

	case Board:
		if s.Operational != StatusLoaded || s.Transmit != StatusOffBoarded {
			return nil, &StateConflictError{Command: c.CommandKind(), State: s}
		}
		return Boarded{At: now}, nil

	case Depart:
		if s.Operational != StatusLoaded || s.Transmit != StatusBoarded {
			return nil, &StateConflictError{Command: c.CommandKind(), State: s}
		}
		return Departed{At: now}, nil

	case Arrive:
		if s.Operational != StatusLoaded || s.Transmit != StatusDeparted {
			return nil, &StateConflictError{Command: c.CommandKind(), State: s}
		}
		return Arrived{ZoneName: s.DestZone, PortName: s.DestPort, At: now}, nil

	case OffBoard:
		if s.Operational != StatusLoaded || s.Transmit != StatusArrived {
			return nil, &StateConflictError{Command: c.CommandKind(), State: s}
		}
		return OffBoarded{At: now}, nil

	case OffLoad:
		if s.Operational != StatusLoaded || s.Transmit != StatusOffBoarded {
			return nil, &StateConflictError{Command: c.CommandKind(), State: s}
		}
		return OffLoaded{At: now}, nil

	case Release:
		if s.Operational != StatusOffLoaded || s.Transmit != StatusOffBoarded {
			return nil, &StateConflictError{Command: c.CommandKind(), State: s}
		}
		return Released{At: now}, nil

	default:
		return nil, fmt.Errorf("unsupported command %T", cmd)
	}
}
