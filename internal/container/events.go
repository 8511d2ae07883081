package container

import (
	"errors"
	"time"

	"github.com/cargotrail/project/internal/contracts"
)

var ErrUnknownEventKind = errors.New("unknown event kind")

// Event is the closed set of facts that can appear in a container's stream.
// Each kind carries its own apply transition, so replaying a stream is
// exhaustive by construction: an event without a transition cannot exist.
//
// Replay applies effects unconditionally. Preconditions are evaluated once,
// at command time, in Decide; re-checking them here would make replay
// partial over histories the log has already accepted.
type Event interface {
	Kind() string
	apply(State) State
}

type Created struct {
	ID       string
	Size     float64
	ZoneName string
	PortName string
	At       time.Time
}

func (Created) Kind() string { return contracts.EventCreated }

func (e Created) apply(s State) State {
	return State{
		ID:              e.ID,
		Size:            e.Size,
		UsedSize:        0,
		CurrentZone:     e.ZoneName,
		CurrentPort:     e.PortName,
		Operational:     StatusReleased,
		Transmit:        StatusOffBoarded,
		LastOperationAt: e.At,
		LastTransmitAt:  e.At,
	}
}

type Reserved struct {
	ShipmentID string
	OriginZone string
	OriginPort string
	DestZone   string
	DestPort   string
	At         time.Time
}

func (Reserved) Kind() string { return contracts.EventReserved }

func (e Reserved) apply(s State) State {
	s.ShipmentID = e.ShipmentID
	s.OriginZone = e.OriginZone
	s.OriginPort = e.OriginPort
	s.DestZone = e.DestZone
	s.DestPort = e.DestPort
	// A reservation on an already-reserved container never passes the
	// reserve guard, so a committed reservation is never shared.
	s.Shared = false
	s.Operational = StatusReserved
	s.LastOperationAt = e.At
	return s
}

type Loaded struct {
	UsedSize float64
	At       time.Time
}

func (Loaded) Kind() string { return contracts.EventLoaded }

func (e Loaded) apply(s State) State {
	s.UsedSize = e.UsedSize
	s.Operational = StatusLoaded
	s.LastOperationAt = e.At
	return s
}

type Boarded struct {
	At time.Time
}

func (Boarded) Kind() string { return contracts.EventBoarded }

func (e Boarded) apply(s State) State {
	s.Transmit = StatusBoarded
	s.LastTransmitAt = e.At
	return s
}

type Departed struct {
	At time.Time
}

func (Departed) Kind() string { return contracts.EventDeparted }

func (e Departed) apply(s State) State {
	s.Transmit = StatusDeparted
	s.LastTransmitAt = e.At
	return s
}

// Arrived records the destination explicitly so replay never depends on the
// reservation still being present in earlier state.
type Arrived struct {
	ZoneName string
	PortName string
	At       time.Time
}

func (Arrived) Kind() string { return contracts.EventArrived }

func (e Arrived) apply(s State) State {
	s.Transmit = StatusArrived
	s.CurrentZone = e.ZoneName
	s.CurrentPort = e.PortName
	s.LastTransmitAt = e.At
	return s
}

type OffBoarded struct {
	At time.Time
}

func (OffBoarded) Kind() string { return contracts.EventOffBoarded }

func (e OffBoarded) apply(s State) State {
	s.Transmit = StatusOffBoarded
	s.LastTransmitAt = e.At
	return s
}

type OffLoaded struct {
	At time.Time
}

func (OffLoaded) Kind() string { return contracts.EventOffLoaded }

func (e OffLoaded) apply(s State) State {
	s.Operational = StatusOffLoaded
	s.LastOperationAt = e.At
	return s
}

type Released struct {
	At time.Time
}

func (Released) Kind() string { return contracts.EventReleased }

func (e Released) apply(s State) State {
	s.Operational = StatusReleased
	s.LastOperationAt = e.At
	return s
}

// Apply folds one event into the state, returning the next state.
func Apply(s State, e Event) State {
	return e.apply(s)
}

// Replay rebuilds state from a full event stream, in sequence order.
func Replay(events []Event) State {
	var s State
	for _, e := range events {
		s = e.apply(s)
	}
	return s
}

// ToContract flattens an event into its wire and storage representation.
func ToContract(e Event, containerID, eventID, commandID string, sequence uint64, shardID int) contracts.ContainerEvent {
	c := contracts.ContainerEvent{
		EventID:     eventID,
		CommandID:   commandID,
		ContainerID: containerID,
		Sequence:    sequence,
		Kind:        e.Kind(),
		ShardID:     shardID,
	}
	switch ev := e.(type) {
	case Created:
		c.Size = ev.Size
		c.ZoneName = ev.ZoneName
		c.PortName = ev.PortName
		c.OccurredAt = ev.At
	case Reserved:
		c.ShipmentID = ev.ShipmentID
		c.OriginZone = ev.OriginZone
		c.OriginPort = ev.OriginPort
		c.DestZone = ev.DestZone
		c.DestPort = ev.DestPort
		c.OccurredAt = ev.At
	case Loaded:
		c.UsedSize = ev.UsedSize
		c.OccurredAt = ev.At
	case Boarded:
		c.OccurredAt = ev.At
	case Departed:
		c.OccurredAt = ev.At
	case Arrived:
		c.ZoneName = ev.ZoneName
		c.PortName = ev.PortName
		c.OccurredAt = ev.At
	case OffBoarded:
		c.OccurredAt = ev.At
	case OffLoaded:
		c.OccurredAt = ev.At
	case Released:
		c.OccurredAt = ev.At
	}
	return c
}

// FromContract rebuilds the typed event from its wire representation.
func FromContract(c contracts.ContainerEvent) (Event, error) {
	switch c.Kind {
	case contracts.EventCreated:
		return Created{ID: c.ContainerID, Size: c.Size, ZoneName: c.ZoneName, PortName: c.PortName, At: c.OccurredAt}, nil
	case contracts.EventReserved:
		return Reserved{ShipmentID: c.ShipmentID, OriginZone: c.OriginZone, OriginPort: c.OriginPort, DestZone: c.DestZone, DestPort: c.DestPort, At: c.OccurredAt}, nil
	case contracts.EventLoaded:
		return Loaded{UsedSize: c.UsedSize, At: c.OccurredAt}, nil
	case contracts.EventBoarded:
		return Boarded{At: c.OccurredAt}, nil
	case contracts.EventDeparted:
		return Departed{At: c.OccurredAt}, nil
	case contracts.EventArrived:
		return Arrived{ZoneName: c.ZoneName, PortName: c.PortName, At: c.OccurredAt}, nil
	case contracts.EventOffBoarded:
		return OffBoarded{At: c.OccurredAt}, nil
	case contracts.EventOffLoaded:
		return OffLoaded{At: c.OccurredAt}, nil
	case contracts.EventReleased:
		return Released{At: c.OccurredAt}, nil
	default:
		return nil, ErrUnknownEventKind
	}
}

// ReplayContracts folds a stored stream straight into state.
func ReplayContracts(records []contracts.ContainerEvent) (State, error) {
	var s State
	for _, rec := range records {
		e, err := FromContract(rec)
		if err != nil {
			return State{}, err
		}
		s = e.apply(s)
	}
	return s, nil
}
