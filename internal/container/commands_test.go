package container

import (
	"errors"
	"testing"
	"time"

	"github.com/cargotrail/project/internal/contracts"
)

var testNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func mustDecide(t *testing.T, s State, cmd Command) (State, Event) {
	t.Helper()
	event, err := Decide(s, cmd, testNow)
	if err != nil {
		t.Fatalf("Decide(%s) returned error: %v", cmd.CommandKind(), err)
	}
	return Apply(s, event), event
}

func createdState(t *testing.T) State {
	t.Helper()
	s, _ := mustDecide(t, State{}, Create{ID: "c-1", Size: 100, ZoneName: "zone-1", PortName: "port-1"})
	return s
}

func TestCreate_InitialState(t *testing.T) {
	s := createdState(t)
	if s.ID != "c-1" || s.Size != 100 || s.UsedSize != 0 {
		t.Fatalf("unexpected created state: %+v", s)
	}
	if s.CurrentZone != "zone-1" || s.CurrentPort != "port-1" {
		t.Fatalf("unexpected location: %+v", s)
	}
	if s.Operational != StatusReleased || s.Transmit != StatusOffBoarded {
		t.Fatalf("unexpected statuses: %+v", s)
	}
}

func TestCreate_Validation(t *testing.T) {
	if _, err := Decide(State{}, Create{ID: "c-1", Size: 100, PortName: "port-1"}, testNow); !errors.Is(err, ErrZoneRequired) {
		t.Fatalf("expected ErrZoneRequired, got %v", err)
	}
	if _, err := Decide(State{}, Create{ID: "c-1", Size: 100, ZoneName: "zone-1"}, testNow); !errors.Is(err, ErrPortRequired) {
		t.Fatalf("expected ErrPortRequired, got %v", err)
	}
	if _, err := Decide(State{}, Create{ID: "c-1", ZoneName: "zone-1", PortName: "port-1"}, testNow); !errors.Is(err, ErrSizeRequired) {
		t.Fatalf("expected ErrSizeRequired, got %v", err)
	}
}

func TestReserve_RecordsOriginAndDestination(t *testing.T) {
	s := createdState(t)
	s, event := mustDecide(t, s, Reserve{ShipmentID: "ship-1", DestZone: "zone-3", DestPort: "port-3"})

	reserved, ok := event.(Reserved)
	if !ok {
		t.Fatalf("expected Reserved event, got %T", event)
	}
	if reserved.OriginZone != "zone-1" || reserved.OriginPort != "port-1" {
		t.Fatalf("origin should be the current location: %+v", reserved)
	}
	if s.Operational != StatusReserved || s.DestZone != "zone-3" || s.DestPort != "port-3" || s.ShipmentID != "ship-1" {
		t.Fatalf("unexpected reserved state: %+v", s)
	}
	if s.Shared {
		t.Fatal("a first reservation must not be shared")
	}
}

func TestReserve_RejectsDoubleReservation(t *testing.T) {
	s := createdState(t)
	s, _ = mustDecide(t, s, Reserve{ShipmentID: "ship-1", DestZone: "zone-3", DestPort: "port-3"})

	_, err := Decide(s, Reserve{ShipmentID: "ship-2", DestZone: "zone-5", DestPort: "port-5"}, testNow)
	var conflict *StateConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected StateConflictError, got %v", err)
	}
	if conflict.Command != "reserve" || conflict.State.Operational != StatusReserved {
		t.Fatalf("unexpected conflict detail: %+v", conflict)
	}
}

func TestBoard_BeforeLoadIsRejected(t *testing.T) {
	s := createdState(t)
	_, err := Decide(s, Board{}, testNow)
	var conflict *StateConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected StateConflictError, got %v", err)
	}
	if conflict.State.Operational != StatusReleased {
		t.Fatalf("conflict should carry the untouched state: %+v", conflict.State)
	}
}

func TestLoad_CapacityGuard(t *testing.T) {
	s := createdState(t)
	s, _ = mustDecide(t, s, Reserve{ShipmentID: "ship-1", DestZone: "zone-3", DestPort: "port-3"})

	if _, err := Decide(s, Load{UsedSize: 120}, testNow); err == nil {
		t.Fatal("expected over-capacity load to be rejected")
	}
	if _, err := Decide(s, Load{UsedSize: 100}, testNow); err == nil {
		t.Fatal("expected full-capacity load to be rejected")
	}
	if _, err := Decide(s, Load{UsedSize: 0}, testNow); !errors.Is(err, ErrUsedSizeRequired) {
		t.Fatalf("expected ErrUsedSizeRequired, got %v", err)
	}

	s, _ = mustDecide(t, s, Load{UsedSize: 80})
	if s.UsedSize != 80 || s.Operational != StatusLoaded {
		t.Fatalf("unexpected loaded state: %+v", s)
	}
	if s.UsedSize > s.Size {
		t.Fatalf("capacity invariant broken: used=%v size=%v", s.UsedSize, s.Size)
	}
}

func TestFullLifecycle_ArriveRelocatesAndReleaseAllowsReserve(t *testing.T) {
	s := createdState(t)
	s, _ = mustDecide(t, s, Reserve{ShipmentID: "ship-1", DestZone: "zone-3", DestPort: "port-3"})
	s, _ = mustDecide(t, s, Load{UsedSize: 80})
	s, _ = mustDecide(t, s, Board{})
	s, _ = mustDecide(t, s, Depart{})
	s, _ = mustDecide(t, s, Arrive{})

	if s.CurrentZone != "zone-3" || s.CurrentPort != "port-3" {
		t.Fatalf("arrival should relocate the container: %+v", s)
	}

	s, _ = mustDecide(t, s, OffBoard{})
	s, _ = mustDecide(t, s, OffLoad{})
	s, _ = mustDecide(t, s, Release{})

	if s.Operational != StatusReleased || s.Transmit != StatusOffBoarded {
		t.Fatalf("release should return the container to rest: %+v", s)
	}

	// A released container at its new location can be reserved again.
	_, event := mustDecide(t, s, Reserve{ShipmentID: "ship-2", DestZone: "zone-1", DestPort: "port-1"})
	reserved := event.(Reserved)
	if reserved.OriginZone != "zone-3" || reserved.OriginPort != "port-3" {
		t.Fatalf("fresh reservation should originate from the new location: %+v", reserved)
	}
}

func TestTransmitSequence_Guards(t *testing.T) {
	s := createdState(t)
	s, _ = mustDecide(t, s, Reserve{ShipmentID: "ship-1", DestZone: "zone-3", DestPort: "port-3"})
	s, _ = mustDecide(t, s, Load{UsedSize: 80})

	if _, err := Decide(s, Depart{}, testNow); err == nil {
		t.Fatal("depart before board must fail")
	}
	if _, err := Decide(s, Arrive{}, testNow); err == nil {
		t.Fatal("arrive before depart must fail")
	}
	if _, err := Decide(s, OffBoard{}, testNow); err == nil {
		t.Fatal("offboard before arrive must fail")
	}

	s, _ = mustDecide(t, s, Board{})
	if _, err := Decide(s, Board{}, testNow); err == nil {
		t.Fatal("double board must fail")
	}
	if _, err := Decide(s, OffLoad{}, testNow); err == nil {
		t.Fatal("offload while boarded must fail")
	}
}

func TestReplay_MatchesIncrementalState(t *testing.T) {
	var events []Event
	s := State{}
	for _, cmd := range []Command{
		Create{ID: "c-9", Size: 100, ZoneName: "zone-1", PortName: "port-1"},
		Reserve{ShipmentID: "ship-1", DestZone: "zone-3", DestPort: "port-3"},
		Load{UsedSize: 80},
		Board{},
		Depart{},
		Arrive{},
		OffBoard{},
		OffLoad{},
		Release{},
	} {
		event, err := Decide(s, cmd, testNow)
		if err != nil {
			t.Fatalf("Decide(%s): %v", cmd.CommandKind(), err)
		}
		s = Apply(s, event)
		events = append(events, event)
	}

	if replayed := Replay(events); replayed != s {
		t.Fatalf("replayed state diverges:\nreplayed:    %+v\nincremental: %+v", replayed, s)
	}
}

func TestReplayContracts_RoundTrip(t *testing.T) {
	var records []contracts.ContainerEvent
	s := State{}
	var seq uint64
	for _, cmd := range []Command{
		Create{ID: "c-2", Size: 100, ZoneName: "zone-1", PortName: "port-1"},
		Reserve{ShipmentID: "ship-1", DestZone: "zone-3", DestPort: "port-3"},
		Load{UsedSize: 80},
		Board{},
		Depart{},
		Arrive{},
	} {
		event, err := Decide(s, cmd, testNow)
		if err != nil {
			t.Fatalf("Decide(%s): %v", cmd.CommandKind(), err)
		}
		s = Apply(s, event)
		seq++
		records = append(records, ToContract(event, "c-2", "evt", "cmd", seq, 7))
	}

	replayed, err := ReplayContracts(records)
	if err != nil {
		t.Fatalf("ReplayContracts: %v", err)
	}
	if replayed != s {
		t.Fatalf("state lost through the wire representation:\nreplayed:    %+v\nincremental: %+v", replayed, s)
	}
	if replayed.CurrentZone != "zone-3" || replayed.CurrentPort != "port-3" {
		t.Fatalf("arrival location missing after round trip: %+v", replayed)
	}
}

func TestFromContract_UnknownKind(t *testing.T) {
	_, err := FromContract(contracts.ContainerEvent{Kind: "container.exploded"})
	if !errors.Is(err, ErrUnknownEventKind) {
		t.Fatalf("expected ErrUnknownEventKind, got %v", err)
	}
}
