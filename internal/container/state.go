package container

import "time"

// OperationalStatus tracks the cargo dimension of a container's lifecycle.
type OperationalStatus string

const (
	StatusReleased  OperationalStatus = "released"
	StatusReserved  OperationalStatus = "reserved"
	StatusLoaded    OperationalStatus = "loaded"
	StatusOffLoaded OperationalStatus = "offloaded"
)

// TransmitStatus tracks the movement dimension of a container's lifecycle.
// The two dimensions are independent axes: a command's precondition is always
// a function of the pair.
type TransmitStatus string

const (
	StatusOffBoarded TransmitStatus = "offboarded"
	StatusBoarded    TransmitStatus = "boarded"
	StatusDeparted   TransmitStatus = "departed"
	StatusArrived    TransmitStatus = "arrived"
)

// State is the container aggregate state. It is never stored directly: it is
// rebuilt by replaying the container's event stream and replaced wholesale by
// each applied event. The JSON tags exist for the snapshot cache only.
type State struct {
	ID          string            `json:"id"`
	Size        float64           `json:"size"`
	UsedSize    float64           `json:"used_size"`
	CurrentZone string            `json:"current_zone"`
	CurrentPort string            `json:"current_port"`
	ShipmentID  string            `json:"shipment_id,omitempty"`
	OriginZone  string            `json:"origin_zone,omitempty"`
	OriginPort  string            `json:"origin_port,omitempty"`
	DestZone    string            `json:"dest_zone,omitempty"`
	DestPort    string            `json:"dest_port,omitempty"`
	Shared      bool              `json:"shared"`
	Operational OperationalStatus `json:"operational_status"`
	Transmit    TransmitStatus    `json:"transmit_status"`

	LastOperationAt time.Time `json:"last_operation_at"`
	LastTransmitAt  time.Time `json:"last_transmit_at"`
}

// Exists reports whether the state was produced by at least one event.
func (s State) Exists() bool {
	return s.ID != ""
}
