package contracts

import "time"

// Container event kinds. The set is closed: consumers terminate delivery of
// any kind outside it.
const (
	EventCreated    = "container.created"
	EventReserved   = "container.reserved"
	EventLoaded     = "container.loaded"
	EventBoarded    = "container.boarded"
	EventDeparted   = "container.departed"
	EventArrived    = "container.arrived"
	EventOffBoarded = "container.offboarded"
	EventOffLoaded  = "container.offloaded"
	EventReleased   = "container.released"
)

// ContainerEvent is the committed fact appended to the event log and
// published to subscribers. Sequence is per-container, gapless, starting at 1.
// Only the fields relevant to the event kind are populated.
type ContainerEvent struct {
	EventID     string    `json:"event_id"`
	CommandID   string    `json:"command_id"`
	ContainerID string    `json:"container_id"`
	Sequence    uint64    `json:"sequence"`
	Kind        string    `json:"kind"`
	Size        float64   `json:"size,omitempty"`
	UsedSize    float64   `json:"used_size,omitempty"`
	ZoneName    string    `json:"zone_name,omitempty"`
	PortName    string    `json:"port_name,omitempty"`
	ShipmentID  string    `json:"shipment_id,omitempty"`
	OriginZone  string    `json:"origin_zone,omitempty"`
	OriginPort  string    `json:"origin_port,omitempty"`
	DestZone    string    `json:"dest_zone,omitempty"`
	DestPort    string    `json:"dest_port,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
	ShardID     int       `json:"shard_id"`
}
