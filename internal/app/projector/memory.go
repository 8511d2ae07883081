package projector

import (
	"context"
	"sync"
	"time"

	"github.com/cargotrail/project/internal/contracts"
)

// Key identifies an inventory row. Equality is structural.
type Key struct {
	ZoneName string
	PortName string
}

type Row struct {
	Key                 Key
	AvailableContainers int
	ForecastContainers  int
	LastUpdated         time.Time
}

// MemoryRepository applies the same mutation rules as the Postgres
// repository against an in-process table. Tests and the demo driver use it
// as both the projector sink and the query side.
type MemoryRepository struct {
	mu        sync.Mutex
	rows      map[Key]Row
	projected map[string]struct{}
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		rows:      map[Key]Row{},
		projected: map[string]struct{}{},
	}
}

func (r *MemoryRepository) ApplyEvent(_ context.Context, event contracts.ContainerEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, done := r.projected[event.EventID]; done {
		return nil
	}
	r.projected[event.EventID] = struct{}{}

	switch event.Kind {
	case contracts.EventCreated:
		key := Key{ZoneName: event.ZoneName, PortName: event.PortName}
		row, ok := r.rows[key]
		if !ok {
			row = Row{Key: key}
		}
		row.AvailableContainers++
		r.touch(&row, event.OccurredAt)
		r.rows[key] = row

	case contracts.EventReserved:
		origin := Key{ZoneName: event.OriginZone, PortName: event.OriginPort}
		if row, ok := r.rows[origin]; ok {
			if row.AvailableContainers > 0 {
				row.AvailableContainers--
			}
			r.touch(&row, event.OccurredAt)
			r.rows[origin] = row
		}
		dest := Key{ZoneName: event.DestZone, PortName: event.DestPort}
		if row, ok := r.rows[dest]; ok {
			row.ForecastContainers++
			r.touch(&row, event.OccurredAt)
			r.rows[dest] = row
		}
	}
	return nil
}

func (r *MemoryRepository) touch(row *Row, at time.Time) {
	if at.After(row.LastUpdated) {
		row.LastUpdated = at
	}
}

// Get returns the row for a key, reporting whether it exists.
func (r *MemoryRepository) Get(zoneName, portName string) (Row, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[Key{ZoneName: zoneName, PortName: portName}]
	return row, ok
}
