package query

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrInventoryNotFound = errors.New("inventory row not found")

// ErrProjectionStale is returned when the inventory row has not caught up
// with a commit inside the staleness timeout.
var ErrProjectionStale = errors.New("projection did not catch up in time")

type InventoryView struct {
	ZoneName            string    `json:"zone_name"`
	PortName            string    `json:"port_name"`
	AvailableContainers int       `json:"available_containers"`
	ForecastContainers  int       `json:"forecast_containers"`
	LastUpdated         time.Time `json:"last_updated"`
}

type InventoryRepository struct {
	Pool *pgxpool.Pool
}

func NewInventoryRepository(pool *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{Pool: pool}
}

// GetInventory point-reads one (zone, port) row. A key no creation event has
// reached yet is ErrInventoryNotFound, never a zero-valued row.
func (r *InventoryRepository) GetInventory(ctx context.Context, zoneName, portName string) (InventoryView, error) {
	var v InventoryView
	err := r.Pool.QueryRow(ctx,
		`SELECT zone_name, port_name, available_containers, forecast_containers, last_updated
		 FROM inventory
		 WHERE zone_name = $1 AND port_name = $2`,
		zoneName, portName,
	).Scan(
		&v.ZoneName,
		&v.PortName,
		&v.AvailableContainers,
		&v.ForecastContainers,
		&v.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return InventoryView{}, ErrInventoryNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
			// Projector has not created its schema yet.
			return InventoryView{}, ErrInventoryNotFound
		}
		return InventoryView{}, err
	}
	return v, nil
}

// WaitForProjection polls until the row's last_updated reaches the given
// commit time, backing off between attempts. It fails loudly on timeout
// instead of blocking callers indefinitely.
func (r *InventoryRepository) WaitForProjection(ctx context.Context, zoneName, portName string, since time.Time, timeout time.Duration) (InventoryView, error) {
	zoneName = strings.TrimSpace(zoneName)
	portName = strings.TrimSpace(portName)
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	deadline := time.Now().Add(timeout)
	delay := 20 * time.Millisecond
	for time.Now().Before(deadline) {
		v, err := r.GetInventory(ctx, zoneName, portName)
		if err == nil && !v.LastUpdated.Before(since) {
			return v, nil
		}
		if err != nil && !errors.Is(err, ErrInventoryNotFound) {
			return InventoryView{}, err
		}

		select {
		case <-ctx.Done():
			return InventoryView{}, ctx.Err()
		case <-time.After(delay):
		}

		nextDelay := time.Duration(float64(delay) * 1.5)
		if nextDelay > 250*time.Millisecond {
			nextDelay = 250 * time.Millisecond
		}
		delay = nextDelay
	}
	return InventoryView{}, ErrProjectionStale
}
