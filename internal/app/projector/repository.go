package projector

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cargotrail/project/internal/contracts"
)

const createProjectedEventsTableSQL = `
CREATE TABLE IF NOT EXISTS projected_events (
  event_id text PRIMARY KEY,
  command_id text NOT NULL,
  container_id text NOT NULL,
  sequence bigint NOT NULL,
  kind text NOT NULL,
  occurred_at timestamptz NOT NULL,
  inserted_at timestamptz NOT NULL DEFAULT now()
)`

const createInventoryTableSQL = `
CREATE TABLE IF NOT EXISTS inventory (
  zone_name text NOT NULL,
  port_name text NOT NULL,
  available_containers integer NOT NULL DEFAULT 0 CHECK (available_containers >= 0),
  forecast_containers integer NOT NULL DEFAULT 0 CHECK (forecast_containers >= 0),
  last_updated timestamptz NOT NULL,
  PRIMARY KEY (zone_name, port_name)
)`

const markEventProjectedSQL = `
INSERT INTO projected_events (event_id, command_id, container_id, sequence, kind, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (event_id) DO NOTHING
`

const upsertCreatedInventorySQL = `
INSERT INTO inventory (zone_name, port_name, available_containers, forecast_containers, last_updated)
VALUES ($1, $2, 1, 0, $3)
ON CONFLICT (zone_name, port_name) DO UPDATE
SET available_containers = inventory.available_containers + 1,
    last_updated = GREATEST(inventory.last_updated, EXCLUDED.last_updated)
`

const decrementOriginAvailableSQL = `
UPDATE inventory
SET available_containers = GREATEST(available_containers - 1, 0),
    last_updated = GREATEST(last_updated, $3)
WHERE zone_name = $1 AND port_name = $2
`

const incrementDestForecastSQL = `
UPDATE inventory
SET forecast_containers = forecast_containers + 1,
    last_updated = GREATEST(last_updated, $3)
WHERE zone_name = $1 AND port_name = $2
`

// PostgresRepository applies events transactionally. The projected_events
// insert doubles as a dedup marker: a redelivered event hits the ON CONFLICT
// and the inventory mutation is skipped, so at-least-once delivery cannot
// double-count. Row updates are serialized per key by the row lock the
// UPDATE itself takes.
type PostgresRepository struct {
	Pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{Pool: pool}
}

func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.Pool.Exec(ctx, createProjectedEventsTableSQL); err != nil {
		return err
	}
	if _, err := r.Pool.Exec(ctx, createInventoryTableSQL); err != nil {
		return err
	}
	return nil
}

func (r *PostgresRepository) ApplyEvent(ctx context.Context, event contracts.ContainerEvent) error {
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, markEventProjectedSQL,
		event.EventID,
		event.CommandID,
		event.ContainerID,
		int64(event.Sequence),
		event.Kind,
		event.OccurredAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Redelivery of an event already applied.
		return tx.Commit(ctx)
	}

	switch event.Kind {
	case contracts.EventCreated:
		if _, err := tx.Exec(ctx, upsertCreatedInventorySQL,
			event.ZoneName, event.PortName, event.OccurredAt,
		); err != nil {
			return err
		}
	case contracts.EventReserved:
		if _, err := tx.Exec(ctx, decrementOriginAvailableSQL,
			event.OriginZone, event.OriginPort, event.OccurredAt,
		); err != nil {
			return err
		}
		// A reservation cannot manufacture a new inventory location: the
		// forecast bump applies only when the destination row exists.
		if _, err := tx.Exec(ctx, incrementDestForecastSQL,
			event.DestZone, event.DestPort, event.OccurredAt,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
