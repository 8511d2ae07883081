package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cargotrail/project/internal/contracts"
)

const createEventsTableSQL = `
CREATE TABLE IF NOT EXISTS container_events (
  container_id text NOT NULL,
  sequence bigint NOT NULL,
  event_id text NOT NULL,
  command_id text NOT NULL,
  kind text NOT NULL,
  payload jsonb NOT NULL,
  occurred_at timestamptz NOT NULL,
  inserted_at timestamptz NOT NULL DEFAULT now(),
  PRIMARY KEY (container_id, sequence)
)`

const appendEventSQL = `
INSERT INTO container_events (container_id, sequence, event_id, command_id, kind, payload, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`

const loadStreamSQL = `
SELECT payload
FROM container_events
WHERE container_id = $1
ORDER BY sequence
`

const loadTailSQL = `
SELECT payload
FROM container_events
WHERE container_id = $1 AND sequence > $2
ORDER BY sequence
`

const uniqueViolationCode = "23505"

// PostgresLog persists event streams in a single table keyed by
// (container_id, sequence). The primary key turns a lost optimistic-append
// race into a unique violation, which is surfaced as ErrConcurrencyConflict.
type PostgresLog struct {
	Pool *pgxpool.Pool
}

func NewPostgresLog(pool *pgxpool.Pool) *PostgresLog {
	return &PostgresLog{Pool: pool}
}

func (l *PostgresLog) EnsureSchema(ctx context.Context) error {
	_, err := l.Pool.Exec(ctx, createEventsTableSQL)
	return err
}

func (l *PostgresLog) Append(ctx context.Context, containerID string, expected uint64, event contracts.ContainerEvent) error {
	event.Sequence = expected + 1
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	_, err = l.Pool.Exec(ctx, appendEventSQL,
		containerID,
		int64(event.Sequence),
		event.EventID,
		event.CommandID,
		event.Kind,
		payload,
		event.OccurredAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrConcurrencyConflict
		}
		return err
	}
	return nil
}

func (l *PostgresLog) Load(ctx context.Context, containerID string) ([]contracts.ContainerEvent, error) {
	stream, err := l.loadRows(ctx, loadStreamSQL, containerID)
	if err != nil {
		return nil, err
	}
	if len(stream) == 0 {
		return nil, ErrStreamNotFound
	}
	return stream, nil
}

func (l *PostgresLog) LoadAfter(ctx context.Context, containerID string, after uint64) ([]contracts.ContainerEvent, error) {
	return l.loadRows(ctx, loadTailSQL, containerID, int64(after))
}

func (l *PostgresLog) loadRows(ctx context.Context, query string, args ...any) ([]contracts.ContainerEvent, error) {
	rows, err := l.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stream []contracts.ContainerEvent
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var event contracts.ContainerEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("decode stored event: %w", err)
		}
		stream = append(stream, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stream, nil
}
