// Package eventlog stores each container's ordered, immutable event stream.
// The conditional append is the single write-write race detector in the
// system: no other locking exists across containers.
package eventlog

import (
	"context"
	"errors"

	"github.com/cargotrail/project/internal/contracts"
)

// ErrConcurrencyConflict is returned when an append's expected sequence does
// not match the stream's actual tail. Nothing is stored.
var ErrConcurrencyConflict = errors.New("event log sequence conflict")

// ErrStreamNotFound is returned by reads of a container id that has no
// events at all.
var ErrStreamNotFound = errors.New("event stream not found")

// Log is a durable, per-container append log.
//
// Append stores the event iff the stream's current tail sequence equals
// expected; the event must carry Sequence == expected+1. Load returns the
// full stream in sequence order; LoadAfter returns the tail past a known
// sequence, for incremental replay on top of a cached snapshot.
type Log interface {
	Append(ctx context.Context, containerID string, expected uint64, event contracts.ContainerEvent) error
	Load(ctx context.Context, containerID string) ([]contracts.ContainerEvent, error)
	LoadAfter(ctx context.Context, containerID string, after uint64) ([]contracts.ContainerEvent, error)
}
