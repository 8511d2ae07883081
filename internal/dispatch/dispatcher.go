// Package dispatch routes lifecycle commands through replay, the pure
// transition logic, and the optimistic append, then hands committed events
// to the publisher.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nuid"

	"github.com/cargotrail/project/internal/container"
	"github.com/cargotrail/project/internal/eventlog"
	"github.com/cargotrail/project/internal/platform/metrics"
	"github.com/cargotrail/project/internal/sharding"
)

var ErrContainerNotFound = errors.New("container not found")

const defaultMaxRetries = 3

var commandsTotal = metrics.NewCounterVec(metrics.Opts{
	Name: "container_commands_total",
	Help: "Lifecycle commands by action and result.",
}, []string{"action", "result"})

var appendConflictsTotal = metrics.NewCounterVec(metrics.Opts{
	Name: "container_append_conflicts_total",
	Help: "Optimistic append races lost, including retried ones.",
}, []string{"action"})

func init() {
	metrics.Default.MustRegister(commandsTotal, appendConflictsTotal)
}

type PublishFunc func(subject string, payload []byte) error

// SnapshotCache caches replayed state keyed by container ID. Misses and
// errors both fall back to full replay from the log.
type SnapshotCache interface {
	Get(ctx context.Context, containerID string) (container.State, uint64, bool, error)
	Put(ctx context.Context, containerID string, state container.State, sequence uint64) error
}

type Dispatcher struct {
	Log            eventlog.Log
	Publish        PublishFunc
	Snapshots      SnapshotCache
	Now            func() time.Time
	NewEventID     func() string
	NewContainerID func() string
	MaxRetries     int
}

func NewDispatcher(log eventlog.Log, publish PublishFunc) *Dispatcher {
	return &Dispatcher{
		Log:            log,
		Publish:        publish,
		Now:            func() time.Time { return time.Now().UTC() },
		NewEventID:     nuid.Next,
		NewContainerID: uuid.NewString,
		MaxRetries:     defaultMaxRetries,
	}
}

type Result struct {
	ContainerID string
	Sequence    uint64
}

// Execute runs one command to completion: replay, decide, conditional
// append, publish. Lost append races are retried from a fresh replay up to
// MaxRetries; state conflicts and validation failures are returned
// immediately and never retried. The returned sequence is the committed
// event's position in the container's stream; the projection may not have
// consumed it yet.
func (d *Dispatcher) Execute(ctx context.Context, commandID, containerID string, cmd container.Command) (Result, error) {
	if create, ok := cmd.(container.Create); ok {
		if containerID == "" {
			containerID = d.NewContainerID()
		}
		create.ID = containerID
		cmd = create
	}

	retries := d.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		state, sequence, err := d.currentState(ctx, containerID, cmd)
		if err != nil {
			if errors.Is(err, ErrContainerNotFound) {
				commandsTotal.WithLabelValues(cmd.CommandKind(), "not_found").Inc()
			} else {
				commandsTotal.WithLabelValues(cmd.CommandKind(), "error").Inc()
			}
			return Result{}, err
		}

		event, err := container.Decide(state, cmd, d.Now())
		if err != nil {
			var conflict *container.StateConflictError
			if errors.As(err, &conflict) {
				commandsTotal.WithLabelValues(cmd.CommandKind(), "state_conflict").Inc()
			} else {
				commandsTotal.WithLabelValues(cmd.CommandKind(), "invalid").Inc()
			}
			return Result{}, err
		}

		record := container.ToContract(event, containerID, d.NewEventID(), commandID, sequence+1, sharding.GetShardID(containerID))
		if err := d.Log.Append(ctx, containerID, sequence, record); err != nil {
			if errors.Is(err, eventlog.ErrConcurrencyConflict) {
				appendConflictsTotal.WithLabelValues(cmd.CommandKind()).Inc()
				lastErr = err
				continue
			}
			commandsTotal.WithLabelValues(cmd.CommandKind(), "error").Inc()
			return Result{}, err
		}

		next := container.Apply(state, event)
		if d.Snapshots != nil {
			// Best effort: a failed snapshot write only costs replay later.
			_ = d.Snapshots.Put(ctx, containerID, next, record.Sequence)
		}

		payload, err := json.Marshal(record)
		if err != nil {
			return Result{}, fmt.Errorf("encode committed event: %w", err)
		}
		if err := d.Publish(sharding.EventSubject(containerID), payload); err != nil {
			commandsTotal.WithLabelValues(cmd.CommandKind(), "publish_error").Inc()
			return Result{ContainerID: containerID, Sequence: record.Sequence},
				fmt.Errorf("event committed at sequence %d but publish failed: %w", record.Sequence, err)
		}

		commandsTotal.WithLabelValues(cmd.CommandKind(), "committed").Inc()
		return Result{ContainerID: containerID, Sequence: record.Sequence}, nil
	}

	commandsTotal.WithLabelValues(cmd.CommandKind(), "concurrency_conflict").Inc()
	return Result{}, fmt.Errorf("command %s on container %s: retries exhausted: %w",
		cmd.CommandKind(), containerID, lastErr)
}

// currentState rebuilds the container's state and tail sequence, preferring
// a cached snapshot topped up with the stream tail over a full replay.
func (d *Dispatcher) currentState(ctx context.Context, containerID string, cmd container.Command) (container.State, uint64, error) {
	if _, ok := cmd.(container.Create); ok {
		// A new stream: the append below will fail if the id already exists.
		return container.State{}, 0, nil
	}

	if d.Snapshots != nil {
		state, sequence, hit, err := d.Snapshots.Get(ctx, containerID)
		if err == nil && hit {
			tail, err := d.Log.LoadAfter(ctx, containerID, sequence)
			if err == nil {
				for _, rec := range tail {
					event, convErr := container.FromContract(rec)
					if convErr != nil {
						return container.State{}, 0, convErr
					}
					state = container.Apply(state, event)
					sequence = rec.Sequence
				}
				return state, sequence, nil
			}
		}
	}

	stream, err := d.Log.Load(ctx, containerID)
	if err != nil {
		if errors.Is(err, eventlog.ErrStreamNotFound) {
			return container.State{}, 0, fmt.Errorf("%w: %s", ErrContainerNotFound, containerID)
		}
		return container.State{}, 0, err
	}
	state, err := container.ReplayContracts(stream)
	if err != nil {
		return container.State{}, 0, err
	}
	return state, stream[len(stream)-1].Sequence, nil
}
