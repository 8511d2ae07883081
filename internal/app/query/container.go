package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/cargotrail/project/internal/container"
	"github.com/cargotrail/project/internal/eventlog"
)

var ErrContainerNotFound = errors.New("container not found")

// ContainerReader answers point reads of a single container's current state
// by replaying its stream. Reads bypass the write path's snapshot cache so a
// caller always sees the committed tail.
type ContainerReader struct {
	Log eventlog.Log
}

func NewContainerReader(log eventlog.Log) *ContainerReader {
	return &ContainerReader{Log: log}
}

func (r *ContainerReader) GetContainer(ctx context.Context, containerID string) (container.State, uint64, error) {
	stream, err := r.Log.Load(ctx, containerID)
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
