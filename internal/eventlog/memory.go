package eventlog

import (
	"context"
	"sync"

	"github.com/cargotrail/project/internal/contracts"
)

// MemoryLog is an in-process Log used by tests and the demo driver. It
// honors the same conditional-append contract as the Postgres log.
type MemoryLog struct {
	mu      sync.Mutex
	streams map[string][]contracts.ContainerEvent
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{streams: map[string][]contracts.ContainerEvent{}}
}

func (l *MemoryLog) Append(_ context.Context, containerID string, expected uint64, event contracts.ContainerEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	stream := l.streams[containerID]
	if uint64(len(stream)) != expected {
		return ErrConcurrencyConflict
	}
	event.Sequence = expected + 1
	l.streams[containerID] = append(stream, event)
	return nil
}

func (l *MemoryLog) Load(_ context.Context, containerID string) ([]contracts.ContainerEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	stream, ok := l.streams[containerID]
	if !ok {
		return nil, ErrStreamNotFound
	}
	out := make([]contracts.ContainerEvent, len(stream))
	copy(out, stream)
	return out, nil
}

func (l *MemoryLog) LoadAfter(_ context.Context, containerID string, after uint64) ([]contracts.ContainerEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	stream := l.streams[containerID]
	if after >= uint64(len(stream)) {
		return nil, nil
	}
	tail := stream[after:]
	out := make([]contracts.ContainerEvent, len(tail))
	copy(out, tail)
	return out, nil
}
