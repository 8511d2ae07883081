// Package projector maintains the per-(zone, port) inventory read model by
// consuming committed container events. It owns the inventory table: nothing
// else writes to it.
package projector

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/cargotrail/project/internal/contracts"
	"github.com/cargotrail/project/internal/platform/metrics"
)

var ErrInvalidEventPayload = errors.New("invalid event payload")
var ErrUnsupportedEventKind = errors.New("unsupported event kind")

var eventsProjectedTotal = metrics.NewCounterVec(metrics.Opts{
	Name: "inventory_events_projected_total",
	Help: "Committed events consumed by the inventory projector, by kind.",
}, []string{"kind"})

func init() {
	metrics.Default.MustRegister(eventsProjectedTotal)
}

var eventKinds = map[string]struct{}{
	contracts.EventCreated:    {},
	contracts.EventReserved:   {},
	contracts.EventLoaded:     {},
	contracts.EventBoarded:    {},
	contracts.EventDeparted:   {},
	contracts.EventArrived:    {},
	contracts.EventOffBoarded: {},
	contracts.EventOffLoaded:  {},
	contracts.EventReleased:   {},
}

type Repository interface {
	ApplyEvent(ctx context.Context, event contracts.ContainerEvent) error
}

type Service struct {
	Repository Repository
}

func NewService(repository Repository) *Service {
	return &Service{Repository: repository}
}

// Handle decodes one delivered event and applies it to the inventory table.
// Decode failures and unknown kinds are permanent and should be terminated
// by the caller; repository errors are transient and should be redelivered.
func (s *Service) Handle(ctx context.Context, payload []byte) error {
	var event contracts.ContainerEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return ErrInvalidEventPayload
	}
	if event.ContainerID == "" || event.Kind == "" {
		return ErrInvalidEventPayload
	}
	if _, ok := eventKinds[event.Kind]; !ok {
		return ErrUnsupportedEventKind
	}
	if err := s.Repository.ApplyEvent(ctx, event); err != nil {
		return err
	}
	eventsProjectedTotal.WithLabelValues(event.Kind).Inc()
	return nil
}
