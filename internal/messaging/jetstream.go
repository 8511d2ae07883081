package messaging

import (
	"errors"

	"github.com/nats-io/nats.go"
)

const eventsStream = "CONTAINER_EVENTS"

// EnsureStreams creates (or validates) the committed-events stream:
// - container.event.>
func EnsureStreams(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(eventsStream); err != nil {
		if errors.Is(err, nats.ErrStreamNotFound) {
			if _, addErr := js.AddStream(&nats.StreamConfig{
				Name:      eventsStream,
				Subjects:  []string{"container.event.>"},
				Retention: nats.LimitsPolicy,
				Storage:   nats.FileStorage,
				Replicas:  1,
			}); addErr != nil {
				return addErr
			}
		} else {
			return err
		}
	}
	return nil
}
