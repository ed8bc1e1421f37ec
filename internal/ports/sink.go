package ports

import "github.com/alexrobin/osh-video/internal/domain"

// EventSink receives events from outputs. Publish must not wait on consumers.
type EventSink interface {
	Publish(evt domain.SensorEvent)
}

// Sink consumes batches of events dispatched by the bus.
type Sink interface {
	WriteBatch(events []domain.SensorEvent) error
	Name() string
}
