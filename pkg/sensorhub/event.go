package sensorhub

import (
	"time"

	"github.com/alexrobin/osh-video/internal/domain"
)

// Event mirrors the internal sensor event but owns its data, so callers may
// keep it after the batch handler returns.
type Event struct {
	ID        string
	Output    string
	Timestamp time.Time
	Schema    *RecordSchema
	// Values holds mixed records in schema leaf order; nil for byte records.
	Values []any
	// Bytes holds byte records such as video frames; nil for mixed records.
	Bytes []byte
}

// EventBatchHandler is invoked with ordered batches dispatched by the bus.
type EventBatchHandler func([]Event) error

func eventFromDomain(e domain.SensorEvent) Event {
	out := Event{
		ID:        e.ID.String(),
		Output:    e.Output,
		Timestamp: e.Timestamp,
		Schema:    e.Schema,
	}
	if e.Record == nil {
		return out
	}
	if raw := e.Record.Bytes(); raw != nil {
		out.Bytes = append([]byte(nil), raw...)
	} else {
		out.Values = e.Record.Values()
	}
	return out
}

func convertDomainBatch(events []domain.SensorEvent) []Event {
	if len(events) == 0 {
		return nil
	}
	out := make([]Event, len(events))
	for i, e := range events {
		out[i] = eventFromDomain(e)
	}
	return out
}
