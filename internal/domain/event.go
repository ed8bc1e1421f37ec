package domain

import (
	"time"

	"github.com/google/uuid"
)

// SensorEvent is emitted once per record accepted by an output.
type SensorEvent struct {
	ID        uuid.UUID
	Output    string
	Timestamp time.Time
	Schema    *RecordSchema
	Record    *Record
}

// NewSensorEvent stamps a fresh event id. ts is the sample or capture time,
// not the publish wall clock.
func NewSensorEvent(output string, ts time.Time, schema *RecordSchema, rec *Record) SensorEvent {
	return SensorEvent{
		ID:        uuid.New(),
		Output:    output,
		Timestamp: ts,
		Schema:    schema,
		Record:    rec,
	}
}
