package sensorhub

import (
	"github.com/alexrobin/osh-video/internal/domain"
	"github.com/alexrobin/osh-video/internal/ports"
)

// Output is one sensor data stream managed by the runtime.
type Output = ports.Output

// EventSink receives every event an output publishes.
type EventSink = ports.EventSink

// Sink consumes batches of events dispatched by the bus.
type Sink = ports.Sink

// EventQueue is the bounded queue between outputs and sinks.
type EventQueue = ports.EventQueue

// QueuedEvent is an event buffered inside the queue.
type QueuedEvent = ports.QueuedEvent

// Observability emits metrics and structured logs.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

// CaptureDevice opens camera capture sessions.
type CaptureDevice = ports.CaptureDevice

// StationSource yields weather readings on demand.
type StationSource = ports.StationSource

// Scheduler runs periodic poll tasks.
type Scheduler = ports.Scheduler

// SensorEvent is the internal event passed to Sink implementations.
type SensorEvent = domain.SensorEvent

type (
	RecordSchema   = domain.RecordSchema
	Record         = domain.Record
	RecordEncoding = domain.RecordEncoding
	Component      = domain.Component
	DataType       = domain.DataType
)

// Primitive record types.
const (
	TypeByte   = domain.TypeByte
	TypeInt    = domain.TypeInt
	TypeDouble = domain.TypeDouble
	TypeText   = domain.TypeText
	TypeTime   = domain.TypeTime
)

// Lifecycle and data errors.
var (
	ErrNotInitialized = domain.ErrNotInitialized
	ErrRecordShape    = domain.ErrRecordShape
	ErrChannelStopped = domain.ErrChannelStopped
)

// InitError reports an output that could not be configured.
type InitError = domain.InitError

// Schema builders re-exported for external outputs.
var (
	Scalar          = domain.Scalar
	Array           = domain.Array
	Group           = domain.Group
	WithDefinition  = domain.WithDefinition
	WithUOM         = domain.WithUOM
	NewRecordSchema = domain.NewRecordSchema
	NewTextEncoding = domain.NewTextEncoding
)
