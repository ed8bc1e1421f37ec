package oshvideo

import (
	base "github.com/alexrobin/osh-video/pkg/sensorhub"
)

// Re-exported errors for convenience.
var (
	ErrChannelSinkClosed = base.ErrChannelSinkClosed
	ErrRuntimeStarted    = base.ErrRuntimeStarted
	ErrNotInitialized    = base.ErrNotInitialized
	ErrRecordShape       = base.ErrRecordShape
	ErrChannelStopped    = base.ErrChannelStopped
)

// Type aliases so consumers can import github.com/alexrobin/osh-video directly.
type (
	Config              = base.Config
	Policy              = base.Policy
	CameraConfig        = base.CameraConfig
	StationConfig       = base.StationConfig
	SourceConfig        = base.SourceConfig
	HTTPSourceConfig    = base.HTTPSourceConfig
	SerialSourceConfig  = base.SerialSourceConfig
	OPCUASourceConfig   = base.OPCUASourceConfig
	OPCUANodeConfig     = base.OPCUANodeConfig
	StationInfo         = base.StationInfo
	MetricsConfig       = base.MetricsConfig
	LogConfig           = base.LogConfig
	EncodedOutputConfig = base.EncodedOutputConfig
	Flow                = base.Flow
	FlowOption          = base.FlowOption
	StreamInOption      = base.StreamInOption
	StreamOutOption     = base.StreamOutOption
	Runtime             = base.Runtime
	RuntimeOption       = base.RuntimeOption
	Event               = base.Event
	EventBatchHandler   = base.EventBatchHandler
	Output              = base.Output
	ExternalOutput      = base.ExternalOutput
	Sink                = base.Sink
	EventSink           = base.EventSink
	EventQueue          = base.EventQueue
	Observability       = base.Observability
	CaptureDevice       = base.CaptureDevice
	StationSource       = base.StationSource
	Scheduler           = base.Scheduler
	RecordSchema        = base.RecordSchema
	Record              = base.Record
	RecordEncoding      = base.RecordEncoding
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func ParseConfig(raw []byte) (*Config, error) {
	return base.ParseConfig(raw)
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func StreamInCaptureDevice(dev CaptureDevice) StreamInOption {
	return base.StreamInCaptureDevice(dev)
}

func StreamInStationSource(src StationSource) StreamInOption {
	return base.StreamInStationSource(src)
}

func StreamInScheduler(sched Scheduler) StreamInOption {
	return base.StreamInScheduler(sched)
}

func StreamInQueue(q EventQueue) StreamInOption {
	return base.StreamInQueue(q)
}

func StreamOutSink(s Sink) StreamOutOption {
	return base.StreamOutSink(s)
}

func StreamOutCallback(name string, fn EventBatchHandler) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

func StreamOutObservability(obs Observability) StreamOutOption {
	return base.StreamOutObservability(obs)
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithSink(s Sink) RuntimeOption {
	return base.WithSink(s)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

func WithEventQueue(q EventQueue) RuntimeOption {
	return base.WithEventQueue(q)
}

func WithCaptureDevice(dev CaptureDevice) RuntimeOption {
	return base.WithCaptureDevice(dev)
}

func WithStationSource(src StationSource) RuntimeOption {
	return base.WithStationSource(src)
}

func WithScheduler(sched Scheduler) RuntimeOption {
	return base.WithScheduler(sched)
}

// Sink adapters.
func NewCallbackSink(name string, fn EventBatchHandler) Sink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) (Sink, <-chan []Event, func()) {
	return base.NewChannelSink(name, buffer)
}

// External outputs.
func NewExternalOutput(name string, schema *RecordSchema, enc RecordEncoding, sink EventSink, obs Observability) (*ExternalOutput, error) {
	return base.NewExternalOutput(name, schema, enc, sink, obs)
}
