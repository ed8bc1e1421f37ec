package ports

type Observability interface {
	LogInfo(msg string, fields ...Field)
	LogError(msg string, err error, fields ...Field)
	LogCritical(msg string, err error, fields ...Field)

	IncCounter(name string, v float64)
	ObserveLatency(name string, seconds float64)

	SetGauge(name string, v float64)
}

type Field struct {
	Key   string
	Value any
}

// Metric names shared by adapters and the Prometheus backend.
const (
	MetricEventsPublished = "osh_events_published_total"
	MetricEventsDropped   = "osh_events_dropped_total"
	MetricProducerFaults  = "osh_producer_faults_total"
	MetricPollFailures    = "osh_poll_failures_total"
	MetricFramesCaptured  = "osh_frames_captured_total"
	MetricDeviceFaults    = "osh_device_faults_total"
	MetricSinkErrors      = "osh_sink_errors_total"
	MetricQueueLength     = "osh_bus_queue_length"
	MetricSinkLatency     = "osh_sink_latency_seconds"
)
