package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/alexrobin/osh-video/internal/ports"
)

// PromObs reports metrics to Prometheus and logs through zap.
type PromObs struct {
	logger   *zap.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the hub metrics on reg (the default registerer when nil).
func NewPromObs(logger *zap.Logger, reg prometheus.Registerer) *PromObs {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}
	published := counter(ports.MetricEventsPublished, "Sensor events handed to the event bus.")
	dropped := counter(ports.MetricEventsDropped, "Sensor events dropped because the bus queue was full.")
	faults := counter(ports.MetricProducerFaults, "Records rejected for not matching their output schema.")
	pollFailures := counter(ports.MetricPollFailures, "Polling cycles abandoned after a source failure.")
	frames := counter(ports.MetricFramesCaptured, "Frames delivered by capture devices.")
	deviceFaults := counter(ports.MetricDeviceFaults, "Asynchronous faults reported by capture devices.")
	sinkErrors := counter(ports.MetricSinkErrors, "Batches a sink failed to write.")
	queueGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: ports.MetricQueueLength,
		Help: "Current number of events buffered in the bus queue.",
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ports.MetricSinkLatency,
		Help:    "Time spent writing one batch to a sink.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	reg.MustRegister(published, dropped, faults, pollFailures, frames, deviceFaults, sinkErrors, queueGauge, latency)

	return &PromObs{
		logger: logger,
		counters: map[string]prometheus.Counter{
			ports.MetricEventsPublished: published,
			ports.MetricEventsDropped:   dropped,
			ports.MetricProducerFaults:  faults,
			ports.MetricPollFailures:    pollFailures,
			ports.MetricFramesCaptured:  frames,
			ports.MetricDeviceFaults:    deviceFaults,
			ports.MetricSinkErrors:      sinkErrors,
		},
		gauges: map[string]prometheus.Gauge{
			ports.MetricQueueLength: queueGauge,
		},
		histos: map[string]prometheus.Observer{
			ports.MetricSinkLatency: latency,
		},
	}
}

func zapFields(fields []ports.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.logger.Info(msg, zapFields(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.logger.Error(msg, append(zapFields(fields), zap.Error(err))...)
}

// LogCritical is reserved for producer bugs; it logs at DPanic so development
// builds stop right there.
func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	p.logger.DPanic(msg, append(zapFields(fields), zap.Error(err))...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

var _ ports.Observability = (*PromObs)(nil)
