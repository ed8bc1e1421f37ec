// Package output holds the state every sensor output shares: the record
// schema, the latest-record cache and the hand-off to the event sink. Drivers
// embed a *Channel and add their own acquisition logic around it.
package output

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alexrobin/osh-video/internal/domain"
	"github.com/alexrobin/osh-video/internal/ports"
)

type latest struct {
	rec *domain.Record
	ts  time.Time
}

type description struct {
	schema   *domain.RecordSchema
	encoding domain.RecordEncoding
}

// Channel implements the query and publish half of ports.Output. It is safe for
// one producer and any number of concurrent readers.
type Channel struct {
	name string
	sink ports.EventSink
	obs  ports.Observability

	initMu sync.Mutex
	desc   atomic.Pointer[description]
	period atomic.Uint64 // float64 bits, seconds

	latest  atomic.Pointer[latest]
	running atomic.Bool
}

// NewChannel returns a stopped, uninitialized channel.
func NewChannel(name string, sink ports.EventSink, obs ports.Observability) *Channel {
	return &Channel{name: name, sink: sink, obs: obs}
}

// Init binds the schema and its recommended encoding. It may only succeed once.
func (c *Channel) Init(schema *domain.RecordSchema, enc domain.RecordEncoding) error {
	if schema == nil {
		return fmt.Errorf("output %q: nil schema", c.name)
	}
	if err := domain.ValidateEncoding(schema, enc); err != nil {
		return fmt.Errorf("output %q: %w", c.name, err)
	}

	c.initMu.Lock()
	defer c.initMu.Unlock()
	if c.desc.Load() != nil {
		return fmt.Errorf("output %q: already initialized", c.name)
	}
	c.desc.Store(&description{schema: schema, encoding: enc})
	return nil
}

// Initialized reports whether Init has succeeded.
func (c *Channel) Initialized() bool { return c.desc.Load() != nil }

func (c *Channel) Name() string { return c.name }

// RecordDescription returns the schema, or nil before Init.
func (c *Channel) RecordDescription() *domain.RecordSchema {
	if d := c.desc.Load(); d != nil {
		return d.schema
	}
	return nil
}

func (c *Channel) RecommendedEncoding() (domain.RecordEncoding, error) {
	d := c.desc.Load()
	if d == nil {
		return nil, fmt.Errorf("output %q: %w", c.name, domain.ErrNotInitialized)
	}
	return d.encoding, nil
}

// LatestRecord returns the last published record or nil.
func (c *Channel) LatestRecord() *domain.Record {
	if l := c.latest.Load(); l != nil {
		return l.rec
	}
	return nil
}

func (c *Channel) LatestRecordTime() (time.Time, bool) {
	if l := c.latest.Load(); l != nil {
		return l.ts, true
	}
	return time.Time{}, false
}

// SetAverageSamplingPeriod records the informational sampling period in seconds.
func (c *Channel) SetAverageSamplingPeriod(seconds float64) {
	c.period.Store(math.Float64bits(seconds))
}

func (c *Channel) AverageSamplingPeriod() float64 {
	return math.Float64frombits(c.period.Load())
}

func (c *Channel) Running() bool { return c.running.Load() }

// MarkRunning flips the channel to running and reports whether it changed.
func (c *Channel) MarkRunning() bool { return c.running.CompareAndSwap(false, true) }

// MarkStopped flips the channel to stopped and reports whether it changed.
func (c *Channel) MarkStopped() bool { return c.running.CompareAndSwap(true, false) }

// Publish replaces the latest record and emits one event stamped with ts.
// Records that do not match the schema are rejected with ErrRecordShape and
// never reach the cache or the sink.
func (c *Channel) Publish(rec *domain.Record, ts time.Time) error {
	d := c.desc.Load()
	if d == nil {
		return fmt.Errorf("output %q: %w", c.name, domain.ErrNotInitialized)
	}
	if !c.running.Load() {
		return fmt.Errorf("output %q: %w", c.name, domain.ErrChannelStopped)
	}
	if err := d.schema.Validate(rec); err != nil {
		c.obs.IncCounter(ports.MetricProducerFaults, 1)
		c.obs.LogCritical("record_shape_mismatch", err, ports.Field{Key: "output", Value: c.name})
		return err
	}

	c.latest.Store(&latest{rec: rec, ts: ts})
	c.sink.Publish(domain.NewSensorEvent(c.name, ts, d.schema, rec))
	c.obs.IncCounter(ports.MetricEventsPublished, 1)
	return nil
}
