// Package bus fans sensor events out to sinks. Outputs hand events to Publish,
// which only enqueues; a single dispatcher goroutine drains the queue in
// batches and writes each batch to every sink in registration order.
package bus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alexrobin/osh-video/internal/domain"
	"github.com/alexrobin/osh-video/internal/ports"
)

const (
	PolicyDrop  = "drop"
	PolicyBlock = "block"
)

type Bus struct {
	q     ports.EventQueue
	pol   ports.Policy
	obs   ports.Observability
	sinks []ports.Sink

	seq    atomic.Uint64
	wake   chan struct{}
	closed chan struct{}
	once   sync.Once
}

// New builds a bus over q. Sinks are fixed for the bus lifetime.
func New(q ports.EventQueue, pol ports.Policy, obs ports.Observability, sinks ...ports.Sink) *Bus {
	if pol.IdleSleep <= 0 {
		pol.IdleSleep = 5 * time.Millisecond
	}
	if pol.OnQueueFull == "" {
		pol.OnQueueFull = PolicyDrop
	}
	return &Bus{
		q:      q,
		pol:    pol,
		obs:    obs,
		sinks:  append([]ports.Sink(nil), sinks...),
		wake:   make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

// Publish enqueues evt. With the drop policy a full queue loses the event;
// with the block policy the caller waits for room or for Close.
func (b *Bus) Publish(evt domain.SensorEvent) {
	select {
	case <-b.closed:
		b.obs.IncCounter(ports.MetricEventsDropped, 1)
		return
	default:
	}

	seq := b.seq.Add(1)
	if !b.enqueueWithPolicy(seq, evt) {
		b.obs.IncCounter(ports.MetricEventsDropped, 1)
		return
	}
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Bus) enqueueWithPolicy(seq uint64, evt domain.SensorEvent) bool {
	for {
		if b.q.Enqueue(seq, evt) {
			return true
		}

		switch b.pol.OnQueueFull {
		case PolicyBlock:
			select {
			case <-b.closed:
				return false
			case <-time.After(b.pol.IdleSleep):
			}
		case PolicyDrop:
			b.obs.LogError("bus_queue_full_drop", fmt.Errorf("queue length exceeded capacity %d", b.pol.MaxQueueLen),
				ports.Field{Key: "output", Value: evt.Output})
			return false
		default:
			b.obs.LogError("bus_policy_invalid", fmt.Errorf("policy=%s", b.pol.OnQueueFull))
			return false
		}
	}
}

// Run dispatches batches until ctx is done or Close is called, then flushes
// what is still queued.
func (b *Bus) Run(ctx context.Context) {
	for {
		if n := b.dispatchOnce(); n > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			b.drain()
			return
		case <-b.closed:
			b.drain()
			return
		case <-b.wake:
		case <-time.After(b.pol.IdleSleep):
		}
	}
}

// Close stops accepting events. Run returns after flushing the queue.
func (b *Bus) Close() {
	b.once.Do(func() { close(b.closed) })
}

func (b *Bus) drain() {
	for b.dispatchOnce() > 0 {
	}
}

func (b *Bus) dispatchOnce() int {
	batch := b.q.DequeueBatch(b.pol.MaxBatchSize)
	b.obs.SetGauge(ports.MetricQueueLength, float64(b.q.Len()))
	if len(batch) == 0 {
		return 0
	}

	events := make([]domain.SensorEvent, len(batch))
	for i, item := range batch {
		events[i] = item.Event
	}

	for _, s := range b.sinks {
		start := time.Now()
		if err := s.WriteBatch(events); err != nil {
			b.obs.IncCounter(ports.MetricSinkErrors, 1)
			b.obs.LogError("sink_write_failed", err, ports.Field{Key: "sink", Value: s.Name()})
			continue
		}
		b.obs.ObserveLatency(ports.MetricSinkLatency, time.Since(start).Seconds())
	}
	return len(batch)
}

var _ ports.EventSink = (*Bus)(nil)
