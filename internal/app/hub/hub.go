// Package hub starts, stops and looks up the configured sensor outputs.
package hub

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/multierr"

	"github.com/alexrobin/osh-video/internal/domain"
	"github.com/alexrobin/osh-video/internal/ports"
)

type Hub struct {
	outputs []ports.Output
	byName  map[string]ports.Output
	obs     ports.Observability

	mu      sync.Mutex
	started []ports.Output
}

// New registers outputs in start order. Names must be unique.
func New(obs ports.Observability, outputs ...ports.Output) (*Hub, error) {
	h := &Hub{byName: make(map[string]ports.Output, len(outputs)), obs: obs}
	for _, o := range outputs {
		if _, dup := h.byName[o.Name()]; dup {
			return nil, fmt.Errorf("duplicate output name %q", o.Name())
		}
		h.byName[o.Name()] = o
		h.outputs = append(h.outputs, o)
	}
	return h, nil
}

func (h *Hub) Outputs() []ports.Output {
	return append([]ports.Output(nil), h.outputs...)
}

func (h *Hub) Output(name string) (ports.Output, bool) {
	o, ok := h.byName[name]
	return o, ok
}

// Encoding resolves the recommended encoding of a named output.
func (h *Hub) Encoding(name string) (domain.RecordEncoding, error) {
	o, ok := h.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown output %q", name)
	}
	return o.RecommendedEncoding()
}

// Start starts every output in order. If one fails, the ones already started
// are stopped again and the error is returned.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, o := range h.outputs {
		if err := o.Start(ctx); err != nil {
			h.obs.LogError("output_start_failed", err, ports.Field{Key: "output", Value: o.Name()})
			return multierr.Append(err, h.stopLocked())
		}
		h.started = append(h.started, o)
		h.obs.LogInfo("output_started",
			ports.Field{Key: "output", Value: o.Name()},
			ports.Field{Key: "sampling_period_s", Value: o.AverageSamplingPeriod()},
		)
	}
	return nil
}

// Stop stops started outputs in reverse order and collects every error.
func (h *Hub) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopLocked()
}

func (h *Hub) stopLocked() error {
	var err error
	for i := len(h.started) - 1; i >= 0; i-- {
		o := h.started[i]
		if serr := o.Stop(); serr != nil {
			h.obs.LogError("output_stop_failed", serr, ports.Field{Key: "output", Value: o.Name()})
			err = multierr.Append(err, serr)
			continue
		}
		h.obs.LogInfo("output_stopped", ports.Field{Key: "output", Value: o.Name()})
	}
	h.started = nil
	return err
}

// Close stops everything and closes outputs holding a source.
func (h *Hub) Close() error {
	err := h.Stop()
	for _, o := range h.outputs {
		if c, ok := o.(io.Closer); ok {
			err = multierr.Append(err, c.Close())
		}
	}
	return err
}
