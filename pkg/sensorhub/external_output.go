package sensorhub

import (
	"context"
	"fmt"
	"time"

	"github.com/alexrobin/osh-video/internal/app/output"
	"github.com/alexrobin/osh-video/internal/domain"
)

// ExternalOutput lets callers push records they acquire themselves through
// the same schema checks, latest-record cache and event bus as the built-in
// outputs.
type ExternalOutput struct {
	*output.Channel
}

var _ Output = (*ExternalOutput)(nil)

// NewExternalOutput binds schema and enc to a new output that publishes to sink.
func NewExternalOutput(name string, schema *RecordSchema, enc RecordEncoding, sink EventSink, obs Observability) (*ExternalOutput, error) {
	if name == "" {
		return nil, fmt.Errorf("output name is required")
	}
	if sink == nil || obs == nil {
		return nil, fmt.Errorf("output %q: sink and observability are required", name)
	}
	ch := output.NewChannel(name, sink, obs)
	if err := ch.Init(schema, enc); err != nil {
		return nil, &domain.InitError{Output: name, Err: err}
	}
	return &ExternalOutput{Channel: ch}, nil
}

// NewExternalOutput builds an external output on the runtime bus and
// registers it. It must be called before Start.
func (r *Runtime) NewExternalOutput(name string, schema *RecordSchema, enc RecordEncoding) (*ExternalOutput, error) {
	o, err := NewExternalOutput(name, schema, enc, r.bus, r.obs)
	if err != nil {
		return nil, err
	}
	if err := r.AddOutput(o); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *ExternalOutput) Start(context.Context) error {
	o.MarkRunning()
	return nil
}

func (o *ExternalOutput) Stop() error {
	o.MarkStopped()
	return nil
}

// PublishValues publishes one mixed record stamped with ts.
func (o *ExternalOutput) PublishValues(ts time.Time, values ...any) error {
	return o.Publish(domain.NewRecord(values...), ts)
}

// PublishBytes publishes a copy of buf as one byte record stamped with ts.
func (o *ExternalOutput) PublishBytes(ts time.Time, buf []byte) error {
	return o.Publish(domain.NewByteRecord(append([]byte(nil), buf...)), ts)
}
