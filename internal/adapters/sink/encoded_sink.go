package sink

import (
	"fmt"
	"io"
	"sync"

	"github.com/alexrobin/osh-video/internal/domain"
	"github.com/alexrobin/osh-video/internal/ports"
)

// EncodingResolver returns the recommended encoding of a named output.
type EncodingResolver func(output string) (domain.RecordEncoding, error)

// EncodedSink serializes every record with its output's recommended encoding.
type EncodedSink struct {
	name    string
	resolve EncodingResolver
	filter  map[string]struct{}

	mu sync.Mutex
	w  io.Writer
}

// NewEncodedSink writes to w. When outputs is non-empty only events from those
// outputs are written.
func NewEncodedSink(name string, w io.Writer, resolve EncodingResolver, outputs ...string) *EncodedSink {
	if name == "" {
		name = "encoded"
	}
	var filter map[string]struct{}
	if len(outputs) > 0 {
		filter = make(map[string]struct{}, len(outputs))
		for _, o := range outputs {
			filter[o] = struct{}{}
		}
	}
	return &EncodedSink{name: name, w: w, resolve: resolve, filter: filter}
}

func (s *EncodedSink) WriteBatch(events []domain.SensorEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		if s.filter != nil {
			if _, ok := s.filter[e.Output]; !ok {
				continue
			}
		}
		enc, err := s.resolve(e.Output)
		if err != nil {
			return fmt.Errorf("encoded sink %q: %w", s.name, err)
		}
		if err := domain.EncodeRecord(s.w, e.Schema, enc, e.Record); err != nil {
			return fmt.Errorf("encoded sink %q: output %q: %w", s.name, e.Output, err)
		}
	}
	return nil
}

func (s *EncodedSink) Name() string { return s.name }

var _ ports.Sink = (*EncodedSink)(nil)
