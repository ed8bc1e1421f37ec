package sink

import (
	"go.uber.org/zap"

	"github.com/alexrobin/osh-video/internal/domain"
	"github.com/alexrobin/osh-video/internal/ports"
)

// LogSink writes one debug line per event. It never fails.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) WriteBatch(events []domain.SensorEvent) error {
	for _, e := range events {
		values := 0
		if e.Record != nil {
			values = e.Record.Len()
		}
		s.logger.Debug("sensor_event",
			zap.String("output", e.Output),
			zap.Stringer("id", e.ID),
			zap.Time("ts", e.Timestamp),
			zap.Int("values", values),
		)
	}
	return nil
}

func (s *LogSink) Name() string { return "log" }

var _ ports.Sink = (*LogSink)(nil)
