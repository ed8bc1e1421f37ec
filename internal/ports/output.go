package ports

import (
	"context"
	"time"

	"github.com/alexrobin/osh-video/internal/domain"
)

// Output is a single sensor data stream: it describes its records, caches the
// latest one and pushes every new record to an EventSink while running.
type Output interface {
	Name() string
	RecordDescription() *domain.RecordSchema
	RecommendedEncoding() (domain.RecordEncoding, error)
	LatestRecord() *domain.Record
	LatestRecordTime() (time.Time, bool)
	AverageSamplingPeriod() float64
	Running() bool

	Start(ctx context.Context) error
	Stop() error
}
