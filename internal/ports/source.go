package ports

import (
	"context"

	"github.com/alexrobin/osh-video/internal/domain"
)

// StationSource yields one weather reading per Pull. Failures should wrap
// domain.ErrSourceUnavailable or domain.ErrMalformedReading.
type StationSource interface {
	Pull(ctx context.Context) (domain.StationReading, error)
	Close() error
}
