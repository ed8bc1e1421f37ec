// Package simwx is a deterministic weather source for demos and tests.
package simwx

import (
	"context"
	"math"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/alexrobin/osh-video/internal/domain"
	"github.com/alexrobin/osh-video/internal/ports"
)

// Source produces a smooth diurnal cycle around fixed baselines. Readings are
// stamped with the source clock.
type Source struct {
	station domain.Station
	clk     clock.Clock

	mu   sync.Mutex
	n    int
	low  float64
	high float64
	day  int
}

var _ ports.StationSource = (*Source)(nil)

// New returns a simulated source for station. A nil clk uses the wall clock.
func New(station domain.Station, clk clock.Clock) *Source {
	if clk == nil {
		clk = clock.New()
	}
	return &Source{station: station, clk: clk, low: math.Inf(1), high: math.Inf(-1), day: -1}
}

func (s *Source) Pull(ctx context.Context) (domain.StationReading, error) {
	if err := ctx.Err(); err != nil {
		return domain.StationReading{}, err
	}
	now := s.clk.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++

	hour := float64(now.Hour()) + float64(now.Minute())/60
	phase := 2 * math.Pi * (hour - 9) / 24
	temp := round1(62 + 12*math.Sin(phase))
	humidity := round1(55 - 20*math.Sin(phase))
	dew := round1(temp - (100-humidity)/5*9/5)

	if yd := now.YearDay(); yd != s.day {
		s.day, s.low, s.high = yd, temp, temp
	}
	s.low = math.Min(s.low, temp)
	s.high = math.Max(s.high, temp)

	wind := round1(6 + 4*math.Abs(math.Sin(float64(s.n)/7)))
	return domain.StationReading{
		Station:             s.station,
		SampleTime:          now,
		Temperature:         temp,
		DewPoint:            dew,
		RelativeHumidity:    humidity,
		WindSpeed:           wind,
		WindDirection:       math.Mod(float64(180+15*s.n), 360),
		WindGust:            round1(wind * 1.6),
		MinDailyTemperature: s.low,
		MaxDailyTemperature: s.high,
		CloudCeiling:        int64(8000 + 500*(s.n%10)),
		Visibility:          52800,
	}, nil
}

func (s *Source) Close() error { return nil }

func round1(v float64) float64 { return math.Round(v*10) / 10 }
