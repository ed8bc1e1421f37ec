package serialwx

import (
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"go.bug.st/serial"

	"github.com/alexrobin/osh-video/internal/domain"
)

const (
	header = "stationName,time,lat,lon,el,temperature,dewPoint,relativeHumidity,windSpeed,windDirection,airPressure,precipitation,heatIndex,windChill,windGust,rain3h,rain6h,rain24h,maxTemp24h,minTemp24h,cloudCeiling,visibility\n"
	line1  = "KXYZ,2024-06-01T12:00:00Z,40.0,-105.0,1600,72.5,50.1,45,8.5,270,29.92,0,74,72,14,0,0,0.1,81,55,12000,52800\n"
	line2  = "KXYZ,2024-06-01T12:00:10Z,40.0,-105.0,1600,72.6,50.0,44,9,265,29.92,0,74,72,,0,0,0.1,81,55,12000,52800\r\n"
)

func TestParseLine(t *testing.T) {
	r, err := ParseLine(line1)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if r.Station.Name != "KXYZ" || r.Station.Latitude != 40 || r.Station.Longitude != -105 || r.Station.Elevation != 1600 {
		t.Fatalf("unexpected station %+v", r.Station)
	}
	if r.Temperature != 72.5 || r.WindGust != 14 || r.MaxDailyTemperature != 81 || r.MinDailyTemperature != 55 {
		t.Fatalf("unexpected values %+v", r)
	}
	if r.CloudCeiling != 12000 || r.Visibility != 52800 {
		t.Fatalf("unexpected distances %+v", r)
	}
	if !r.SampleTime.Equal(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time %v", r.SampleTime)
	}
}

func TestParseLineErrors(t *testing.T) {
	for name, line := range map[string]string{
		"short":   "KXYZ,2024-06-01T12:00:00Z,40.0",
		"time":    strings.Replace(line1, "2024-06-01T12:00:00Z", "yesterday", 1),
		"numeric": strings.Replace(line1, "72.5", "warm", 1),
	} {
		if _, err := ParseLine(line); !errors.Is(err, domain.ErrMalformedReading) {
			t.Fatalf("%s: expected ErrMalformedReading, got %v", name, err)
		}
	}
}

func TestPullReturnsNewestLineAndSkipsHeader(t *testing.T) {
	src := NewWithOpener(Config{Port: "/dev/ttyUSB0"}, func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(header + line1 + line2)), nil
	})
	r, err := src.Pull(context.Background())
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if !r.SampleTime.Equal(time.Date(2024, 6, 1, 12, 0, 10, 0, time.UTC)) {
		t.Fatalf("expected the newest line, got %v", r.SampleTime)
	}
	if !math.IsNaN(r.WindGust) {
		t.Fatalf("missing gust should be NaN, got %v", r.WindGust)
	}
}

func TestPullReopensAfterEOF(t *testing.T) {
	opens := 0
	src := NewWithOpener(Config{Port: "/dev/ttyUSB0"}, func() (io.ReadCloser, error) {
		opens++
		if opens == 1 {
			return io.NopCloser(strings.NewReader(header)), nil
		}
		return io.NopCloser(strings.NewReader(line1)), nil
	})

	if _, err := src.Pull(context.Background()); !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable on EOF, got %v", err)
	}
	r, err := src.Pull(context.Background())
	if err != nil {
		t.Fatalf("pull after reopen: %v", err)
	}
	if r.Temperature != 72.5 || opens != 2 {
		t.Fatalf("unexpected reopen state: opens=%d reading=%+v", opens, r)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

type idleReader struct{}

func (idleReader) Read([]byte) (int, error) {
	time.Sleep(time.Millisecond)
	return 0, nil
}
func (idleReader) Close() error { return nil }

func TestPullGivesUpWithContext(t *testing.T) {
	src := NewWithOpener(Config{Port: "/dev/ttyUSB0"}, func() (io.ReadCloser, error) { return idleReader{}, nil })
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := src.Pull(ctx); !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestOpenFailureIsUnavailable(t *testing.T) {
	src := NewWithOpener(Config{Port: "/dev/ttyUSB9"}, func() (io.ReadCloser, error) {
		return nil, errors.New("no such file")
	})
	if _, err := src.Pull(context.Background()); !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestConfigMode(t *testing.T) {
	cfg := Config{Port: "/dev/ttyS0", StopBits: 2, Parity: "even"}
	cfg.ApplyDefaults()
	mode, err := cfg.mode()
	if err != nil {
		t.Fatalf("mode: %v", err)
	}
	if mode.BaudRate != 9600 || mode.DataBits != 8 || mode.StopBits != serial.TwoStopBits || mode.Parity != serial.EvenParity {
		t.Fatalf("unexpected mode %+v", mode)
	}
	bad := Config{Port: "/dev/ttyS0", Parity: "mark"}
	bad.ApplyDefaults()
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected parity error")
	}
	if err := (&Config{}).Validate(); err == nil {
		t.Fatalf("expected port error")
	}
}
