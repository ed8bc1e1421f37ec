package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/alexrobin/osh-video/internal/adapters/station"
	"github.com/alexrobin/osh-video/internal/domain"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	data := `
policy:
  max_queue_len: 1000
camera:
  device: /dev/video0
  width: 320
  height: 240
station:
  source:
    kind: sim
    station:
      name: KXYZ
      lat: 40.0
      lon: -105.0
      elevation: 1600
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Policy.IdleSleep != 5*time.Millisecond {
		t.Fatalf("expected IdleSleep default 5ms, got %s", cfg.Policy.IdleSleep)
	}
	if cfg.Policy.MaxQueueLen != 1000 || cfg.Policy.OnQueueFull != "drop" {
		t.Fatalf("unexpected policy %+v", cfg.Policy)
	}
	if cfg.Metrics.Addr != ":9100" {
		t.Fatalf("expected default metrics addr :9100, got %s", cfg.Metrics.Addr)
	}
	if cfg.Camera.Name != "videoCamera" || cfg.Camera.FaultPolicy != "log" || cfg.Camera.Width != 320 {
		t.Fatalf("unexpected camera defaults %+v", cfg.Camera)
	}
	if cfg.Station.Name != station.OutputName || cfg.Station.Interval != 10*time.Second {
		t.Fatalf("unexpected station defaults %+v", cfg.Station.Config)
	}
	want := domain.Station{Name: "KXYZ", Latitude: 40, Longitude: -105, Elevation: 1600}
	if diff := cmp.Diff(want, cfg.Station.Source.Station); diff != "" {
		t.Fatalf("station identity (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"videoCamera", station.OutputName}, cfg.OutputNames()); diff != "" {
		t.Fatalf("output names (-want +got):\n%s", diff)
	}
}

func TestParseSourceKinds(t *testing.T) {
	cfg, err := Parse([]byte(`
station:
  interval: 30s
  source:
    kind: http
    http:
      url: http://wx.local/latest
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Station.Interval != 30*time.Second || cfg.Station.Source.HTTP.Timeout != 5*time.Second {
		t.Fatalf("unexpected station config %+v", cfg.Station)
	}
	if cfg.Station.Source.HTTP.Station.Name != "SIM1" {
		t.Fatalf("expected shared station identity to flow into the http source")
	}
	if cfg.Camera != nil {
		t.Fatalf("camera should stay disabled")
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"empty":         `log: {level: debug}`,
		"queue policy":  "policy: {on_queue_full: spill}\nstation: {}",
		"fault policy":  "camera: {fault_policy: explode}",
		"source kind":   "station: {source: {kind: carrier-pigeon}}",
		"http url":      "station: {source: {kind: http}}",
		"serial port":   "station: {source: {kind: serial}}",
		"opcua nodes":   "station: {source: {kind: opcua, opcua: {endpoint: 'opc.tcp://x'}}}",
		"name conflict": "camera: {name: wx}\nstation: {name: wx}",
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "missing.yaml") {
		t.Fatalf("expected missing file error, got %v", err)
	}
}
