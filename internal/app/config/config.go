package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alexrobin/osh-video/internal/adapters/camera"
	"github.com/alexrobin/osh-video/internal/adapters/httpwx"
	"github.com/alexrobin/osh-video/internal/adapters/opcua"
	"github.com/alexrobin/osh-video/internal/adapters/serialwx"
	"github.com/alexrobin/osh-video/internal/adapters/station"
	"github.com/alexrobin/osh-video/internal/domain"
	"github.com/alexrobin/osh-video/internal/ports"
)

// Station source kinds.
const (
	SourceSim    = "sim"
	SourceHTTP   = "http"
	SourceSerial = "serial"
	SourceOPCUA  = "opcua"
)

type Config struct {
	Policy        ports.Policy        `yaml:"policy"`
	Camera        *camera.Config      `yaml:"camera"`
	Station       *StationConfig      `yaml:"station"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Log           LogConfig           `yaml:"log"`
	EncodedOutput EncodedOutputConfig `yaml:"encoded_output"`
}

// StationConfig is the poll setup plus the source it reads from.
type StationConfig struct {
	station.Config `yaml:",inline"`
	Source         SourceConfig `yaml:"source"`
}

type SourceConfig struct {
	Kind    string          `yaml:"kind"`
	Station domain.Station  `yaml:"station"`
	HTTP    httpwx.Config   `yaml:"http"`
	Serial  serialwx.Config `yaml:"serial"`
	OPCUA   opcua.Config    `yaml:"opcua"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// EncodedOutputConfig writes every record in its recommended encoding. Path
// "-" is stdout; empty disables it.
type EncodedOutputConfig struct {
	Path    string   `yaml:"path"`
	Outputs []string `yaml:"outputs"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse decodes, defaults and validates a YAML document.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Policy.MaxQueueLen == 0 {
		c.Policy.MaxQueueLen = 1_024
	}
	if c.Policy.MaxBatchSize == 0 {
		c.Policy.MaxBatchSize = 64
	}
	if c.Policy.IdleSleep == 0 {
		c.Policy.IdleSleep = 5 * time.Millisecond
	}
	if c.Policy.OnQueueFull == "" {
		c.Policy.OnQueueFull = "drop"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Camera != nil {
		c.Camera.ApplyDefaults()
	}
	if c.Station != nil {
		c.Station.Config.ApplyDefaults()
		src := &c.Station.Source
		if src.Kind == "" {
			src.Kind = SourceSim
		}
		if src.Station.Name == "" {
			src.Station.Name = "SIM1"
		}
		if src.HTTP.Station.Name == "" {
			src.HTTP.Station = src.Station
		}
		if src.Serial.Station.Name == "" {
			src.Serial.Station = src.Station
		}
		if src.OPCUA.Station.Name == "" {
			src.OPCUA.Station = src.Station
		}
		switch src.Kind {
		case SourceHTTP:
			src.HTTP.ApplyDefaults()
		case SourceSerial:
			src.Serial.ApplyDefaults()
		case SourceOPCUA:
			src.OPCUA.ApplyDefaults()
		}
	}
}

func (c *Config) validate() error {
	if c.Camera == nil && c.Station == nil {
		return fmt.Errorf("at least one of camera or station must be configured")
	}
	if c.Policy.OnQueueFull != "drop" && c.Policy.OnQueueFull != "block" {
		return fmt.Errorf("policy.on_queue_full must be drop or block, got %q", c.Policy.OnQueueFull)
	}
	if c.Policy.MaxQueueLen < 0 || c.Policy.MaxBatchSize < 0 {
		return fmt.Errorf("policy sizes must be positive")
	}
	if c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required")
	}
	if c.Camera != nil {
		if err := c.Camera.Validate(); err != nil {
			return fmt.Errorf("camera config: %w", err)
		}
	}
	if c.Station != nil {
		if err := c.Station.Source.validate(); err != nil {
			return fmt.Errorf("station source config: %w", err)
		}
		if c.Camera != nil && c.Camera.Name == c.Station.Name {
			return fmt.Errorf("camera and station share the output name %q", c.Camera.Name)
		}
	}
	return nil
}

func (s *SourceConfig) validate() error {
	switch s.Kind {
	case SourceSim:
		return nil
	case SourceHTTP:
		return s.HTTP.Validate()
	case SourceSerial:
		return s.Serial.Validate()
	case SourceOPCUA:
		return s.OPCUA.Validate()
	default:
		return fmt.Errorf("unknown kind %q: expected sim, http, serial or opcua", s.Kind)
	}
}

// OutputNames lists the configured outputs.
func (c *Config) OutputNames() []string {
	var names []string
	if c.Camera != nil {
		names = append(names, c.Camera.Name)
	}
	if c.Station != nil {
		names = append(names, c.Station.Name)
	}
	return names
}
