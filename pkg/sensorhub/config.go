package sensorhub

import (
	"github.com/alexrobin/osh-video/internal/adapters/camera"
	"github.com/alexrobin/osh-video/internal/adapters/httpwx"
	"github.com/alexrobin/osh-video/internal/adapters/opcua"
	"github.com/alexrobin/osh-video/internal/adapters/serialwx"
	"github.com/alexrobin/osh-video/internal/app/config"
	"github.com/alexrobin/osh-video/internal/domain"
	"github.com/alexrobin/osh-video/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// Policy controls the event bus queue.
	Policy = ports.Policy
	// CameraConfig requests a capture format from a local camera.
	CameraConfig = camera.Config
	// StationConfig sets the poll interval and the weather source.
	StationConfig = config.StationConfig
	// SourceConfig selects and configures the weather source.
	SourceConfig = config.SourceConfig
	// HTTPSourceConfig reads JSON observations over HTTP.
	HTTPSourceConfig = httpwx.Config
	// SerialSourceConfig reads CSV observations from a serial logger.
	SerialSourceConfig = serialwx.Config
	// OPCUASourceConfig reads observations from OPC UA variables.
	OPCUASourceConfig = opcua.Config
	// OPCUANodeConfig maps observation fields to node ids.
	OPCUANodeConfig = opcua.NodeConfig
	// StationInfo is the identity and position of a weather station.
	StationInfo = domain.Station
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// LogConfig configures the zap logger.
	LogConfig = config.LogConfig
	// EncodedOutputConfig writes encoded records to a file or stdout.
	EncodedOutputConfig = config.EncodedOutputConfig
)

// Station source kinds.
const (
	SourceSim    = config.SourceSim
	SourceHTTP   = config.SourceHTTP
	SourceSerial = config.SourceSerial
	SourceOPCUA  = config.SourceOPCUA
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// ParseConfig decodes, defaults and validates YAML held in memory.
func ParseConfig(raw []byte) (*Config, error) {
	return config.Parse(raw)
}
