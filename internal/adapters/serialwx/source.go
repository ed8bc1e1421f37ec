// Package serialwx reads CSV weather observations from a logger attached to a
// serial port.
package serialwx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/alexrobin/osh-video/internal/domain"
	"github.com/alexrobin/osh-video/internal/ports"
)

// Config describes the serial link to the logger.
type Config struct {
	Port        string         `yaml:"port"`
	BaudRate    int            `yaml:"baud_rate"`
	DataBits    int            `yaml:"data_bits"`
	StopBits    int            `yaml:"stop_bits"`
	Parity      string         `yaml:"parity"`
	ReadTimeout time.Duration  `yaml:"read_timeout"`
	Station     domain.Station `yaml:"station"`
}

func (c *Config) ApplyDefaults() {
	if c.BaudRate <= 0 {
		c.BaudRate = 9600
	}
	if c.DataBits == 0 {
		c.DataBits = 8
	}
	if c.StopBits == 0 {
		c.StopBits = 1
	}
	if c.Parity == "" {
		c.Parity = "N"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 200 * time.Millisecond
	}
}

func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	_, err := c.mode()
	return err
}

func (c *Config) mode() (*serial.Mode, error) {
	if c.DataBits < 5 || c.DataBits > 8 {
		return nil, fmt.Errorf("invalid data bits %d: must be between 5 and 8", c.DataBits)
	}
	mode := &serial.Mode{BaudRate: c.BaudRate, DataBits: c.DataBits}
	switch c.StopBits {
	case 1:
		mode.StopBits = serial.OneStopBit
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", c.StopBits)
	}
	switch strings.ToUpper(strings.TrimSpace(c.Parity)) {
	case "N", "NONE":
		mode.Parity = serial.NoParity
	case "E", "EVEN":
		mode.Parity = serial.EvenParity
	case "O", "ODD":
		mode.Parity = serial.OddParity
	default:
		return nil, fmt.Errorf("unsupported parity %q: expected N, E, or O", c.Parity)
	}
	return mode, nil
}

// Opener opens the byte stream the logger writes to.
type Opener func() (io.ReadCloser, error)

// Source is a ports.StationSource returning the newest complete line the
// logger has written. The port is reopened on the next Pull after a failure.
type Source struct {
	cfg  Config
	open Opener

	mu      sync.Mutex
	port    io.ReadCloser
	pending []byte
}

var _ ports.StationSource = (*Source)(nil)

// New opens cfg.Port lazily through go.bug.st/serial.
func New(cfg Config) (*Source, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mode, _ := cfg.mode()
	return NewWithOpener(cfg, func() (io.ReadCloser, error) {
		port, err := serial.Open(cfg.Port, mode)
		if err != nil {
			return nil, err
		}
		if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
			_ = port.Close()
			return nil, err
		}
		return port, nil
	}), nil
}

// NewWithOpener reads from whatever open returns.
func NewWithOpener(cfg Config, open Opener) *Source {
	cfg.ApplyDefaults()
	return &Source{cfg: cfg, open: open}
}

func (s *Source) Pull(ctx context.Context) (domain.StationReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		port, err := s.open()
		if err != nil {
			return domain.StationReading{}, fmt.Errorf("%w: open %s: %v", domain.ErrSourceUnavailable, s.cfg.Port, err)
		}
		s.port = port
		s.pending = s.pending[:0]
	}

	for {
		line, err := s.readLine(ctx)
		if err != nil {
			return domain.StationReading{}, err
		}
		if line == "" || isHeader(line) {
			continue
		}
		r, err := ParseLine(line)
		if err != nil {
			return domain.StationReading{}, err
		}
		if r.Station.Name == "" {
			r.Station.Name = s.cfg.Station.Name
		}
		return r, nil
	}
}

// readLine returns the newest complete line, skipping older buffered ones.
// A zero-length read is a port read timeout and only checks ctx.
func (s *Source) readLine(ctx context.Context) (string, error) {
	buf := make([]byte, 256)
	for {
		if i := bytes.LastIndexByte(s.pending, '\n'); i >= 0 {
			complete := s.pending[:i]
			start := bytes.LastIndexByte(complete, '\n') + 1
			line := string(bytes.TrimRight(complete[start:], "\r"))
			s.pending = append(s.pending[:0], s.pending[i+1:]...)
			return line, nil
		}
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%w: no complete line from %s: %v", domain.ErrSourceUnavailable, s.cfg.Port, err)
		}
		n, err := s.port.Read(buf)
		s.pending = append(s.pending, buf[:n]...)
		if err != nil {
			_ = s.port.Close()
			s.port = nil
			return "", fmt.Errorf("%w: read %s: %v", domain.ErrSourceUnavailable, s.cfg.Port, err)
		}
	}
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}
