package camera

import (
	"fmt"
	"time"
)

// Fault policies applied when the capture device reports an asynchronous error.
const (
	FaultLog       = "log"
	FaultStop      = "stop"
	FaultReacquire = "reacquire"
)

// Config is the requested capture setup for one camera output. Width, Height,
// FrameRate and Format are preferences; the negotiated values win.
type Config struct {
	Name           string        `yaml:"name"`
	Device         string        `yaml:"device"`
	Width          int           `yaml:"width"`
	Height         int           `yaml:"height"`
	FrameRate      float32       `yaml:"frame_rate"`
	Format         string        `yaml:"format"`
	CaptureOnStart *bool         `yaml:"capture_on_start"`
	OpenRetries    int           `yaml:"open_retries"`
	RetryInterval  time.Duration `yaml:"retry_interval"`
	FaultPolicy    string        `yaml:"fault_policy"`
}

func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "videoCamera"
	}
	if c.Width == 0 {
		c.Width = 640
	}
	if c.Height == 0 {
		c.Height = 480
	}
	if c.CaptureOnStart == nil {
		on := true
		c.CaptureOnStart = &on
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = 500 * time.Millisecond
	}
	if c.FaultPolicy == "" {
		c.FaultPolicy = FaultLog
	}
}

func (c Config) Validate() error {
	if c.Width < 0 || c.Height < 0 {
		return fmt.Errorf("camera %q: width and height must be positive", c.Name)
	}
	if c.FrameRate < 0 {
		return fmt.Errorf("camera %q: frame_rate must be >= 0", c.Name)
	}
	if c.OpenRetries < 0 {
		return fmt.Errorf("camera %q: open_retries must be >= 0", c.Name)
	}
	switch c.FaultPolicy {
	case FaultLog, FaultStop, FaultReacquire:
	default:
		return fmt.Errorf("camera %q: fault_policy must be log, stop or reacquire", c.Name)
	}
	return nil
}

func (c Config) captureOnStart() bool {
	return c.CaptureOnStart == nil || *c.CaptureOnStart
}
