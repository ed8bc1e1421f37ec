// Package camera publishes frames from a local capture device as byte records
// of videoFrame → row → pixel{red, green, blue}.
package camera

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/multierr"

	"github.com/alexrobin/osh-video/internal/app/output"
	"github.com/alexrobin/osh-video/internal/domain"
	"github.com/alexrobin/osh-video/internal/ports"
)

// DeviceFault wraps an asynchronous error reported by the capture session.
type DeviceFault struct {
	Output string
	Err    error
}

func (e *DeviceFault) Error() string {
	return fmt.Sprintf("camera %q: device fault: %v", e.Output, e.Err)
}

func (e *DeviceFault) Unwrap() error { return e.Err }

// Output is a camera backed sensor output.
type Output struct {
	*output.Channel

	device ports.CaptureDevice
	obs    ports.Observability

	mu        sync.Mutex
	cfg       Config
	session   ports.CaptureSession
	format    ports.CaptureFormat
	capturing bool

	// gen identifies the current session. Callbacks from older sessions are
	// dropped.
	gen atomic.Uint64

	faultMu sync.Mutex
}

var _ ports.Output = (*Output)(nil)

// New validates cfg and returns a stopped, uninitialized output.
func New(cfg Config, device ports.CaptureDevice, sink ports.EventSink, obs ports.Observability) (*Output, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if device == nil {
		return nil, fmt.Errorf("camera %q: capture device is required", cfg.Name)
	}
	return &Output{
		Channel: output.NewChannel(cfg.Name, sink, obs),
		device:  device,
		obs:     obs,
		cfg:     cfg,
	}, nil
}

// Config returns the effective configuration. After Init the size and frame
// rate are the negotiated ones.
func (o *Output) Config() Config {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cfg
}

// Negotiated returns the format the device settled on, zero before Init.
func (o *Output) Negotiated() ports.CaptureFormat {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.format
}

// Init opens the capture session and fixes the frame schema from the
// negotiated size. It is a no-op while a session is open.
func (o *Output) Init(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session != nil {
		return nil
	}
	if err := o.acquireLocked(ctx); err != nil {
		return &domain.InitError{Output: o.Name(), Err: err}
	}
	return nil
}

func (o *Output) acquireLocked(ctx context.Context) error {
	sess, err := o.open(ctx)
	if err != nil {
		return err
	}
	neg := sess.Negotiated()
	if neg.Width <= 0 || neg.Height <= 0 {
		_ = sess.Close()
		return fmt.Errorf("device negotiated invalid frame size %dx%d", neg.Width, neg.Height)
	}

	if s := o.RecordDescription(); s != nil {
		if w, h := frameSize(s); w != neg.Width || h != neg.Height {
			_ = sess.Close()
			return fmt.Errorf("device renegotiated %dx%d, schema is fixed at %dx%d", neg.Width, neg.Height, w, h)
		}
	} else {
		schema, err := NewFrameSchema(neg.Width, neg.Height)
		if err != nil {
			_ = sess.Close()
			return err
		}
		if err := o.Channel.Init(schema, FrameEncoding()); err != nil {
			_ = sess.Close()
			return err
		}
	}
	if neg.FrameRate > 0 {
		o.SetAverageSamplingPeriod(1 / neg.FrameRate)
	}

	o.cfg.Width, o.cfg.Height = neg.Width, neg.Height
	o.cfg.FrameRate = float32(neg.FrameRate)
	if neg.PixelFormat != "" {
		o.cfg.Format = neg.PixelFormat
	}
	o.format = neg

	gen := o.gen.Add(1)
	sess.SetHandlers(
		func(f ports.Frame) { o.handleFrame(gen, f) },
		func(err error) { o.handleFault(gen, err) },
	)
	o.session = sess
	o.obs.LogInfo("camera_session_open",
		ports.Field{Key: "output", Value: o.Name()},
		ports.Field{Key: "width", Value: neg.Width},
		ports.Field{Key: "height", Value: neg.Height},
		ports.Field{Key: "frame_rate", Value: neg.FrameRate},
		ports.Field{Key: "pixel_format", Value: neg.PixelFormat},
	)
	return nil
}

func (o *Output) open(ctx context.Context) (ports.CaptureSession, error) {
	req := ports.CaptureRequest{
		Device:    o.cfg.Device,
		Width:     o.cfg.Width,
		Height:    o.cfg.Height,
		FrameRate: o.cfg.FrameRate,
		Format:    o.cfg.Format,
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = o.cfg.RetryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(o.cfg.OpenRetries)), ctx)

	var sess ports.CaptureSession
	err := backoff.Retry(func() error {
		s, err := o.device.Open(ctx, req)
		if err != nil {
			o.obs.LogError("camera_open_failed", err, ports.Field{Key: "output", Value: o.Name()})
			return err
		}
		sess = s
		return nil
	}, policy)
	return sess, err
}

// Start initializes the output if needed and, when capture_on_start is set,
// begins continuous capture. Starting a running output does nothing.
func (o *Output) Start(ctx context.Context) error {
	if err := o.Init(ctx); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return &domain.InitError{Output: o.Name(), Err: fmt.Errorf("session released during start")}
	}
	if !o.MarkRunning() {
		return nil
	}
	if o.cfg.captureOnStart() && !o.capturing {
		if err := o.session.StartCapture(); err != nil {
			o.MarkStopped()
			return fmt.Errorf("camera %q: start capture: %w", o.Name(), err)
		}
		o.capturing = true
	}
	return nil
}

// BeginCapture starts continuous capture on a running output opened with
// capture_on_start disabled.
func (o *Output) BeginCapture() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil || !o.Running() {
		return fmt.Errorf("camera %q: %w", o.Name(), domain.ErrChannelStopped)
	}
	if o.capturing {
		return nil
	}
	if err := o.session.StartCapture(); err != nil {
		return fmt.Errorf("camera %q: start capture: %w", o.Name(), err)
	}
	o.capturing = true
	return nil
}

// Stop stops capture if it was started and releases the session. It is safe
// to call without Start and more than once.
func (o *Output) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.MarkStopped()
	return o.releaseLocked()
}

func (o *Output) releaseLocked() error {
	if o.session == nil {
		return nil
	}
	o.gen.Add(1)
	var err error
	if o.capturing {
		err = multierr.Append(err, o.session.StopCapture())
		o.capturing = false
	}
	err = multierr.Append(err, o.session.Close())
	o.session = nil
	if err != nil {
		return fmt.Errorf("camera %q: release session: %w", o.Name(), err)
	}
	return nil
}

func (o *Output) handleFrame(gen uint64, f ports.Frame) {
	defer func() {
		if r := recover(); r != nil {
			o.obs.LogError("frame_handler_panic", fmt.Errorf("%v", r), ports.Field{Key: "output", Value: o.Name()})
		}
	}()
	defer f.Release()

	if gen != o.gen.Load() || !o.Running() {
		return
	}
	o.obs.IncCounter(ports.MetricFramesCaptured, 1)

	px := f.Pixels()
	buf := make([]byte, len(px))
	copy(buf, px)
	if err := o.Publish(domain.NewByteRecord(buf), f.CapturedAt()); err != nil {
		if gen == o.gen.Load() && o.Running() {
			o.obs.LogError("frame_publish_failed", err, ports.Field{Key: "output", Value: o.Name()})
		}
	}
}

func (o *Output) handleFault(gen uint64, err error) {
	if gen != o.gen.Load() {
		return
	}
	fault := &DeviceFault{Output: o.Name(), Err: err}
	o.obs.IncCounter(ports.MetricDeviceFaults, 1)
	o.obs.LogError("capture_device_fault", fault,
		ports.Field{Key: "output", Value: o.Name()},
		ports.Field{Key: "policy", Value: o.cfg.FaultPolicy},
	)
	if o.cfg.FaultPolicy == FaultLog {
		return
	}
	go o.applyFaultPolicy(gen)
}

// applyFaultPolicy runs off the capture goroutine; the session's StopCapture
// waits for that goroutine to exit.
func (o *Output) applyFaultPolicy(gen uint64) {
	o.faultMu.Lock()
	defer o.faultMu.Unlock()
	if gen != o.gen.Load() {
		return
	}

	switch o.cfg.FaultPolicy {
	case FaultStop:
		if err := o.Stop(); err != nil {
			o.obs.LogError("camera_stop_failed", err, ports.Field{Key: "output", Value: o.Name()})
		}
	case FaultReacquire:
		if err := o.reacquire(); err != nil {
			o.obs.LogError("camera_reacquire_failed", err, ports.Field{Key: "output", Value: o.Name()})
			if serr := o.Stop(); serr != nil {
				o.obs.LogError("camera_stop_failed", serr, ports.Field{Key: "output", Value: o.Name()})
			}
		}
	}
}

func (o *Output) reacquire() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.Running() {
		return nil
	}
	if err := o.releaseLocked(); err != nil {
		o.obs.LogError("camera_release_failed", err, ports.Field{Key: "output", Value: o.Name()})
	}
	if err := o.acquireLocked(context.Background()); err != nil {
		return err
	}
	if o.cfg.captureOnStart() {
		if err := o.session.StartCapture(); err != nil {
			return err
		}
		o.capturing = true
	}
	o.obs.LogInfo("camera_reacquired", ports.Field{Key: "output", Value: o.Name()})
	return nil
}
