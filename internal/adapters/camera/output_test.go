package camera

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/alexrobin/osh-video/internal/domain"
	"github.com/alexrobin/osh-video/internal/ports"
)

func TestNegotiatedSizeDrivesSchema(t *testing.T) {
	dev := &fakeDevice{negotiated: ports.CaptureFormat{Width: 352, Height: 288, FrameRate: 25, PixelFormat: "YUYV"}}
	sink := &eventSink{}
	o := newTestOutput(t, Config{Name: "cam", Width: 320, Height: 240}, dev, sink)

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := dev.requests[0]; got.Width != 320 || got.Height != 240 {
		t.Fatalf("expected 320x240 request, got %+v", got)
	}

	s := o.RecordDescription()
	if s.Root().Count() != 288 || s.Root().Children()[0].Count() != 352 {
		t.Fatalf("expected 288 rows of 352 pixels, got %d x %d", s.Root().Count(), s.Root().Children()[0].Count())
	}
	if s.Size() != 352*288*3 {
		t.Fatalf("unexpected schema size %d", s.Size())
	}
	if cfg := o.Config(); cfg.Width != 352 || cfg.Height != 288 || cfg.Format != "YUYV" {
		t.Fatalf("effective config not updated: %+v", cfg)
	}
	if p := o.AverageSamplingPeriod(); p != 1.0/25 {
		t.Fatalf("unexpected sampling period %v", p)
	}

	buf := make([]byte, 352*288*3)
	for i := range buf {
		buf[i] = byte(i % 251)
	}
	buf[0], buf[1], buf[2] = 200, 100, 50
	captured := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	sess := dev.last()
	sess.emit(buf, captured)

	rec := o.LatestRecord()
	if rec == nil {
		t.Fatalf("expected a latest record")
	}
	if rec.ByteAt(0) != 200 || rec.ByteAt(1) != 100 || rec.ByteAt(2) != 50 {
		t.Fatalf("pixel (0,0) mismatch: %d %d %d", rec.ByteAt(0), rec.ByteAt(1), rec.ByteAt(2))
	}
	if diff := cmp.Diff(buf, rec.Bytes()); diff != "" {
		t.Fatalf("record bytes differ (-want +got):\n%s", diff)
	}
	if ts, ok := o.LatestRecordTime(); !ok || !ts.Equal(captured) {
		t.Fatalf("expected capture time %v, got %v", captured, ts)
	}
	events := sink.all()
	if len(events) != 1 || events[0].Output != "cam" || !events[0].Timestamp.Equal(captured) {
		t.Fatalf("unexpected events %+v", events)
	}
	if events[0].Record != rec {
		t.Fatalf("event and latest record should be the same instance")
	}
	if sess.released != 1 {
		t.Fatalf("expected frame released once, got %d", sess.released)
	}
}

func TestFrameEncodingMembers(t *testing.T) {
	dev := &fakeDevice{negotiated: ports.CaptureFormat{Width: 2, Height: 2}}
	o := newTestOutput(t, Config{}, dev, &eventSink{})
	if _, err := o.RecommendedEncoding(); !errors.Is(err, domain.ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized before init, got %v", err)
	}
	if err := o.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	enc, err := o.RecommendedEncoding()
	if err != nil {
		t.Fatalf("encoding: %v", err)
	}
	bin, ok := enc.(*domain.BinaryEncoding)
	if !ok {
		t.Fatalf("expected binary encoding, got %T", enc)
	}
	var refs []string
	for _, m := range bin.Members {
		if m.Type != domain.TypeByte || m.ByteWidth != 1 {
			t.Fatalf("member %s: expected one unsigned byte", m.Ref)
		}
		refs = append(refs, m.Ref)
	}
	if diff := cmp.Diff([]string{"row/pixel/red", "row/pixel/green", "row/pixel/blue"}, refs); diff != "" {
		t.Fatalf("member order (-want +got):\n%s", diff)
	}
	if bin.ByteEncoding != domain.ByteEncodingRaw {
		t.Fatalf("expected raw byte encoding")
	}
	if bin.ByteOrder != binary.BigEndian {
		t.Fatalf("byte order = %v, want big endian", bin.ByteOrder)
	}
}

func TestNoPublishAfterStop(t *testing.T) {
	dev := &fakeDevice{negotiated: ports.CaptureFormat{Width: 1, Height: 1}}
	sink := &eventSink{}
	o := newTestOutput(t, Config{}, dev, sink)
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	sess := dev.last()
	sess.emit([]byte{1, 2, 3}, time.Now())
	if err := o.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	sess.emit([]byte{4, 5, 6}, time.Now())
	if len(sink.all()) != 1 {
		t.Fatalf("stray frame after stop reached the sink")
	}
	if o.LatestRecord().ByteAt(0) != 1 {
		t.Fatalf("latest record changed after stop")
	}
	if sess.released != 2 {
		t.Fatalf("stray frame must still be released, got %d releases", sess.released)
	}
	if !sess.stopOrder() {
		t.Fatalf("capture must stop before the session closes: %v", sess.calls)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	dev := &fakeDevice{negotiated: ports.CaptureFormat{Width: 4, Height: 3}}
	o := newTestOutput(t, Config{}, dev, &eventSink{})

	if err := o.Stop(); err != nil {
		t.Fatalf("stop before start: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := o.Start(context.Background()); err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
	}
	if len(dev.requests) != 1 || dev.last().starts != 1 {
		t.Fatalf("second start should not reopen or restart capture")
	}
	for i := 0; i < 2; i++ {
		if err := o.Stop(); err != nil {
			t.Fatalf("stop %d: %v", i, err)
		}
	}
	if o.Running() || dev.last().closes != 1 {
		t.Fatalf("expected one close and stopped state")
	}

	// a restart reopens the device and keeps the schema
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if len(dev.requests) != 2 || !o.Running() {
		t.Fatalf("expected reopen on restart")
	}
	_ = o.Stop()
}

func TestStopWithoutCaptureOnStart(t *testing.T) {
	off := false
	dev := &fakeDevice{negotiated: ports.CaptureFormat{Width: 1, Height: 1}}
	o := newTestOutput(t, Config{CaptureOnStart: &off}, dev, &eventSink{})
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	sess := dev.last()
	if sess.starts != 0 {
		t.Fatalf("capture should not start")
	}
	if err := o.BeginCapture(); err != nil {
		t.Fatalf("begin capture: %v", err)
	}
	if err := o.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if sess.stops != 1 || sess.closes != 1 {
		t.Fatalf("expected stop+close, got %v", sess.calls)
	}
}

func TestInitFailureIsInitError(t *testing.T) {
	dev := &fakeDevice{openErr: errors.New("no such device")}
	o := newTestOutput(t, Config{Name: "cam", OpenRetries: 2, RetryInterval: time.Millisecond}, dev, &eventSink{})

	err := o.Start(context.Background())
	var initErr *domain.InitError
	if !errors.As(err, &initErr) || initErr.Output != "cam" {
		t.Fatalf("expected InitError, got %v", err)
	}
	if len(dev.requests) != 3 {
		t.Fatalf("expected 3 open attempts, got %d", len(dev.requests))
	}
	if o.Running() {
		t.Fatalf("output must stay stopped")
	}
}

func TestInvalidNegotiationFailsInit(t *testing.T) {
	dev := &fakeDevice{negotiated: ports.CaptureFormat{Width: 0, Height: 10}}
	o := newTestOutput(t, Config{}, dev, &eventSink{})
	var initErr *domain.InitError
	if err := o.Init(context.Background()); !errors.As(err, &initErr) {
		t.Fatalf("expected InitError, got %v", err)
	}
	if dev.last().closes != 1 {
		t.Fatalf("rejected session must be closed")
	}
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	dev := &fakeDevice{negotiated: ports.CaptureFormat{Width: 1, Height: 1}}
	obs := &mockObs{}
	o, err := New(Config{}, dev, panicSink{}, obs)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	sess := dev.last()
	sess.emit([]byte{1, 2, 3}, time.Now())
	if len(obs.errors()) != 1 {
		t.Fatalf("expected the panic to be logged")
	}
	if sess.released != 1 {
		t.Fatalf("frame must be released even when publish panics")
	}
}

func TestWrongFrameSizeIsRejected(t *testing.T) {
	dev := &fakeDevice{negotiated: ports.CaptureFormat{Width: 2, Height: 1}}
	sink := &eventSink{}
	obs := &mockObs{}
	o, _ := New(Config{}, dev, sink, obs)
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	dev.last().emit([]byte{1, 2, 3}, time.Now())
	if len(sink.all()) != 0 || o.LatestRecord() != nil {
		t.Fatalf("short frame must not be published")
	}
	if obs.count(ports.MetricFramesCaptured) != 1 || len(obs.errors()) != 1 {
		t.Fatalf("expected counted frame and logged error")
	}
}

func TestFaultPolicies(t *testing.T) {
	t.Run("log", func(t *testing.T) {
		dev := &fakeDevice{negotiated: ports.CaptureFormat{Width: 1, Height: 1}}
		obs := &mockObs{}
		o, _ := New(Config{}, dev, &eventSink{}, obs)
		_ = o.Start(context.Background())
		dev.last().fault(errors.New("usb reset"))

		var fault *DeviceFault
		errs := obs.errors()
		if len(errs) != 1 || !errors.As(errs[0], &fault) {
			t.Fatalf("expected a logged DeviceFault, got %v", errs)
		}
		if !o.Running() || obs.count(ports.MetricDeviceFaults) != 1 {
			t.Fatalf("log policy must keep running")
		}
		_ = o.Stop()
	})

	t.Run("stop", func(t *testing.T) {
		dev := &fakeDevice{negotiated: ports.CaptureFormat{Width: 1, Height: 1}}
		o, _ := New(Config{FaultPolicy: FaultStop}, dev, &eventSink{}, &mockObs{})
		_ = o.Start(context.Background())
		dev.last().fault(errors.New("unplugged"))
		waitFor(t, func() bool { return !o.Running() })
		waitFor(t, func() bool { return dev.last().closeCount() == 1 })
	})

	t.Run("reacquire", func(t *testing.T) {
		dev := &fakeDevice{negotiated: ports.CaptureFormat{Width: 1, Height: 1}}
		sink := &eventSink{}
		o, _ := New(Config{FaultPolicy: FaultReacquire, RetryInterval: time.Millisecond}, dev, sink, &mockObs{})
		_ = o.Start(context.Background())
		first := dev.last()
		first.fault(errors.New("glitch"))
		waitFor(t, func() bool { return dev.count() == 2 })
		waitFor(t, func() bool { return dev.last().startCount() == 1 })
		if !o.Running() || first.closeCount() != 1 {
			t.Fatalf("expected old session closed and output running")
		}

		first.emit([]byte{9, 9, 9}, time.Now())
		dev.last().emit([]byte{1, 1, 1}, time.Now())
		if n := len(sink.all()); n != 1 {
			t.Fatalf("only the new session may publish, got %d events", n)
		}
		_ = o.Stop()
	})

	t.Run("reacquire size change stops", func(t *testing.T) {
		dev := &fakeDevice{negotiated: ports.CaptureFormat{Width: 1, Height: 1}}
		o, _ := New(Config{FaultPolicy: FaultReacquire, RetryInterval: time.Millisecond}, dev, &eventSink{}, &mockObs{})
		_ = o.Start(context.Background())
		dev.setNegotiated(ports.CaptureFormat{Width: 2, Height: 2})
		dev.last().fault(errors.New("mode change"))
		waitFor(t, func() bool { return !o.Running() })
	})
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{FaultPolicy: "explode"}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected invalid fault policy error")
	}
	cfg = Config{}
	cfg.ApplyDefaults()
	if cfg.Name != "videoCamera" || cfg.Width != 640 || cfg.Height != 480 || !cfg.captureOnStart() {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func newTestOutput(t *testing.T, cfg Config, dev ports.CaptureDevice, sink ports.EventSink) *Output {
	t.Helper()
	o, err := New(cfg, dev, sink, &mockObs{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return o
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

type fakeDevice struct {
	mu         sync.Mutex
	negotiated ports.CaptureFormat
	openErr    error
	requests   []ports.CaptureRequest
	sessions   []*fakeSession
}

func (d *fakeDevice) Open(_ context.Context, req ports.CaptureRequest) (ports.CaptureSession, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, req)
	if d.openErr != nil {
		return nil, d.openErr
	}
	s := &fakeSession{format: d.negotiated}
	d.sessions = append(d.sessions, s)
	return s, nil
}

func (d *fakeDevice) last() *fakeSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessions[len(d.sessions)-1]
}

func (d *fakeDevice) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

func (d *fakeDevice) setNegotiated(f ports.CaptureFormat) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.negotiated = f
}

type fakeSession struct {
	format ports.CaptureFormat

	mu       sync.Mutex
	onFrame  ports.FrameHandler
	onError  ports.ErrorHandler
	calls    []string
	starts   int
	stops    int
	closes   int
	released int
}

func (s *fakeSession) Negotiated() ports.CaptureFormat { return s.format }

func (s *fakeSession) SetHandlers(onFrame ports.FrameHandler, onError ports.ErrorHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFrame, s.onError = onFrame, onError
}

func (s *fakeSession) StartCapture() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
	s.calls = append(s.calls, "start")
	return nil
}

func (s *fakeSession) StopCapture() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	s.calls = append(s.calls, "stop")
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	s.calls = append(s.calls, "close")
	return nil
}

func (s *fakeSession) emit(px []byte, ts time.Time) {
	s.mu.Lock()
	fn := s.onFrame
	s.mu.Unlock()
	fn(&fakeFrame{px: px, ts: ts, session: s})
}

func (s *fakeSession) fault(err error) {
	s.mu.Lock()
	fn := s.onError
	s.mu.Unlock()
	fn(err)
}

func (s *fakeSession) stopOrder() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	stopAt, closeAt := -1, -1
	for i, c := range s.calls {
		switch c {
		case "stop":
			stopAt = i
		case "close":
			closeAt = i
		}
	}
	return stopAt >= 0 && stopAt < closeAt
}

func (s *fakeSession) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

func (s *fakeSession) startCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts
}

type fakeFrame struct {
	px      []byte
	ts      time.Time
	session *fakeSession
}

func (f *fakeFrame) Pixels() []byte        { return f.px }
func (f *fakeFrame) CapturedAt() time.Time { return f.ts }
func (f *fakeFrame) Release() {
	f.session.mu.Lock()
	defer f.session.mu.Unlock()
	f.session.released++
}

type eventSink struct {
	mu     sync.Mutex
	events []domain.SensorEvent
}

func (s *eventSink) Publish(e domain.SensorEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *eventSink) all() []domain.SensorEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.SensorEvent(nil), s.events...)
}

type panicSink struct{}

func (panicSink) Publish(domain.SensorEvent) { panic("consumer bug") }

type mockObs struct {
	mu       sync.Mutex
	errs     []error
	counters map[string]float64
}

func (m *mockObs) LogInfo(string, ...ports.Field) {}
func (m *mockObs) LogError(_ string, err error, _ ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, err)
}
func (m *mockObs) LogCritical(_ string, err error, _ ...ports.Field) {}
func (m *mockObs) IncCounter(name string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = make(map[string]float64)
	}
	m.counters[name] += v
}
func (m *mockObs) ObserveLatency(string, float64) {}
func (m *mockObs) SetGauge(string, float64)       {}

func (m *mockObs) count(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

func (m *mockObs) errors() []error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]error(nil), m.errs...)
}
