package sensorhub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/alexrobin/osh-video/internal/adapters/bus"
	"github.com/alexrobin/osh-video/internal/adapters/camera"
	"github.com/alexrobin/osh-video/internal/adapters/httpwx"
	"github.com/alexrobin/osh-video/internal/adapters/mediadev"
	"github.com/alexrobin/osh-video/internal/adapters/observability"
	"github.com/alexrobin/osh-video/internal/adapters/opcua"
	"github.com/alexrobin/osh-video/internal/adapters/queue"
	"github.com/alexrobin/osh-video/internal/adapters/schedule"
	"github.com/alexrobin/osh-video/internal/adapters/serialwx"
	"github.com/alexrobin/osh-video/internal/adapters/simwx"
	"github.com/alexrobin/osh-video/internal/adapters/sink"
	"github.com/alexrobin/osh-video/internal/adapters/station"
	"github.com/alexrobin/osh-video/internal/app/config"
	"github.com/alexrobin/osh-video/internal/app/hub"
	"github.com/alexrobin/osh-video/internal/domain"
	"github.com/alexrobin/osh-video/internal/ports"
)

// ErrRuntimeStarted is returned when the runtime is modified or started twice.
var ErrRuntimeStarted = errors.New("sensorhub: runtime already started")

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	sinks         []Sink
	observability Observability
	logger        *zap.Logger
	queue         EventQueue
	device        CaptureDevice
	source        StationSource
	scheduler     Scheduler
	registry      *prometheus.Registry
	clock         clock.Clock
}

// WithSink adds a sink that receives every event. It may be given more than once.
func WithSink(s Sink) RuntimeOption {
	return func(o *runtimeOverrides) {
		if s != nil {
			o.sinks = append(o.sinks, s)
		}
	}
}

// WithObservability replaces the Prometheus and zap backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithLogger uses logger instead of one built from the log config.
func WithLogger(logger *zap.Logger) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.logger = logger
	}
}

// WithEventQueue swaps the bounded in-memory queue behind the event bus.
func WithEventQueue(q EventQueue) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.queue = q
	}
}

// WithCaptureDevice opens the camera through dev instead of the local media devices.
func WithCaptureDevice(dev CaptureDevice) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.device = dev
	}
}

// WithStationSource reads weather from src instead of the configured source kind.
func WithStationSource(src StationSource) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.source = src
	}
}

// WithScheduler drives station polling with sched.
func WithScheduler(sched Scheduler) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.scheduler = sched
	}
}

// WithRegistry registers the hub metrics on reg and serves it on /metrics.
func WithRegistry(reg *prometheus.Registry) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.registry = reg
	}
}

// WithClock sets the clock used by the capture device and simulated sources.
func WithClock(clk clock.Clock) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.clock = clk
	}
}

// Runtime wires the configured outputs to the event bus and its sinks and
// exposes lifecycle hooks for embedding the hub inside any Go service.
type Runtime struct {
	cfg    *Config
	logger *zap.Logger
	obs    ports.Observability
	reg    *prometheus.Registry
	queue  ports.EventQueue
	bus    *bus.Bus

	sched      ports.Scheduler
	ownedSched *schedule.Scheduler
	closers    []io.Closer

	mu      sync.Mutex
	outputs []ports.Output
	hub     *hub.Hub
	started bool

	busDone    chan struct{}
	metricsSrv *http.Server
	metricsLn  net.Listener

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewRuntime bootstraps the default adapters: a zap logger, Prometheus
// metrics on a private registry, the in-memory event queue, the configured
// camera and weather station outputs. Options override any of them.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	logger := overrides.logger
	if logger == nil {
		var err error
		logger, err = NewLogger(cfg.Log)
		if err != nil {
			return nil, err
		}
	}

	reg := overrides.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	obs := overrides.observability
	if obs == nil {
		obs = observability.NewPromObs(logger, reg)
	}

	clk := overrides.clock
	if clk == nil {
		clk = clock.New()
	}

	q := overrides.queue
	if q == nil {
		size := cfg.Policy.MaxQueueLen
		if size <= 0 {
			size = 1_024
		}
		q = queue.NewMemQueue(size)
	}

	rt := &Runtime{
		cfg:    cfg,
		logger: logger,
		obs:    obs,
		reg:    reg,
		queue:  q,
	}

	sinks := []ports.Sink{sink.NewLogSink(logger)}
	if path := cfg.EncodedOutput.Path; path != "" {
		w, err := rt.openEncodedOutput(path)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink.NewEncodedSink("encoded", w, rt.encoding, cfg.EncodedOutput.Outputs...))
	}
	sinks = append(sinks, overrides.sinks...)
	rt.bus = bus.New(q, cfg.Policy, obs, sinks...)

	if cfg.Camera != nil {
		dev := overrides.device
		if dev == nil {
			dev = mediadev.NewDevice(clk)
		}
		cam, err := camera.New(*cfg.Camera, dev, rt.bus, obs)
		if err != nil {
			rt.closeFiles()
			return nil, err
		}
		rt.outputs = append(rt.outputs, cam)
	}

	if cfg.Station != nil {
		src := overrides.source
		if src == nil {
			var err error
			src, err = newStationSource(&cfg.Station.Source, clk)
			if err != nil {
				rt.closeFiles()
				return nil, fmt.Errorf("station source: %w", err)
			}
		}
		sched := overrides.scheduler
		if sched == nil {
			owned, err := schedule.New()
			if err != nil {
				rt.closeFiles()
				return nil, err
			}
			rt.ownedSched = owned
			sched = owned
		}
		rt.sched = sched
		st, err := station.New(cfg.Station.Config, src, sched, rt.bus, obs)
		if err != nil {
			rt.closeFiles()
			return nil, err
		}
		rt.outputs = append(rt.outputs, st)
	}

	return rt, nil
}

func newStationSource(cfg *config.SourceConfig, clk clock.Clock) (ports.StationSource, error) {
	switch cfg.Kind {
	case config.SourceSim, "":
		return simwx.New(cfg.Station, clk), nil
	case config.SourceHTTP:
		return httpwx.New(cfg.HTTP, nil)
	case config.SourceSerial:
		return serialwx.New(cfg.Serial)
	case config.SourceOPCUA:
		return opcua.NewSource(cfg.OPCUA, clk)
	default:
		return nil, fmt.Errorf("unknown kind %q", cfg.Kind)
	}
}

func (r *Runtime) openEncodedOutput(path string) (io.Writer, error) {
	if path == "-" {
		return os.Stdout, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open encoded output: %w", err)
	}
	r.closers = append(r.closers, f)
	return f, nil
}

// encoding resolves the recommended encoding of a registered output.
func (r *Runtime) encoding(name string) (domain.RecordEncoding, error) {
	if o, ok := r.Output(name); ok {
		return o.RecommendedEncoding()
	}
	return nil, fmt.Errorf("unknown output %q", name)
}

// EventSink is the bus every output publishes to. Custom outputs added with
// AddOutput should publish here.
func (r *Runtime) EventSink() EventSink { return r.bus }

// Observability is the backend shared by all outputs.
func (r *Runtime) Observability() Observability { return r.obs }

// Logger is the zap logger behind the default observability backend.
func (r *Runtime) Logger() *zap.Logger { return r.logger }

// AddOutput registers an extra output. It must be called before Start.
func (r *Runtime) AddOutput(o Output) error {
	if o == nil {
		return fmt.Errorf("output is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return ErrRuntimeStarted
	}
	for _, existing := range r.outputs {
		if existing.Name() == o.Name() {
			return fmt.Errorf("duplicate output name %q", o.Name())
		}
	}
	r.outputs = append(r.outputs, o)
	return nil
}

// Outputs lists the registered outputs in start order.
func (r *Runtime) Outputs() []Output {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Output(nil), r.outputs...)
}

// Output looks up a registered output by name.
func (r *Runtime) Output(name string) (Output, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.outputs {
		if o.Name() == name {
			return o, true
		}
	}
	return nil, false
}

// Start launches the event bus, starts every output and the metrics server.
// It returns immediately; call Run to block on a context instead.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return ErrRuntimeStarted
	}

	h, err := hub.New(r.obs, r.outputs...)
	if err != nil {
		return err
	}

	r.busDone = make(chan struct{})
	go func() {
		defer close(r.busDone)
		r.bus.Run(context.Background())
	}()

	if err := h.Start(ctx); err != nil {
		r.bus.Close()
		<-r.busDone
		return err
	}
	r.hub = h
	r.started = true

	if err := r.startMetrics(); err != nil {
		r.obs.LogError("metrics_server_failed", err, ports.Field{Key: "addr", Value: r.cfg.Metrics.Addr})
	}
	r.obs.LogInfo("runtime_started", ports.Field{Key: "outputs", Value: len(r.outputs)})
	return nil
}

// Run starts the runtime and blocks until ctx is cancelled, then shuts down
// gracefully.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.Shutdown(shutdownCtx)
}

// Shutdown stops every output, flushes the bus and stops the metrics server.
// Calls after the first return the first result.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.shutdownOnce.Do(func() {
		r.shutdownErr = r.shutdown(ctx)
	})
	return r.shutdownErr
}

func (r *Runtime) shutdown(ctx context.Context) error {
	var err error

	r.mu.Lock()
	h := r.hub
	started := r.started
	r.mu.Unlock()

	if h != nil {
		err = multierr.Append(err, h.Close())
	} else {
		for _, o := range r.Outputs() {
			if c, ok := o.(io.Closer); ok {
				err = multierr.Append(err, c.Close())
			}
		}
	}

	r.bus.Close()
	if started {
		select {
		case <-r.busDone:
		case <-ctx.Done():
			err = multierr.Append(err, fmt.Errorf("flush event bus: %w", ctx.Err()))
		}
	}

	if r.ownedSched != nil {
		err = multierr.Append(err, r.ownedSched.Shutdown())
	}

	if r.metricsSrv != nil {
		if serr := r.metricsSrv.Shutdown(ctx); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			err = multierr.Append(err, serr)
		}
	}

	err = multierr.Append(err, r.closeFiles())
	_ = r.logger.Sync()
	return err
}

func (r *Runtime) closeFiles() error {
	var err error
	for _, c := range r.closers {
		err = multierr.Append(err, c.Close())
	}
	r.closers = nil
	return err
}

// MetricsAddr is the address the metrics server listens on, empty when it
// is not running.
func (r *Runtime) MetricsAddr() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.metricsLn == nil {
		return ""
	}
	return r.metricsLn.Addr().String()
}

func (r *Runtime) startMetrics() error {
	if r.cfg.Metrics.Addr == "" {
		return nil
	}
	ln, err := net.Listen("tcp", r.cfg.Metrics.Addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.metricsLn = ln
	r.metricsSrv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := r.metricsSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("metrics server exited", zap.Error(err))
		}
	}()
	return nil
}
