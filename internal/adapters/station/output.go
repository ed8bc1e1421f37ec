// Package station polls a weather source on a fixed interval and publishes
// one GenericWeatherStation record per reading.
package station

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alexrobin/osh-video/internal/app/output"
	"github.com/alexrobin/osh-video/internal/domain"
	"github.com/alexrobin/osh-video/internal/ports"
)

// DefaultInterval is the poll interval used when none is configured.
const DefaultInterval = 10 * time.Second

// Config controls polling. The source itself is configured separately.
type Config struct {
	Name        string        `yaml:"name"`
	Interval    time.Duration `yaml:"interval"`
	PullTimeout time.Duration `yaml:"pull_timeout"`
}

func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = OutputName
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.PullTimeout <= 0 || c.PullTimeout > c.Interval {
		c.PullTimeout = c.Interval
	}
}

// Output is a polled weather-station sensor output.
type Output struct {
	*output.Channel

	cfg    Config
	source ports.StationSource
	sched  ports.Scheduler
	obs    ports.Observability

	mu   sync.Mutex
	task ports.ScheduledTask
}

var _ ports.Output = (*Output)(nil)

// New builds the output and fixes its schema. Init never depends on the
// source being reachable.
func New(cfg Config, source ports.StationSource, sched ports.Scheduler, sink ports.EventSink, obs ports.Observability) (*Output, error) {
	cfg.ApplyDefaults()
	if source == nil || sched == nil {
		return nil, fmt.Errorf("station %q: source and scheduler are required", cfg.Name)
	}
	schema, err := NewSchema()
	if err != nil {
		return nil, err
	}
	ch := output.NewChannel(cfg.Name, sink, obs)
	if err := ch.Init(schema, NewEncoding()); err != nil {
		return nil, &domain.InitError{Output: cfg.Name, Err: err}
	}
	ch.SetAverageSamplingPeriod(cfg.Interval.Seconds())
	return &Output{Channel: ch, cfg: cfg, source: source, sched: sched, obs: obs}, nil
}

// Start schedules polling with the first pull right away. It does nothing
// while a task is active.
func (o *Output) Start(context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.task != nil {
		return nil
	}
	o.MarkRunning()
	task, err := o.sched.Every(o.cfg.Interval, o.tick)
	if err != nil {
		o.MarkStopped()
		return &domain.InitError{Output: o.Name(), Err: err}
	}
	o.task = task
	o.obs.LogInfo("station_polling_started",
		ports.Field{Key: "output", Value: o.Name()},
		ports.Field{Key: "interval", Value: o.cfg.Interval.String()},
	)
	return nil
}

// Stop cancels the poll task. A pull already in flight finishes but its
// reading is not published.
func (o *Output) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.MarkStopped()
	if o.task == nil {
		return nil
	}
	err := o.task.Cancel()
	o.task = nil
	if err != nil {
		return fmt.Errorf("station %q: cancel poll: %w", o.Name(), err)
	}
	return nil
}

// Close stops polling and releases the source.
func (o *Output) Close() error {
	if err := o.Stop(); err != nil {
		return err
	}
	return o.source.Close()
}

func (o *Output) tick(ctx context.Context) {
	if !o.Running() {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, o.cfg.PullTimeout)
	defer cancel()

	reading, err := o.source.Pull(ctx)
	if err != nil {
		o.obs.IncCounter(ports.MetricPollFailures, 1)
		o.obs.LogError("station_pull_failed", err, ports.Field{Key: "output", Value: o.Name()})
		return
	}
	if err := o.Publish(ToRecord(reading), reading.SampleTime); err != nil && o.Running() {
		o.obs.LogError("station_publish_failed", err, ports.Field{Key: "output", Value: o.Name()})
	}
}
