// Package httpwx pulls weather readings as JSON from an HTTP endpoint.
package httpwx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/alexrobin/osh-video/internal/domain"
	"github.com/alexrobin/osh-video/internal/ports"
)

// Config points the source at one observation endpoint.
type Config struct {
	URL             string         `yaml:"url"`
	Timeout         time.Duration  `yaml:"timeout"`
	Retries         int            `yaml:"retries"`
	RetryInterval   time.Duration  `yaml:"retry_interval"`
	BreakerFailures int            `yaml:"breaker_failures"`
	BreakerOpen     time.Duration  `yaml:"breaker_open"`
	Station         domain.Station `yaml:"station"`
}

func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 200 * time.Millisecond
	}
	if c.BreakerFailures <= 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerOpen <= 0 {
		c.BreakerOpen = 30 * time.Second
	}
}

func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.New("url is required")
	}
	return nil
}

// Source is a ports.StationSource over HTTP. Consecutive failures open a
// circuit breaker so a dead endpoint is not hammered every tick.
type Source struct {
	cfg    Config
	client *http.Client
	cb     *gobreaker.CircuitBreaker
}

var _ ports.StationSource = (*Source)(nil)

func New(cfg Config, client *http.Client) (*Source, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	failures := uint32(cfg.BreakerFailures)
	return &Source{
		cfg:    cfg,
		client: client,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "httpwx " + cfg.URL,
			Timeout: cfg.BreakerOpen,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= failures
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, domain.ErrMalformedReading)
			},
		}),
	}, nil
}

// Pull fetches one reading, retrying transient failures within ctx.
func (s *Source) Pull(ctx context.Context) (domain.StationReading, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		var r domain.StationReading
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = s.cfg.RetryInterval
		policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(s.cfg.Retries)), ctx)
		err := backoff.Retry(func() error {
			var err error
			r, err = s.fetch(ctx)
			if errors.Is(err, domain.ErrMalformedReading) {
				return backoff.Permanent(err)
			}
			return err
		}, policy)
		return r, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return domain.StationReading{}, fmt.Errorf("%s: %w: %v", s.cfg.URL, domain.ErrSourceUnavailable, err)
		}
		return domain.StationReading{}, err
	}
	return res.(domain.StationReading), nil
}

func (s *Source) fetch(ctx context.Context) (domain.StationReading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return domain.StationReading{}, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return domain.StationReading{}, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return domain.StationReading{}, fmt.Errorf("%w: %s returned %s", domain.ErrSourceUnavailable, s.cfg.URL, resp.Status)
	}

	var r domain.StationReading
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return domain.StationReading{}, fmt.Errorf("%w: decode: %v", domain.ErrMalformedReading, err)
	}
	if r.SampleTime.IsZero() {
		return domain.StationReading{}, fmt.Errorf("%w: reading has no time", domain.ErrMalformedReading)
	}
	if r.Station.Name == "" {
		r.Station = s.cfg.Station
	}
	return r, nil
}

// State reports the breaker state, e.g. "closed" or "open".
func (s *Source) State() string { return s.cb.State().String() }

func (s *Source) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
