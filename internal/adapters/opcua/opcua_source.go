package opcua

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"

	"github.com/alexrobin/osh-video/internal/domain"
	"github.com/alexrobin/osh-video/internal/ports"
)

// Config captures the runtime details required to open an OPC UA session and
// the node carrying each weather quantity.
type Config struct {
	Endpoint        string         `yaml:"endpoint"`
	Username        string         `yaml:"username"`
	Password        string         `yaml:"password"`
	SecurityMode    string         `yaml:"security_mode"`
	SecurityPolicy  string         `yaml:"security_policy"`
	ApplicationName string         `yaml:"application_name"`
	RequestTimeout  time.Duration  `yaml:"request_timeout"`
	Station         domain.Station `yaml:"station"`
	Nodes           NodeConfig     `yaml:"nodes"`
}

// NodeConfig maps reading fields to node ids such as "ns=2;s=Weather.Temp".
// Unset fields read as NaN, or zero for the integer distances.
type NodeConfig struct {
	Temperature         string `yaml:"temperature"`
	DewPoint            string `yaml:"dew_point"`
	RelativeHumidity    string `yaml:"relative_humidity"`
	WindSpeed           string `yaml:"wind_speed"`
	WindDirection       string `yaml:"wind_direction"`
	WindGust            string `yaml:"wind_gust"`
	MinDailyTemperature string `yaml:"min_daily_temperature"`
	MaxDailyTemperature string `yaml:"max_daily_temperature"`
	CloudCeiling        string `yaml:"cloud_ceiling"`
	Visibility          string `yaml:"visibility"`
}

func (n *NodeConfig) fields(r *domain.StationReading) []nodeField {
	return []nodeField{
		{n.Temperature, &r.Temperature, nil},
		{n.DewPoint, &r.DewPoint, nil},
		{n.RelativeHumidity, &r.RelativeHumidity, nil},
		{n.WindSpeed, &r.WindSpeed, nil},
		{n.WindDirection, &r.WindDirection, nil},
		{n.WindGust, &r.WindGust, nil},
		{n.MinDailyTemperature, &r.MinDailyTemperature, nil},
		{n.MaxDailyTemperature, &r.MaxDailyTemperature, nil},
		{n.CloudCeiling, nil, &r.CloudCeiling},
		{n.Visibility, nil, &r.Visibility},
	}
}

type nodeField struct {
	id  string
	f64 *float64
	i64 *int64
}

func (c *Config) ApplyDefaults() {
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "osh-hub"
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 5 * time.Second
	}
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	configured := 0
	var probe domain.StationReading
	for _, f := range c.Nodes.fields(&probe) {
		if f.id == "" {
			continue
		}
		if _, err := ua.ParseNodeID(f.id); err != nil {
			return fmt.Errorf("parse node id %q: %w", f.id, err)
		}
		configured++
	}
	if configured == 0 {
		return errors.New("at least one node must be configured")
	}
	return nil
}

// nodeReader is the part of *opcua.Client the source uses.
type nodeReader interface {
	Read(ctx context.Context, req *ua.ReadRequest) (*ua.ReadResponse, error)
	Close(ctx context.Context) error
}

// Dialer connects a reader to the configured endpoint.
type Dialer func(ctx context.Context, cfg Config) (nodeReader, error)

// Source reads all configured weather nodes in one request per Pull.
type Source struct {
	cfg  Config
	dial Dialer
	clk  clock.Clock

	mu     sync.Mutex
	client nodeReader
}

var _ ports.StationSource = (*Source)(nil)

func NewSource(cfg Config, clk clock.Clock) (*Source, error) {
	return newSource(cfg, dialClient, clk)
}

func newSource(cfg Config, dial Dialer, clk clock.Clock) (*Source, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Source{cfg: cfg, dial: dial, clk: clk}, nil
}

// Pull connects on first use and reads every configured node. The newest
// source timestamp among the values is the sample time.
func (s *Source) Pull(ctx context.Context) (domain.StationReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		client, err := s.dial(ctx, s.cfg)
		if err != nil {
			return domain.StationReading{}, fmt.Errorf("%w: opcua connect %s: %v", domain.ErrSourceUnavailable, s.cfg.Endpoint, err)
		}
		s.client = client
	}

	reading := domain.StationReading{Station: s.cfg.Station}
	fields := s.cfg.Nodes.fields(&reading)
	var (
		req    = &ua.ReadRequest{TimestampsToReturn: ua.TimestampsToReturnBoth}
		wanted []nodeField
	)
	for _, f := range fields {
		if f.id == "" {
			if f.f64 != nil {
				*f.f64 = math.NaN()
			}
			continue
		}
		id, err := ua.ParseNodeID(f.id)
		if err != nil {
			return domain.StationReading{}, fmt.Errorf("%w: node id %q: %v", domain.ErrMalformedReading, f.id, err)
		}
		req.NodesToRead = append(req.NodesToRead, &ua.ReadValueID{NodeID: id, AttributeID: ua.AttributeIDValue})
		wanted = append(wanted, f)
	}

	rctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()
	resp, err := s.client.Read(rctx, req)
	if err != nil {
		s.dropClient()
		return domain.StationReading{}, fmt.Errorf("%w: opcua read: %v", domain.ErrSourceUnavailable, err)
	}
	if len(resp.Results) != len(wanted) {
		return domain.StationReading{}, fmt.Errorf("%w: opcua returned %d results for %d nodes", domain.ErrMalformedReading, len(resp.Results), len(wanted))
	}

	var newest time.Time
	for i, dv := range resp.Results {
		f := wanted[i]
		if dv == nil || dv.Status != ua.StatusOK {
			status := ua.StatusBad
			if dv != nil {
				status = dv.Status
			}
			return domain.StationReading{}, fmt.Errorf("%w: node %s: %s", domain.ErrMalformedReading, f.id, status)
		}
		fv, ok := variantToFloat(dv.Value)
		if !ok {
			var raw any
			if dv.Value != nil {
				raw = dv.Value.Value()
			}
			return domain.StationReading{}, fmt.Errorf("%w: node %s: unsupported type %T", domain.ErrMalformedReading, f.id, raw)
		}
		if f.f64 != nil {
			*f.f64 = fv
		} else {
			*f.i64 = int64(fv)
		}

		ts := dv.SourceTimestamp
		if ts.IsZero() {
			ts = dv.ServerTimestamp
		}
		if ts.After(newest) {
			newest = ts
		}
	}
	if newest.IsZero() {
		newest = s.clk.Now()
	}
	reading.SampleTime = newest.UTC()
	return reading, nil
}

func (s *Source) dropClient() {
	if s.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
	defer cancel()
	_ = s.client.Close(ctx)
	s.client = nil
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
	defer cancel()
	err := s.client.Close(ctx)
	s.client = nil
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func dialClient(ctx context.Context, cfg Config) (nodeReader, error) {
	client, err := opcua.NewClient(cfg.Endpoint, buildClientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("opcua new client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("opcua connect: %w", err)
	}
	return client, nil
}

func buildClientOptions(cfg Config) []opcua.Option {
	opts := []opcua.Option{
		opcua.SecurityModeString(normalizeSecurityMode(cfg.SecurityMode)),
		opcua.SecurityPolicy(normalizeSecurityPolicy(cfg.SecurityPolicy)),
		opcua.ApplicationName(cfg.ApplicationName),
		opcua.RequestTimeout(cfg.RequestTimeout),
		opcua.AutoReconnect(true),
	}
	if cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(cfg.Username, cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}
	return opts
}

func variantToFloat(v *ua.Variant) (float64, bool) {
	if v == nil {
		return 0, false
	}

	switch val := v.Value().(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case int8:
		return float64(val), true
	case uint8:
		return float64(val), true
	case int16:
		return float64(val), true
	case uint16:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}

func normalizeSecurityMode(mode string) string {
	switch strings.ToLower(mode) {
	case "sign":
		return "Sign"
	case "signandencrypt", "signencrypt", "sign_and_encrypt", "sign+encrypt":
		return "SignAndEncrypt"
	default:
		return "None"
	}
}

func normalizeSecurityPolicy(policy string) string {
	if policy == "" {
		return "None"
	}
	return policy
}
