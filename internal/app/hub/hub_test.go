package hub

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/alexrobin/osh-video/internal/app/output"
	"github.com/alexrobin/osh-video/internal/domain"
	"github.com/alexrobin/osh-video/internal/ports"
)

type fakeOutput struct {
	*output.Channel
	startErr error
	stopErr  error
	log      *[]string
	closed   bool
}

func newFake(name string, log *[]string) *fakeOutput {
	return &fakeOutput{Channel: output.NewChannel(name, nopSink{}, nopObs{}), log: log}
}

func (f *fakeOutput) Start(context.Context) error {
	*f.log = append(*f.log, "start "+f.Name())
	if f.startErr != nil {
		return f.startErr
	}
	f.MarkRunning()
	return nil
}

func (f *fakeOutput) Stop() error {
	*f.log = append(*f.log, "stop "+f.Name())
	f.MarkStopped()
	return f.stopErr
}

func (f *fakeOutput) Close() error {
	f.closed = true
	return nil
}

func TestStartStopOrder(t *testing.T) {
	var log []string
	a, b := newFake("a", &log), newFake("b", &log)
	h, err := New(nopObs{}, a, b)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := strings.Join(log, ","); got != "start a,start b,stop b,stop a" {
		t.Fatalf("unexpected order %s", got)
	}
	if err := h.Stop(); err != nil || len(log) != 4 {
		t.Fatalf("second stop should do nothing")
	}
}

func TestStartFailureStopsStartedOutputs(t *testing.T) {
	var log []string
	a, b, c := newFake("a", &log), newFake("b", &log), newFake("c", &log)
	initErr := &domain.InitError{Output: "b", Err: errors.New("no device")}
	b.startErr = initErr
	h, _ := New(nopObs{}, a, b, c)

	err := h.Start(context.Background())
	var got *domain.InitError
	if !errors.As(err, &got) || got.Output != "b" {
		t.Fatalf("expected InitError for b, got %v", err)
	}
	if a.Running() || c.Running() {
		t.Fatalf("no output may be left running")
	}
	if joined := strings.Join(log, ","); joined != "start a,start b,stop a" {
		t.Fatalf("unexpected order %s", joined)
	}
}

func TestStopCollectsErrors(t *testing.T) {
	var log []string
	a, b := newFake("a", &log), newFake("b", &log)
	a.stopErr = errors.New("a stuck")
	b.stopErr = errors.New("b stuck")
	h, _ := New(nopObs{}, a, b)
	_ = h.Start(context.Background())

	err := h.Close()
	if err == nil || !strings.Contains(err.Error(), "a stuck") || !strings.Contains(err.Error(), "b stuck") {
		t.Fatalf("expected both stop errors, got %v", err)
	}
	if !a.closed || !b.closed {
		t.Fatalf("Close should close every output")
	}
}

func TestLookupAndDuplicates(t *testing.T) {
	var log []string
	if _, err := New(nopObs{}, newFake("x", &log), newFake("x", &log)); err == nil {
		t.Fatalf("expected duplicate name error")
	}
	h, _ := New(nopObs{}, newFake("x", &log))
	if _, ok := h.Output("x"); !ok {
		t.Fatalf("expected lookup to succeed")
	}
	if _, err := h.Encoding("x"); !errors.Is(err, domain.ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if _, err := h.Encoding("missing"); err == nil {
		t.Fatalf("expected unknown output error")
	}
}

type nopSink struct{}

func (nopSink) Publish(domain.SensorEvent) {}

type nopObs struct{}

func (nopObs) LogInfo(string, ...ports.Field)           {}
func (nopObs) LogError(string, error, ...ports.Field)    {}
func (nopObs) LogCritical(string, error, ...ports.Field) {}
func (nopObs) IncCounter(string, float64)                {}
func (nopObs) ObserveLatency(string, float64)            {}
func (nopObs) SetGauge(string, float64)                  {}
