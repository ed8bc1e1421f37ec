package sensorhub

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/alexrobin/osh-video/internal/domain"
)

func testSchema(t *testing.T) *RecordSchema {
	t.Helper()
	s, err := NewRecordSchema(Group("reading", []*Component{
		Scalar("time", TypeTime),
		Scalar("value", TypeDouble),
	}))
	if err != nil {
		t.Fatalf("NewRecordSchema returned error: %v", err)
	}
	return s
}

func TestNewCallbackSink(t *testing.T) {
	var received []Event
	sink := NewCallbackSink("cb", func(batch []Event) error {
		received = append(received, batch...)
		return nil
	})

	ts := time.Unix(1, 0).UTC()
	rec := domain.NewRecord(ts, 3.14)
	input := domain.NewSensorEvent("sensor-1", ts, testSchema(t), rec)

	if err := sink.WriteBatch([]domain.SensorEvent{input}); err != nil {
		t.Fatalf("WriteBatch returned error: %v", err)
	}
	if len(received) != 1 {
		t.Fatalf("expected 1 batch entry, got %d", len(received))
	}
	got := received[0]
	if got.Output != "sensor-1" || got.ID != input.ID.String() {
		t.Fatalf("mismatched event: %+v vs %+v", got, input)
	}
	if diff := cmp.Diff([]any{ts, 3.14}, got.Values); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
	if got.Bytes != nil {
		t.Fatalf("expected no bytes for a mixed record")
	}
}

func TestCallbackSinkCopiesByteRecords(t *testing.T) {
	var got Event
	sink := NewCallbackSink("cb", func(batch []Event) error {
		got = batch[0]
		return nil
	})

	buf := []byte{1, 2, 3}
	schema, err := NewRecordSchema(Array("pixels", 3, Scalar("v", TypeByte)))
	if err != nil {
		t.Fatalf("NewRecordSchema returned error: %v", err)
	}
	evt := domain.NewSensorEvent("cam", time.Unix(2, 0), schema, domain.NewByteRecord(buf))
	if err := sink.WriteBatch([]domain.SensorEvent{evt}); err != nil {
		t.Fatalf("WriteBatch returned error: %v", err)
	}

	buf[0] = 9
	if diff := cmp.Diff([]byte{1, 2, 3}, got.Bytes); diff != "" {
		t.Fatalf("bytes mismatch (-want +got):\n%s", diff)
	}
	if got.Values != nil {
		t.Fatalf("expected no values for a byte record")
	}
}

func TestNewCallbackSinkNilHandler(t *testing.T) {
	sink := NewCallbackSink("", nil)
	evt := domain.NewSensorEvent("s", time.Now(), testSchema(t), domain.NewRecord(time.Now(), 1.0))
	if err := sink.WriteBatch([]domain.SensorEvent{evt}); err == nil {
		t.Fatalf("expected error when callback is nil")
	}
	if sink.Name() != "callback" {
		t.Fatalf("expected default name, got %q", sink.Name())
	}
}

func TestNewChannelSink(t *testing.T) {
	sink, ch, closeFn := NewChannelSink("chan", 1)
	defer closeFn()

	input := domain.NewSensorEvent("sensor-2", time.Unix(7, 0), testSchema(t), domain.NewRecord(time.Unix(7, 0), 1.5))
	errCh := make(chan error, 1)

	go func() {
		errCh <- sink.WriteBatch([]domain.SensorEvent{input})
	}()

	var batch []Event
	select {
	case batch = <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel batch")
	}

	if err := <-errCh; err != nil {
		t.Fatalf("WriteBatch returned error: %v", err)
	}
	if len(batch) != 1 || batch[0].Output != "sensor-2" {
		t.Fatalf("unexpected batch data: %+v", batch)
	}

	closeFn()
	if err := sink.WriteBatch([]domain.SensorEvent{input}); !errors.Is(err, ErrChannelSinkClosed) {
		t.Fatalf("expected ErrChannelSinkClosed, got %v", err)
	}
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed")
	}
}

func TestChannelSinkCloseUnblocksWriter(t *testing.T) {
	sink, _, closeFn := NewChannelSink("chan", 0)
	input := domain.NewSensorEvent("s", time.Unix(1, 0), testSchema(t), domain.NewRecord(time.Unix(1, 0), 1.0))

	errCh := make(chan error, 1)
	go func() {
		errCh <- sink.WriteBatch([]domain.SensorEvent{input})
	}()

	time.Sleep(10 * time.Millisecond)
	closeFn()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrChannelSinkClosed) {
			t.Fatalf("expected ErrChannelSinkClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("writer stayed blocked after close")
	}
}
