package queue

import (
	"testing"

	"github.com/alexrobin/osh-video/internal/domain"
)

func TestMemQueueEnqueueDequeueOrder(t *testing.T) {
	q := NewMemQueue(4)

	e1 := domain.SensorEvent{Output: "cam"}
	e2 := domain.SensorEvent{Output: "wx"}

	if !q.Enqueue(1, e1) || !q.Enqueue(2, e2) {
		t.Fatalf("expected successful enqueue")
	}

	batch := q.DequeueBatch(1)
	if len(batch) != 1 || batch[0].Seq != 1 || batch[0].Event.Output != "cam" {
		t.Fatalf("unexpected first batch: %+v", batch)
	}

	remaining := q.DequeueBatch(10)
	if len(remaining) != 1 || remaining[0].Seq != 2 || remaining[0].Event.Output != "wx" {
		t.Fatalf("unexpected second batch: %+v", remaining)
	}

	if q.Len() != 0 {
		t.Fatalf("queue should be empty, got %d", q.Len())
	}
	if got := q.DequeueBatch(5); got != nil {
		t.Fatalf("expected nil batch from empty queue, got %+v", got)
	}
}

func TestMemQueueCapacity(t *testing.T) {
	q := NewMemQueue(2)

	evt := domain.SensorEvent{Output: "cap"}

	if !q.Enqueue(1, evt) || !q.Enqueue(2, evt) {
		t.Fatalf("expected enqueue within capacity")
	}
	if q.Enqueue(3, evt) {
		t.Fatalf("enqueue should fail when capacity exceeded")
	}

	q.DequeueBatch(1)
	if !q.Enqueue(4, evt) {
		t.Fatalf("expected enqueue to succeed after dequeue")
	}
}

func TestMemQueueDequeueClearsVacatedSlots(t *testing.T) {
	q := NewMemQueue(3)
	for i := uint64(1); i <= 3; i++ {
		q.Enqueue(i, domain.SensorEvent{Output: "cam", Record: &domain.Record{}})
	}

	q.DequeueBatch(2)
	if q.Len() != 1 || q.data[0].Seq != 3 {
		t.Fatalf("unexpected remainder: %+v", q.data)
	}
	backing := q.data[:cap(q.data)]
	for i := len(q.data); i < len(backing); i++ {
		if backing[i].Event.Record != nil || backing[i].Seq != 0 {
			t.Fatalf("slot %d still holds %+v", i, backing[i])
		}
	}
}
