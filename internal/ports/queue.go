package ports

import "github.com/alexrobin/osh-video/internal/domain"

type QueuedEvent struct {
	Seq   uint64
	Event domain.SensorEvent
}

type EventQueue interface {
	Enqueue(seq uint64, evt domain.SensorEvent) bool
	DequeueBatch(max int) []QueuedEvent
	Len() int
}
