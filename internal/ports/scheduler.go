package ports

import (
	"context"
	"time"
)

// Scheduler runs periodic tasks. Every fires task immediately and then once per
// interval; runs never overlap.
type Scheduler interface {
	Every(interval time.Duration, task func(ctx context.Context)) (ScheduledTask, error)
}

// ScheduledTask is a cancellable handle. The task context is cancelled on Cancel.
type ScheduledTask interface {
	Cancel() error
}
