package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"github.com/alexrobin/osh-video/internal/ports"
)

// Scheduler runs periodic tasks on a gocron scheduler. Each task is a
// singleton job: a run that outlasts its interval delays the next one instead
// of overlapping it.
type Scheduler struct {
	s gocron.Scheduler
}

func New() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	s.Start()
	return &Scheduler{s: s}, nil
}

func (sc *Scheduler) Every(interval time.Duration, task func(ctx context.Context)) (ports.ScheduledTask, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be > 0, got %s", interval)
	}
	ctx, cancel := context.WithCancel(context.Background())
	j, err := sc.s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if ctx.Err() != nil {
				return
			}
			task(ctx)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("schedule task: %w", err)
	}
	return &job{s: sc.s, id: j.ID(), cancel: cancel}, nil
}

// Shutdown stops every job and waits for running ones to return.
func (sc *Scheduler) Shutdown() error {
	return sc.s.Shutdown()
}

type job struct {
	s      gocron.Scheduler
	id     uuid.UUID
	cancel context.CancelFunc
	once   sync.Once
	err    error
}

func (j *job) Cancel() error {
	j.once.Do(func() {
		j.cancel()
		if err := j.s.RemoveJob(j.id); err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
			j.err = err
		}
	})
	return j.err
}

var _ ports.Scheduler = (*Scheduler)(nil)
