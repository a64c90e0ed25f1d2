// Package jobs runs periodic background work on a gocron scheduler.
package jobs

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/robertarktes/bus-seat-booking/internal/observability"
)

type Scheduler struct {
	inner  gocron.Scheduler
	logger observability.Logger
}

func NewScheduler(logger observability.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Scheduler{inner: s, logger: logger}, nil
}

// Every runs fn each interval, never overlapping with itself. The first run
// happens immediately.
func (s *Scheduler) Every(ctx context.Context, name string, interval time.Duration, fn func(ctx context.Context) error) error {
	_, err := s.inner.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			start := time.Now()
			if err := fn(ctx); err != nil {
				s.logger.WithError(err).WithField("job", name).Error("job failed")
				return
			}
			s.logger.WithField("job", name).WithField("took", time.Since(start).String()).Debug("job done")
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	return err
}

func (s *Scheduler) Start() {
	s.inner.Start()
}

func (s *Scheduler) Shutdown() error {
	return s.inner.Shutdown()
}
