// Package scheduler fires one-shot link deactivations at their expiry.
// Jobs live in the database, so a restart loses nothing; a job is removed
// only after the deactivation succeeded (at-least-once).
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

// Deactivator is the operation a due job invokes.
type Deactivator interface {
	ScheduledDeactivate(ctx context.Context, linkID string) error
}

type Options struct {
	Interval time.Duration
	// RetryDelay is both the claim lease and the wait before a failed job is retried.
	RetryDelay time.Duration
	Batch      int
	Logger     *slog.Logger
}

type Scheduler struct {
	store      ports.ScheduleRepository
	interval   time.Duration
	retryDelay time.Duration
	batch      int
	log        *slog.Logger
	nowFunc    func() time.Time
}

func New(store ports.ScheduleRepository, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = 15 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Minute
	}
	if opts.Batch <= 0 {
		opts.Batch = 50
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Scheduler{
		store:      store,
		interval:   opts.Interval,
		retryDelay: opts.RetryDelay,
		batch:      opts.Batch,
		log:        opts.Logger,
		nowFunc:    time.Now,
	}
}

func (s *Scheduler) Schedule(ctx context.Context, fireAt int64, linkID string) error {
	const op = "scheduler.Schedule"

	if err := s.store.AddSchedule(ctx, linkID, fireAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// RunOnce fires every due job once and returns how many succeeded.
func (s *Scheduler) RunOnce(ctx context.Context, target Deactivator) (int, error) {
	const op = "scheduler.RunOnce"

	done := 0
	for {
		now := s.nowFunc()
		ids, err := s.store.ClaimDue(ctx, now.Unix(), now.Add(s.retryDelay).Unix(), s.batch)
		if err != nil {
			return done, fmt.Errorf("%s: %w", op, err)
		}

		for _, id := range ids {
			if err := target.ScheduledDeactivate(ctx, id); err != nil {
				s.log.Error("scheduled_deactivate_failed",
					slog.String("op", op),
					slog.String("link_id", id),
					slog.String("err", err.Error()),
				)
				continue
			}
			if err := s.store.RemoveSchedule(ctx, id); err != nil {
				s.log.Error("schedule_remove_failed",
					slog.String("op", op),
					slog.String("link_id", id),
					slog.String("err", err.Error()),
				)
				continue
			}
			done++
		}

		if len(ids) < s.batch {
			return done, nil
		}
	}
}

// Run polls until ctx is done.
func (s *Scheduler) Run(ctx context.Context, target Deactivator) {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		if n, err := s.RunOnce(ctx, target); err != nil {
			s.log.Error("scheduler_poll_failed", slog.String("err", err.Error()))
		} else if n > 0 {
			s.log.Info("scheduled_deactivations", slog.Int("count", n))
		}

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

var _ ports.Scheduler = (*Scheduler)(nil)
