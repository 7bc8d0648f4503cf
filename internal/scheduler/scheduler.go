// Package scheduler fires the booking task at the configured wall-clock
// times every day. Courts release slots exactly on the hour, so entries
// run at the precise minute with a short settle delay before the task
// starts.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/example/court-scheduler/internal/config"
)

// Task is one booking attempt. It owns its browser lifecycle and its
// own result handling; the scheduler only decides when it runs.
type Task func(ctx context.Context)

// Scheduler wraps a cron runner with one daily entry per configured
// booking time, all evaluated in the configured timezone.
type Scheduler struct {
	cfg  config.Config
	task Task
	log  zerolog.Logger
	cron *cron.Cron

	// one browser, one attempt at a time; a trigger that lands while a
	// previous attempt is still running is skipped, not queued
	running atomic.Bool

	// slots open on the hour; the site needs a beat before they render
	postTriggerDelay time.Duration
	sleep            func(ctx context.Context, d time.Duration) error
}

func New(cfg config.Config, task Task, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cfg:              cfg,
		task:             task,
		log:              log.With().Str("component", "scheduler").Logger(),
		cron:             cron.New(cron.WithLocation(cfg.Location())),
		postTriggerDelay: 2 * time.Second,
		sleep:            sleepCtx,
	}
}

// cronSpec converts an "HH:MM" booking time into a daily cron spec.
func cronSpec(bookingTime string) (string, error) {
	h, m, err := config.ParseClock(bookingTime)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d * * *", m, h), nil
}

// Run registers one entry per booking time, starts the cron loop, and
// blocks until the context ends. A running task is drained before Run
// returns.
func (s *Scheduler) Run(ctx context.Context) error {
	for _, bt := range s.cfg.BookingTimes {
		spec, err := cronSpec(bt)
		if err != nil {
			return fmt.Errorf("schedule %q: %w", bt, err)
		}
		bt := bt
		if _, err := s.cron.AddFunc(spec, func() { s.fire(ctx, bt) }); err != nil {
			return fmt.Errorf("schedule %q: %w", bt, err)
		}
		s.log.Info().Str("at", bt).Str("tz", s.cfg.Timezone).Msg("daily booking scheduled")
	}

	s.cron.Start()
	s.logNextRun()

	ticker := time.NewTicker(time.Duration(s.cfg.Scheduler.CheckIntervalMinutes) * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			stopped := s.cron.Stop()
			<-stopped.Done()
			s.log.Info().Msg("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.logNextRun()
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, bookingTime string) {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn().Str("at", bookingTime).Msg("previous booking attempt still running, skipping this trigger")
		return
	}
	defer s.running.Store(false)

	s.log.Info().Str("at", bookingTime).Msg("scheduled booking triggered, slots just opened")
	if err := s.sleep(ctx, s.postTriggerDelay); err != nil {
		return
	}
	s.task(ctx)
}

// NextRuns reports the upcoming fire times, earliest first.
func (s *Scheduler) NextRuns() []time.Time {
	entries := s.cron.Entries()
	out := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		if !e.Next.IsZero() {
			out = append(out, e.Next)
		}
	}
	return out
}

func (s *Scheduler) logNextRun() {
	runs := s.NextRuns()
	if len(runs) == 0 {
		return
	}
	next := runs[0]
	for _, r := range runs[1:] {
		if r.Before(next) {
			next = r
		}
	}
	s.log.Info().Time("next", next).Dur("in", time.Until(next).Round(time.Second)).Msg("scheduler alive")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
