package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	// zone data for images without /usr/share/zoneinfo
	_ "time/tzdata"

	"github.com/frahmantamala/leave-management/internal"
	"github.com/frahmantamala/leave-management/internal/core/metrics"
)

const lockPrefix = "leave-management:scheduler:"

// ErrJobLocked means another execution of the job holds the lock.
var ErrJobLocked = errors.New("scheduler job already running")

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock reads "HH:MM".
func ParseClock(raw string) (Clock, error) {
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return Clock{}, fmt.Errorf("invalid time of day %q: %w", raw, err)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// Next returns the first occurrence of c strictly after after, in after's
// location.
func (c Clock) Next(after time.Time) time.Time {
	y, m, d := after.Date()
	next := time.Date(y, m, d, c.Hour, c.Minute, 0, 0, after.Location())
	if !next.After(after) {
		next = time.Date(y, m, d+1, c.Hour, c.Minute, 0, 0, after.Location())
	}
	return next
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Runner fires each job once a day at its configured time and keeps every
// job to a single execution through the Locker.
type Runner struct {
	reconciler *Reconciler
	locker     Locker
	lockTTL    time.Duration
	location   *time.Location
	triggers   map[string]Clock
	logger     *slog.Logger
	now        func() time.Time
	wg         sync.WaitGroup
}

func NewRunner(reconciler *Reconciler, locker Locker, cfg internal.SchedulerConfig, logger *slog.Logger) (*Runner, error) {
	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone %q: %w", cfg.Timezone, err)
	}
	deactivateAt, err := ParseClock(cfg.DeactivateAt)
	if err != nil {
		return nil, err
	}
	reactivateAt, err := ParseClock(cfg.ReactivateAt)
	if err != nil {
		return nil, err
	}

	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &Runner{
		reconciler: reconciler,
		locker:     locker,
		lockTTL:    ttl,
		location:   location,
		triggers: map[string]Clock{
			JobDeactivate: deactivateAt,
			JobReactivate: reactivateAt,
		},
		logger: logger,
		now:    time.Now,
	}, nil
}

// WithClock replaces the time source.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// Today is the current calendar day in the scheduler's timezone.
func (r *Runner) Today() time.Time {
	return internal.DateOf(r.now().In(r.location))
}

// RunOnce executes job for today unless another execution holds its lock.
func (r *Runner) RunOnce(ctx context.Context, job string) (*Report, error) {
	key := lockPrefix + job
	ok, err := r.locker.Acquire(ctx, key, r.lockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		r.logger.Info("scheduler job skipped, lock held elsewhere", "job", job)
		return nil, ErrJobLocked
	}
	defer func() {
		if err := r.locker.Release(context.WithoutCancel(ctx), key); err != nil {
			r.logger.Warn("failed to release scheduler lock", "error", err, "job", job)
		}
	}()

	day := r.Today()
	started := time.Now()
	report, err := r.reconciler.Run(ctx, job, day)
	took := time.Since(started)

	changed := 0
	if report != nil {
		changed = report.Changed
	}
	metrics.ObserveSchedulerRun(job, changed, took, err)

	if err != nil {
		r.logger.Error("scheduler job failed", "error", err, "job", job, "day", day.Format(time.DateOnly))
		return report, err
	}
	r.logger.Info("scheduler job finished",
		"job", job,
		"day", day.Format(time.DateOnly),
		"candidates", report.Candidates,
		"changed", report.Changed,
		"kept", report.Kept,
		"failed", report.Failed,
		"took", took.String())
	return report, nil
}

// Start launches one loop per job. The loops stop when ctx is cancelled;
// Wait blocks until they have.
func (r *Runner) Start(ctx context.Context) {
	for _, job := range Jobs() {
		clock := r.triggers[job]
		r.wg.Add(1)
		go func(job string, clock Clock) {
			defer r.wg.Done()
			r.loop(ctx, job, clock)
		}(job, clock)
	}
	r.logger.Info("scheduler started",
		"timezone", r.location.String(),
		JobDeactivate, r.triggers[JobDeactivate].String(),
		JobReactivate, r.triggers[JobReactivate].String())
}

func (r *Runner) loop(ctx context.Context, job string, clock Clock) {
	for {
		now := r.now().In(r.location)
		next := clock.Next(now)
		r.logger.Debug("scheduler job armed", "job", job, "next_run", next.Format(time.RFC3339))

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if _, err := r.RunOnce(ctx, job); err != nil && !errors.Is(err, ErrJobLocked) {
			r.logger.Warn("scheduler run ended with error", "error", err, "job", job)
		}
	}
}

func (r *Runner) Wait() {
	r.wg.Wait()
}
