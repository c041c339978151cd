// Package scheduler fires due schedules. A single poller sweeps the schedule
// table once a minute; per-schedule locks keep multiple scheduler processes
// from double firing.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/terrawatch/terrawatch/pkg/models"
	"github.com/terrawatch/terrawatch/pkg/persistence"
	"github.com/terrawatch/terrawatch/pkg/services"
)

const (
	sweepInterval = time.Minute
	lockTTL       = 2 * time.Minute

	// cleanupInterval and runRetention bound the run table: once an hour,
	// terminal runs older than the retention window are dropped.
	cleanupInterval = time.Hour
	runRetention    = 30 * 24 * time.Hour
)

// TriggerDataScheduleID records which schedule fired a run.
const TriggerDataScheduleID = "schedule_id"

type Sweeper struct {
	store  persistence.Persistence
	runs   *services.RunService
	locker Locker
	logger *slog.Logger

	ticker        *time.Ticker
	cleanupTicker *time.Ticker
	done          chan struct{}
	started       bool
	mu            sync.Mutex
}

func NewSweeper(store persistence.Persistence, runs *services.RunService, locker Locker, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:  store,
		runs:   runs,
		locker: locker,
		logger: logger.With("module", "scheduler"),
	}
}

func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.InfoContext(ctx, "Starting schedule sweeper", "interval", sweepInterval)

	s.ticker = time.NewTicker(sweepInterval)
	s.cleanupTicker = time.NewTicker(cleanupInterval)
	s.done = make(chan struct{})
	s.started = true

	go s.loop(ctx)

	return nil
}

func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.InfoContext(ctx, "Stopping schedule sweeper")

	s.ticker.Stop()
	s.cleanupTicker.Stop()
	close(s.done)
	s.started = false

	return nil
}

func (s *Sweeper) loop(ctx context.Context) {
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-s.ticker.C:
			s.Sweep(ctx, time.Now().UTC())
		case <-s.cleanupTicker.C:
			s.Cleanup(ctx, time.Now().UTC())
		}
	}
}

// Sweep fires every due schedule once. Each schedule is processed under its
// own lock; a sweep failure on one schedule never blocks the others.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) {
	due, err := s.store.ScheduleRepository().ListDue(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list due schedules", "error", err)

		return
	}

	if len(due) == 0 {
		return
	}

	s.logger.InfoContext(ctx, "Processing due schedules", "count", len(due))

	for _, schedule := range due {
		s.fire(ctx, schedule, now)
	}
}

func (s *Sweeper) fire(ctx context.Context, schedule *models.Schedule, now time.Time) {
	logger := s.logger.With("schedule_id", schedule.ID, "workflow_id", schedule.WorkflowID)

	acquired, err := s.locker.Acquire(ctx, schedule.ID, lockTTL)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to acquire schedule lock", "error", err)

		return
	}

	if !acquired {
		return
	}

	defer func() {
		if err := s.locker.Release(ctx, schedule.ID); err != nil {
			logger.ErrorContext(ctx, "Failed to release schedule lock", "error", err)
		}
	}()

	// Re-read under the lock; another process may have fired it already.
	schedule, err = s.store.ScheduleRepository().GetByID(ctx, schedule.ID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to reload schedule", "error", err)

		return
	}

	if !schedule.IsDue(now) {
		return
	}

	_, err = s.runs.Trigger(ctx, schedule.WorkflowID, schedule.Input, models.TriggerSourceSchedule, map[string]any{
		TriggerDataScheduleID: schedule.ID,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to trigger scheduled run", "error", err)

		// A workflow that cannot run anymore must not keep the schedule
		// permanently due.
		if !errors.Is(err, services.ErrWorkflowNotExecutable) && !persistence.IsNotFound(err) {
			return
		}
	}

	schedule.RecordFiring(now)

	if err := schedule.Recalculate(now); err != nil {
		if errors.Is(err, models.ErrScheduleParse) {
			logger.WarnContext(ctx, "Schedule has an unparsable cron expression, applying fallback",
				"cron_expression", schedule.CronExpression)
		} else {
			logger.ErrorContext(ctx, "Failed to recalculate schedule", "error", err)
		}
	}

	if err := s.store.ScheduleRepository().Save(ctx, schedule); err != nil {
		logger.ErrorContext(ctx, "Failed to save schedule after firing", "error", err)

		return
	}

	logger.InfoContext(ctx, "Schedule fired", "next_run", schedule.NextRun, "run_count", schedule.RunCount)
}

// Cleanup drops terminal runs older than the retention window.
func (s *Sweeper) Cleanup(ctx context.Context, now time.Time) {
	cutoff := now.Add(-runRetention)

	deleted, err := s.store.RunRepository().DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to clean up old runs", "error", err)

		return
	}

	if deleted > 0 {
		s.logger.InfoContext(ctx, "Cleaned up old runs", "deleted", deleted, "cutoff", cutoff)
	}
}
