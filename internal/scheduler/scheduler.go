package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/leadloop/leadloop-go/internal/db"
	"github.com/leadloop/leadloop-go/internal/models"
	"github.com/leadloop/leadloop-go/internal/sourcing"
)

// Notifier delivers run-outcome notifications. Delivery is best-effort;
// failures are the notifier's to log.
type Notifier interface {
	NotifyRun(ctx context.Context, job *models.Schedule, result models.RunResult)
}

// Scheduler polls for due schedules on a fixed tick and executes each one
// under a per-schedule advisory lock so concurrent replicas never double-run
// a job. Locking can be disabled for single-replica deployments.
type Scheduler struct {
	db       *db.Client
	loop     *sourcing.Loop
	notifier Notifier
	logger   *slog.Logger

	tickInterval time.Duration
	useLocks     bool
	holderID     string
	now          func() time.Time
}

// New creates a scheduler. notifier may be nil to disable notifications.
func New(database *db.Client, loop *sourcing.Loop, notifier Notifier, tickInterval time.Duration, useLocks bool, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if tickInterval <= 0 {
		tickInterval = time.Minute
	}
	return &Scheduler{
		db:           database,
		loop:         loop,
		notifier:     notifier,
		logger:       logger,
		tickInterval: tickInterval,
		useLocks:     useLocks,
		holderID:     uuid.NewString()[:8],
		now:          time.Now,
	}
}

// Run ticks until the context is cancelled. One tick failing never stops
// the loop.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started",
		"tick_interval", s.tickInterval,
		"advisory_locks", s.useLocks,
		"holder", s.holderID)

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.logger.Error("tick failed", "error", err)
			}
		}
	}
}

// Tick finds all due schedules and runs each in turn. Jobs are isolated:
// one job's failure is recorded and the tick moves on.
func (s *Scheduler) Tick(ctx context.Context) error {
	due, err := s.db.QueryGetDueSchedules(ctx, s.now().UTC())
	if err != nil {
		return fmt.Errorf("query due schedules: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	s.logger.Debug("tick", "due", len(due))
	for i := range due {
		s.runJob(ctx, &due[i])
	}
	return nil
}

// runJob executes one due schedule under its advisory lock. A held lock
// means another replica owns this job this tick; skip silently.
func (s *Scheduler) runJob(ctx context.Context, job *models.Schedule) {
	id := models.MustRecordIDString(job.ID)

	if s.useLocks {
		if err := s.db.QueryAcquireLock(ctx, id, s.holderID); err != nil {
			if errors.Is(err, db.ErrLockHeld) {
				s.logger.Debug("schedule locked by another replica", "schedule_id", id)
				return
			}
			// Lock infrastructure failure: fail open and run anyway rather
			// than silently starving the schedule.
			s.logger.Warn("lock acquisition error, running unlocked",
				"schedule_id", id, "error", err)
		} else {
			defer func() {
				if err := s.db.QueryReleaseLock(ctx, id, s.holderID); err != nil {
					s.logger.Warn("lock release failed", "schedule_id", id, "error", err)
				}
			}()
		}
	}

	ranAt := s.now().UTC()
	result := s.execute(ctx, job)

	next := ComputeNextRun(job, ranAt, s.logger)
	if err := s.db.QueryMarkRun(ctx, id, ranAt, next); err != nil {
		s.logger.Error("failed to mark run", "schedule_id", id, "error", err)
	}

	if result.OK {
		s.logger.Info("schedule ran", "schedule_id", id, "name", job.Name, "info", result.Info)
	} else {
		s.logger.Error("schedule run failed", "schedule_id", id, "name", job.Name, "error", result.Error)
	}

	if s.notifier != nil {
		s.notifier.NotifyRun(ctx, job, result)
	}
}

// execute dispatches the action, converting panics into failed results so
// a single bad job cannot take down the tick loop.
func (s *Scheduler) execute(ctx context.Context, job *models.Schedule) (result models.RunResult) {
	defer func() {
		if r := recover(); r != nil {
			result = models.RunResult{Error: fmt.Sprintf("panic: %v", r)}
		}
	}()
	return s.ExecuteAction(ctx, job)
}
