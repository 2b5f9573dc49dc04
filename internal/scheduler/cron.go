// Package scheduler polls for due schedules and executes their actions
// under per-job advisory locks.
package scheduler

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/leadloop/leadloop-go/internal/models"
)

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// ComputeNextRun returns the next fire time strictly after now, or nil when
// the schedule has no further run: one-time schedules, and recurring ones
// whose cron expression does not parse. An invalid expression is logged and
// quietly retires the schedule rather than wedging the tick loop.
func ComputeNextRun(s *models.Schedule, now time.Time, logger *slog.Logger) *time.Time {
	if s.ScheduleKind != models.ScheduleRecurring {
		return nil
	}
	if s.CronExpr == nil || *s.CronExpr == "" {
		return nil
	}

	spec, err := cronParser.Parse(*s.CronExpr)
	if err != nil {
		if logger != nil {
			logger.Error("invalid cron expression, retiring schedule",
				"schedule_id", models.MustRecordIDString(s.ID),
				"cron", *s.CronExpr,
				"error", err)
		}
		return nil
	}

	next := spec.Next(now)
	if next.IsZero() {
		return nil
	}
	return &next
}

// ValidateCron reports whether expr is a parseable five-field cron
// expression. Used at schedule-creation time so bad input fails fast
// instead of at first tick.
func ValidateCron(expr string) error {
	_, err := cronParser.Parse(expr)
	return err
}
