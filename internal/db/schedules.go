// Package db provides SurrealDB query functions for scheduling records.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/leadloop/leadloop-go/internal/models"
)

// QueryCreateSchedule inserts a new schedule row with the given id.
func (c *Client) QueryCreateSchedule(ctx context.Context, id string, userID string, in models.ScheduleInput, nextRunAt *time.Time) (*models.Schedule, error) {
	results, err := query[[]models.Schedule](ctx, c, `
		CREATE type::record("schedules", $id) SET
			user_id = $user_id,
			name = $name,
			action_type = $action_type,
			persona_id = $persona_id,
			campaign_id = $campaign_id,
			auto_outreach = $auto_outreach,
			leads_per_run = $leads_per_run,
			send_delay_minutes = $send_delay_minutes,
			daily_send_cap = $daily_send_cap,
			schedule_kind = $schedule_kind,
			cron_expr = $cron_expr,
			run_at = $run_at,
			next_run_at = $next_run_at,
			status = "active",
			payload = $payload,
			consecutive_failures = 0
		RETURN AFTER
	`, map[string]any{
		"id":                 id,
		"user_id":            userID,
		"name":               in.Name,
		"action_type":        string(in.ActionType),
		"persona_id":         in.PersonaID,
		"campaign_id":        in.CampaignID,
		"auto_outreach":      in.AutoOutreach,
		"leads_per_run":      in.LeadsPerRun,
		"send_delay_minutes": in.SendDelayMinutes,
		"daily_send_cap":     in.DailySendCap,
		"schedule_kind":      string(in.ScheduleKind),
		"cron_expr":          in.CronExpr,
		"run_at":             in.RunAt,
		"next_run_at":        nextRunAt,
		"payload":            in.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("create schedule: %w", wrapQueryError(err))
	}

	rows := firstResult(results)
	if len(rows) == 0 {
		return nil, fmt.Errorf("create schedule: no result returned")
	}
	return &rows[0], nil
}

// QueryGetDueSchedules returns all active schedules due at or before now.
// Covers never-yet-computed one-time jobs whose next_run_at is unset.
func (c *Client) QueryGetDueSchedules(ctx context.Context, now time.Time) ([]models.Schedule, error) {
	results, err := query[[]models.Schedule](ctx, c, `
		SELECT * FROM schedules
		WHERE status = "active"
		AND (
			(next_run_at != NONE AND next_run_at <= $now)
			OR (next_run_at = NONE AND run_at != NONE AND run_at <= $now)
		)
		ORDER BY next_run_at ASC
	`, map[string]any{"now": now})
	if err != nil {
		return nil, fmt.Errorf("get due schedules: %w", err)
	}
	return firstResult(results), nil
}

// QueryGetSchedule retrieves a schedule by id scoped to its owner.
// Returns ErrNotFound when absent or owned by someone else.
func (c *Client) QueryGetSchedule(ctx context.Context, userID, id string) (*models.Schedule, error) {
	results, err := query[[]models.Schedule](ctx, c, `
		SELECT * FROM type::record("schedules", $id) WHERE user_id = $user_id
	`, map[string]any{"id": id, "user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}

	rows := firstResult(results)
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// QueryListSchedules returns all schedules owned by a user, newest first.
func (c *Client) QueryListSchedules(ctx context.Context, userID string) ([]models.Schedule, error) {
	results, err := query[[]models.Schedule](ctx, c, `
		SELECT * FROM schedules WHERE user_id = $user_id ORDER BY created_at DESC
	`, map[string]any{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return firstResult(results), nil
}

// QueryUpdateSchedule applies a partial update (name and/or status).
func (c *Client) QueryUpdateSchedule(ctx context.Context, userID, id string, upd models.ScheduleUpdate) (*models.Schedule, error) {
	sets := "updated_at = time::now()"
	vars := map[string]any{"id": id, "user_id": userID}
	if upd.Name != nil {
		sets += ", name = $name"
		vars["name"] = *upd.Name
	}
	if upd.Status != nil {
		sets += ", status = $status"
		vars["status"] = string(*upd.Status)
	}

	results, err := query[[]models.Schedule](ctx, c, fmt.Sprintf(`
		UPDATE type::record("schedules", $id) SET %s WHERE user_id = $user_id RETURN AFTER
	`, sets), vars)
	if err != nil {
		return nil, fmt.Errorf("update schedule: %w", err)
	}

	rows := firstResult(results)
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// QueryDeleteSchedule removes a schedule owned by the user.
func (c *Client) QueryDeleteSchedule(ctx context.Context, userID, id string) error {
	// Verify ownership first: DELETE with WHERE succeeds silently on zero rows.
	if _, err := c.QueryGetSchedule(ctx, userID, id); err != nil {
		return err
	}
	_, err := query[any](ctx, c, `
		DELETE type::record("schedules", $id) WHERE user_id = $user_id
	`, map[string]any{"id": id, "user_id": userID})
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return nil
}

// QueryMarkRun records a completed tick execution: last-run timestamp, the
// next run time, and status (completed when no further run exists).
func (c *Client) QueryMarkRun(ctx context.Context, id string, ranAt time.Time, nextRunAt *time.Time) error {
	status := string(models.ScheduleActive)
	if nextRunAt == nil {
		status = string(models.ScheduleCompleted)
	}

	_, err := query[any](ctx, c, `
		UPDATE type::record("schedules", $id) SET
			last_run_at = $ran_at,
			next_run_at = $next_run_at,
			status = $status,
			updated_at = time::now()
	`, map[string]any{
		"id":          id,
		"ran_at":      ranAt,
		"next_run_at": nextRunAt,
		"status":      status,
	})
	if err != nil {
		return fmt.Errorf("mark run: %w", err)
	}
	return nil
}

// QueryForceRun makes a schedule due immediately.
func (c *Client) QueryForceRun(ctx context.Context, userID, id string, now time.Time) error {
	if _, err := c.QueryGetSchedule(ctx, userID, id); err != nil {
		return err
	}
	_, err := query[any](ctx, c, `
		UPDATE type::record("schedules", $id) SET
			next_run_at = $now,
			status = "active",
			updated_at = time::now()
	`, map[string]any{"id": id, "now": now})
	if err != nil {
		return fmt.Errorf("force run: %w", err)
	}
	return nil
}

// QueryUpdateScheduleMemory writes back the agentic memory fields after a
// sourcing run. acceptedQuery is nil when the run never accepted a query.
func (c *Client) QueryUpdateScheduleMemory(ctx context.Context, id string, lastQualityScore int, acceptedQuery map[string]any, consecutiveFailures int) error {
	_, err := query[any](ctx, c, `
		UPDATE type::record("schedules", $id) SET
			last_quality_score = $score,
			last_accepted_query = $accepted,
			consecutive_failures = $failures,
			updated_at = time::now()
	`, map[string]any{
		"id":       id,
		"score":    lastQualityScore,
		"accepted": acceptedQuery,
		"failures": consecutiveFailures,
	})
	if err != nil {
		return fmt.Errorf("update schedule memory: %w", err)
	}
	return nil
}

// QuerySetScheduleCampaign persists the resolved campaign back onto the
// schedule so recurring runs reuse it instead of creating duplicates.
func (c *Client) QuerySetScheduleCampaign(ctx context.Context, id, campaignID string) error {
	_, err := query[any](ctx, c, `
		UPDATE type::record("schedules", $id) SET
			campaign_id = $campaign_id,
			updated_at = time::now()
	`, map[string]any{"id": id, "campaign_id": campaignID})
	if err != nil {
		return fmt.Errorf("set schedule campaign: %w", err)
	}
	return nil
}
