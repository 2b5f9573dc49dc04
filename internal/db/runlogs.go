package db

import (
	"context"
	"fmt"

	"github.com/leadloop/leadloop-go/internal/models"
)

// QueryCreateRunLog inserts the initial run log row at loop start so that
// downstream leads can carry its id as provenance.
func (c *Client) QueryCreateRunLog(ctx context.Context, id string, log *models.ScheduleRunLog) error {
	_, err := query[any](ctx, c, `
		CREATE type::record("schedule_run_logs", $id) SET
			user_id = $user_id,
			schedule_id = $schedule_id,
			persona_id = $persona_id,
			campaign_id = $campaign_id,
			started_at = $started_at,
			attempts_used = 0,
			notify = false
	`, map[string]any{
		"id":          id,
		"user_id":     log.UserID,
		"schedule_id": log.ScheduleID,
		"persona_id":  log.PersonaID,
		"campaign_id": log.CampaignID,
		"started_at":  log.StartedAt,
	})
	if err != nil {
		return fmt.Errorf("create run log: %w", wrapQueryError(err))
	}
	return nil
}

// QueryFinalizeRunLog writes the full attempt history and final counts.
// A run log is immutable once finalized; this is its single update.
func (c *Client) QueryFinalizeRunLog(ctx context.Context, id string, log *models.ScheduleRunLog) error {
	_, err := query[any](ctx, c, `
		UPDATE type::record("schedule_run_logs", $id) SET
			completed_at = time::now(),
			attempts = $attempts,
			attempts_used = $attempts_used,
			accepted_query = $accepted_query,
			quality_score = $quality_score,
			confidence = $confidence,
			decision = $decision,
			failure_mode = $failure_mode,
			leads_found = $leads_found,
			leads_deduped = $leads_deduped,
			leads_inserted = $leads_inserted,
			outreach_queued = $outreach_queued,
			notify = $notify,
			notify_payload = $notify_payload
	`, map[string]any{
		"id":              id,
		"attempts":        log.Attempts,
		"attempts_used":   log.AttemptsUsed,
		"accepted_query":  log.AcceptedQuery,
		"quality_score":   log.QualityScore,
		"confidence":      log.Confidence,
		"decision":        string(log.Decision),
		"failure_mode":    string(log.FailureMode),
		"leads_found":     log.LeadsFound,
		"leads_deduped":   log.LeadsDeduped,
		"leads_inserted":  log.LeadsInserted,
		"outreach_queued": log.OutreachQueued,
		"notify":          log.Notify,
		"notify_payload":  log.NotifyPayload,
	})
	if err != nil {
		return fmt.Errorf("finalize run log: %w", err)
	}
	return nil
}

// QueryGetRunLog retrieves a run log by id scoped to its owner.
func (c *Client) QueryGetRunLog(ctx context.Context, userID, id string) (*models.ScheduleRunLog, error) {
	results, err := query[[]models.ScheduleRunLog](ctx, c, `
		SELECT * FROM type::record("schedule_run_logs", $id) WHERE user_id = $user_id
	`, map[string]any{"id": id, "user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("get run log: %w", err)
	}

	rows := firstResult(results)
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// QueryListRunLogs returns the most recent run logs for a schedule.
func (c *Client) QueryListRunLogs(ctx context.Context, userID, scheduleID string, limit int) ([]models.ScheduleRunLog, error) {
	if limit <= 0 {
		limit = 10
	}
	results, err := query[[]models.ScheduleRunLog](ctx, c, `
		SELECT * FROM schedule_run_logs
		WHERE user_id = $user_id AND schedule_id = $schedule_id
		ORDER BY started_at DESC LIMIT $limit
	`, map[string]any{"user_id": userID, "schedule_id": scheduleID, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("list run logs: %w", err)
	}
	return firstResult(results), nil
}
