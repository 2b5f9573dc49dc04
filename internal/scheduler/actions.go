package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/leadloop/leadloop-go/internal/models"
	"github.com/leadloop/leadloop-go/internal/sourcing"
)

// RunPersonaPayload is the typed tool_payload for sourcing.run_persona.
type RunPersonaPayload struct {
	PersonaID    string  `json:"persona_id"`
	CampaignID   string  `json:"campaign_id,omitempty"`
	LeadsPerRun  int     `json:"leads_per_run,omitempty"`
	AutoOutreach *bool   `json:"auto_outreach,omitempty"`
	SequenceID   *string `json:"sequence_id,omitempty"`
}

// CaptureListLead is one pre-sourced record in a capture payload.
type CaptureListLead struct {
	Email       string `json:"email"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Title       string `json:"title,omitempty"`
	Company     string `json:"company,omitempty"`
	Location    string `json:"location,omitempty"`
	LinkedinURL string `json:"linkedin_url,omitempty"`
}

// CaptureListPayload is the typed tool_payload for sourcing.capture_list.
type CaptureListPayload struct {
	CampaignID string            `json:"campaign_id"`
	Leads      []CaptureListLead `json:"leads"`
}

// ToolInvocation is the nested tool call a schedule payload may carry:
// {"action_tool": "...", "tool_payload": {...}}. The tool name is validated
// against the known set before any payload decoding.
type ToolInvocation struct {
	Tool    string
	Payload map[string]any
}

// ParseToolInvocation extracts and validates the nested tool call from a
// schedule payload. Returns nil when the payload carries no tool.
func ParseToolInvocation(payload map[string]any) (*ToolInvocation, error) {
	if payload == nil {
		return nil, nil
	}
	raw, ok := payload["action_tool"]
	if !ok {
		return nil, nil
	}

	tool, ok := raw.(string)
	if !ok || tool == "" {
		return nil, fmt.Errorf("action_tool must be a non-empty string")
	}
	switch tool {
	case models.ToolRunPersona, models.ToolCaptureList:
	default:
		return nil, fmt.Errorf("unknown action_tool %q", tool)
	}

	inv := &ToolInvocation{Tool: tool}
	if tp, ok := payload["tool_payload"].(map[string]any); ok {
		inv.Payload = tp
	}
	return inv, nil
}

// ExecuteAction dispatches one due schedule to its action. A nested tool in
// the payload wins over the schedule's action type. Errors are captured in
// the RunResult so the tick loop treats every job uniformly.
func (s *Scheduler) ExecuteAction(ctx context.Context, job *models.Schedule) models.RunResult {
	inv, err := ParseToolInvocation(job.Payload)
	if err != nil {
		return models.RunResult{Error: err.Error()}
	}
	if inv != nil {
		switch inv.Tool {
		case models.ToolRunPersona:
			return s.runSourcing(ctx, job, inv)
		case models.ToolCaptureList:
			return s.captureList(ctx, job, inv)
		}
	}

	switch job.ActionType {
	case models.ActionSourceViaPersona, models.ActionPersonaOutreach:
		return s.runSourcing(ctx, job, nil)
	case models.ActionLaunchCampaign:
		return s.launchCampaign(ctx, job)
	case models.ActionSendSequence:
		return s.sendSequence(ctx, job)
	default:
		return models.RunResult{Error: fmt.Sprintf("unknown action type %q", job.ActionType)}
	}
}

// runSourcing builds the loop input by merging the nested tool payload with
// schedule-level hints. Payload fields win; schedule fields fill only what
// the payload left unset.
func (s *Scheduler) runSourcing(ctx context.Context, job *models.Schedule, inv *ToolInvocation) models.RunResult {
	var p RunPersonaPayload
	if inv != nil {
		if err := decodePayload(inv.Payload, &p); err != nil {
			return models.RunResult{Error: fmt.Sprintf("invalid tool_payload: %v", err)}
		}
	}

	if p.PersonaID == "" && job.PersonaID != nil {
		p.PersonaID = *job.PersonaID
	}
	if p.CampaignID == "" && job.CampaignID != nil {
		p.CampaignID = *job.CampaignID
	}
	if p.LeadsPerRun == 0 {
		p.LeadsPerRun = job.LeadsPerRun
	}
	autoOutreach := job.AutoOutreach || job.ActionType == models.ActionPersonaOutreach
	if p.AutoOutreach != nil {
		autoOutreach = *p.AutoOutreach
	}

	if p.PersonaID == "" {
		return models.RunResult{Error: "schedule has no persona to source from"}
	}

	runLog, err := s.loop.RunPersona(ctx, sourcing.RunPersonaInput{
		UserID:              job.UserID,
		PersonaID:           p.PersonaID,
		CampaignID:          p.CampaignID,
		ScheduleID:          models.MustRecordIDString(job.ID),
		LeadsPerRun:         p.LeadsPerRun,
		AutoOutreach:        autoOutreach,
		SequenceID:          p.SequenceID,
		SendDelayMinutes:    job.SendDelayMinutes,
		DailySendCap:        job.DailySendCap,
		LastAcceptedQuery:   job.LastAcceptedQuery,
		ConsecutiveFailures: job.ConsecutiveFailures,
		ForceBaseline:       job.ForceBaselineUntil != nil && s.now().Before(*job.ForceBaselineUntil),
		ExpansionPreference: deref(job.ExpansionPreference),
	})
	if err != nil {
		return models.RunResult{Error: err.Error()}
	}

	return models.RunResult{
		OK: true,
		Info: fmt.Sprintf("sourced %d leads in %d attempts (%s)",
			runLog.LeadsInserted, runLog.AttemptsUsed, runLog.Decision),
		RunLogID: models.MustRecordIDString(runLog.ID),
	}
}

// captureList inserts a pre-sourced lead list into a campaign, skipping
// records without an e-mail and duplicates.
func (s *Scheduler) captureList(ctx context.Context, job *models.Schedule, inv *ToolInvocation) models.RunResult {
	var p CaptureListPayload
	if err := decodePayload(inv.Payload, &p); err != nil {
		return models.RunResult{Error: fmt.Sprintf("invalid tool_payload: %v", err)}
	}
	if p.CampaignID == "" && job.CampaignID != nil {
		p.CampaignID = *job.CampaignID
	}
	if p.CampaignID == "" {
		return models.RunResult{Error: "capture_list requires a campaign_id"}
	}
	if len(p.Leads) == 0 {
		return models.RunResult{Error: "capture_list payload has no leads"}
	}

	inserted := 0
	for _, rec := range p.Leads {
		if strings.TrimSpace(rec.Email) == "" {
			continue
		}
		ok, err := s.db.QueryInsertLead(ctx, uuid.NewString()[:8], &models.Lead{
			UserID:      job.UserID,
			CampaignID:  p.CampaignID,
			FirstName:   rec.FirstName,
			LastName:    rec.LastName,
			Title:       rec.Title,
			Company:     rec.Company,
			Email:       rec.Email,
			LinkedinURL: rec.LinkedinURL,
			Location:    rec.Location,
		})
		if err != nil {
			s.logger.Warn("capture list insert failed", "email", rec.Email, "error", err)
			continue
		}
		if ok {
			inserted++
		}
	}

	return models.RunResult{
		OK:   true,
		Info: fmt.Sprintf("captured %d of %d leads", inserted, len(p.Leads)),
	}
}

// launchCampaign enrolls a campaign's existing leads into its sequence by
// queuing their first outreach step.
func (s *Scheduler) launchCampaign(ctx context.Context, job *models.Schedule) models.RunResult {
	if job.CampaignID == nil {
		return models.RunResult{Error: "launch_campaign requires a campaign_id"}
	}

	camp, err := s.db.QueryGetCampaign(ctx, job.UserID, *job.CampaignID)
	if err != nil {
		return models.RunResult{Error: err.Error()}
	}

	leads, err := s.db.QueryCampaignLeads(ctx, job.UserID, *job.CampaignID)
	if err != nil {
		return models.RunResult{Error: err.Error()}
	}

	queued := 0
	delay := time.Duration(job.SendDelayMinutes) * time.Minute
	for _, lead := range leads {
		err := s.db.QueryEnqueueOutreach(ctx, uuid.NewString()[:8], &models.OutreachJob{
			UserID:     job.UserID,
			CampaignID: *job.CampaignID,
			LeadID:     models.MustRecordIDString(lead.ID),
			SequenceID: camp.SequenceID,
			Step:       1,
			SendAt:     s.now().UTC().Add(delay),
			Status:     models.OutreachPending,
		})
		if err != nil {
			s.logger.Warn("launch enqueue failed",
				"lead_id", models.MustRecordIDString(lead.ID), "error", err)
			continue
		}
		queued++
	}

	return models.RunResult{
		OK:   true,
		Info: fmt.Sprintf("launched campaign with %d of %d leads", queued, len(leads)),
	}
}

// sendSequence queues a fixed three-step cadence for a campaign's leads,
// spaced three days apart. Kept for schedules created before sequences
// became first-class.
func (s *Scheduler) sendSequence(ctx context.Context, job *models.Schedule) models.RunResult {
	if job.CampaignID == nil {
		return models.RunResult{Error: "send_sequence requires a campaign_id"}
	}

	leads, err := s.db.QueryCampaignLeads(ctx, job.UserID, *job.CampaignID)
	if err != nil {
		return models.RunResult{Error: err.Error()}
	}

	queued := 0
	base := s.now().UTC().Add(time.Duration(job.SendDelayMinutes) * time.Minute)
	for _, lead := range leads {
		for step := 1; step <= 3; step++ {
			err := s.db.QueryEnqueueOutreach(ctx, uuid.NewString()[:8], &models.OutreachJob{
				UserID:     job.UserID,
				CampaignID: *job.CampaignID,
				LeadID:     models.MustRecordIDString(lead.ID),
				Step:       step,
				SendAt:     base.Add(time.Duration(step-1) * 72 * time.Hour),
				Status:     models.OutreachPending,
			})
			if err != nil {
				s.logger.Warn("sequence enqueue failed", "step", step, "error", err)
				break
			}
			queued++
		}
	}

	return models.RunResult{
		OK:   true,
		Info: fmt.Sprintf("queued %d sequence sends", queued),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func decodePayload(m map[string]any, out any) error {
	if m == nil {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
