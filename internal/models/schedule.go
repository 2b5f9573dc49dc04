package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// ActionKind identifies what a schedule does when it fires.
type ActionKind string

const (
	ActionSourceViaPersona ActionKind = "source_via_persona"
	ActionLaunchCampaign   ActionKind = "launch_campaign"
	ActionSendSequence     ActionKind = "send_sequence"
	ActionPersonaOutreach  ActionKind = "persona_with_auto_outreach"
)

// ScheduleKind distinguishes one-shot from cron-driven schedules.
type ScheduleKind string

const (
	ScheduleOneTime   ScheduleKind = "one_time"
	ScheduleRecurring ScheduleKind = "recurring"
)

// ScheduleStatus is the lifecycle state of a schedule.
type ScheduleStatus string

const (
	ScheduleActive    ScheduleStatus = "active"
	SchedulePaused    ScheduleStatus = "paused"
	ScheduleCompleted ScheduleStatus = "completed"
)

// Known nested tool names a schedule payload may invoke. Payloads are a
// tagged union over this set, validated before hint merging.
const (
	ToolRunPersona  = "sourcing.run_persona"
	ToolCaptureList = "sourcing.capture_list"
)

// Schedule is a recurring or one-time job owned by a user. The scheduler
// mutates it on every tick that runs it; it is the single mutable point of
// contention per job and is written only under the advisory lock.
type Schedule struct {
	ID         surrealmodels.RecordID `json:"id"`
	UserID     string                 `json:"user_id"`
	Name       string                 `json:"name"`
	ActionType ActionKind             `json:"action_type"`
	PersonaID  *string                `json:"persona_id,omitempty"`
	CampaignID *string                `json:"campaign_id,omitempty"`

	AutoOutreach     bool `json:"auto_outreach"`
	LeadsPerRun      int  `json:"leads_per_run"`
	SendDelayMinutes int  `json:"send_delay_minutes"`
	DailySendCap     int  `json:"daily_send_cap"`

	ScheduleKind ScheduleKind   `json:"schedule_kind"`
	CronExpr     *string        `json:"cron_expr,omitempty"`
	RunAt        *time.Time     `json:"run_at,omitempty"`
	NextRunAt    *time.Time     `json:"next_run_at,omitempty"`
	Status       ScheduleStatus `json:"status"`
	LastRunAt    *time.Time     `json:"last_run_at,omitempty"`

	// Payload may embed a nested tool invocation: {"action_tool": "...",
	// "tool_payload": {...}}. Parsed into ToolInvocation by the scheduler.
	Payload map[string]any `json:"payload,omitempty"`

	// Agentic memory carried between runs.
	LastQualityScore    *int           `json:"last_quality_score,omitempty"`
	LastAcceptedQuery   map[string]any `json:"last_accepted_query,omitempty"`
	ConsecutiveFailures int            `json:"consecutive_failures"`
	ForceBaselineUntil  *time.Time     `json:"force_baseline_until,omitempty"`
	ExpansionPreference *string        `json:"expansion_preference,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// ScheduleInput is the validated input for creating a schedule.
type ScheduleInput struct {
	Name             string         `json:"name"`
	ActionType       ActionKind     `json:"action_type"`
	PersonaID        *string        `json:"persona_id,omitempty"`
	CampaignID       *string        `json:"campaign_id,omitempty"`
	AutoOutreach     bool           `json:"auto_outreach"`
	LeadsPerRun      int            `json:"leads_per_run"`
	SendDelayMinutes int            `json:"send_delay_minutes"`
	DailySendCap     int            `json:"daily_send_cap"`
	ScheduleKind     ScheduleKind   `json:"schedule_kind"`
	CronExpr         *string        `json:"cron_expr,omitempty"`
	RunAt            *time.Time     `json:"run_at,omitempty"`
	Payload          map[string]any `json:"payload,omitempty"`
}

// ScheduleUpdate carries the mutable fields of PATCH /schedules/{id}.
type ScheduleUpdate struct {
	Name   *string         `json:"name,omitempty"`
	Status *ScheduleStatus `json:"status,omitempty"`
}

// RunResult records the outcome of one dispatched action.
type RunResult struct {
	OK       bool   `json:"ok"`
	Info     string `json:"info,omitempty"`
	Error    string `json:"error,omitempty"`
	RunLogID string `json:"run_log_id,omitempty"`
}
