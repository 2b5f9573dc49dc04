package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Campaign is the lightweight shell that accepted leads land in. A shell is
// created on the first run of a persona and, for schedule-triggered runs,
// persisted back onto the schedule so recurring runs reuse it.
type Campaign struct {
	ID         surrealmodels.RecordID `json:"id"`
	UserID     string                 `json:"user_id"`
	Name       string                 `json:"name"`
	PersonaID  *string                `json:"persona_id,omitempty"`
	SequenceID *string                `json:"sequence_id,omitempty"`
	Status     string                 `json:"status"`
	CreatedAt  time.Time              `json:"created_at,omitempty"`
}

// Lead is one sourced, email-resolved candidate inserted into a campaign.
type Lead struct {
	ID          surrealmodels.RecordID `json:"id"`
	UserID      string                 `json:"user_id"`
	CampaignID  string                 `json:"campaign_id"`
	RunLogID    *string                `json:"run_log_id,omitempty"`
	ProviderID  string                 `json:"provider_id,omitempty"`
	FirstName   string                 `json:"first_name,omitempty"`
	LastName    string                 `json:"last_name,omitempty"`
	Title       string                 `json:"title,omitempty"`
	Company     string                 `json:"company,omitempty"`
	Email       string                 `json:"email"`
	LinkedinURL string                 `json:"linkedin_url,omitempty"`
	Location    string                 `json:"location,omitempty"`
	CreatedAt   time.Time              `json:"created_at,omitempty"`
}

// OutreachStatus is the lifecycle state of a queued outreach message. Jobs
// enter the queue pending; the delivery transport advances them from there.
type OutreachStatus string

const OutreachPending OutreachStatus = "pending"

// OutreachJob is a queued message send for a lead. The sequence step and
// send time implement send-delay and the legacy 3-step cadence; delivery
// itself is an external transport concern.
type OutreachJob struct {
	ID         surrealmodels.RecordID `json:"id"`
	UserID     string                 `json:"user_id"`
	CampaignID string                 `json:"campaign_id"`
	LeadID     string                 `json:"lead_id"`
	SequenceID *string                `json:"sequence_id,omitempty"`
	Step       int                    `json:"step"`
	SendAt     time.Time              `json:"send_at"`
	Status     OutreachStatus         `json:"status"`
	CreatedAt  time.Time              `json:"created_at,omitempty"`
}

// NotificationSettings holds a user's delivery addresses and opt-in flags.
type NotificationSettings struct {
	ID              surrealmodels.RecordID `json:"id"`
	UserID          string                 `json:"user_id"`
	SlackWebhookURL string                 `json:"slack_webhook_url,omitempty"`
	SlackOptIn      bool                   `json:"slack_opt_in"`
	Email           string                 `json:"email,omitempty"`
	EmailOptIn      bool                   `json:"email_opt_in"`
}
