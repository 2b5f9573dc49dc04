package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leadloop/leadloop-go/internal/models"
)

// QueryCreateCampaign inserts a campaign shell.
func (c *Client) QueryCreateCampaign(ctx context.Context, id string, camp *models.Campaign) error {
	_, err := query[any](ctx, c, `
		CREATE type::record("sourcing_campaigns", $id) SET
			user_id = $user_id,
			name = $name,
			persona_id = $persona_id,
			sequence_id = $sequence_id,
			status = "active"
	`, map[string]any{
		"id":          id,
		"user_id":     camp.UserID,
		"name":        camp.Name,
		"persona_id":  camp.PersonaID,
		"sequence_id": camp.SequenceID,
	})
	if err != nil {
		return fmt.Errorf("create campaign: %w", wrapQueryError(err))
	}
	return nil
}

// QueryGetCampaign retrieves a campaign by id scoped to its owner.
func (c *Client) QueryGetCampaign(ctx context.Context, userID, id string) (*models.Campaign, error) {
	results, err := query[[]models.Campaign](ctx, c, `
		SELECT * FROM type::record("sourcing_campaigns", $id) WHERE user_id = $user_id
	`, map[string]any{"id": id, "user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}

	rows := firstResult(results)
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// QueryCampaignEmails returns the lowercase e-mail set already present in a
// campaign, used for duplicate estimation and pre-insert dedup.
func (c *Client) QueryCampaignEmails(ctx context.Context, campaignID string) (map[string]bool, error) {
	type row struct {
		Email string `json:"email"`
	}
	results, err := query[[]row](ctx, c, `
		SELECT string::lowercase(email) AS email FROM sourcing_leads WHERE campaign_id = $campaign_id
	`, map[string]any{"campaign_id": campaignID})
	if err != nil {
		return nil, fmt.Errorf("campaign emails: %w", err)
	}

	emails := make(map[string]bool)
	for _, r := range firstResult(results) {
		emails[r.Email] = true
	}
	return emails, nil
}

// QueryCampaignLeads returns all leads currently in a campaign.
func (c *Client) QueryCampaignLeads(ctx context.Context, userID, campaignID string) ([]models.Lead, error) {
	results, err := query[[]models.Lead](ctx, c, `
		SELECT * FROM sourcing_leads WHERE user_id = $user_id AND campaign_id = $campaign_id
	`, map[string]any{"user_id": userID, "campaign_id": campaignID})
	if err != nil {
		return nil, fmt.Errorf("campaign leads: %w", err)
	}
	return firstResult(results), nil
}

// QueryInsertLead inserts one lead. Returns (false, nil) when the campaign
// unique index rejects it as a duplicate.
func (c *Client) QueryInsertLead(ctx context.Context, id string, lead *models.Lead) (bool, error) {
	_, err := query[any](ctx, c, `
		CREATE type::record("sourcing_leads", $id) SET
			user_id = $user_id,
			campaign_id = $campaign_id,
			run_log_id = $run_log_id,
			provider_id = $provider_id,
			first_name = $first_name,
			last_name = $last_name,
			title = $title,
			company = $company,
			email = $email,
			linkedin_url = $linkedin_url,
			location = $location
	`, map[string]any{
		"id":           id,
		"user_id":      lead.UserID,
		"campaign_id":  lead.CampaignID,
		"run_log_id":   lead.RunLogID,
		"provider_id":  lead.ProviderID,
		"first_name":   lead.FirstName,
		"last_name":    lead.LastName,
		"title":        lead.Title,
		"company":      lead.Company,
		"email":        lead.Email,
		"linkedin_url": lead.LinkedinURL,
		"location":     lead.Location,
	})
	if err != nil {
		if errors.Is(wrapQueryError(err), ErrAlreadyExists) {
			return false, nil
		}
		return false, fmt.Errorf("insert lead: %w", err)
	}
	return true, nil
}

// QueryEnqueueOutreach queues one outreach step for a lead.
func (c *Client) QueryEnqueueOutreach(ctx context.Context, id string, job *models.OutreachJob) error {
	status := job.Status
	if status == "" {
		status = models.OutreachPending
	}
	_, err := query[any](ctx, c, `
		CREATE type::record("outreach_jobs", $id) SET
			user_id = $user_id,
			campaign_id = $campaign_id,
			lead_id = $lead_id,
			sequence_id = $sequence_id,
			step = $step,
			send_at = $send_at,
			status = $status
	`, map[string]any{
		"id":          id,
		"user_id":     job.UserID,
		"campaign_id": job.CampaignID,
		"lead_id":     job.LeadID,
		"sequence_id": job.SequenceID,
		"step":        job.Step,
		"send_at":     job.SendAt,
		"status":      string(status),
	})
	if err != nil {
		return fmt.Errorf("enqueue outreach: %w", wrapQueryError(err))
	}
	return nil
}

// QueryCountOutreachSince counts outreach jobs queued for a user after the
// cutoff, enforcing the daily send cap.
func (c *Client) QueryCountOutreachSince(ctx context.Context, userID string, since time.Time) (int, error) {
	type row struct {
		C int `json:"c"`
	}
	results, err := query[[]row](ctx, c, `
		SELECT count() AS c FROM outreach_jobs
		WHERE user_id = $user_id AND created_at >= $since
		GROUP ALL
	`, map[string]any{"user_id": userID, "since": since})
	if err != nil {
		return 0, fmt.Errorf("count outreach: %w", err)
	}

	rows := firstResult(results)
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].C, nil
}
