package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/leadloop/leadloop-go/internal/models"
)

// CaptureLead is one pre-sourced record in a capture_list call.
type CaptureLead struct {
	Email       string `json:"email" jsonschema:"required,The lead's e-mail address"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Title       string `json:"title,omitempty"`
	Company     string `json:"company,omitempty"`
	Location    string `json:"location,omitempty"`
	LinkedinURL string `json:"linkedin_url,omitempty"`
}

// CaptureListInput defines the input schema for the capture_list tool.
type CaptureListInput struct {
	CampaignID string        `json:"campaign_id" jsonschema:"required,Campaign to insert the leads into"`
	Leads      []CaptureLead `json:"leads" jsonschema:"required,Leads to capture; records without an e-mail are skipped"`
}

// NewCaptureListHandler creates the capture_list tool handler. It inserts a
// pre-sourced list directly, bypassing the search loop, with the same
// per-campaign dedup as sourced leads.
func NewCaptureListHandler(deps *Dependencies) mcp.ToolHandlerFor[CaptureListInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input CaptureListInput) (
		*mcp.CallToolResult, any, error,
	) {
		if input.CampaignID == "" {
			return ErrorResult("campaign_id cannot be empty", "Provide the campaign id"), nil, nil
		}
		if len(input.Leads) == 0 {
			return ErrorResult("leads cannot be empty", "Provide at least one lead"), nil, nil
		}

		if _, err := deps.DB.QueryGetCampaign(ctx, deps.UserID, input.CampaignID); err != nil {
			return ErrorResult("Campaign not found", "Check the campaign_id"), nil, nil
		}

		inserted, skipped := 0, 0
		for _, rec := range input.Leads {
			if strings.TrimSpace(rec.Email) == "" {
				skipped++
				continue
			}
			ok, err := deps.DB.QueryInsertLead(ctx, uuid.NewString()[:8], &models.Lead{
				UserID:      deps.UserID,
				CampaignID:  input.CampaignID,
				FirstName:   rec.FirstName,
				LastName:    rec.LastName,
				Title:       rec.Title,
				Company:     rec.Company,
				Email:       rec.Email,
				LinkedinURL: rec.LinkedinURL,
				Location:    rec.Location,
			})
			if err != nil {
				deps.Logger.Warn("capture insert failed", "email", rec.Email, "error", err)
				skipped++
				continue
			}
			if ok {
				inserted++
			} else {
				skipped++
			}
		}

		return TextResult(fmt.Sprintf("Captured %d of %d leads (%d skipped as duplicates or unmailable)",
			inserted, len(input.Leads), skipped)), nil, nil
	}
}
