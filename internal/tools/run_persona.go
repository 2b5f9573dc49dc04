package tools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/leadloop/leadloop-go/internal/db"
	"github.com/leadloop/leadloop-go/internal/models"
	"github.com/leadloop/leadloop-go/internal/sourcing"
)

// RunPersonaInput defines the input schema for the run_persona tool.
type RunPersonaInput struct {
	PersonaID    string `json:"persona_id" jsonschema:"required,The persona to source leads for"`
	CampaignID   string `json:"campaign_id,omitempty" jsonschema:"Campaign to insert into; a new one is created when omitted"`
	LeadsPerRun  int    `json:"leads_per_run,omitempty" jsonschema:"How many leads to insert, 1-500, default 25"`
	AutoOutreach bool   `json:"auto_outreach,omitempty" jsonschema:"Queue outreach for inserted leads"`
}

// runSummary is the single JSON text payload returned to the caller.
type runSummary struct {
	RunLogID      string              `json:"run_log_id"`
	Decision      models.JudgeVerdict `json:"decision"`
	QualityScore  int                 `json:"quality_score"`
	AttemptsUsed  int                 `json:"attempts_used"`
	CampaignID    string              `json:"campaign_id"`
	LeadsFound    int                 `json:"leads_found"`
	LeadsInserted int                 `json:"leads_inserted"`
	LeadsDeduped  int                 `json:"leads_deduped"`
	NeedsReview   bool                `json:"needs_review"`
}

// NewRunPersonaHandler creates the run_persona tool handler. The handler
// runs the full sourcing loop synchronously and returns the run summary.
func NewRunPersonaHandler(deps *Dependencies) mcp.ToolHandlerFor[RunPersonaInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input RunPersonaInput) (
		*mcp.CallToolResult, any, error,
	) {
		if input.PersonaID == "" {
			return ErrorResult("persona_id cannot be empty", "Provide the persona to source for"), nil, nil
		}
		if input.LeadsPerRun < 0 || input.LeadsPerRun > 500 {
			return ErrorResult("leads_per_run must be 1-500", "Reduce leads_per_run"), nil, nil
		}

		runLog, err := deps.Loop.RunPersona(ctx, sourcing.RunPersonaInput{
			UserID:       deps.UserID,
			PersonaID:    input.PersonaID,
			CampaignID:   input.CampaignID,
			LeadsPerRun:  input.LeadsPerRun,
			AutoOutreach: input.AutoOutreach,
		})
		if err != nil {
			deps.Logger.Error("run_persona failed", "persona_id", input.PersonaID, "error", err)
			switch {
			case errors.Is(err, db.ErrNotFound):
				return ErrorResult("Persona not found", "Check the persona_id"), nil, nil
			case errors.Is(err, sourcing.ErrNoCredential):
				return ErrorResult("Search provider is not configured", "Set the search API key"), nil, nil
			default:
				return ErrorResult("Sourcing run failed", err.Error()), nil, nil
			}
		}

		summary := runSummary{
			RunLogID:      models.MustRecordIDString(runLog.ID),
			Decision:      runLog.Decision,
			QualityScore:  runLog.QualityScore,
			AttemptsUsed:  runLog.AttemptsUsed,
			CampaignID:    runLog.CampaignID,
			LeadsFound:    runLog.LeadsFound,
			LeadsInserted: runLog.LeadsInserted,
			LeadsDeduped:  runLog.LeadsDeduped,
			NeedsReview:   runLog.Notify,
		}
		jsonBytes, _ := json.MarshalIndent(summary, "", "  ")

		deps.Logger.Info("run_persona completed",
			"persona_id", input.PersonaID,
			"decision", runLog.Decision,
			"inserted", runLog.LeadsInserted)
		return TextResult(string(jsonBytes)), nil, nil
	}
}
