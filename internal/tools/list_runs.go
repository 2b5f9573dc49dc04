package tools

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ListRunsInput defines the input schema for the list_runs tool.
type ListRunsInput struct {
	ScheduleID string `json:"schedule_id" jsonschema:"required,The schedule whose runs to list"`
	Limit      int    `json:"limit,omitempty" jsonschema:"Max results 1-50, default 10"`
}

// NewListRunsHandler creates the list_runs tool handler.
func NewListRunsHandler(deps *Dependencies) mcp.ToolHandlerFor[ListRunsInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListRunsInput) (
		*mcp.CallToolResult, any, error,
	) {
		if input.ScheduleID == "" {
			return ErrorResult("schedule_id cannot be empty", "Provide the schedule id"), nil, nil
		}
		limit := input.Limit
		if limit <= 0 {
			limit = 10
		}
		if limit > 50 {
			return ErrorResult("Limit must be 1-50", "Reduce limit value"), nil, nil
		}

		runs, err := deps.DB.QueryListRunLogs(ctx, deps.UserID, input.ScheduleID, limit)
		if err != nil {
			deps.Logger.Error("list_runs failed", "schedule_id", input.ScheduleID, "error", err)
			return ErrorResult("Failed to list runs", "Database may be unavailable"), nil, nil
		}

		jsonBytes, _ := json.MarshalIndent(map[string]any{
			"runs":  runs,
			"count": len(runs),
		}, "", "  ")
		return TextResult(string(jsonBytes)), nil, nil
	}
}
