package tools

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/leadloop/leadloop-go/internal/models"
)

// RegisterAll registers all tools with the MCP server.
// This is called from main after server creation but before Run().
func RegisterAll(server *mcp.Server, deps *Dependencies) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        models.ToolRunPersona,
		Description: "Run the sourcing loop for a persona: search, judge, and insert enriched leads into a campaign",
	}, NewRunPersonaHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        models.ToolCaptureList,
		Description: "Insert a pre-sourced lead list into a campaign, skipping duplicates and unmailable records",
	}, NewCaptureListHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sourcing.list_runs",
		Description: "List recent sourcing run logs for a schedule with verdicts and counts",
	}, NewListRunsHandler(deps))
}
