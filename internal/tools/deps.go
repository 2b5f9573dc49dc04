// Package tools provides MCP tool handlers and registration.
package tools

import (
	"log/slog"

	"github.com/leadloop/leadloop-go/internal/db"
	"github.com/leadloop/leadloop-go/internal/sourcing"
)

// Dependencies holds shared services for tool handlers.
// Passed to handler factories via closure capture.
type Dependencies struct {
	DB     *db.Client
	Loop   *sourcing.Loop
	UserID string
	Logger *slog.Logger
}
