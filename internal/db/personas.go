package db

import (
	"context"
	"fmt"

	"github.com/leadloop/leadloop-go/internal/models"
)

// QueryGetPersona retrieves a persona by id scoped to its owner.
// Returns ErrNotFound when absent or owned by someone else.
func (c *Client) QueryGetPersona(ctx context.Context, userID, id string) (*models.Persona, error) {
	results, err := query[[]models.Persona](ctx, c, `
		SELECT * FROM type::record("personas", $id) WHERE user_id = $user_id
	`, map[string]any{"id": id, "user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("get persona: %w", err)
	}

	rows := firstResult(results)
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// QueryCreatePersona inserts a persona row (used by tests and seeding).
func (c *Client) QueryCreatePersona(ctx context.Context, id string, p *models.Persona) error {
	_, err := query[any](ctx, c, `
		CREATE type::record("personas", $id) SET
			user_id = $user_id,
			name = $name,
			titles = $titles,
			keywords = $keywords,
			exclude_keywords = $exclude_keywords,
			locations = $locations,
			channels = $channels,
			lead_goal = $lead_goal
	`, map[string]any{
		"id":               id,
		"user_id":          p.UserID,
		"name":             p.Name,
		"titles":           emptyIfNil(p.Titles),
		"keywords":         emptyIfNil(p.Keywords),
		"exclude_keywords": emptyIfNil(p.ExcludeKeywords),
		"locations":        emptyIfNil(p.Locations),
		"channels":         emptyIfNil(p.Channels),
		"lead_goal":        p.LeadGoal,
	})
	if err != nil {
		return fmt.Errorf("create persona: %w", wrapQueryError(err))
	}
	return nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
