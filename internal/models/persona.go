// Package models defines data structures for the leadloop sourcing database.
package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Persona is a user-owned targeting profile. It is read-only input to a
// sourcing run; the loop never mutates it.
type Persona struct {
	ID              surrealmodels.RecordID `json:"id"`
	UserID          string                 `json:"user_id"`
	Name            string                 `json:"name"`
	Titles          []string               `json:"titles,omitempty"`
	Keywords        []string               `json:"keywords,omitempty"`
	ExcludeKeywords []string               `json:"exclude_keywords,omitempty"`
	Locations       []string               `json:"locations,omitempty"`
	Channels        []string               `json:"channels,omitempty"`
	LeadGoal        int                    `json:"lead_goal,omitempty"`
	CreatedAt       time.Time              `json:"created_at,omitempty"`
	UpdatedAt       time.Time              `json:"updated_at,omitempty"`
}

// TitleOnly reports whether the persona targets by title alone, with no
// keyword or location constraints.
func (p *Persona) TitleOnly() bool {
	return len(p.Titles) > 0 && len(p.Keywords) == 0 && len(p.Locations) == 0
}
