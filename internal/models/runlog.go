package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// JudgeVerdict is the judge's terminal recommendation for one attempt.
type JudgeVerdict string

const (
	VerdictAccept     JudgeVerdict = "ACCEPT_RESULTS"
	VerdictIterate    JudgeVerdict = "ITERATE"
	VerdictFallback   JudgeVerdict = "FALLBACK"
	VerdictNotifyUser JudgeVerdict = "NOTIFY_USER"
)

// ValidVerdict reports whether v is one of the four allowed decisions.
func ValidVerdict(v JudgeVerdict) bool {
	switch v {
	case VerdictAccept, VerdictIterate, VerdictFallback, VerdictNotifyUser:
		return true
	}
	return false
}

// FailureMode classifies why results fell short of the quality bar.
type FailureMode string

const (
	FailureTooNarrow        FailureMode = "too_narrow"
	FailureGeoMismatch      FailureMode = "geo_mismatch"
	FailureTitleDrift       FailureMode = "title_drift"
	FailureDeliverabilityLow FailureMode = "deliverability_low"
	FailureDuplicatesHigh   FailureMode = "duplicates_high"
	FailureIrrelevant       FailureMode = "irrelevant_industries"
	FailureOther            FailureMode = "other"
)

// ValidFailureMode reports whether m is in the fixed enumeration.
func ValidFailureMode(m FailureMode) bool {
	switch m {
	case FailureTooNarrow, FailureGeoMismatch, FailureTitleDrift,
		FailureDeliverabilityLow, FailureDuplicatesHigh, FailureIrrelevant, FailureOther:
		return true
	}
	return false
}

// QueryParams are the search parameters for one provider call. The canonical
// signature over titles+locations+keywords+pagination window dedupes variants
// within a run.
type QueryParams struct {
	Titles    []string `json:"titles,omitempty"`
	Locations []string `json:"locations,omitempty"`
	Keywords  []string `json:"keywords,omitempty"`
	StartPage int      `json:"start_page"`
	PageCount int      `json:"page_count"`
}

// FreqEntry is one bucket of a frequency table.
type FreqEntry struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// SampleLead is a redacted candidate handed to the judge.
type SampleLead struct {
	Title    string `json:"title,omitempty"`
	Company  string `json:"company,omitempty"`
	Location string `json:"location,omitempty"`
	HasEmail bool   `json:"has_email"`
}

// Observation is the computed view of one search page's results.
type Observation struct {
	FoundCount          int          `json:"found_count"`
	SampledCount        int          `json:"sampled_count"`
	TopTitles           []FreqEntry  `json:"top_titles,omitempty"`
	TopLocations        []FreqEntry  `json:"top_locations,omitempty"`
	EmailCoveragePct    float64      `json:"email_coverage_pct"`
	TitleMatchPct       float64      `json:"title_match_pct"`
	GeoMatchPct         float64      `json:"geo_match_pct"`
	EstimatedDuplicates int          `json:"estimated_duplicates"`
	Sample              []SampleLead `json:"sample,omitempty"`
}

// Adjustment is the judge's recommended next move.
type Adjustment struct {
	Type  string `json:"type"`
	Notes string `json:"notes,omitempty"`
}

// Decision is the judge's schema-validated output for one attempt.
type Decision struct {
	QualityScore int          `json:"quality_score"`
	Confidence   float64      `json:"confidence"`
	Decision     JudgeVerdict `json:"decision"`
	FailureMode  FailureMode  `json:"failure_mode,omitempty"`
	ReasonsGood  []string     `json:"reasons_good,omitempty"`
	ReasonsBad   []string     `json:"reasons_bad,omitempty"`
	Adjustment   *Adjustment  `json:"recommended_adjustment,omitempty"`
}

// Attempt is one iteration of the sourcing loop. Attempts are held in memory
// during a run and persisted only as part of the run log.
type Attempt struct {
	Index       int         `json:"index"`
	Query       QueryParams `json:"query"`
	Observation Observation `json:"observation"`
	Judge       Decision    `json:"judge"`
}

// ScheduleRunLog is the persisted record of one sourcing-loop invocation.
// Created at loop start so inserted leads can carry its id as provenance,
// updated once with final counts, immutable afterwards.
type ScheduleRunLog struct {
	ID         surrealmodels.RecordID `json:"id"`
	UserID     string                 `json:"user_id"`
	ScheduleID *string                `json:"schedule_id,omitempty"`
	PersonaID  string                 `json:"persona_id"`
	CampaignID string                 `json:"campaign_id,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Attempts      []Attempt    `json:"attempts,omitempty"`
	AttemptsUsed  int          `json:"attempts_used"`
	AcceptedQuery *QueryParams `json:"accepted_query,omitempty"`

	QualityScore int          `json:"quality_score"`
	Confidence   float64      `json:"confidence"`
	Decision     JudgeVerdict `json:"decision,omitempty"`
	FailureMode  FailureMode  `json:"failure_mode,omitempty"`

	LeadsFound     int `json:"leads_found"`
	LeadsDeduped   int `json:"leads_deduped"`
	LeadsInserted  int `json:"leads_inserted"`
	OutreachQueued int `json:"outreach_queued"`

	Notify        bool           `json:"notify"`
	NotifyPayload map[string]any `json:"notify_payload,omitempty"`
}
