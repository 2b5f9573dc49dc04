package notify

import (
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/leadloop/leadloop-go/internal/models"
)

func TestClassify(t *testing.T) {
	accepted := &models.QueryParams{Titles: []string{"CTO"}}

	tests := []struct {
		name string
		log  models.ScheduleRunLog
		want Outcome
	}{
		{
			name: "judge escalated",
			log:  models.ScheduleRunLog{Decision: models.VerdictNotifyUser, LeadsInserted: 40},
			want: OutcomeActionNeeded,
		},
		{
			name: "exhausted in fallback",
			log:  models.ScheduleRunLog{Decision: models.VerdictFallback, AttemptsUsed: 4},
			want: OutcomeActionNeeded,
		},
		{
			name: "fallback with attempts left",
			log:  models.ScheduleRunLog{Decision: models.VerdictFallback, AttemptsUsed: 2, LeadsInserted: 12},
			want: OutcomeSuccess,
		},
		{
			name: "accepted but nothing inserted",
			log:  models.ScheduleRunLog{Decision: models.VerdictAccept, AcceptedQuery: accepted},
			want: OutcomeActionNeeded,
		},
		{
			name: "single-digit inserts",
			log:  models.ScheduleRunLog{Decision: models.VerdictAccept, AcceptedQuery: accepted, LeadsInserted: 9},
			want: OutcomeLowResults,
		},
		{
			name: "one insert",
			log:  models.ScheduleRunLog{Decision: models.VerdictAccept, AcceptedQuery: accepted, LeadsInserted: 1},
			want: OutcomeLowResults,
		},
		{
			name: "healthy run",
			log:  models.ScheduleRunLog{Decision: models.VerdictAccept, AcceptedQuery: accepted, LeadsInserted: 10},
			want: OutcomeSuccess,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(&tt.log); got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQualityLabel(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{0, "low"}, {39, "low"}, {40, "moderate"}, {69, "moderate"}, {70, "strong"}, {100, "strong"},
	}
	for _, tt := range tests {
		if got := qualityLabel(tt.score); got != tt.want {
			t.Errorf("qualityLabel(%d) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestVariables_FailureMode(t *testing.T) {
	log := &models.ScheduleRunLog{
		QualityScore: 82,
		FailureMode:  models.FailureGeoMismatch,
		StartedAt:    time.Date(2026, 5, 4, 14, 30, 0, 0, time.UTC),
	}
	vars := Variables("Weekly CTOs", log, "https://app.example/runs/r1")

	if vars["failure_mode"] != "geo_mismatch" {
		t.Errorf("failure_mode = %v, want geo_mismatch", vars["failure_mode"])
	}
	if vars["quality"] != "strong" {
		t.Errorf("quality = %v, want strong", vars["quality"])
	}
	if vars["ran_at"] != "May 4, 2026 14:30 UTC" {
		t.Errorf("ran_at = %v", vars["ran_at"])
	}

	// "other" carries no signal and is omitted.
	log.FailureMode = models.FailureOther
	if _, ok := Variables("x", log, "")["failure_mode"]; ok {
		t.Error("failure_mode 'other' should be omitted")
	}
	log.FailureMode = ""
	if _, ok := Variables("x", log, "")["failure_mode"]; ok {
		t.Error("empty failure_mode should be omitted")
	}
}

func TestActionURL_RoundTrip(t *testing.T) {
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	signed := SignActionURL("https://app.example", "s3cret", "u1", "r1", "pause", now)

	u, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("signed URL does not parse: %v", err)
	}
	q := u.Query()
	expires, err := strconv.ParseInt(q.Get("expires"), 10, 64)
	if err != nil {
		t.Fatalf("bad expires: %v", err)
	}

	if !VerifyActionURL("s3cret", "u1", "r1", "pause", expires, q.Get("sig"), now) {
		t.Error("freshly signed URL should verify")
	}
	if !VerifyActionURL("s3cret", "u1", "r1", "pause", expires, q.Get("sig"), now.Add(71*time.Hour)) {
		t.Error("URL should still verify just before expiry")
	}
	if VerifyActionURL("s3cret", "u1", "r1", "pause", expires, q.Get("sig"), now.Add(73*time.Hour)) {
		t.Error("expired URL must not verify")
	}
	if VerifyActionURL("wrong", "u1", "r1", "pause", expires, q.Get("sig"), now) {
		t.Error("wrong secret must not verify")
	}
	if VerifyActionURL("s3cret", "u2", "r1", "pause", expires, q.Get("sig"), now) {
		t.Error("different user must not verify")
	}
	if VerifyActionURL("s3cret", "u1", "r1", "resume", expires, q.Get("sig"), now) {
		t.Error("different action must not verify")
	}
	if VerifyActionURL("s3cret", "u1", "r1", "pause", expires+60, q.Get("sig"), now) {
		t.Error("tampered expiry must not verify")
	}
}
