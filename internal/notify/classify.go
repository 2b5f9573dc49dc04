// Package notify classifies finished sourcing runs and delivers the
// outcome to the user's opted-in channels.
package notify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/leadloop/leadloop-go/internal/models"
)

// Outcome is the notification tier of a finished run.
type Outcome string

const (
	// OutcomeActionNeeded means the user must refine something before the
	// next run can succeed.
	OutcomeActionNeeded Outcome = "action_needed"
	// OutcomeLowResults means the run worked but fell well short of goal.
	OutcomeLowResults Outcome = "low_results"
	// OutcomeSuccess is everything else.
	OutcomeSuccess Outcome = "success"
)

// Classify maps a finished run to its notification tier.
//
// Action is needed when the judge escalated, when the loop exhausted all
// attempts still in fallback, or when an accepted run inserted nothing.
// A handful of inserts below ten is a soft warning.
func Classify(log *models.ScheduleRunLog) Outcome {
	switch {
	case log.Decision == models.VerdictNotifyUser:
		return OutcomeActionNeeded
	case log.Decision == models.VerdictFallback && log.AttemptsUsed >= 4:
		return OutcomeActionNeeded
	case log.AcceptedQuery != nil && log.LeadsInserted == 0:
		return OutcomeActionNeeded
	case log.LeadsInserted > 0 && log.LeadsInserted < 10:
		return OutcomeLowResults
	default:
		return OutcomeSuccess
	}
}

// qualityLabel maps a numeric score to the qualitative wording used in
// outbound copy.
func qualityLabel(score int) string {
	switch {
	case score >= 70:
		return "strong"
	case score >= 40:
		return "moderate"
	default:
		return "low"
	}
}

// Variables builds the substitution map shared by all outbound templates.
func Variables(scheduleName string, log *models.ScheduleRunLog, actionURL string) map[string]any {
	vars := map[string]any{
		"schedule_name":   scheduleName,
		"quality":         qualityLabel(log.QualityScore),
		"quality_score":   log.QualityScore,
		"attempts":        log.AttemptsUsed,
		"leads_found":     log.LeadsFound,
		"leads_inserted":  log.LeadsInserted,
		"leads_deduped":   log.LeadsDeduped,
		"outreach_queued": log.OutreachQueued,
		"ran_at":          log.StartedAt.Format("Jan 2, 2006 15:04 MST"),
		"action_url":      actionURL,
	}
	if log.FailureMode != "" && log.FailureMode != models.FailureOther {
		vars["failure_mode"] = string(log.FailureMode)
	}
	return vars
}

// SignActionURL builds a signed deep link back into the product, so the
// notification's buttons authenticate without a session.
func SignActionURL(base, secret, userID, runLogID, action string, now time.Time) string {
	expires := now.Add(72 * time.Hour).Unix()
	payload := fmt.Sprintf("%s:%s:%s:%d", userID, runLogID, action, expires)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	sig := hex.EncodeToString(mac.Sum(nil))

	return fmt.Sprintf("%s/runs/%s?action=%s&user=%s&expires=%d&sig=%s",
		base, runLogID, action, userID, expires, sig)
}

// VerifyActionURL checks a signed link's signature and expiry.
func VerifyActionURL(secret, userID, runLogID, action string, expires int64, sig string, now time.Time) bool {
	if now.Unix() > expires {
		return false
	}
	payload := fmt.Sprintf("%s:%s:%s:%d", userID, runLogID, action, expires)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(sig))
}
