// Package sourcing implements the agentic search-and-judge loop that turns a
// persona into accepted, enriched campaign leads.
package sourcing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leadloop/leadloop-go/internal/models"
)

// Pagination bounds enforced on every candidate query.
const (
	minStartPage = 1
	maxStartPage = 50
	minPageCount = 1
	maxPageCount = 10

	defaultPageCount = 3
)

// BaselineQuery derives the attempt-1 query mechanically from persona
// fields. It is also the floor guardrails restore toward when a candidate
// erodes too many constraint families.
func BaselineQuery(p *models.Persona) models.QueryParams {
	return models.QueryParams{
		Titles:    normalizeList(p.Titles),
		Locations: normalizeList(p.Locations),
		Keywords:  normalizeList(p.Keywords),
		StartPage: 1,
		PageCount: defaultPageCount,
	}
}

// Signature returns the canonical identity of a query: its constraint
// families (case-folded, sorted) plus the pagination window. Two queries
// with the same signature are the same attempt.
func Signature(q models.QueryParams) string {
	return fmt.Sprintf("t=%s|l=%s|k=%s|p=%d+%d",
		canonical(q.Titles), canonical(q.Locations), canonical(q.Keywords),
		q.StartPage, q.PageCount)
}

func canonical(list []string) string {
	folded := make([]string, 0, len(list))
	for _, s := range list {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			folded = append(folded, s)
		}
	}
	sort.Strings(folded)
	return strings.Join(folded, ",")
}

// EnforceGuardrails normalizes a candidate query and enforces the floor
// invariants, independent of whether the candidate came from the LLM or a
// deterministic fallback. It is idempotent: applying it twice yields the
// same result.
//
// Invariants enforced:
//   - pagination clamped to [1,50] start page and [1,10] page count
//   - at least two of {titles, locations, keywords} stay non-empty, else
//     all three are restored from the baseline
//   - for attempts <= 2, titles and locations never become simultaneously
//     empty even if the candidate dropped both
func EnforceGuardrails(candidate, baseline models.QueryParams, attempt int) models.QueryParams {
	q := models.QueryParams{
		Titles:    normalizeList(candidate.Titles),
		Locations: normalizeList(candidate.Locations),
		Keywords:  normalizeList(candidate.Keywords),
		StartPage: clamp(candidate.StartPage, minStartPage, maxStartPage),
		PageCount: clamp(candidate.PageCount, minPageCount, maxPageCount),
	}

	families := 0
	for _, f := range [][]string{q.Titles, q.Locations, q.Keywords} {
		if len(f) > 0 {
			families++
		}
	}
	if families < 2 {
		q.Titles = normalizeList(baseline.Titles)
		q.Locations = normalizeList(baseline.Locations)
		q.Keywords = normalizeList(baseline.Keywords)
	}

	if attempt <= 2 && len(q.Titles) == 0 && len(q.Locations) == 0 {
		q.Titles = normalizeList(baseline.Titles)
		q.Locations = normalizeList(baseline.Locations)
	}

	return q
}

// normalizeList trims entries, drops empties, and dedupes case-insensitively
// while preserving first-seen order and casing. Scalar-vs-list shape issues
// are resolved upstream at JSON decode time; nil stays an empty family.
func normalizeList(list []string) []string {
	if len(list) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, s := range list {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
