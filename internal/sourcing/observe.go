package sourcing

import (
	"context"
	"sort"
	"strings"

	"github.com/leadloop/leadloop-go/internal/models"
	"github.com/leadloop/leadloop-go/internal/search"
)

const (
	observeSampleSize = 50
	topFreqSize       = 8
	judgeSampleSize   = 20
	coverageSample    = 10
)

// buildObservation computes the metrics the judge sees from up to the first
// 50 hits of one search page. Duplicate estimation and the enrichment-based
// coverage probe are best-effort: their failures zero the metric and never
// abort the attempt.
func (l *Loop) buildObservation(ctx context.Context, hits []search.Hit, persona *models.Persona, campaignID string) models.Observation {
	obs := models.Observation{FoundCount: len(hits)}

	sample := hits
	if len(sample) > observeSampleSize {
		sample = sample[:observeSampleSize]
	}
	obs.SampledCount = len(sample)
	if len(sample) == 0 {
		return obs
	}

	titleFreq := make(map[string]int)
	locFreq := make(map[string]int)
	withEmail := 0
	titleMatches := 0
	geoMatches := 0

	for _, h := range sample {
		if t := strings.TrimSpace(h.Title); t != "" {
			titleFreq[t]++
		}
		if loc := strings.TrimSpace(h.Location); loc != "" {
			locFreq[loc]++
		}
		if h.Email != "" {
			withEmail++
		}
		if matchesAny(h.Title, persona.Titles) {
			titleMatches++
		}
		if matchesAny(h.Location, persona.Locations) {
			geoMatches++
		}
	}

	obs.TopTitles = topEntries(titleFreq, topFreqSize)
	obs.TopLocations = topEntries(locFreq, topFreqSize)
	obs.EmailCoveragePct = pct(withEmail, len(sample))
	obs.TitleMatchPct = pct(titleMatches, len(sample))
	obs.GeoMatchPct = pct(geoMatches, len(sample))

	// Search results often hide e-mails; when coverage reads zero, probe a
	// small enrichment sample for a truer estimate.
	if withEmail == 0 {
		obs.EmailCoveragePct = l.probeEmailCoverage(ctx, sample)
	}

	obs.EstimatedDuplicates = l.estimateDuplicates(ctx, sample, campaignID)

	for i, h := range sample {
		if i >= judgeSampleSize {
			break
		}
		obs.Sample = append(obs.Sample, models.SampleLead{
			Title:    h.Title,
			Company:  h.Company,
			Location: h.Location,
			HasEmail: h.Email != "",
		})
	}

	return obs
}

// probeEmailCoverage enriches up to 10 sample records to estimate what
// share of results will resolve to an e-mail.
func (l *Loop) probeEmailCoverage(ctx context.Context, sample []search.Hit) float64 {
	ids := make([]string, 0, coverageSample)
	for _, h := range sample {
		if h.ID == "" {
			continue
		}
		ids = append(ids, h.ID)
		if len(ids) == coverageSample {
			break
		}
	}
	if len(ids) == 0 {
		return 0
	}

	records, err := l.search.EnrichBatch(ctx, l.apiKey, ids)
	if err != nil {
		l.logger.Warn("coverage probe failed", "error", err)
		return 0
	}

	resolved := 0
	for _, id := range ids {
		if r, ok := records[id]; ok && r.Email != "" {
			resolved++
		}
	}
	return pct(resolved, len(ids))
}

// estimateDuplicates counts sample e-mails already present in the campaign.
func (l *Loop) estimateDuplicates(ctx context.Context, sample []search.Hit, campaignID string) int {
	if campaignID == "" {
		return 0
	}

	existing, err := l.store.QueryCampaignEmails(ctx, campaignID)
	if err != nil {
		l.logger.Warn("duplicate estimation failed", "campaign_id", campaignID, "error", err)
		return 0
	}
	if len(existing) == 0 {
		return 0
	}

	dups := 0
	for _, h := range sample {
		if h.Email != "" && existing[strings.ToLower(h.Email)] {
			dups++
		}
	}
	return dups
}

func matchesAny(value string, constraints []string) bool {
	if len(constraints) == 0 {
		return true
	}
	v := strings.ToLower(value)
	for _, c := range constraints {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" && strings.Contains(v, c) {
			return true
		}
	}
	return false
}

func topEntries(freq map[string]int, n int) []models.FreqEntry {
	entries := make([]models.FreqEntry, 0, len(freq))
	for v, c := range freq {
		entries = append(entries, models.FreqEntry{Value: v, Count: c})
	}
	sort.Slice(entries, func(a, b int) bool {
		if entries[a].Count != entries[b].Count {
			return entries[a].Count > entries[b].Count
		}
		return entries[a].Value < entries[b].Value
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

func pct(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
