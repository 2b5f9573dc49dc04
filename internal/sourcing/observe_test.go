package sourcing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadloop/leadloop-go/internal/models"
	"github.com/leadloop/leadloop-go/internal/search"
)

func TestBuildObservation_Empty(t *testing.T) {
	loop := newTestLoop(&fakeStore{}, &fakeSearcher{}, &fakeProposer{})

	obs := loop.buildObservation(context.Background(), nil, testPersona(), "c1")

	assert.Equal(t, 0, obs.FoundCount)
	assert.Equal(t, 0, obs.SampledCount)
	assert.Empty(t, obs.Sample)
}

func TestBuildObservation_FrequencyTables(t *testing.T) {
	hits := []search.Hit{
		{ID: "1", Title: "CTO", Location: "Berlin", Email: "a@x.com"},
		{ID: "2", Title: "CTO", Location: "Berlin", Email: "b@x.com"},
		{ID: "3", Title: "CTO", Location: "Munich", Email: "c@x.com"},
		{ID: "4", Title: "VP Engineering", Location: "Berlin", Email: "d@x.com"},
		{ID: "5", Title: "Head of Data", Location: "Hamburg", Email: "e@x.com"},
	}

	loop := newTestLoop(&fakeStore{}, &fakeSearcher{}, &fakeProposer{})
	obs := loop.buildObservation(context.Background(), hits, testPersona(), "c1")

	assert.Equal(t, 5, obs.FoundCount)
	assert.Equal(t, 5, obs.SampledCount)

	require.NotEmpty(t, obs.TopTitles)
	assert.Equal(t, models.FreqEntry{Value: "CTO", Count: 3}, obs.TopTitles[0])

	require.GreaterOrEqual(t, len(obs.TopLocations), 3)
	assert.Equal(t, models.FreqEntry{Value: "Berlin", Count: 3}, obs.TopLocations[0])
	// Ties break alphabetically.
	assert.Equal(t, "Hamburg", obs.TopLocations[1].Value)
	assert.Equal(t, "Munich", obs.TopLocations[2].Value)

	assert.InDelta(t, 100.0, obs.EmailCoveragePct, 0.01)
}

func TestBuildObservation_MatchPercentages(t *testing.T) {
	persona := &models.Persona{
		UserID:    "u1",
		Name:      "CTOs in DACH",
		Titles:    []string{"CTO"},
		Locations: []string{"Germany", "Austria"},
		Keywords:  []string{"saas"},
	}
	hits := []search.Hit{
		{ID: "1", Title: "CTO", Location: "Berlin, Germany", Email: "a@x.com"},
		{ID: "2", Title: "Chief Marketing Officer", Location: "Vienna, Austria", Email: "b@x.com"},
		{ID: "3", Title: "Fractional CTO", Location: "Lisbon, Portugal", Email: "c@x.com"},
		{ID: "4", Title: "CEO", Location: "Paris, France", Email: "d@x.com"},
	}

	loop := newTestLoop(&fakeStore{}, &fakeSearcher{}, &fakeProposer{})
	obs := loop.buildObservation(context.Background(), hits, persona, "c1")

	// "CTO" appears as a substring in hits 1 and 3.
	assert.InDelta(t, 50.0, obs.TitleMatchPct, 0.01)
	assert.InDelta(t, 50.0, obs.GeoMatchPct, 0.01)
}

func TestBuildObservation_EmptyConstraintsMatchEverything(t *testing.T) {
	persona := &models.Persona{UserID: "u1", Name: "Anyone", Keywords: []string{"fintech"}}
	hits := []search.Hit{{ID: "1", Title: "Janitor", Location: "Nowhere", Email: "a@x.com"}}

	loop := newTestLoop(&fakeStore{}, &fakeSearcher{}, &fakeProposer{})
	obs := loop.buildObservation(context.Background(), hits, persona, "c1")

	assert.InDelta(t, 100.0, obs.TitleMatchPct, 0.01)
	assert.InDelta(t, 100.0, obs.GeoMatchPct, 0.01)
}

// When search returns no e-mails at all, a small enrichment probe estimates
// real coverage instead of reporting zero.
func TestBuildObservation_CoverageProbe(t *testing.T) {
	hits := make([]search.Hit, 20)
	for i := range hits {
		hits[i] = search.Hit{ID: string(rune('a' + i)), Title: "CTO"}
	}

	loop := newTestLoop(&fakeStore{}, &fakeSearcher{}, &fakeProposer{})
	obs := loop.buildObservation(context.Background(), hits, testPersona(), "c1")

	// The fake enricher resolves every probed id.
	assert.InDelta(t, 100.0, obs.EmailCoveragePct, 0.01)
}

func TestBuildObservation_DuplicateEstimate(t *testing.T) {
	store := &fakeStore{campaignEmails: map[string]bool{"a@x.com": true, "b@x.com": true}}
	hits := []search.Hit{
		{ID: "1", Title: "CTO", Email: "A@X.com"},
		{ID: "2", Title: "CTO", Email: "b@x.com"},
		{ID: "3", Title: "CTO", Email: "new@x.com"},
	}

	loop := newTestLoop(store, &fakeSearcher{}, &fakeProposer{})
	obs := loop.buildObservation(context.Background(), hits, testPersona(), "c1")

	assert.Equal(t, 2, obs.EstimatedDuplicates, "matching is case-insensitive")
}

func TestBuildObservation_SampleIsRedacted(t *testing.T) {
	hits := []search.Hit{{
		ID: "1", FirstName: "Ada", LastName: "L", Title: "CTO",
		Company: "Acme", Location: "Berlin", Email: "ada@acme.com",
	}}

	loop := newTestLoop(&fakeStore{}, &fakeSearcher{}, &fakeProposer{})
	obs := loop.buildObservation(context.Background(), hits, testPersona(), "c1")

	require.Len(t, obs.Sample, 1)
	s := obs.Sample[0]
	assert.Equal(t, "CTO", s.Title)
	assert.Equal(t, "Acme", s.Company)
	assert.True(t, s.HasEmail)
}

func TestBuildObservation_SampleCapped(t *testing.T) {
	hits := make([]search.Hit, 80)
	for i := range hits {
		hits[i] = search.Hit{ID: string(rune(i)), Title: "CTO", Email: "x@x.com"}
	}

	loop := newTestLoop(&fakeStore{}, &fakeSearcher{}, &fakeProposer{})
	obs := loop.buildObservation(context.Background(), hits, testPersona(), "c1")

	assert.Equal(t, 80, obs.FoundCount)
	assert.Equal(t, observeSampleSize, obs.SampledCount)
	assert.LessOrEqual(t, len(obs.Sample), judgeSampleSize)
}
