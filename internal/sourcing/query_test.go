package sourcing

import (
	"reflect"
	"testing"

	"github.com/leadloop/leadloop-go/internal/models"
)

func testPersona() *models.Persona {
	return &models.Persona{
		UserID:    "u1",
		Name:      "Fintech CTOs",
		Titles:    []string{"CTO", "VP Engineering"},
		Keywords:  []string{"fintech"},
		Locations: []string{"Berlin", "Munich"},
	}
}

func TestBaselineQuery(t *testing.T) {
	q := BaselineQuery(testPersona())

	if !reflect.DeepEqual(q.Titles, []string{"CTO", "VP Engineering"}) {
		t.Errorf("titles = %v", q.Titles)
	}
	if q.StartPage != 1 {
		t.Errorf("start page = %d, want 1", q.StartPage)
	}
	if q.PageCount != 3 {
		t.Errorf("page count = %d, want 3", q.PageCount)
	}
}

func TestBaselineQuery_DedupesAndTrims(t *testing.T) {
	p := &models.Persona{
		Titles:    []string{" CTO ", "cto", "", "CEO"},
		Locations: []string{"Berlin"},
	}
	q := BaselineQuery(p)
	if !reflect.DeepEqual(q.Titles, []string{"CTO", "CEO"}) {
		t.Errorf("titles = %v, want [CTO CEO]", q.Titles)
	}
}

func TestSignature(t *testing.T) {
	a := models.QueryParams{Titles: []string{"CTO", "CEO"}, Locations: []string{"Berlin"}, StartPage: 1, PageCount: 3}
	b := models.QueryParams{Titles: []string{"ceo", "cto"}, Locations: []string{"berlin"}, StartPage: 1, PageCount: 3}
	c := models.QueryParams{Titles: []string{"CTO"}, Locations: []string{"Berlin"}, StartPage: 1, PageCount: 3}

	if Signature(a) != Signature(b) {
		t.Error("signatures should ignore order and case")
	}
	if Signature(a) == Signature(c) {
		t.Error("different title sets should differ")
	}

	deeper := a
	deeper.StartPage = 4
	if Signature(a) == Signature(deeper) {
		t.Error("different page windows should differ")
	}
}

func TestEnforceGuardrails(t *testing.T) {
	baseline := BaselineQuery(testPersona())

	tests := []struct {
		name      string
		candidate models.QueryParams
		attempt   int
		check     func(t *testing.T, q models.QueryParams)
	}{
		{
			name: "pages clamped",
			candidate: models.QueryParams{
				Titles: []string{"CTO"}, Keywords: []string{"fintech"},
				StartPage: 99, PageCount: 0,
			},
			attempt: 2,
			check: func(t *testing.T, q models.QueryParams) {
				if q.StartPage != 50 {
					t.Errorf("start page = %d, want 50", q.StartPage)
				}
				if q.PageCount != 1 {
					t.Errorf("page count = %d, want 1", q.PageCount)
				}
			},
		},
		{
			name: "single family restores baseline",
			candidate: models.QueryParams{
				Keywords: []string{"fintech"}, StartPage: 1, PageCount: 3,
			},
			attempt: 3,
			check: func(t *testing.T, q models.QueryParams) {
				if !reflect.DeepEqual(q.Titles, baseline.Titles) {
					t.Errorf("titles = %v, want baseline restored", q.Titles)
				}
				if !reflect.DeepEqual(q.Locations, baseline.Locations) {
					t.Errorf("locations = %v, want baseline restored", q.Locations)
				}
			},
		},
		{
			name: "two families pass untouched",
			candidate: models.QueryParams{
				Titles: []string{"CTO"}, Keywords: []string{"payments"},
				StartPage: 2, PageCount: 5,
			},
			attempt: 3,
			check: func(t *testing.T, q models.QueryParams) {
				if !reflect.DeepEqual(q.Titles, []string{"CTO"}) {
					t.Errorf("titles = %v", q.Titles)
				}
				if len(q.Locations) != 0 {
					t.Errorf("locations = %v, want empty", q.Locations)
				}
			},
		},
		{
			name: "early attempt restores titles and locations",
			candidate: models.QueryParams{
				Keywords: []string{"fintech", "payments"}, StartPage: 1, PageCount: 3,
			},
			attempt: 2,
			check: func(t *testing.T, q models.QueryParams) {
				if len(q.Titles) == 0 && len(q.Locations) == 0 {
					t.Error("attempt 2 must keep titles or locations populated")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EnforceGuardrails(tt.candidate, baseline, tt.attempt)
			tt.check(t, got)
		})
	}
}

// Applying guardrails to already-guarded output must not change it.
func TestEnforceGuardrails_Idempotent(t *testing.T) {
	baseline := BaselineQuery(testPersona())
	candidates := []models.QueryParams{
		{Titles: []string{"CTO"}, StartPage: 120, PageCount: 40},
		{Keywords: []string{"fintech"}, StartPage: 0, PageCount: 0},
		{Titles: []string{" CTO", "cto"}, Locations: []string{"Berlin"}, StartPage: 3, PageCount: 2},
		{},
	}

	for attempt := 1; attempt <= 4; attempt++ {
		for _, c := range candidates {
			once := EnforceGuardrails(c, baseline, attempt)
			twice := EnforceGuardrails(once, baseline, attempt)
			if !reflect.DeepEqual(once, twice) {
				t.Errorf("attempt %d: not idempotent: %+v != %+v", attempt, once, twice)
			}
		}
	}
}

func TestDeeperWindow(t *testing.T) {
	q := models.QueryParams{Titles: []string{"CTO"}, StartPage: 1, PageCount: 3}
	tried := map[string]bool{Signature(q): true}

	next := deeperWindow(q, tried)
	if next.StartPage != 4 {
		t.Errorf("start page = %d, want 4", next.StartPage)
	}
	if !reflect.DeepEqual(next.Titles, q.Titles) {
		t.Error("constraints must be preserved")
	}

	// Skips windows already tried.
	tried[Signature(next)] = true
	again := deeperWindow(q, tried)
	if again.StartPage != 7 {
		t.Errorf("start page = %d, want 7", again.StartPage)
	}
}

func TestDeeperWindow_BoundedAtClamp(t *testing.T) {
	q := models.QueryParams{Titles: []string{"CTO"}, StartPage: 49, PageCount: 10}
	tried := map[string]bool{}
	next := deeperWindow(q, tried)
	if next.StartPage != 50 {
		t.Errorf("start page = %d, want 50", next.StartPage)
	}
	// Even with everything tried it terminates at the boundary.
	tried[Signature(next)] = true
	final := deeperWindow(next, tried)
	if final.StartPage != 50 {
		t.Errorf("start page = %d, want 50", final.StartPage)
	}
}
