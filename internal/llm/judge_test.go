package llm

import (
	"strings"
	"testing"

	"github.com/leadloop/leadloop-go/internal/models"
)

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare json", `{"a":1}`, `{"a":1}`},
		{"fenced json", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced without language", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"fence on same line as payload", "```{\"a\":1}```", `{"a":1}`},
		{"surrounding whitespace", "  \n```json\n[1,2]\n```\n  ", "[1,2]"},
		{"inner backticks survive", "```json\n{\"s\":\"``\"}\n```", "{\"s\":\"``\"}"},
		{"plain prose untouched", "not json at all", "not json at all"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFences(tt.in); got != tt.want {
				t.Errorf("StripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func validProposal() *VariantProposal {
	p := &VariantProposal{}
	for i := 1; i <= 3; i++ {
		p.Variants = append(p.Variants, QueryVariant{
			Rank: i, Titles: []string{"CTO"}, StartPage: 1, PageCount: 3,
		})
	}
	return p
}

func TestValidateProposal(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*VariantProposal)
		wantErr string
	}{
		{
			name:   "three valid variants",
			mutate: func(p *VariantProposal) {},
		},
		{
			name:    "no variants",
			mutate:  func(p *VariantProposal) { p.Variants = nil },
			wantErr: "3-6 variants",
		},
		{
			name:    "too few variants",
			mutate:  func(p *VariantProposal) { p.Variants = p.Variants[:2] },
			wantErr: "3-6 variants",
		},
		{
			name:    "start page zero",
			mutate:  func(p *VariantProposal) { p.Variants[0].StartPage = 0 },
			wantErr: "start_page",
		},
		{
			name:    "start page past window",
			mutate:  func(p *VariantProposal) { p.Variants[0].StartPage = 51 },
			wantErr: "start_page",
		},
		{
			name:    "page count too large",
			mutate:  func(p *VariantProposal) { p.Variants[0].PageCount = 11 },
			wantErr: "page_count",
		},
		{
			name: "all families empty",
			mutate: func(p *VariantProposal) {
				p.Variants[0].Titles = nil
			},
			wantErr: "constraint families",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProposal()
			tt.mutate(p)
			err := validateProposal(p)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateProposal_SortsAndTruncates(t *testing.T) {
	p := &VariantProposal{}
	for i := 8; i >= 1; i-- {
		p.Variants = append(p.Variants, QueryVariant{
			Rank: i, Titles: []string{"CTO"}, StartPage: 1, PageCount: 3,
		})
	}

	if err := validateProposal(p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Variants) != 6 {
		t.Fatalf("len(Variants) = %d, want 6", len(p.Variants))
	}
	for i := 1; i < len(p.Variants); i++ {
		if p.Variants[i-1].Rank > p.Variants[i].Rank {
			t.Fatalf("variants not sorted by rank: %v then %v",
				p.Variants[i-1].Rank, p.Variants[i].Rank)
		}
	}
}

func TestValidateDecision(t *testing.T) {
	tests := []struct {
		name    string
		d       models.Decision
		wantErr bool
	}{
		{
			name: "valid accept",
			d:    models.Decision{Decision: models.VerdictAccept, QualityScore: 80, Confidence: 0.9},
		},
		{
			name: "valid boundary scores",
			d:    models.Decision{Decision: models.VerdictIterate, QualityScore: 0, Confidence: 0, FailureMode: models.FailureTooNarrow},
		},
		{
			name:    "unknown verdict",
			d:       models.Decision{Decision: "MAYBE", QualityScore: 50, Confidence: 0.5},
			wantErr: true,
		},
		{
			name:    "score out of range",
			d:       models.Decision{Decision: models.VerdictAccept, QualityScore: 101, Confidence: 0.5},
			wantErr: true,
		},
		{
			name:    "negative score",
			d:       models.Decision{Decision: models.VerdictAccept, QualityScore: -1, Confidence: 0.5},
			wantErr: true,
		},
		{
			name:    "confidence above one",
			d:       models.Decision{Decision: models.VerdictAccept, QualityScore: 50, Confidence: 1.5},
			wantErr: true,
		},
		{
			name:    "made-up failure mode",
			d:       models.Decision{Decision: models.VerdictIterate, QualityScore: 20, Confidence: 0.5, FailureMode: "cosmic_rays"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateDecision(&tt.d)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateDecision() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDecision_DefaultsFailureMode(t *testing.T) {
	d := models.Decision{Decision: models.VerdictIterate, QualityScore: 30, Confidence: 0.4}
	if err := validateDecision(&d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.FailureMode != models.FailureOther {
		t.Errorf("FailureMode = %q, want %q", d.FailureMode, models.FailureOther)
	}
}
