package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/leadloop/leadloop-go/internal/metrics"
	"github.com/leadloop/leadloop-go/internal/models"
)

// ErrInvalidOutput indicates the model's output failed schema validation
// even after the corrective retry. Callers degrade to a deterministic
// fallback; this error never surfaces as a hard failure of a run.
var ErrInvalidOutput = errors.New("llm output failed schema validation")

// Judge is the schema-validated contract layer over the two sourcing
// prompts: propose ranked query variants, and judge result quality.
type Judge struct {
	model  *Model
	logger *slog.Logger
}

// NewJudge creates the contract layer around a model.
func NewJudge(model *Model, logger *slog.Logger) *Judge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Judge{model: model, logger: logger}
}

// QueryVariant is one ranked proposal from the variants prompt.
type QueryVariant struct {
	Rank      int      `json:"rank"`
	Titles    []string `json:"titles,omitempty"`
	Locations []string `json:"locations,omitempty"`
	Keywords  []string `json:"keywords,omitempty"`
	StartPage int      `json:"start_page"`
	PageCount int      `json:"page_count"`
	Rationale string   `json:"rationale,omitempty"`
}

// VariantProposal is the validated output of the propose prompt.
type VariantProposal struct {
	Variants []QueryVariant `json:"variants"`
}

// RunSummary condenses one earlier run of the same schedule so the proposer
// can see what already worked or failed.
type RunSummary struct {
	StartedAt     time.Time           `json:"started_at"`
	Decision      models.JudgeVerdict `json:"decision,omitempty"`
	QualityScore  int                 `json:"quality_score"`
	AttemptsUsed  int                 `json:"attempts_used"`
	LeadsInserted int                 `json:"leads_inserted"`
	FailureMode   models.FailureMode  `json:"failure_mode,omitempty"`
}

// ProposeRequest carries everything the propose prompt needs.
type ProposeRequest struct {
	Persona      *models.Persona    `json:"persona"`
	Baseline     models.QueryParams `json:"baseline_query"`
	LastQuery    models.QueryParams `json:"last_query"`
	LastObserved models.Observation `json:"last_observation"`
	LastJudge    models.Decision    `json:"last_judge"`
	Attempt      int                `json:"attempt"`
	RecentRuns   []RunSummary       `json:"recent_runs,omitempty"`
	Expansion    string             `json:"expansion_preference,omitempty"`
	Guardrails   string             `json:"guardrails"`
}

// JudgeRequest carries everything the judge prompt needs.
type JudgeRequest struct {
	Persona     *models.Persona    `json:"persona"`
	Query       models.QueryParams `json:"query"`
	Observation models.Observation `json:"observation"`
	Attempt     int                `json:"attempt"`
	LeadGoal    int                `json:"lead_goal"`
}

const proposeSystemPrompt = `You are a sourcing query strategist for a B2B lead-generation system.
Given a persona, the baseline query derived from it, and the metrics and verdict of the previous
search attempt, propose 3-6 ranked alternative query variants that are likely to fix the observed
failure mode while staying true to the persona's intent.

Rules:
- Never loosen all constraint families at once; keep at least two of titles/locations/keywords populated.
- start_page must be between 1 and 50, page_count between 1 and 10.
- Rank 1 is your strongest proposal.
- recent_runs, when present, summarizes earlier runs of the same schedule; avoid repeating a shape that already failed.
- expansion_preference, when set to "wider" or "deeper", says whether the user prefers loosening constraints or paging further into the same query.

Respond with pure JSON only, no prose and no code fences, matching exactly:
{"variants": [{"rank": 1, "titles": [...], "locations": [...], "keywords": [...], "start_page": 1, "page_count": 3, "rationale": "..."}]}`

const judgeSystemPrompt = `You are a strict quality judge for B2B lead-sourcing results.
Given the persona's constraints, the query that was executed, and the observed result metrics with a
redacted sample, score how well the results match the persona and recommend the next action.

Decisions:
- ACCEPT_RESULTS: results are good enough to fetch and insert.
- ITERATE: results are fixable; recommend an adjustment.
- FALLBACK: the query degenerated; return toward the baseline.
- NOTIFY_USER: no automatic adjustment is likely to help; a human must refine the persona.

Failure modes: too_narrow, geo_mismatch, title_drift, deliverability_low, duplicates_high, irrelevant_industries, other.

Respond with pure JSON only, no prose and no code fences, matching exactly:
{"quality_score": 0-100, "confidence": 0.0-1.0, "decision": "...", "failure_mode": "...",
 "reasons_good": [...], "reasons_bad": [...],
 "recommended_adjustment": {"type": "...", "notes": "..."}}`

// ProposeVariants asks for ranked query variants. The response is validated
// and, when invalid, corrected once before giving up with ErrInvalidOutput.
func (j *Judge) ProposeVariants(ctx context.Context, req ProposeRequest) (*VariantProposal, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal propose request: %w", err)
	}

	var proposal VariantProposal
	err = j.callWithSchema(ctx, metrics.OpLLMPropose, proposeSystemPrompt, string(payload), func(raw []byte) error {
		proposal = VariantProposal{}
		if err := json.Unmarshal(raw, &proposal); err != nil {
			return err
		}
		return validateProposal(&proposal)
	})
	if err != nil {
		return nil, err
	}
	return &proposal, nil
}

// JudgeQuality scores one attempt's results against the persona.
func (j *Judge) JudgeQuality(ctx context.Context, req JudgeRequest) (*models.Decision, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal judge request: %w", err)
	}

	var decision models.Decision
	err = j.callWithSchema(ctx, metrics.OpLLMJudge, judgeSystemPrompt, string(payload), func(raw []byte) error {
		decision = models.Decision{}
		if err := json.Unmarshal(raw, &decision); err != nil {
			return err
		}
		return validateDecision(&decision)
	})
	if err != nil {
		return nil, err
	}
	return &decision, nil
}

// callWithSchema runs one prompt with a bounded self-correction retry: on
// the first validation failure a corrective follow-up containing the invalid
// output and the validation error is sent once. Transport errors are
// returned as-is so the caller's deterministic fallback engages without a
// retry here.
func (j *Judge) callWithSchema(ctx context.Context, op, systemPrompt, userPrompt string, validate func([]byte) error) error {
	raw, err := j.model.GenerateWithSystem(ctx, op, systemPrompt, userPrompt)
	if err != nil {
		return err
	}

	cleaned := StripCodeFences(raw)
	valErr := validate([]byte(cleaned))
	if valErr == nil {
		return nil
	}

	j.logger.Warn("llm output failed validation, sending corrective follow-up",
		"op", op, "error", valErr)

	correction := fmt.Sprintf(
		"%s\n\nYour previous response was invalid.\n\nPrevious response:\n%s\n\nValidation error: %s\n\nRespond again with pure JSON matching the required schema exactly.",
		userPrompt, raw, valErr)

	raw, err = j.model.GenerateWithSystem(ctx, op, systemPrompt, correction)
	if err != nil {
		return err
	}

	cleaned = StripCodeFences(raw)
	if valErr = validate([]byte(cleaned)); valErr != nil {
		return fmt.Errorf("%w: %s", ErrInvalidOutput, valErr)
	}
	return nil
}

// StripCodeFences defensively removes a markdown code-fence wrapper from a
// response that should have been pure JSON.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	// Drop an opening language tag like "json"
	if idx := strings.Index(s, "\n"); idx >= 0 {
		first := strings.TrimSpace(s[:idx])
		if first != "" && !strings.ContainsAny(first, "{[") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func validateProposal(p *VariantProposal) error {
	if len(p.Variants) < 3 {
		return fmt.Errorf("expected 3-6 variants, got %d", len(p.Variants))
	}
	if len(p.Variants) > 6 {
		p.Variants = p.Variants[:6]
	}
	for i := range p.Variants {
		v := &p.Variants[i]
		if v.StartPage < 1 || v.StartPage > 50 {
			return fmt.Errorf("variant %d: start_page %d out of range [1,50]", i, v.StartPage)
		}
		if v.PageCount < 1 || v.PageCount > 10 {
			return fmt.Errorf("variant %d: page_count %d out of range [1,10]", i, v.PageCount)
		}
		if len(v.Titles) == 0 && len(v.Locations) == 0 && len(v.Keywords) == 0 {
			return fmt.Errorf("variant %d: all constraint families empty", i)
		}
	}
	sort.SliceStable(p.Variants, func(a, b int) bool {
		return p.Variants[a].Rank < p.Variants[b].Rank
	})
	return nil
}

func validateDecision(d *models.Decision) error {
	if !models.ValidVerdict(d.Decision) {
		return fmt.Errorf("invalid decision %q", d.Decision)
	}
	if d.QualityScore < 0 || d.QualityScore > 100 {
		return fmt.Errorf("quality_score %d out of range [0,100]", d.QualityScore)
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range [0,1]", d.Confidence)
	}
	if d.FailureMode == "" {
		d.FailureMode = models.FailureOther
	}
	if !models.ValidFailureMode(d.FailureMode) {
		return fmt.Errorf("invalid failure_mode %q", d.FailureMode)
	}
	return nil
}
