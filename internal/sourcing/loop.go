package sourcing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/leadloop/leadloop-go/internal/llm"
	"github.com/leadloop/leadloop-go/internal/models"
	"github.com/leadloop/leadloop-go/internal/search"
)

// ErrNoCredential indicates the search provider credential is missing. The
// caller surfaces this as a configuration error rather than a run failure.
var ErrNoCredential = errors.New("search provider credential not configured")

const (
	maxAttempts        = 4
	defaultLeadsPerRun = 25
	maxLeadsPerRun     = 500

	// An accepted run caps its fetch at min(3x the goal, this) raw hits
	// to leave headroom for email-less discards without unbounded paging.
	fetchHardCap = 300

	// How many prior runs of the same schedule the proposer gets as context.
	historyDepth = 3
)

// Store is the persistence surface the loop needs.
type Store interface {
	QueryGetPersona(ctx context.Context, userID, id string) (*models.Persona, error)
	QueryGetCampaign(ctx context.Context, userID, id string) (*models.Campaign, error)
	QueryCreateCampaign(ctx context.Context, id string, camp *models.Campaign) error
	QuerySetScheduleCampaign(ctx context.Context, id, campaignID string) error
	QueryCreateRunLog(ctx context.Context, id string, log *models.ScheduleRunLog) error
	QueryFinalizeRunLog(ctx context.Context, id string, log *models.ScheduleRunLog) error
	QueryListRunLogs(ctx context.Context, userID, scheduleID string, limit int) ([]models.ScheduleRunLog, error)
	QueryCampaignEmails(ctx context.Context, campaignID string) (map[string]bool, error)
	QueryInsertLead(ctx context.Context, id string, lead *models.Lead) (bool, error)
	QueryEnqueueOutreach(ctx context.Context, id string, job *models.OutreachJob) error
	QueryCountOutreachSince(ctx context.Context, userID string, since time.Time) (int, error)
	QueryUpdateScheduleMemory(ctx context.Context, id string, lastQualityScore int, acceptedQuery map[string]any, consecutiveFailures int) error
}

// Searcher is the provider surface the loop needs.
type Searcher interface {
	Search(ctx context.Context, apiKey string, p search.Params) ([]search.Hit, error)
	EnrichBatch(ctx context.Context, apiKey string, ids []string) (map[string]search.Person, error)
}

// Proposer is the LLM contract surface the loop needs.
type Proposer interface {
	ProposeVariants(ctx context.Context, req llm.ProposeRequest) (*llm.VariantProposal, error)
	JudgeQuality(ctx context.Context, req llm.JudgeRequest) (*models.Decision, error)
}

// Loop runs the bounded search-and-judge iteration for one persona.
type Loop struct {
	store  Store
	search Searcher
	judge  Proposer
	logger *slog.Logger
	apiKey string

	// Delays are injectable so tests run instantly.
	pageDelay  time.Duration
	batchDelay time.Duration
	now        func() time.Time
}

// NewLoop wires the sourcing loop. apiKey may be empty; runs then fail fast
// with ErrNoCredential.
func NewLoop(store Store, searcher Searcher, judge Proposer, apiKey string, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		store:      store,
		search:     searcher,
		judge:      judge,
		logger:     logger,
		apiKey:     apiKey,
		pageDelay:  time.Second,
		batchDelay: 2 * time.Second,
		now:        time.Now,
	}
}

// RunPersonaInput is the validated request for one sourcing run.
type RunPersonaInput struct {
	UserID      string
	PersonaID   string
	CampaignID  string // optional; a shell is created when empty
	ScheduleID  string // optional; present for scheduler-triggered runs
	LeadsPerRun int    // defaults to 25, capped at 500

	AutoOutreach     bool
	SequenceID       *string
	SendDelayMinutes int
	DailySendCap     int

	// Agentic memory carried over from the schedule.
	LastAcceptedQuery   map[string]any
	ConsecutiveFailures int
	ForceBaseline       bool
	ExpansionPreference string
}

// RunPersona executes the full sourcing run: iterate bounded attempts until
// the judge accepts or escalates, then fetch, enrich, and insert leads. The
// returned run log is also persisted; persistence failures of the log itself
// are logged, not returned.
func (l *Loop) RunPersona(ctx context.Context, in RunPersonaInput) (*models.ScheduleRunLog, error) {
	if in.LeadsPerRun == 0 {
		in.LeadsPerRun = defaultLeadsPerRun
	}
	if in.LeadsPerRun < 1 || in.LeadsPerRun > maxLeadsPerRun {
		return nil, fmt.Errorf("leads_per_run %d out of range [1,%d]", in.LeadsPerRun, maxLeadsPerRun)
	}
	if l.apiKey == "" {
		return nil, ErrNoCredential
	}

	persona, err := l.store.QueryGetPersona(ctx, in.UserID, in.PersonaID)
	if err != nil {
		return nil, err
	}

	campaignID, err := l.resolveCampaign(ctx, in, persona)
	if err != nil {
		return nil, err
	}

	runLog := &models.ScheduleRunLog{
		UserID:     in.UserID,
		PersonaID:  in.PersonaID,
		CampaignID: campaignID,
		StartedAt:  l.now().UTC(),
	}
	if in.ScheduleID != "" {
		runLog.ScheduleID = &in.ScheduleID
	}

	// History has to be read before this run's own log row exists, so the
	// proposer never sees the in-flight run as a prior one.
	history := l.recentRuns(ctx, in)

	runID := uuid.NewString()[:8]
	if err := l.store.QueryCreateRunLog(ctx, runID, runLog); err != nil {
		return nil, err
	}

	accepted := l.iterate(ctx, in, persona, campaignID, runLog, history)

	if accepted != nil {
		found, deduped, inserted, queued := l.fetchAndInsert(ctx, in, campaignID, runID, *accepted)
		runLog.LeadsFound = found
		runLog.LeadsDeduped = deduped
		runLog.LeadsInserted = inserted
		runLog.OutreachQueued = queued
	}

	l.updateMemory(ctx, in, runLog, accepted)

	runLog.Notify = runLog.Decision == models.VerdictNotifyUser ||
		(runLog.Decision == models.VerdictFallback && runLog.AttemptsUsed == maxAttempts) ||
		(accepted != nil && runLog.LeadsInserted == 0)
	runLog.NotifyPayload = map[string]any{
		"decision":       string(runLog.Decision),
		"quality_score":  runLog.QualityScore,
		"attempts_used":  runLog.AttemptsUsed,
		"leads_inserted": runLog.LeadsInserted,
	}

	if err := l.store.QueryFinalizeRunLog(ctx, runID, runLog); err != nil {
		l.logger.Error("failed to finalize run log", "run_id", runID, "error", err)
	}

	l.logger.Info("sourcing run complete",
		"run_id", runID,
		"persona_id", in.PersonaID,
		"decision", runLog.Decision,
		"attempts", runLog.AttemptsUsed,
		"inserted", runLog.LeadsInserted)

	runLog.ID = surrealmodels.NewRecordID("schedule_run_logs", runID)
	return runLog, nil
}

// iterate runs up to four search-and-judge attempts and returns the accepted
// query, or nil when the run escalated instead.
func (l *Loop) iterate(ctx context.Context, in RunPersonaInput, persona *models.Persona, campaignID string, runLog *models.ScheduleRunLog, history []llm.RunSummary) *models.QueryParams {
	baseline := BaselineQuery(persona)

	start := baseline
	if !in.ForceBaseline {
		if remembered, ok := queryFromMap(in.LastAcceptedQuery); ok {
			start = EnforceGuardrails(remembered, baseline, 1)
		}
	}

	tried := map[string]bool{}
	current := start
	prevScore := -1

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			last := runLog.Attempts[len(runLog.Attempts)-1]
			current = l.nextQuery(ctx, persona, baseline, last, attempt, tried, history, in.ExpansionPreference)
		}
		current = EnforceGuardrails(current, baseline, attempt)
		tried[Signature(current)] = true

		att := l.runAttempt(ctx, attempt, current, persona, campaignID, in.LeadsPerRun)
		runLog.Attempts = append(runLog.Attempts, att)
		runLog.AttemptsUsed = len(runLog.Attempts)
		runLog.QualityScore = att.Judge.QualityScore
		runLog.Confidence = att.Judge.Confidence
		runLog.Decision = att.Judge.Decision
		runLog.FailureMode = att.Judge.FailureMode

		switch att.Judge.Decision {
		case models.VerdictAccept:
			q := att.Query
			runLog.AcceptedQuery = &q
			return &q
		case models.VerdictNotifyUser:
			return nil
		}

		// Diminishing returns: once iteration stops improving the score,
		// further attempts only burn provider quota.
		if attempt >= 3 && att.Judge.QualityScore <= prevScore {
			l.logger.Info("score plateaued, escalating",
				"attempt", attempt, "score", att.Judge.QualityScore)
			runLog.Decision = models.VerdictNotifyUser
			return nil
		}
		prevScore = att.Judge.QualityScore
	}

	// Four attempts without acceptance.
	runLog.Decision = models.VerdictNotifyUser
	return nil
}

// runAttempt executes one search page, observes it, and judges it. Search
// and judge failures degrade to a synthesized zero-score FALLBACK so the
// loop keeps its bounded shape instead of aborting the run.
func (l *Loop) runAttempt(ctx context.Context, index int, q models.QueryParams, persona *models.Persona, campaignID string, leadGoal int) models.Attempt {
	attempt := models.Attempt{Index: index, Query: q}

	hits, err := l.search.Search(ctx, l.apiKey, search.Params{
		Titles:    q.Titles,
		Locations: q.Locations,
		Keywords:  q.Keywords,
		Page:      q.StartPage,
	})
	if err != nil {
		l.logger.Warn("search attempt failed", "attempt", index, "error", err)
		attempt.Judge = synthesizedFallback("search provider error")
		return attempt
	}

	attempt.Observation = l.buildObservation(ctx, hits, persona, campaignID)

	// A title-only persona has nothing for the judge to weigh beyond title
	// match, which the search engine already enforced. Any hits at all mean
	// the query is as constrained as it can get; accept directly.
	if persona.TitleOnly() && attempt.Observation.FoundCount > 0 {
		attempt.Judge = models.Decision{
			QualityScore: 75,
			Confidence:   0.9,
			Decision:     models.VerdictAccept,
			ReasonsGood:  []string{"title-only persona with matching results"},
		}
		return attempt
	}

	decision, err := l.judge.JudgeQuality(ctx, llm.JudgeRequest{
		Persona:     persona,
		Query:       q,
		Observation: attempt.Observation,
		Attempt:     index,
		LeadGoal:    leadGoal,
	})
	if err != nil {
		l.logger.Warn("judge attempt failed", "attempt", index, "error", err)
		attempt.Judge = synthesizedFallback("judge unavailable")
		return attempt
	}

	attempt.Judge = *decision
	return attempt
}

// nextQuery picks the attempt's query: the first proposed variant with an
// untried signature, or a deterministic deeper-window fallback when the
// proposal fails or everything proposed was already tried.
func (l *Loop) nextQuery(ctx context.Context, persona *models.Persona, baseline models.QueryParams, last models.Attempt, attempt int, tried map[string]bool, history []llm.RunSummary, expansion string) models.QueryParams {
	proposal, err := l.judge.ProposeVariants(ctx, llm.ProposeRequest{
		Persona:      persona,
		Baseline:     baseline,
		LastQuery:    last.Query,
		LastObserved: last.Observation,
		LastJudge:    last.Judge,
		Attempt:      attempt,
		RecentRuns:   history,
		Expansion:    expansion,
		Guardrails:   "keep at least two of titles/locations/keywords; start_page 1-50; page_count 1-10",
	})
	if err != nil {
		l.logger.Warn("variant proposal failed, using deterministic fallback",
			"attempt", attempt, "error", err)
		return deeperWindow(last.Query, tried)
	}

	for _, v := range proposal.Variants {
		candidate := EnforceGuardrails(models.QueryParams{
			Titles:    v.Titles,
			Locations: v.Locations,
			Keywords:  v.Keywords,
			StartPage: v.StartPage,
			PageCount: v.PageCount,
		}, baseline, attempt)
		if !tried[Signature(candidate)] {
			return candidate
		}
	}

	l.logger.Debug("all proposed variants already tried", "attempt", attempt)
	return deeperWindow(last.Query, tried)
}

// deeperWindow keeps the query's constraints and advances its pagination
// window past pages already seen. The advance is bounded by the page clamp;
// at the boundary the repeat is accepted rather than looping.
func deeperWindow(q models.QueryParams, tried map[string]bool) models.QueryParams {
	next := q
	for i := 0; i < maxStartPage; i++ {
		next.StartPage = clamp(next.StartPage+next.PageCount, minStartPage, maxStartPage)
		if !tried[Signature(next)] || next.StartPage == maxStartPage {
			break
		}
	}
	return next
}

func synthesizedFallback(reason string) models.Decision {
	return models.Decision{
		QualityScore: 0,
		Confidence:   0,
		Decision:     models.VerdictFallback,
		FailureMode:  models.FailureOther,
		ReasonsBad:   []string{reason},
	}
}

// recentRuns condenses the schedule's last few runs into proposer context.
// Best-effort: a history read failure never blocks the run itself.
func (l *Loop) recentRuns(ctx context.Context, in RunPersonaInput) []llm.RunSummary {
	if in.ScheduleID == "" {
		return nil
	}

	logs, err := l.store.QueryListRunLogs(ctx, in.UserID, in.ScheduleID, historyDepth)
	if err != nil {
		l.logger.Warn("could not load run history",
			"schedule_id", in.ScheduleID, "error", err)
		return nil
	}

	summaries := make([]llm.RunSummary, 0, len(logs))
	for _, past := range logs {
		summaries = append(summaries, llm.RunSummary{
			StartedAt:     past.StartedAt,
			Decision:      past.Decision,
			QualityScore:  past.QualityScore,
			AttemptsUsed:  past.AttemptsUsed,
			LeadsInserted: past.LeadsInserted,
			FailureMode:   past.FailureMode,
		})
	}
	return summaries
}

// resolveCampaign returns the campaign id to insert into, creating a shell
// on first use and, for scheduled runs, pinning it back onto the schedule.
func (l *Loop) resolveCampaign(ctx context.Context, in RunPersonaInput, persona *models.Persona) (string, error) {
	if in.CampaignID != "" {
		if _, err := l.store.QueryGetCampaign(ctx, in.UserID, in.CampaignID); err != nil {
			return "", err
		}
		return in.CampaignID, nil
	}

	id := uuid.NewString()[:8]
	personaID := in.PersonaID
	camp := &models.Campaign{
		UserID:     in.UserID,
		Name:       fmt.Sprintf("%s leads %s", persona.Name, l.now().UTC().Format("2006-01-02")),
		PersonaID:  &personaID,
		SequenceID: in.SequenceID,
	}
	if err := l.store.QueryCreateCampaign(ctx, id, camp); err != nil {
		return "", err
	}

	if in.ScheduleID != "" {
		if err := l.store.QuerySetScheduleCampaign(ctx, in.ScheduleID, id); err != nil {
			l.logger.Warn("failed to pin campaign onto schedule",
				"schedule_id", in.ScheduleID, "error", err)
		}
	}
	return id, nil
}

// updateMemory writes the agentic memory back onto the schedule. Acceptance
// resets the failure streak; anything else extends it.
func (l *Loop) updateMemory(ctx context.Context, in RunPersonaInput, runLog *models.ScheduleRunLog, accepted *models.QueryParams) {
	if in.ScheduleID == "" {
		return
	}

	failures := in.ConsecutiveFailures + 1
	var acceptedMap map[string]any
	if accepted != nil {
		failures = 0
		acceptedMap = queryToMap(*accepted)
	}

	if err := l.store.QueryUpdateScheduleMemory(ctx, in.ScheduleID, runLog.QualityScore, acceptedMap, failures); err != nil {
		l.logger.Warn("failed to update schedule memory",
			"schedule_id", in.ScheduleID, "error", err)
	}
}

func queryToMap(q models.QueryParams) map[string]any {
	data, err := json.Marshal(q)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}

// queryFromMap decodes a remembered query from schedule memory. Malformed
// memory is treated as absent.
func queryFromMap(m map[string]any) (models.QueryParams, bool) {
	if len(m) == 0 {
		return models.QueryParams{}, false
	}
	data, err := json.Marshal(m)
	if err != nil {
		return models.QueryParams{}, false
	}
	var q models.QueryParams
	if err := json.Unmarshal(data, &q); err != nil {
		return models.QueryParams{}, false
	}
	if len(q.Titles) == 0 && len(q.Locations) == 0 && len(q.Keywords) == 0 {
		return models.QueryParams{}, false
	}
	return q, true
}
