package sourcing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadloop/leadloop-go/internal/llm"
	"github.com/leadloop/leadloop-go/internal/models"
	"github.com/leadloop/leadloop-go/internal/search"
)

// fakeStore is an in-memory Store that records what the loop persisted.
type fakeStore struct {
	persona        *models.Persona
	campaignEmails map[string]bool
	runHistory     []models.ScheduleRunLog

	createdCampaigns int
	insertedLeads    []*models.Lead
	outreachJobs     []*models.OutreachJob
	finalized        *models.ScheduleRunLog
	memoryScore      int
	memoryFailures   int
	memoryAccepted   map[string]any
	memoryWritten    bool
	pinnedCampaign   string
}

func (f *fakeStore) QueryGetPersona(ctx context.Context, userID, id string) (*models.Persona, error) {
	if f.persona == nil {
		return nil, errors.New("not found")
	}
	return f.persona, nil
}

func (f *fakeStore) QueryGetCampaign(ctx context.Context, userID, id string) (*models.Campaign, error) {
	return &models.Campaign{UserID: userID}, nil
}

func (f *fakeStore) QueryCreateCampaign(ctx context.Context, id string, camp *models.Campaign) error {
	f.createdCampaigns++
	return nil
}

func (f *fakeStore) QuerySetScheduleCampaign(ctx context.Context, id, campaignID string) error {
	f.pinnedCampaign = campaignID
	return nil
}

func (f *fakeStore) QueryCreateRunLog(ctx context.Context, id string, log *models.ScheduleRunLog) error {
	return nil
}

func (f *fakeStore) QueryFinalizeRunLog(ctx context.Context, id string, log *models.ScheduleRunLog) error {
	f.finalized = log
	return nil
}

func (f *fakeStore) QueryListRunLogs(ctx context.Context, userID, scheduleID string, limit int) ([]models.ScheduleRunLog, error) {
	if limit > len(f.runHistory) {
		limit = len(f.runHistory)
	}
	return f.runHistory[:limit], nil
}

func (f *fakeStore) QueryCampaignEmails(ctx context.Context, campaignID string) (map[string]bool, error) {
	if f.campaignEmails == nil {
		return map[string]bool{}, nil
	}
	return f.campaignEmails, nil
}

func (f *fakeStore) QueryInsertLead(ctx context.Context, id string, lead *models.Lead) (bool, error) {
	f.insertedLeads = append(f.insertedLeads, lead)
	return true, nil
}

func (f *fakeStore) QueryEnqueueOutreach(ctx context.Context, id string, job *models.OutreachJob) error {
	f.outreachJobs = append(f.outreachJobs, job)
	return nil
}

func (f *fakeStore) QueryCountOutreachSince(ctx context.Context, userID string, since time.Time) (int, error) {
	return len(f.outreachJobs), nil
}

func (f *fakeStore) QueryUpdateScheduleMemory(ctx context.Context, id string, score int, accepted map[string]any, failures int) error {
	f.memoryWritten = true
	f.memoryScore = score
	f.memoryAccepted = accepted
	f.memoryFailures = failures
	return nil
}

// fakeSearcher returns a fixed page of hits.
type fakeSearcher struct {
	hits        []search.Hit
	searchCalls int
	searchErr   error
}

func (f *fakeSearcher) Search(ctx context.Context, apiKey string, p search.Params) ([]search.Hit, error) {
	f.searchCalls++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits, nil
}

func (f *fakeSearcher) EnrichBatch(ctx context.Context, apiKey string, ids []string) (map[string]search.Person, error) {
	people := make(map[string]search.Person, len(ids))
	for _, id := range ids {
		people[id] = search.Person{ID: id, Email: id + "@enriched.example"}
	}
	return people, nil
}

// fakeProposer scripts the judge's decisions per attempt.
type fakeProposer struct {
	decisions    []models.Decision
	judgeCalls   int
	proposeCalls int
	proposeErr   error
	lastPropose  llm.ProposeRequest
}

func (f *fakeProposer) ProposeVariants(ctx context.Context, req llm.ProposeRequest) (*llm.VariantProposal, error) {
	f.proposeCalls++
	f.lastPropose = req
	if f.proposeErr != nil {
		return nil, f.proposeErr
	}
	return &llm.VariantProposal{Variants: []llm.QueryVariant{{
		Rank:      1,
		Titles:    req.Persona.Titles,
		Keywords:  append([]string{fmt.Sprintf("variant-%d", f.proposeCalls)}, req.Persona.Keywords...),
		StartPage: 1,
		PageCount: 3,
	}}}, nil
}

func (f *fakeProposer) JudgeQuality(ctx context.Context, req llm.JudgeRequest) (*models.Decision, error) {
	f.judgeCalls++
	if f.judgeCalls <= len(f.decisions) {
		d := f.decisions[f.judgeCalls-1]
		return &d, nil
	}
	return &models.Decision{QualityScore: 10, Decision: models.VerdictIterate, FailureMode: models.FailureOther}, nil
}

func testHits(n int, withEmail bool) []search.Hit {
	hits := make([]search.Hit, n)
	for i := range hits {
		hits[i] = search.Hit{
			ID:       fmt.Sprintf("p%d", i),
			Title:    "CTO",
			Company:  "Acme",
			Location: "Berlin",
		}
		if withEmail {
			hits[i].Email = fmt.Sprintf("p%d@example.com", i)
		}
	}
	return hits
}

func newTestLoop(store Store, searcher Searcher, judge Proposer) *Loop {
	l := NewLoop(store, searcher, judge, "test-key", slog.New(slog.DiscardHandler))
	l.pageDelay = 0
	l.batchDelay = 0
	return l
}

func TestRunPersona_InputValidation(t *testing.T) {
	loop := newTestLoop(&fakeStore{}, &fakeSearcher{}, &fakeProposer{})

	_, err := loop.RunPersona(context.Background(), RunPersonaInput{
		UserID: "u1", PersonaID: "p1", LeadsPerRun: 501,
	})
	require.Error(t, err)

	_, err = loop.RunPersona(context.Background(), RunPersonaInput{
		UserID: "u1", PersonaID: "p1", LeadsPerRun: -1,
	})
	require.Error(t, err)
}

func TestRunPersona_NoCredential(t *testing.T) {
	loop := NewLoop(&fakeStore{}, &fakeSearcher{}, &fakeProposer{}, "", slog.New(slog.DiscardHandler))

	_, err := loop.RunPersona(context.Background(), RunPersonaInput{
		UserID: "u1", PersonaID: "p1",
	})
	require.ErrorIs(t, err, ErrNoCredential)
}

// A title-only persona with matching results accepts without consulting the
// judge at all.
func TestRunPersona_TitleOnlyForceAccept(t *testing.T) {
	store := &fakeStore{persona: &models.Persona{
		UserID: "u1", Name: "CTOs", Titles: []string{"CTO"},
	}}
	searcher := &fakeSearcher{hits: testHits(30, true)}
	judge := &fakeProposer{}
	loop := newTestLoop(store, searcher, judge)

	runLog, err := loop.RunPersona(context.Background(), RunPersonaInput{
		UserID: "u1", PersonaID: "p1", LeadsPerRun: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, models.VerdictAccept, runLog.Decision)
	assert.Equal(t, 1, runLog.AttemptsUsed)
	assert.Equal(t, 0, judge.judgeCalls, "judge must not be consulted for title-only personas")
	assert.Equal(t, 10, runLog.LeadsInserted)
	assert.LessOrEqual(t, runLog.LeadsInserted, runLog.LeadsFound)
}

// The override keys on the persona shape and the hit count alone; hits whose
// titles spell out an abbreviated persona title still accept on attempt 1.
func TestRunPersona_TitleOnlyAcceptsWithoutTitleOverlap(t *testing.T) {
	store := &fakeStore{persona: &models.Persona{
		UserID: "u1", Name: "AEs", Titles: []string{"AE"},
	}}
	hits := make([]search.Hit, 5)
	for i := range hits {
		hits[i] = search.Hit{
			ID:    fmt.Sprintf("p%d", i),
			Title: "Account Executive",
			Email: fmt.Sprintf("p%d@example.com", i),
		}
	}
	judge := &fakeProposer{}
	loop := newTestLoop(store, &fakeSearcher{hits: hits}, judge)

	runLog, err := loop.RunPersona(context.Background(), RunPersonaInput{
		UserID: "u1", PersonaID: "p1", LeadsPerRun: 5,
	})
	require.NoError(t, err)

	assert.Equal(t, models.VerdictAccept, runLog.Decision)
	assert.Equal(t, 1, runLog.AttemptsUsed)
	assert.Equal(t, 0, judge.judgeCalls)
	assert.Equal(t, 5, runLog.LeadsInserted)
}

func TestRunPersona_AcceptOnSecondAttempt(t *testing.T) {
	store := &fakeStore{persona: testPersona()}
	searcher := &fakeSearcher{hits: testHits(20, true)}
	judge := &fakeProposer{decisions: []models.Decision{
		{QualityScore: 30, Decision: models.VerdictIterate, FailureMode: models.FailureTooNarrow},
		{QualityScore: 80, Decision: models.VerdictAccept},
	}}
	loop := newTestLoop(store, searcher, judge)

	runLog, err := loop.RunPersona(context.Background(), RunPersonaInput{
		UserID: "u1", PersonaID: "p1", LeadsPerRun: 5, ScheduleID: "s1",
	})
	require.NoError(t, err)

	assert.Equal(t, models.VerdictAccept, runLog.Decision)
	assert.Equal(t, 2, runLog.AttemptsUsed)
	assert.Equal(t, 1, judge.proposeCalls)
	require.NotNil(t, runLog.AcceptedQuery)
	assert.Equal(t, 80, runLog.QualityScore)
	assert.Equal(t, 5, runLog.LeadsInserted)

	// Acceptance resets the failure streak and remembers the query.
	assert.True(t, store.memoryWritten)
	assert.Equal(t, 0, store.memoryFailures)
	assert.NotNil(t, store.memoryAccepted)
}

func TestRunPersona_ExhaustsFourAttempts(t *testing.T) {
	store := &fakeStore{persona: testPersona()}
	searcher := &fakeSearcher{hits: testHits(5, true)}
	// Strictly improving scores avoid the plateau exit; nothing accepts.
	judge := &fakeProposer{decisions: []models.Decision{
		{QualityScore: 10, Decision: models.VerdictIterate, FailureMode: models.FailureTooNarrow},
		{QualityScore: 20, Decision: models.VerdictIterate, FailureMode: models.FailureTooNarrow},
		{QualityScore: 30, Decision: models.VerdictIterate, FailureMode: models.FailureTooNarrow},
		{QualityScore: 40, Decision: models.VerdictIterate, FailureMode: models.FailureTooNarrow},
	}}
	loop := newTestLoop(store, searcher, judge)

	runLog, err := loop.RunPersona(context.Background(), RunPersonaInput{
		UserID: "u1", PersonaID: "p1", ScheduleID: "s1", ConsecutiveFailures: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, 4, runLog.AttemptsUsed)
	assert.Equal(t, models.VerdictNotifyUser, runLog.Decision)
	assert.True(t, runLog.Notify)
	assert.Equal(t, 0, runLog.LeadsInserted)
	assert.Equal(t, 2, store.memoryFailures, "failure streak extends")
	assert.Nil(t, store.memoryAccepted)
}

// Once the score stops improving, the loop stops burning attempts.
func TestRunPersona_PlateauEscalatesEarly(t *testing.T) {
	store := &fakeStore{persona: testPersona()}
	searcher := &fakeSearcher{hits: testHits(5, true)}
	judge := &fakeProposer{decisions: []models.Decision{
		{QualityScore: 30, Decision: models.VerdictIterate, FailureMode: models.FailureGeoMismatch},
		{QualityScore: 35, Decision: models.VerdictIterate, FailureMode: models.FailureGeoMismatch},
		{QualityScore: 35, Decision: models.VerdictIterate, FailureMode: models.FailureGeoMismatch},
	}}
	loop := newTestLoop(store, searcher, judge)

	runLog, err := loop.RunPersona(context.Background(), RunPersonaInput{
		UserID: "u1", PersonaID: "p1",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, runLog.AttemptsUsed)
	assert.Equal(t, models.VerdictNotifyUser, runLog.Decision)
}

func TestRunPersona_NotifyUserStopsImmediately(t *testing.T) {
	store := &fakeStore{persona: testPersona()}
	searcher := &fakeSearcher{hits: testHits(0, false)}
	judge := &fakeProposer{decisions: []models.Decision{
		{QualityScore: 5, Decision: models.VerdictNotifyUser, FailureMode: models.FailureTooNarrow},
	}}
	loop := newTestLoop(store, searcher, judge)

	runLog, err := loop.RunPersona(context.Background(), RunPersonaInput{
		UserID: "u1", PersonaID: "p1",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, runLog.AttemptsUsed)
	assert.True(t, runLog.Notify)
	assert.Equal(t, 0, len(store.insertedLeads))
}

// A search outage degrades the attempt to a zero-score fallback instead of
// failing the run.
func TestRunPersona_SearchErrorDegrades(t *testing.T) {
	store := &fakeStore{persona: testPersona()}
	searcher := &fakeSearcher{searchErr: errors.New("provider down")}
	judge := &fakeProposer{}
	loop := newTestLoop(store, searcher, judge)

	runLog, err := loop.RunPersona(context.Background(), RunPersonaInput{
		UserID: "u1", PersonaID: "p1",
	})
	require.NoError(t, err)

	assert.Equal(t, models.VerdictNotifyUser, runLog.Decision)
	assert.Equal(t, 0, judge.judgeCalls, "no observation to judge")
	require.NotEmpty(t, runLog.Attempts)
	assert.Equal(t, models.VerdictFallback, runLog.Attempts[0].Judge.Decision)
	assert.Equal(t, 0, runLog.Attempts[0].Judge.QualityScore)
}

// A proposal failure falls back to the deterministic deeper-window query.
func TestRunPersona_ProposalErrorUsesDeeperWindow(t *testing.T) {
	store := &fakeStore{persona: testPersona()}
	searcher := &fakeSearcher{hits: testHits(10, true)}
	judge := &fakeProposer{
		proposeErr: llm.ErrInvalidOutput,
		decisions: []models.Decision{
			{QualityScore: 20, Decision: models.VerdictIterate, FailureMode: models.FailureTooNarrow},
			{QualityScore: 85, Decision: models.VerdictAccept},
		},
	}
	loop := newTestLoop(store, searcher, judge)

	runLog, err := loop.RunPersona(context.Background(), RunPersonaInput{
		UserID: "u1", PersonaID: "p1", LeadsPerRun: 3,
	})
	require.NoError(t, err)

	require.Equal(t, 2, runLog.AttemptsUsed)
	first := runLog.Attempts[0].Query
	second := runLog.Attempts[1].Query
	assert.Greater(t, second.StartPage, first.StartPage, "fallback digs deeper pages")
	assert.Equal(t, first.Titles, second.Titles, "fallback keeps constraints")
}

// Scheduled runs hand the proposer the schedule's recent history and the
// user's expansion preference.
func TestRunPersona_HistoryReachesProposer(t *testing.T) {
	store := &fakeStore{
		persona: testPersona(),
		runHistory: []models.ScheduleRunLog{
			{Decision: models.VerdictNotifyUser, QualityScore: 20, AttemptsUsed: 4},
			{Decision: models.VerdictAccept, QualityScore: 75, AttemptsUsed: 2, LeadsInserted: 18},
		},
	}
	searcher := &fakeSearcher{hits: testHits(10, true)}
	judge := &fakeProposer{decisions: []models.Decision{
		{QualityScore: 30, Decision: models.VerdictIterate, FailureMode: models.FailureTooNarrow},
		{QualityScore: 80, Decision: models.VerdictAccept},
	}}
	loop := newTestLoop(store, searcher, judge)

	_, err := loop.RunPersona(context.Background(), RunPersonaInput{
		UserID: "u1", PersonaID: "p1", ScheduleID: "s1",
		ExpansionPreference: "wider",
	})
	require.NoError(t, err)

	require.Equal(t, 1, judge.proposeCalls)
	assert.Len(t, judge.lastPropose.RecentRuns, 2)
	assert.Equal(t, models.VerdictAccept, judge.lastPropose.RecentRuns[1].Decision)
	assert.Equal(t, "wider", judge.lastPropose.Expansion)
}

func TestRunPersona_DedupAgainstCampaign(t *testing.T) {
	store := &fakeStore{
		persona:        &models.Persona{UserID: "u1", Name: "CTOs", Titles: []string{"CTO"}},
		campaignEmails: map[string]bool{"p0@example.com": true, "p1@example.com": true},
	}
	searcher := &fakeSearcher{hits: testHits(6, true)}
	loop := newTestLoop(store, searcher, &fakeProposer{})

	runLog, err := loop.RunPersona(context.Background(), RunPersonaInput{
		UserID: "u1", PersonaID: "p1", LeadsPerRun: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, 4, runLog.LeadsInserted)
	assert.Equal(t, 2, runLog.LeadsDeduped)
}

func TestRunPersona_AutoOutreachQueues(t *testing.T) {
	store := &fakeStore{persona: &models.Persona{UserID: "u1", Name: "CTOs", Titles: []string{"CTO"}}}
	searcher := &fakeSearcher{hits: testHits(5, true)}
	loop := newTestLoop(store, searcher, &fakeProposer{})

	runLog, err := loop.RunPersona(context.Background(), RunPersonaInput{
		UserID: "u1", PersonaID: "p1", LeadsPerRun: 5,
		AutoOutreach: true, SendDelayMinutes: 30, DailySendCap: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, 5, runLog.LeadsInserted)
	assert.Equal(t, 3, runLog.OutreachQueued, "daily cap limits queued outreach")
	for _, job := range store.outreachJobs {
		assert.Equal(t, 1, job.Step)
		assert.False(t, job.SendAt.Before(time.Now().Add(25*time.Minute)), "send delay applied")
	}
}

// Leads without a resolvable e-mail are discarded, never inserted.
func TestRunPersona_EmaillessDiscarded(t *testing.T) {
	hits := testHits(4, true)
	hits = append(hits, search.Hit{ID: "", Title: "CTO", Location: "Berlin"})

	store := &fakeStore{persona: &models.Persona{UserID: "u1", Name: "CTOs", Titles: []string{"CTO"}}}
	searcher := &fakeSearcher{hits: hits}
	loop := newTestLoop(store, searcher, &fakeProposer{})

	runLog, err := loop.RunPersona(context.Background(), RunPersonaInput{
		UserID: "u1", PersonaID: "p1", LeadsPerRun: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, 4, runLog.LeadsInserted)
	for _, lead := range store.insertedLeads {
		assert.NotEmpty(t, lead.Email)
	}
}
