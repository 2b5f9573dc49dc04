package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadloop/leadloop-go/internal/models"
)

type dispatcherStore struct {
	settings *models.NotificationSettings
	runLog   *models.ScheduleRunLog
}

func (s *dispatcherStore) QueryGetRunLog(ctx context.Context, userID, id string) (*models.ScheduleRunLog, error) {
	return s.runLog, nil
}

func (s *dispatcherStore) QueryGetNotificationSettings(ctx context.Context, userID string) (*models.NotificationSettings, error) {
	return s.settings, nil
}

// capture records delivered payloads from both channels.
type capture struct {
	slackBodies []map[string]any
	emailBodies []map[string]any
}

func newCaptureServers(t *testing.T, c *capture) (slackURL string, email *EmailSender) {
	t.Helper()

	slackSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var m map[string]any
		require.NoError(t, json.Unmarshal(body, &m))
		c.slackBodies = append(c.slackBodies, m)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(slackSrv.Close)

	emailSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer mail-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		var m map[string]any
		require.NoError(t, json.Unmarshal(body, &m))
		c.emailBodies = append(c.emailBodies, m)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(emailSrv.Close)

	return slackSrv.URL, NewEmailSender(emailSrv.URL, "mail-key", "alerts@leadloop.dev")
}

func testJob() *models.Schedule {
	return &models.Schedule{UserID: "u1", Name: "Weekly CTOs"}
}

func TestNotifyRun_DeliversToOptedInChannels(t *testing.T) {
	var c capture
	slackURL, email := newCaptureServers(t, &c)

	store := &dispatcherStore{
		settings: &models.NotificationSettings{
			UserID:          "u1",
			SlackOptIn:      true,
			SlackWebhookURL: slackURL,
			EmailOptIn:      true,
			Email:           "user@example.com",
		},
		runLog: &models.ScheduleRunLog{
			Decision:      models.VerdictNotifyUser,
			AttemptsUsed:  4,
			QualityScore:  25,
			FailureMode:   models.FailureTooNarrow,
			LeadsInserted: 0,
			Notify:        true,
		},
	}

	d := NewDispatcher(store, NewSlackSender(), email, "https://app.example", "secret", "", nil, slog.New(slog.DiscardHandler))
	d.NotifyRun(context.Background(), testJob(), models.RunResult{OK: true, RunLogID: "r1"})

	require.Len(t, c.slackBodies, 1)
	require.Len(t, c.emailBodies, 1)

	blocks, ok := c.slackBodies[0]["blocks"].([]any)
	require.True(t, ok, "slack payload carries blocks")
	assert.Len(t, blocks, 2, "section plus actions block with the review button")

	assert.Equal(t, []any{"user@example.com"}, c.emailBodies[0]["to"])
	subject, _ := c.emailBodies[0]["subject"].(string)
	assert.Contains(t, subject, "Weekly CTOs")
}

// Successful runs reach opted-in channels too, with the success copy.
func TestNotifyRun_SuccessDelivered(t *testing.T) {
	var c capture
	slackURL, email := newCaptureServers(t, &c)

	store := &dispatcherStore{
		settings: &models.NotificationSettings{
			UserID: "u1", SlackOptIn: true, SlackWebhookURL: slackURL,
			EmailOptIn: true, Email: "user@example.com",
		},
		runLog: &models.ScheduleRunLog{
			Decision:      models.VerdictAccept,
			AcceptedQuery: &models.QueryParams{Titles: []string{"CTO"}},
			LeadsFound:    40,
			LeadsInserted: 15,
			QualityScore:  80,
		},
	}

	d := NewDispatcher(store, NewSlackSender(), email, "", "", "", nil, slog.New(slog.DiscardHandler))
	d.NotifyRun(context.Background(), testJob(), models.RunResult{OK: true, RunLogID: "r1"})

	require.Len(t, c.slackBodies, 1)
	text, _ := c.slackBodies[0]["text"].(string)
	assert.Contains(t, text, "15 new leads")

	require.Len(t, c.emailBodies, 1)
	subject, _ := c.emailBodies[0]["subject"].(string)
	assert.Contains(t, subject, "Run complete")
}

// A user who opted into Slack without a personal webhook falls back to the
// workspace-level one.
func TestNotifyRun_WorkspaceWebhookFallback(t *testing.T) {
	var c capture
	slackURL, email := newCaptureServers(t, &c)

	store := &dispatcherStore{
		settings: &models.NotificationSettings{UserID: "u1", SlackOptIn: true},
		runLog: &models.ScheduleRunLog{
			Decision:      models.VerdictAccept,
			AcceptedQuery: &models.QueryParams{Titles: []string{"CTO"}},
			LeadsInserted: 12,
		},
	}

	d := NewDispatcher(store, NewSlackSender(), email, "", "", slackURL, nil, slog.New(slog.DiscardHandler))
	d.NotifyRun(context.Background(), testJob(), models.RunResult{OK: true, RunLogID: "r1"})

	require.Len(t, c.slackBodies, 1)
}

func TestNotifyRun_NoOptInsMeansNoDelivery(t *testing.T) {
	var c capture
	slackURL, email := newCaptureServers(t, &c)

	store := &dispatcherStore{
		settings: &models.NotificationSettings{UserID: "u1", SlackWebhookURL: slackURL, Email: "user@example.com"},
		runLog:   &models.ScheduleRunLog{Decision: models.VerdictNotifyUser, Notify: true},
	}

	d := NewDispatcher(store, NewSlackSender(), email, "", "", "", nil, slog.New(slog.DiscardHandler))
	d.NotifyRun(context.Background(), testJob(), models.RunResult{OK: true, RunLogID: "r1"})

	assert.Empty(t, c.slackBodies)
	assert.Empty(t, c.emailBodies)
}

func TestNotifyRun_HardFailureWithoutRunLog(t *testing.T) {
	var c capture
	slackURL, email := newCaptureServers(t, &c)

	store := &dispatcherStore{
		settings: &models.NotificationSettings{
			UserID: "u1", SlackOptIn: true, SlackWebhookURL: slackURL,
		},
	}

	d := NewDispatcher(store, NewSlackSender(), email, "", "", "", nil, slog.New(slog.DiscardHandler))

	// A successful non-sourcing action stays quiet.
	d.NotifyRun(context.Background(), testJob(), models.RunResult{OK: true})
	assert.Empty(t, c.slackBodies)

	// A hard failure before the loop started still reaches the user.
	d.NotifyRun(context.Background(), testJob(), models.RunResult{OK: false, Error: "persona not found"})
	require.Len(t, c.slackBodies, 1)
	text, _ := c.slackBodies[0]["text"].(string)
	assert.Contains(t, text, "persona not found")
}

func TestNotifyRun_SlackFailureDoesNotBlockEmail(t *testing.T) {
	var c capture
	_, email := newCaptureServers(t, &c)

	downSlack := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(downSlack.Close)

	store := &dispatcherStore{
		settings: &models.NotificationSettings{
			UserID: "u1", SlackOptIn: true, SlackWebhookURL: downSlack.URL,
			EmailOptIn: true, Email: "user@example.com",
		},
		runLog: &models.ScheduleRunLog{
			Decision:      models.VerdictAccept,
			AcceptedQuery: &models.QueryParams{Titles: []string{"CTO"}},
			LeadsInserted: 3,
		},
	}

	d := NewDispatcher(store, NewSlackSender(), email, "", "", "", nil, slog.New(slog.DiscardHandler))
	d.NotifyRun(context.Background(), testJob(), models.RunResult{OK: true, RunLogID: "r1"})

	require.Len(t, c.emailBodies, 1, "email must go out even when slack is down")
}
