package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/leadloop/leadloop-go/internal/metrics"
	"github.com/leadloop/leadloop-go/internal/models"
)

// Store is the persistence surface the dispatcher reads from.
type Store interface {
	QueryGetRunLog(ctx context.Context, userID, id string) (*models.ScheduleRunLog, error)
	QueryGetNotificationSettings(ctx context.Context, userID string) (*models.NotificationSettings, error)
}

// Dispatcher turns finished runs into per-channel deliveries. Channels are
// strictly opt-in and fail independently: a Slack outage never blocks the
// e-mail copy.
type Dispatcher struct {
	store   Store
	slack   *SlackSender
	email   *EmailSender
	metrics *metrics.Collector
	logger  *slog.Logger

	actionURLBase   string
	actionURLSecret string
	// Workspace-level webhook used when a user opted into Slack without
	// configuring their own.
	defaultSlackWebhook string
	now                 func() time.Time
}

// NewDispatcher wires the notification pipeline. email may be nil when no
// transactional mail provider is configured; mc may be nil to skip metrics.
func NewDispatcher(store Store, slack *SlackSender, email *EmailSender, actionURLBase, actionURLSecret, defaultSlackWebhook string, mc *metrics.Collector, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		store:               store,
		slack:               slack,
		email:               email,
		metrics:             mc,
		logger:              logger,
		actionURLBase:       actionURLBase,
		actionURLSecret:     actionURLSecret,
		defaultSlackWebhook: defaultSlackWebhook,
		now:                 time.Now,
	}
}

// NotifyRun delivers the outcome of one schedule run. Runs that produced no
// run log (non-sourcing actions, hard failures before the loop started) are
// reported only when they failed.
func (d *Dispatcher) NotifyRun(ctx context.Context, job *models.Schedule, result models.RunResult) {
	settings, err := d.store.QueryGetNotificationSettings(ctx, job.UserID)
	if err != nil {
		d.logger.Warn("could not load notification settings", "user_id", job.UserID, "error", err)
		return
	}
	if settings == nil || (!settings.SlackOptIn && !settings.EmailOptIn) {
		return
	}

	if result.RunLogID == "" {
		if !result.OK {
			d.deliver(ctx, settings, OutcomeActionNeeded,
				`Your schedule "`+job.Name+`" failed: `+result.Error, job.Name, nil)
		}
		return
	}

	log, err := d.store.QueryGetRunLog(ctx, job.UserID, result.RunLogID)
	if err != nil {
		d.logger.Warn("could not load run log for notification",
			"run_log_id", result.RunLogID, "error", err)
		return
	}

	outcome := Classify(log)

	var actionURL string
	if d.actionURLBase != "" && d.actionURLSecret != "" {
		actionURL = SignActionURL(d.actionURLBase, d.actionURLSecret,
			job.UserID, result.RunLogID, "review", d.now())
	}

	vars := Variables(job.Name, log, actionURL)
	message := RenderMessage(outcome, vars)

	var buttons []SlackButton
	if actionURL != "" {
		buttons = append(buttons, SlackButton{Label: "Review run", URL: actionURL})
	}

	d.deliver(ctx, settings, outcome, message, job.Name, buttons)
}

// deliver sends one message to every opted-in channel independently.
func (d *Dispatcher) deliver(ctx context.Context, settings *models.NotificationSettings, outcome Outcome, message, scheduleName string, buttons []SlackButton) {
	webhook := settings.SlackWebhookURL
	if webhook == "" {
		webhook = d.defaultSlackWebhook
	}
	if settings.SlackOptIn && webhook != "" && d.slack != nil {
		start := time.Now()
		if err := d.slack.Send(ctx, webhook, message, buttons); err != nil {
			d.recordFailure()
			d.logger.Warn("slack delivery failed", "error", err)
		} else {
			d.recordTiming(start)
		}
	}
	if settings.EmailOptIn && settings.Email != "" && d.email != nil {
		start := time.Now()
		if err := d.email.Send(ctx, settings.Email, Subject(outcome, scheduleName), message); err != nil {
			d.recordFailure()
			d.logger.Warn("email delivery failed", "error", err)
		} else {
			d.recordTiming(start)
		}
	}
}

func (d *Dispatcher) recordFailure() {
	if d.metrics != nil {
		d.metrics.RecordFailure(metrics.OpNotify)
	}
}

func (d *Dispatcher) recordTiming(start time.Time) {
	if d.metrics != nil {
		d.metrics.RecordTiming(metrics.OpNotify, time.Since(start))
	}
}
