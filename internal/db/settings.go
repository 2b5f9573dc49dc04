package db

import (
	"context"
	"fmt"

	"github.com/leadloop/leadloop-go/internal/models"
)

// QueryGetNotificationSettings returns a user's delivery preferences, or
// nil when the user has never configured any.
func (c *Client) QueryGetNotificationSettings(ctx context.Context, userID string) (*models.NotificationSettings, error) {
	results, err := query[[]models.NotificationSettings](ctx, c, `
		SELECT * FROM notification_settings WHERE user_id = $user_id LIMIT 1
	`, map[string]any{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("get notification settings: %w", err)
	}

	rows := firstResult(results)
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// QueryUpsertNotificationSettings creates or replaces a user's preferences.
func (c *Client) QueryUpsertNotificationSettings(ctx context.Context, s *models.NotificationSettings) error {
	_, err := query[any](ctx, c, `
		UPSERT type::record("notification_settings", $user_id) SET
			user_id = $user_id,
			slack_webhook_url = $slack_webhook_url,
			slack_opt_in = $slack_opt_in,
			email = $email,
			email_opt_in = $email_opt_in
	`, map[string]any{
		"user_id":           s.UserID,
		"slack_webhook_url": s.SlackWebhookURL,
		"slack_opt_in":      s.SlackOptIn,
		"email":             s.Email,
		"email_opt_in":      s.EmailOptIn,
	})
	if err != nil {
		return fmt.Errorf("upsert notification settings: %w", err)
	}
	return nil
}
