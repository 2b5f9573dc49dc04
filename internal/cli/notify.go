package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leadloop/leadloop-go/internal/models"
)

var (
	notifySlackWebhook string
	notifySlackOptIn   bool
	notifyEmail        string
	notifyEmailOptIn   bool
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Configure run notifications",
	Long: `Save notification delivery settings. Channels are opt-in; a channel
without its opt-in flag stays silent even when an address is set.

Examples:
  leadloop notify --slack-webhook https://hooks.slack.com/... --slack
  leadloop notify --email me@example.com --email-opt-in`,
	RunE: runNotify,
}

func init() {
	notifyCmd.Flags().StringVar(&notifySlackWebhook, "slack-webhook", "", "Slack incoming webhook URL")
	notifyCmd.Flags().BoolVar(&notifySlackOptIn, "slack", false, "enable Slack notifications")
	notifyCmd.Flags().StringVar(&notifyEmail, "email", "", "notification e-mail address")
	notifyCmd.Flags().BoolVar(&notifyEmailOptIn, "email-opt-in", false, "enable e-mail notifications")
}

func runNotify(cmd *cobra.Command, args []string) error {
	err := api.UpsertNotificationSettings(context.Background(), models.NotificationSettings{
		SlackWebhookURL: notifySlackWebhook,
		SlackOptIn:      notifySlackOptIn,
		Email:           notifyEmail,
		EmailOptIn:      notifyEmailOptIn,
	})
	if err != nil {
		return err
	}
	fmt.Println(successStyle.Render("Notification settings saved."))
	return nil
}
