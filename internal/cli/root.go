// Package cli provides the command-line interface for leadloop.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/leadloop/leadloop-go/internal/client"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	serverURL string
	apiToken  string

	// REST client shared by all commands.
	api *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "leadloop",
	Short: "Agentic lead sourcing scheduler",
	Long: `Leadloop schedules and runs agentic lead-sourcing jobs: each run
searches a people database for a persona, judges result quality with an
LLM, iterates the query up to four times, and inserts enriched leads
into a campaign.

Commands talk to a running leadloop server over its REST API.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		api = client.New(serverURL, apiToken)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (default $LEADLOOP_SERVER_URL or http://localhost:8486)")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", "", "API token (default $LEADLOOP_API_TOKEN)")

	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(notifyCmd)
}
