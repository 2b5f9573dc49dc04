package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leadloop/leadloop-go/internal/models"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs <schedule-id>",
	Short: "Show recent runs for a schedule",
	Long: `Show recent sourcing runs with their verdicts, quality scores, and
lead counts, newest first.

Examples:
  leadloop runs 1a2b3c4d
  leadloop runs 1a2b3c4d --limit 20`,
	Args: cobra.ExactArgs(1),
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 10, "max runs to show")
}

func runRuns(cmd *cobra.Command, args []string) error {
	runs, err := api.ListRuns(context.Background(), args[0], runsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs yet.")
		return nil
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("Runs (%d):", len(runs))))
	fmt.Println()
	for i := range runs {
		printRun(&runs[i])
		fmt.Println()
	}
	return nil
}

func printRun(r *models.ScheduleRunLog) {
	id := models.MustRecordIDString(r.ID)
	verdict := string(r.Decision)
	fmt.Printf("%s  %s  %s\n",
		headerStyle.Render(id),
		r.StartedAt.Local().Format("Jan 2 15:04"),
		statusStyle(verdict).Render(verdict))
	fmt.Printf("  quality: %d  attempts: %d  found: %d  inserted: %d  deduped: %d\n",
		r.QualityScore, r.AttemptsUsed, r.LeadsFound, r.LeadsInserted, r.LeadsDeduped)
	if r.OutreachQueued > 0 {
		fmt.Printf("  outreach queued: %d\n", r.OutreachQueued)
	}
	if r.FailureMode != "" && r.FailureMode != models.FailureOther {
		fmt.Println(warnStyle.Render("  issue: " + string(r.FailureMode)))
	}
	if r.Notify {
		fmt.Println(errorStyle.Render("  needs review"))
	}
}
