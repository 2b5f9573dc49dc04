package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/leadloop/leadloop-go/internal/models"
)

var (
	createFile   string
	createName   string
	createAction string
	createCron   string
	createRunAt  string

	createPersonaID    string
	createCampaignID   string
	createLeadsPerRun  int
	createAutoOutreach bool
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage sourcing schedules",
	Long: `Create, list, pause, resume, run, and delete schedules.

Examples:
  leadloop schedule create -f schedule.yaml
  leadloop schedule create --name "Weekly CTOs" --action source_via_persona --persona p1 --cron "0 9 * * 1"
  leadloop schedule list
  leadloop schedule pause 1a2b3c4d
  leadloop schedule run 1a2b3c4d`,
}

var scheduleCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a schedule from flags or a YAML file",
	RunE:  runScheduleCreate,
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List schedules",
	RunE:  runScheduleList,
}

var schedulePauseCmd = &cobra.Command{
	Use:   "pause <id>",
	Short: "Pause a schedule",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setStatus(args[0], models.SchedulePaused) },
}

var scheduleResumeCmd = &cobra.Command{
	Use:   "resume <id>",
	Short: "Resume a paused schedule",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setStatus(args[0], models.ScheduleActive) },
}

var scheduleDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := api.DeleteSchedule(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("Deleted " + args[0]))
		return nil
	},
}

var scheduleRunCmd = &cobra.Command{
	Use:   "run <id>",
	Short: "Trigger a schedule on the next scheduler tick",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := api.ForceRun(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("Queued " + args[0]))
		fmt.Println(hintStyle.Render("The run starts on the next scheduler tick."))
		return nil
	},
}

func init() {
	scheduleCreateCmd.Flags().StringVarP(&createFile, "file", "f", "", "YAML file with the schedule definition")
	scheduleCreateCmd.Flags().StringVar(&createName, "name", "", "schedule name")
	scheduleCreateCmd.Flags().StringVar(&createAction, "action", string(models.ActionSourceViaPersona), "action type")
	scheduleCreateCmd.Flags().StringVar(&createCron, "cron", "", "cron expression for recurring schedules")
	scheduleCreateCmd.Flags().StringVar(&createRunAt, "at", "", "RFC3339 time for one-time schedules")
	scheduleCreateCmd.Flags().StringVar(&createPersonaID, "persona", "", "persona id")
	scheduleCreateCmd.Flags().StringVar(&createCampaignID, "campaign", "", "campaign id")
	scheduleCreateCmd.Flags().IntVar(&createLeadsPerRun, "leads", 0, "leads per run (default 25)")
	scheduleCreateCmd.Flags().BoolVar(&createAutoOutreach, "outreach", false, "queue outreach for inserted leads")

	scheduleCmd.AddCommand(scheduleCreateCmd)
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(schedulePauseCmd)
	scheduleCmd.AddCommand(scheduleResumeCmd)
	scheduleCmd.AddCommand(scheduleDeleteCmd)
	scheduleCmd.AddCommand(scheduleRunCmd)
}

// scheduleSpec is the YAML shape accepted by `schedule create -f`.
type scheduleSpec struct {
	Name         string         `yaml:"name"`
	Action       string         `yaml:"action"`
	PersonaID    string         `yaml:"persona_id"`
	CampaignID   string         `yaml:"campaign_id"`
	Cron         string         `yaml:"cron"`
	RunAt        string         `yaml:"run_at"`
	LeadsPerRun  int            `yaml:"leads_per_run"`
	AutoOutreach bool           `yaml:"auto_outreach"`
	SendDelayMin int            `yaml:"send_delay_minutes"`
	DailySendCap int            `yaml:"daily_send_cap"`
	Payload      map[string]any `yaml:"payload"`
}

func runScheduleCreate(cmd *cobra.Command, args []string) error {
	spec := scheduleSpec{
		Name:         createName,
		Action:       createAction,
		PersonaID:    createPersonaID,
		CampaignID:   createCampaignID,
		Cron:         createCron,
		RunAt:        createRunAt,
		LeadsPerRun:  createLeadsPerRun,
		AutoOutreach: createAutoOutreach,
	}
	if createFile != "" {
		data, err := os.ReadFile(createFile)
		if err != nil {
			return fmt.Errorf("read spec file: %w", err)
		}
		if err := yaml.Unmarshal(data, &spec); err != nil {
			return fmt.Errorf("parse spec file: %w", err)
		}
	}

	in := models.ScheduleInput{
		Name:             spec.Name,
		ActionType:       models.ActionKind(spec.Action),
		AutoOutreach:     spec.AutoOutreach,
		LeadsPerRun:      spec.LeadsPerRun,
		SendDelayMinutes: spec.SendDelayMin,
		DailySendCap:     spec.DailySendCap,
		Payload:          spec.Payload,
	}
	if spec.PersonaID != "" {
		in.PersonaID = &spec.PersonaID
	}
	if spec.CampaignID != "" {
		in.CampaignID = &spec.CampaignID
	}
	if spec.Cron != "" {
		in.ScheduleKind = models.ScheduleRecurring
		in.CronExpr = &spec.Cron
	} else {
		in.ScheduleKind = models.ScheduleOneTime
		if spec.RunAt != "" {
			t, err := time.Parse(time.RFC3339, spec.RunAt)
			if err != nil {
				return fmt.Errorf("invalid run_at %q: %w", spec.RunAt, err)
			}
			in.RunAt = &t
		}
	}

	s, err := api.CreateSchedule(context.Background(), in)
	if err != nil {
		return err
	}

	fmt.Println(successStyle.Render("Created " + models.MustRecordIDString(s.ID)))
	printSchedule(s)
	return nil
}

func runScheduleList(cmd *cobra.Command, args []string) error {
	schedules, err := api.ListSchedules(context.Background())
	if err != nil {
		return err
	}
	if len(schedules) == 0 {
		fmt.Println("No schedules found.")
		return nil
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("Schedules (%d):", len(schedules))))
	fmt.Println()
	for i := range schedules {
		printSchedule(&schedules[i])
		fmt.Println()
	}
	return nil
}

func printSchedule(s *models.Schedule) {
	id := models.MustRecordIDString(s.ID)
	fmt.Printf("%s  %s  %s\n", headerStyle.Render(id), s.Name,
		statusStyle(string(s.Status)).Render(string(s.Status)))
	fmt.Printf("  action: %s", s.ActionType)
	if s.CronExpr != nil {
		fmt.Printf("  cron: %q", *s.CronExpr)
	}
	if s.NextRunAt != nil {
		fmt.Printf("  next: %s", s.NextRunAt.Local().Format("Jan 2 15:04"))
	}
	if s.LastRunAt != nil {
		fmt.Printf("  last: %s", s.LastRunAt.Local().Format("Jan 2 15:04"))
	}
	fmt.Println()
	if s.LastQualityScore != nil {
		fmt.Println(hintStyle.Render(fmt.Sprintf("  last quality: %d, consecutive failures: %d",
			*s.LastQualityScore, s.ConsecutiveFailures)))
	}
}

func setStatus(id string, status models.ScheduleStatus) error {
	s, err := api.UpdateSchedule(context.Background(), id, models.ScheduleUpdate{Status: &status})
	if err != nil {
		return err
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("%s is now %s", models.MustRecordIDString(s.ID), s.Status)))
	return nil
}
