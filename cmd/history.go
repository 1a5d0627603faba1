package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"snowbank/internal/deploy"
	"snowbank/internal/ui"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recent deployment runs",
	Long:  "Without arguments list recent runs. With a run id (or a unique prefix) show its scripts.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	h, err := deploy.NewHistory(cfg.Deployment.HistoryDir)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		run, err := h.Get(args[0])
		if err != nil {
			return err
		}
		showRun(run)
		return nil
	}

	runs := h.List(historyLimit)
	if len(runs) == 0 {
		ui.ShowInfo("No deployments recorded in " + h.Dir())
		return nil
	}
	ui.RenderTable(ui.Output, []string{"Run", "Started", "Database", "State", "Applied", "Skipped", "Failed", "Commit"}, historyRows(runs))
	return nil
}

func historyRows(runs []*deploy.RunRecord) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		applied, skipped, failed := r.Counts()
		rows = append(rows, []string{
			shortID(r.ID, 8),
			r.StartTime.Local().Format(time.DateTime),
			r.Database,
			ui.Status(runStatus(r.State)),
			fmt.Sprint(applied),
			fmt.Sprint(skipped),
			fmt.Sprint(failed),
			shortID(r.Commit, 7),
		})
	}
	return rows
}

func runStatus(s deploy.RunState) string {
	switch s {
	case deploy.StateCompleted:
		return "SUCCESS"
	case deploy.StateFailed:
		return "FAILED"
	case deploy.StateDryRun:
		return "DRY-RUN"
	default:
		return "PENDING"
	}
}

func showRun(r *deploy.RunRecord) {
	ui.ShowHeader("Run " + r.ID)
	ui.KeyValue("Database", r.Database)
	ui.KeyValue("Source", r.Source)
	if r.Commit != "" {
		ui.KeyValue("Commit", r.Commit)
	}
	ui.KeyValue("Started", r.StartTime.Local().Format(time.DateTime))
	if r.EndTime != nil {
		ui.KeyValue("Duration", r.EndTime.Sub(r.StartTime).Round(time.Millisecond).String())
	}
	ui.KeyValue("State", ui.Status(runStatus(r.State)))
	if r.ErrorMessage != "" {
		ui.KeyValue("Error", r.ErrorMessage)
	}
	printf("\n")
	ui.RenderTable(ui.Output, []string{"#", "Script", "Decision", "Status", "Statements", "Duration"}, scriptRows(r.Scripts))
}

func shortID(id string, n int) string {
	if len(id) <= n {
		return id
	}
	return id[:n]
}
