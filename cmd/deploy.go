package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"snowbank/internal/deploy"
	"snowbank/internal/ui"
	"snowbank/pkg/errors"
)

var (
	deployDryRun   bool
	deployForce    bool
	deployYes      bool
	deploySkipLint bool
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy the catalog to Snowflake",
	Long: `Create the warehouse objects layer by layer: RAW, AGG, REPORTING, SEMANTIC.

Scripts whose checksum is already recorded in the ledger are skipped unless
--force is given. --dry-run prints the statements without connecting.`,
	RunE: runDeploy,
}

func init() {
	rootCmd.AddCommand(deployCmd)
	addSelectionFlags(deployCmd)
	deployCmd.Flags().BoolVar(&deployDryRun, "dry-run", false, "print statements without executing")
	deployCmd.Flags().BoolVar(&deployForce, "force", false, "re-apply scripts that are already recorded")
	deployCmd.Flags().BoolVarP(&deployYes, "yes", "y", false, "do not ask for confirmation")
	deployCmd.Flags().BoolVar(&deploySkipLint, "skip-lint", false, "deploy even when the catalog has lint violations")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cat, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	filter, err := selection(cfg)
	if err != nil {
		return err
	}
	timeout, err := parseDuration("deployment.timeout", cfg.Deployment.Timeout, 0)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	dryRun := deployDryRun || cfg.Deployment.DryRun
	history, err := deploy.NewHistory(cfg.Deployment.HistoryDir)
	if err != nil {
		return err
	}

	var exec deploy.Executor
	if !dryRun {
		svc, err := connect(ctx, cfg)
		if err != nil {
			return err
		}
		defer svc.Close()
		exec = svc
	}

	d := deploy.New(cat, exec, deploy.Config{
		Database: cfg.Snowflake.Database,
		SQLDir:   cfg.Deployment.SQLDir,
		History:  history,
		Out:      ui.Output,
	})

	ui.ShowHeader("Deploying to " + cfg.Snowflake.Database)
	plan, err := d.Plan(ctx, filter)
	if err != nil {
		return err
	}
	pending := 0
	for _, it := range plan {
		if it.Decision != deploy.DecisionSkip || deployForce || cfg.Deployment.Force {
			pending++
		}
	}
	ui.KeyValue("Scripts", fmt.Sprint(len(plan)))
	ui.KeyValue("To apply", fmt.Sprint(pending))
	if commit := d.Commit(); commit != "" {
		ui.KeyValue("Source commit", commit)
	}

	if !dryRun && pending == 0 {
		ui.ShowSuccess("Everything is up to date")
		return nil
	}
	if !dryRun && cfg.Deployment.Confirm && !deployYes {
		ok, err := ui.Confirm(fmt.Sprintf("Apply %d scripts to %s?", pending, cfg.Snowflake.Database), false)
		if stderrors.Is(err, ui.ErrNotInteractive) {
			return errors.New(errors.ErrCodeInvalidInput, "Deployment needs confirmation").
				WithSuggestions("Pass --yes to deploy without a prompt")
		}
		if err != nil {
			return err
		}
		if !ok {
			ui.ShowInfo("Deployment cancelled")
			return nil
		}
	}

	var bar *ui.ProgressBar
	if !dryRun {
		bar = ui.NewProgressBar("Deployment", len(plan))
	}
	run, err := d.Run(ctx, deploy.Options{
		Filter:   filter,
		DryRun:   dryRun,
		Force:    deployForce || cfg.Deployment.Force,
		SkipLint: deploySkipLint,
		OnScript: func(s deploy.ScriptExecution) {
			if bar != nil {
				bar.Step(s.Path, scriptOutcome(s.Status))
			}
		},
	})
	if bar != nil && run != nil {
		bar.Finish()
	}
	if run != nil {
		printf("\n")
		ui.RenderTable(ui.Output, []string{"#", "Script", "Decision", "Status", "Statements", "Duration"}, scriptRows(run.Scripts))
		ui.KeyValue("Run", run.ID)
	}
	if err != nil {
		return err
	}

	applied, skipped, _ := run.Counts()
	if dryRun {
		ui.ShowInfo(fmt.Sprintf("Dry run: %d scripts printed, nothing executed", len(run.Scripts)))
		return nil
	}
	ui.ShowSuccess(fmt.Sprintf("%d applied, %d unchanged", applied, skipped))
	return nil
}

func scriptOutcome(status string) ui.Outcome {
	switch status {
	case deploy.StatusFailed:
		return ui.Failed
	case deploy.StatusSkipped, deploy.StatusDryRun:
		return ui.Skipped
	default:
		return ui.Succeeded
	}
}

func scriptRows(scripts []deploy.ScriptExecution) [][]string {
	rows := make([][]string, 0, len(scripts))
	for _, s := range scripts {
		dur := ""
		if s.Duration > 0 {
			dur = s.Duration.Round(time.Millisecond).String()
		}
		rows = append(rows, []string{
			fmt.Sprint(s.Order),
			s.Path,
			string(s.Decision),
			ui.Status(s.Status),
			fmt.Sprint(s.Statements),
			dur,
		})
	}
	return rows
}
