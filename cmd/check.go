package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"snowbank/internal/quality"
	"snowbank/internal/ui"
)

var checkFlags struct {
	checks    []string
	list      bool
	parallel  int
	tolerance float64
	fail      bool
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run data quality checks against the warehouse",
	Long: `Run the data quality checks. Each check counts violating rows; zero
means PASS. With quality.fail_on_violation (or --fail) a failing ERROR check
makes the command exit non-zero.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	f := checkCmd.Flags()
	f.StringSliceVar(&checkFlags.checks, "checks", nil, "check ids to run (default all or quality.checks)")
	f.BoolVar(&checkFlags.list, "list", false, "list the available checks and exit")
	f.IntVarP(&checkFlags.parallel, "parallel", "p", 4, "checks run concurrently")
	f.Float64Var(&checkFlags.tolerance, "tolerance", 0, "reconciliation tolerance (default quality.tolerance)")
	f.BoolVar(&checkFlags.fail, "fail", false, "exit non-zero when an ERROR check fails")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tolerance := cfg.Quality.Tolerance
	if cmd.Flags().Changed("tolerance") {
		tolerance = checkFlags.tolerance
	}
	ids := checkFlags.checks
	if len(ids) == 0 {
		ids = cfg.Quality.Checks
	}
	checks, err := quality.Select(quality.Builtin(tolerance), ids)
	if err != nil {
		return err
	}

	if checkFlags.list {
		ui.RenderTable(ui.Output, []string{"ID", "Domain", "Severity", "Description"}, checkListRows(checks))
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	ui.ShowHeader("Data quality: " + cfg.Snowflake.Database)
	report := quality.NewRunner(svc, checkFlags.parallel).Run(ctx, checks)
	ui.RenderTable(ui.Output, []string{"ID", "Domain", "Severity", "Status", "Violations", "Duration"}, reportRows(report))

	pass, fail, errored := report.Counts()
	printf("\n%d passed, %d failed, %d errored in %s\n", pass, fail, errored, report.Duration.Round(time.Millisecond))
	for _, res := range report.Results {
		if res.Err != nil {
			ui.ShowWarning(fmt.Sprintf("%s: %v", res.Check.ID, res.Err))
		}
	}

	if cfg.Quality.FailOnViolation || checkFlags.fail {
		return report.Err()
	}
	return nil
}

func checkListRows(checks []quality.Check) [][]string {
	rows := make([][]string, 0, len(checks))
	for _, c := range checks {
		rows = append(rows, []string{c.ID, c.Domain, string(c.Severity), c.Description})
	}
	return rows
}

func reportRows(r *quality.Report) [][]string {
	rows := make([][]string, 0, len(r.Results))
	for _, res := range r.Results {
		rows = append(rows, []string{
			res.Check.ID,
			res.Check.Domain,
			string(res.Check.Severity),
			ui.Status(res.Status),
			fmt.Sprint(res.Violations),
			res.Duration.Round(time.Millisecond).String(),
		})
	}
	return rows
}
