package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"snowbank/internal/catalog"
	"snowbank/internal/deploy"
	"snowbank/internal/ui"
	"snowbank/pkg/errors"
	"snowbank/pkg/models"
)

var (
	selLayers   []string
	selDomains  []string
	planOffline bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the deployment order of the catalog",
	Long: `List the catalog scripts in deployment order with the objects they create.

With a connection the ledger in the target database is consulted and every
script is marked APPLY, CHANGED or SKIP. --offline skips the connection.`,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
	addSelectionFlags(planCmd)
	planCmd.Flags().BoolVar(&planOffline, "offline", false, "do not connect; every script is APPLY")
}

func addSelectionFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&selLayers, "layers", "l", nil, "layers to include: RAW, AGG, REPORTING, SEMANTIC")
	cmd.Flags().StringSliceVarP(&selDomains, "domains", "d", nil, "domains to include, e.g. CRM,PAY")
}

// selection builds the filter from flags, falling back to the config.
func selection(cfg *models.Config) (catalog.Filter, error) {
	layers, domains := selLayers, selDomains
	if len(layers) == 0 {
		layers = cfg.Deployment.Layers
	}
	if len(domains) == 0 {
		domains = cfg.Deployment.Domains
	}
	f, err := catalog.NewFilter(layers, domains)
	if err != nil {
		return catalog.Filter{}, errors.Wrap(err, errors.ErrCodeInvalidInput, "Invalid layer selection").
			WithSuggestions("Use RAW, AGG, REPORTING or SEMANTIC")
	}
	return f, nil
}

func runPlan(cmd *cobra.Command, args []string) error {
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

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var exec deploy.Executor
	if !planOffline {
		svc, err := connect(ctx, cfg)
		if err != nil {
			return err
		}
		defer svc.Close()
		exec = svc
	}

	d := deploy.New(cat, exec, deploy.Config{Database: cfg.Snowflake.Database, SQLDir: cfg.Deployment.SQLDir})
	items, err := d.Plan(ctx, filter)
	if err != nil {
		return err
	}

	ui.ShowHeader("Deployment plan: " + cfg.Snowflake.Database)
	for _, v := range cat.Lint() {
		ui.ShowWarning(v.String())
	}
	ui.RenderTable(ui.Output, []string{"#", "Layer", "Domain", "Script", "Objects", "Decision"}, planRows(items))

	counts := map[deploy.Decision]int{}
	for _, it := range items {
		counts[it.Decision]++
	}
	printf("\n%d scripts: %d apply, %d changed, %d unchanged\n", len(items),
		counts[deploy.DecisionApply], counts[deploy.DecisionChanged], counts[deploy.DecisionSkip])
	if commit := d.Commit(); commit != "" {
		ui.KeyValue("Source commit", commit)
	}
	ui.KeyValue("Schemas", fmt.Sprint(len(cat.Schemas())))
	if h, err := deploy.NewHistory(cfg.Deployment.HistoryDir); err == nil {
		if last := h.Latest(cfg.Snowflake.Database); last != nil {
			ui.KeyValue("Last deployment", fmt.Sprintf("%s at %s", shortID(last.ID, 8),
				last.StartTime.Local().Format(time.DateTime)))
		}
	}
	return nil
}

func planRows(items []deploy.PlanItem) [][]string {
	rows := make([][]string, 0, len(items))
	for i, it := range items {
		s := it.Script
		rows = append(rows, []string{
			fmt.Sprint(i + 1),
			string(s.Layer),
			s.Domain,
			s.Path,
			objectSummary(s.Objects),
			ui.Status(string(it.Decision)),
		})
	}
	return rows
}

// objectSummary counts created objects per type, e.g. "2 TABLE, 1 VIEW".
func objectSummary(objs []*catalog.Object) string {
	var order []catalog.ObjectType
	counts := map[catalog.ObjectType]int{}
	for _, o := range objs {
		if !o.Type.Creates() {
			continue
		}
		if counts[o.Type] == 0 {
			order = append(order, o.Type)
		}
		counts[o.Type]++
	}
	parts := make([]string, 0, len(order))
	for _, t := range order {
		parts = append(parts, fmt.Sprintf("%d %s", counts[t], t))
	}
	return strings.Join(parts, ", ")
}
