package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"snowbank/internal/generator"
	"snowbank/internal/ui"
	"snowbank/pkg/models"
)

var genFlags struct {
	customers  int
	anomaly    float64
	period     int
	start      string
	output     string
	seed       uint64
	swiftPct   float64
	pepRecords int
	fiTrades   int
	cmdTrades  int
	skipTrades bool
	skipSwift  bool
	showFiles  bool
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate synthetic bank data",
	Long: `Write a deterministic synthetic data set for every domain: customers,
addresses, accounts, FX rates, payments with injected anomalies, equity,
fixed income and commodity trades, SWIFT pacs.008/pacs.002 pairs and a PEP list.

The same --seed and configuration always produce the same files.`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	f := generateCmd.Flags()
	f.IntVar(&genFlags.customers, "customers", 0, "number of customers")
	f.Float64Var(&genFlags.anomaly, "anomaly-rate", 0, "percentage of customers with anomalous payments")
	f.IntVar(&genFlags.period, "period", 0, "months of history")
	f.StringVar(&genFlags.start, "start-date", "", "first day, YYYY-MM-DD")
	f.StringVarP(&genFlags.output, "output", "o", "", "output directory")
	f.Uint64Var(&genFlags.seed, "seed", 0, "random seed")
	f.Float64Var(&genFlags.swiftPct, "swift-percentage", 0, "percentage of customers with SWIFT messages")
	f.IntVar(&genFlags.pepRecords, "pep-records", 0, "number of PEP records")
	f.IntVar(&genFlags.fiTrades, "fixed-income-trades", 0, "number of fixed income trades")
	f.IntVar(&genFlags.cmdTrades, "commodity-trades", 0, "number of commodity trades")
	f.BoolVar(&genFlags.skipTrades, "skip-trades", false, "do not generate trading data")
	f.BoolVar(&genFlags.skipSwift, "skip-swift", false, "do not generate SWIFT messages")
	f.BoolVar(&genFlags.showFiles, "files", false, "list every written file")
}

// applyGenerateFlags overlays explicitly set flags onto the config.
func applyGenerateFlags(flags *pflag.FlagSet, g *models.Generator) {
	if flags.Changed("customers") {
		g.Customers = genFlags.customers
	}
	if flags.Changed("anomaly-rate") {
		g.AnomalyPercentage = genFlags.anomaly
	}
	if flags.Changed("period") {
		g.PeriodMonths = genFlags.period
	}
	if flags.Changed("start-date") {
		g.StartDate = genFlags.start
	}
	if flags.Changed("output") {
		g.OutputDir = genFlags.output
	}
	if flags.Changed("seed") {
		g.Seed = genFlags.seed
	}
	if flags.Changed("swift-percentage") {
		g.SwiftPercentage = genFlags.swiftPct
	}
	if flags.Changed("pep-records") {
		g.PEPRecords = genFlags.pepRecords
	}
	if flags.Changed("fixed-income-trades") {
		g.FixedIncomeTrades = genFlags.fiTrades
	}
	if flags.Changed("commodity-trades") {
		g.CommodityTrades = genFlags.cmdTrades
	}
	if flags.Changed("skip-trades") {
		g.SkipTrades = genFlags.skipTrades
	}
	if flags.Changed("skip-swift") {
		g.SkipSwift = genFlags.skipSwift
	}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyGenerateFlags(cmd.Flags(), &cfg.Generator)

	gen, err := generator.New(cfg.Generator, generator.WithProgress(func(stage string) {
		printf("  %s %s\n", ui.ColorSuccess("✓"), stage)
	}))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ui.ShowHeader("Generating synthetic data")
	summary, err := gen.Run(ctx)
	if err != nil {
		return err
	}

	printf("\n")
	ui.RenderTable(ui.Output, []string{"Item", "Value"}, summary.Rows())
	if genFlags.showFiles {
		printf("\n")
		for _, f := range summary.Files {
			printf("  %s\n", f)
		}
	}
	printf("\n")
	ui.ShowSuccess(fmt.Sprintf("%d files written to %s", len(summary.Files), summary.OutputDir))
	ui.ShowInfo("Land them with: snowbank load --dir " + summary.OutputDir)
	return nil
}
