package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"snowbank/internal/landing"
	"snowbank/internal/ui"
	"snowbank/pkg/models"
)

var loadFlags struct {
	dir          string
	target       string
	localDir     string
	executeTasks bool
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Land generated files in the RAW stages",
	Long: `Upload a generated data set to the configured landing target.

stage  PUT into the internal stage of each domain, then optionally run the
       RAW load tasks (landing.execute_tasks)
s3     upload to landing.s3.bucket under landing.s3.prefix
gcs    upload to landing.gcs.bucket under landing.gcs.prefix
local  copy into landing.local_dir`,
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)

	f := loadCmd.Flags()
	f.StringVar(&loadFlags.dir, "dir", "", "generated data directory (default generator.output_dir)")
	f.StringVarP(&loadFlags.target, "target", "t", "", "landing target: stage, s3, gcs, local")
	f.StringVar(&loadFlags.localDir, "local-dir", "", "destination for the local target")
	f.BoolVar(&loadFlags.executeTasks, "execute-tasks", false, "run the RAW load tasks after a stage upload")
}

func applyLoadFlags(cmd *cobra.Command, l *models.Landing) {
	flags := cmd.Flags()
	if flags.Changed("target") {
		l.Target = loadFlags.target
	}
	if flags.Changed("local-dir") {
		l.LocalDir = loadFlags.localDir
	}
	if flags.Changed("execute-tasks") {
		l.ExecuteTasks = loadFlags.executeTasks
	}
}

func runLoad(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyLoadFlags(cmd, &cfg.Landing)

	dir := loadFlags.dir
	if dir == "" {
		dir = cfg.Generator.OutputDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var (
		stager landing.Stager
		opts   = landing.Options{Progress: true}
	)
	if strings.EqualFold(cfg.Landing.Target, landing.TargetStage) {
		svc, err := connect(ctx, cfg)
		if err != nil {
			return err
		}
		defer svc.Close()
		stager = svc
		if cfg.Landing.ExecuteTasks {
			opts.Tasks = svc
		}
	}

	router := landing.NewRouter()
	sink, err := landing.NewSink(ctx, cfg.Landing, stager, router)
	if err != nil {
		return err
	}
	if c, ok := sink.(io.Closer); ok {
		defer c.Close()
	}

	ui.ShowHeader("Landing " + dir)
	ui.KeyValue("Target", sink.Name())

	res, err := landing.NewLoader(sink, router).Load(ctx, dir, opts)
	if res != nil {
		showLoadResult(res)
	}
	if err != nil {
		return err
	}
	ui.ShowSuccess(fmt.Sprintf("%d files landed in %s", len(res.Uploaded), res.Duration.Round(time.Millisecond)))
	return nil
}

func showLoadResult(res *landing.Result) {
	if len(res.Failed) > 0 {
		keys := make([]string, 0, len(res.Failed))
		for k := range res.Failed {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		rows := make([][]string, 0, len(keys))
		for _, k := range keys {
			rows = append(rows, []string{k, ui.Status("FAILED"), res.Failed[k].Error()})
		}
		printf("\n")
		ui.RenderTable(ui.Output, []string{"File", "Status", "Error"}, rows)
	}
	if len(res.Skipped) > 0 {
		ui.KeyValue("Not routed", fmt.Sprint(len(res.Skipped)))
	}
	for _, t := range res.Tasks {
		ui.KeyValue("Executed task", t)
	}
}
