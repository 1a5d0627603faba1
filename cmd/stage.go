package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"snowbank/internal/catalog"
	"snowbank/internal/snowflake"
	"snowbank/internal/ui"
	"snowbank/pkg/errors"
)

type copyFlags struct {
	from       string
	pattern    string
	fileFormat string
	onError    string
	force      bool
}

var stageCopy copyFlags

var stageCmd = &cobra.Command{
	Use:   "stage",
	Short: "Inspect RAW stages and reload files from them",
}

var stageListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the files in the RAW landing stages",
	RunE:  runStageList,
}

var stageCopyCmd = &cobra.Command{
	Use:   "copy <table>",
	Short: "Run COPY INTO for a RAW table immediately",
	Long: `Load staged files into a RAW table without waiting for its task.
Stage, pattern, file format, column list and ON_ERROR default to the COPY INTO
of the table's load task; flags override them. --force reloads files that were
loaded before.`,
	Example: `  snowbank stage copy PAY_RAW_001.PAYI_RAW_TB_TRANSACTIONS --pattern '.*2024-06.*'`,
	Args:    cobra.ExactArgs(1),
	RunE:    runStageCopy,
}

func init() {
	rootCmd.AddCommand(stageCmd)
	stageCmd.AddCommand(stageListCmd, stageCopyCmd)

	stageListCmd.Flags().StringSliceVarP(&selDomains, "domains", "d", nil, "domains to include, e.g. CRM,PAY")

	f := stageCopyCmd.Flags()
	f.StringVar(&stageCopy.from, "from", "", "stage to copy from (default: the load task's stage)")
	f.StringVar(&stageCopy.pattern, "pattern", "", "regular expression on staged file names (default: the load task's)")
	f.StringVar(&stageCopy.fileFormat, "file-format", "", "named file format (default: the load task's)")
	f.StringVar(&stageCopy.onError, "on-error", "", "ON_ERROR option (default: the load task's, else CONTINUE)")
	f.BoolVar(&stageCopy.force, "force", false, "reload files loaded before")
}

// stagesFor returns the catalog stages of the given domains, all when empty.
func stagesFor(cat *catalog.Catalog, domains []string) ([]*catalog.Object, error) {
	known := cat.Domains()
	for _, d := range domains {
		if !slices.Contains(known, strings.ToUpper(d)) {
			return nil, errors.Newf(errors.ErrCodeInvalidInput, "unknown domain %q", d).
				WithSuggestions("Known domains: " + strings.Join(known, ", "))
		}
	}
	var out []*catalog.Object
	for _, s := range cat.ObjectsOfType(catalog.ObjectTypeStage) {
		if len(domains) == 0 || slices.ContainsFunc(domains, func(d string) bool {
			return strings.EqualFold(d, s.Script.Domain)
		}) {
			out = append(out, s)
		}
	}
	return out, nil
}

// stageOf picks the stage declared in the same RAW script as table.
func stageOf(cat *catalog.Catalog, table string) (*catalog.Object, *catalog.Object, error) {
	obj, ok := cat.Lookup(table)
	if !ok || obj.Type != catalog.ObjectTypeTable {
		return nil, nil, errors.Newf(errors.ErrCodeCatalogNotFound, "%s is not a catalog table", table).
			WithSuggestions("Run 'snowbank plan --offline --layers RAW' to see the RAW tables")
	}
	for _, o := range obj.Script.Objects {
		if o.Type == catalog.ObjectTypeStage && o.Schema == obj.Schema {
			return obj, o, nil
		}
	}
	return obj, nil, nil
}

func runStageList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cat, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	stages, err := stagesFor(cat, selDomains)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	svc, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	var rows [][]string
	for _, st := range stages {
		files, err := svc.ListStage(ctx, st.QualifiedName())
		if err != nil {
			return err
		}
		rows = append(rows, stageRows(st, files)...)
	}
	ui.RenderTable(ui.Output, []string{"Domain", "Stage", "File", "Size"}, rows)
	return nil
}

func stageRows(st *catalog.Object, files []snowflake.StageFile) [][]string {
	if len(files) == 0 {
		return [][]string{{st.Script.Domain, st.QualifiedName(), "(empty)", ""}}
	}
	rows := make([][]string, 0, len(files))
	for _, f := range files {
		rows = append(rows, []string{st.Script.Domain, st.QualifiedName(), f.Name, fmt.Sprint(f.Size)})
	}
	return rows
}

func runStageCopy(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cat, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	opts, err := copyOptions(cat, args[0], stageCopy)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	svc, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	res, err := svc.CopyInto(ctx, opts)
	if err != nil {
		return err
	}
	ui.KeyValue("Files", fmt.Sprint(res.Files))
	ui.KeyValue("Rows loaded", fmt.Sprint(res.RowsLoaded))
	if res.Errors > 0 {
		ui.ShowWarning(fmt.Sprintf("%d rows rejected (ON_ERROR = %s)", res.Errors, opts.OnError))
	} else {
		ui.ShowSuccess("Copied into " + opts.Table)
	}
	return nil
}

// copyOptions starts from the table's load task and applies the flags. A
// table without a task loads from the stage declared next to it.
func copyOptions(cat *catalog.Catalog, name string, f copyFlags) (snowflake.CopyOptions, error) {
	table, stage, err := stageOf(cat, name)
	if err != nil {
		return snowflake.CopyOptions{}, err
	}
	opts := snowflake.CopyOptions{Table: table.QualifiedName(), OnError: "CONTINUE"}
	if load, ok := cat.LoadFor(table); ok {
		opts.Columns = load.Columns
		opts.Select = load.Select
		opts.Stage = load.Stage
		opts.Pattern = load.Pattern
		opts.FileFormat = load.FileFormat
		if load.OnError != "" {
			opts.OnError = load.OnError
		}
	} else if stage != nil {
		opts.Stage = stage.QualifiedName()
	}

	if f.from != "" {
		opts.Stage = f.from
	}
	if f.pattern != "" {
		opts.Pattern = f.pattern
	}
	if f.fileFormat != "" {
		opts.FileFormat = f.fileFormat
	}
	if f.onError != "" {
		opts.OnError = f.onError
	}
	opts.Force = f.force

	if opts.Stage == "" {
		return snowflake.CopyOptions{}, errors.Newf(errors.ErrCodeInvalidInput, "no stage declared next to %s", opts.Table).
			WithSuggestions("Pass --from <stage>")
	}
	return opts, nil
}
