// Package deploy applies the catalog to a Snowflake database layer by layer,
// keeps the checksum ledger in the warehouse and a run history on disk.
package deploy

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"snowbank/internal/catalog"
	"snowbank/internal/logging"
	"snowbank/internal/sqltext"
	"snowbank/pkg/errors"
)

// Config wires a Deployer.
type Config struct {
	Database string
	// SQLDir is the external SQL checkout; empty means the embedded catalog.
	SQLDir  string
	History *History
	Out     io.Writer
}

// Options control one deployment run.
type Options struct {
	Filter   catalog.Filter
	DryRun   bool
	Force    bool
	SkipLint bool
	// OnScript is called after every script with its outcome.
	OnScript func(ScriptExecution)
}

// Deployer runs catalog scripts against one database.
type Deployer struct {
	catalog  *catalog.Catalog
	exec     Executor
	ledger   *Ledger
	database string
	source   string
	commit   string
	history  *History
	out      io.Writer
	log      zerolog.Logger
}

// New creates a deployer. exec may be nil for offline plans and dry runs.
func New(cat *catalog.Catalog, exec Executor, cfg Config) *Deployer {
	source := cfg.SQLDir
	if source == "" {
		source = "embedded"
	}
	out := cfg.Out
	if out == nil {
		out = io.Discard
	}

	d := &Deployer{
		catalog:  cat,
		exec:     exec,
		database: cfg.Database,
		source:   source,
		commit:   sourceCommit(cfg.SQLDir),
		history:  cfg.History,
		out:      out,
		log:      logging.With("deploy"),
	}
	if exec != nil {
		d.ledger = NewLedger(exec, cfg.Database)
	}
	return d
}

// Commit returns the git commit of the SQL source, if any.
func (d *Deployer) Commit() string {
	return d.commit
}

// Plan returns the scripts selected by f in execution order with the ledger
// decision for each. Without a connection every script is APPLY.
func (d *Deployer) Plan(ctx context.Context, f catalog.Filter) ([]PlanItem, error) {
	scripts, err := d.catalog.Order(f)
	if err != nil {
		return nil, err
	}
	if len(scripts) == 0 {
		return nil, errors.New(errors.ErrCodeCatalogNotFound, "no scripts match the layer and domain selection").
			WithSuggestions("Check --layers and --domains against 'snowbank plan'")
	}

	applied := map[string]string{}
	if d.ledger != nil {
		if applied, err = d.ledger.Applied(ctx); err != nil {
			return nil, err
		}
	}

	items := make([]PlanItem, len(scripts))
	for i, s := range scripts {
		items[i] = PlanItem{Script: s, Decision: DecisionApply}
		if prev, ok := applied[s.Path]; ok {
			items[i].AppliedChecksum = prev
			if prev == s.Checksum {
				items[i].Decision = DecisionSkip
			} else {
				items[i].Decision = DecisionChanged
			}
		}
	}
	return items, nil
}

// Run deploys the selected scripts. The returned record is non-nil whenever
// a run was started, including failed runs.
func (d *Deployer) Run(ctx context.Context, opts Options) (*RunRecord, error) {
	if !opts.SkipLint {
		if err := catalog.LintError(d.catalog.Lint()); err != nil {
			return nil, err
		}
	}
	if d.exec == nil && !opts.DryRun {
		return nil, errors.New(errors.ErrCodeConnectionFailed, "not connected to database").
			WithSuggestions("Use --dry-run to preview without a connection")
	}

	if !opts.DryRun {
		scripts, err := d.catalog.Order(opts.Filter)
		if err != nil {
			return nil, err
		}
		if err := d.prepare(ctx, scripts); err != nil {
			return nil, err
		}
	}

	plan, err := d.Plan(ctx, opts.Filter)
	if err != nil {
		return nil, err
	}

	run := &RunRecord{
		ID:        uuid.NewString(),
		Database:  d.database,
		Source:    d.source,
		Commit:    d.commit,
		DryRun:    opts.DryRun,
		Force:     opts.Force,
		StartTime: time.Now(),
		State:     StateInProgress,
	}
	for _, l := range opts.Filter.Layers {
		run.Layers = append(run.Layers, string(l))
	}
	run.Domains = append(run.Domains, opts.Filter.Domains...)
	d.record(run)

	log := d.log.With().Str("run_id", run.ID).Logger()
	log.Info().Int("scripts", len(plan)).Bool("dry_run", opts.DryRun).Msg("deployment started")

	for i, item := range plan {
		exec, err := d.runScript(ctx, i+1, item, run.ID, opts)
		run.Scripts = append(run.Scripts, exec)
		if opts.OnScript != nil {
			opts.OnScript(exec)
		}

		if err != nil {
			d.finish(run, StateFailed, exec.ErrorMessage)
			log.Error().Err(err).Str("script", exec.Path).Msg("deployment failed")
			return run, errors.Wrap(err, errors.GetErrorCode(err), "deployment stopped at "+exec.Path).
				WithContext("script", exec.Path).
				WithContext("run_id", run.ID)
		}
	}

	state := StateCompleted
	if opts.DryRun {
		state = StateDryRun
	}
	d.finish(run, state, "")

	applied, skipped, _ := run.Counts()
	log.Info().Int("applied", applied).Int("skipped", skipped).Msg("deployment finished")
	return run, nil
}

func (d *Deployer) runScript(ctx context.Context, order int, item PlanItem, runID string, opts Options) (ScriptExecution, error) {
	s := item.Script
	exec := ScriptExecution{
		Path:       s.Path,
		Layer:      string(s.Layer),
		Domain:     s.Domain,
		Order:      order,
		Checksum:   s.Checksum,
		Decision:   item.Decision,
		Statements: len(sqltext.Split(s.Body)),
	}

	if item.Decision == DecisionSkip && !opts.Force {
		exec.Status = StatusSkipped
		d.log.Debug().Str("script", s.Path).Msg("unchanged, skipping")
		if opts.DryRun {
			fmt.Fprintf(d.out, "-- %s: unchanged, skipped\n\n", s.Path)
		}
		return exec, nil
	}

	if opts.DryRun {
		fmt.Fprintf(d.out, "-- %s (%s)\n", s.Path, item.Decision)
		for _, stmt := range sqltext.Split(s.Body) {
			fmt.Fprintf(d.out, "%s;\n", stmt)
		}
		fmt.Fprintln(d.out)
		exec.Status = StatusDryRun
		return exec, nil
	}

	start := time.Now()
	err := d.exec.ExecuteSQL(ctx, s.Body, d.database, "")
	if err == nil {
		err = d.ledger.Record(ctx, Entry{
			Script:       s.Path,
			Checksum:     s.Checksum,
			Layer:        string(s.Layer),
			Domain:       s.Domain,
			DeploymentID: runID,
			GitCommit:    d.commit,
		})
	}
	exec.Duration = time.Since(start)

	if err != nil {
		exec.Status = StatusFailed
		exec.ErrorMessage = err.Error()
		return exec, err
	}
	exec.Status = StatusApplied
	d.log.Info().Str("script", s.Path).Dur("duration", exec.Duration).Msg("script applied")
	return exec, nil
}

// prepare creates the database, every schema the scripts touch and the ledger.
func (d *Deployer) prepare(ctx context.Context, scripts []*catalog.Script) error {
	if d.database != "" {
		stmt := "CREATE DATABASE IF NOT EXISTS " + d.database
		if err := d.exec.Exec(ctx, stmt); err != nil {
			return errors.Wrap(err, errors.ErrCodeSQLExecution, "failed to create database "+d.database)
		}
	}

	for _, schema := range schemasOf(scripts) {
		name := schema
		if d.database != "" {
			name = d.database + "." + schema
		}
		if err := d.exec.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+name); err != nil {
			return errors.Wrap(err, errors.ErrCodeSQLExecution, "failed to create schema "+name)
		}
	}

	return d.ledger.Ensure(ctx)
}

func schemasOf(scripts []*catalog.Script) []string {
	seen := make(map[string]bool)
	for _, s := range scripts {
		for _, o := range s.Objects {
			switch {
			case o.Type == catalog.ObjectTypeSchema:
				seen[o.Name] = true
			case o.Schema != "":
				seen[o.Schema] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, strings.ToUpper(name))
	}
	sort.Strings(out)
	return out
}

func (d *Deployer) record(run *RunRecord) {
	if d.history == nil {
		return
	}
	if err := d.history.Record(run); err != nil {
		d.log.Warn().Err(err).Msg("failed to record run history")
	}
}

func (d *Deployer) finish(run *RunRecord, state RunState, message string) {
	now := time.Now()
	apply := func(r *RunRecord) {
		r.EndTime = &now
		r.State = state
		r.ErrorMessage = message
		r.Scripts = run.Scripts
	}
	apply(run)

	if d.history == nil {
		return
	}
	if err := d.history.Update(run.ID, apply); err != nil {
		d.log.Warn().Err(err).Msg("failed to update run history")
	}
}
