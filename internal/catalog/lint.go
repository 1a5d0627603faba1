package catalog

import (
	"fmt"
	"strings"

	"snowbank/pkg/errors"
)

// Lint rule identifiers.
const (
	RuleTaskCopy         = "task-copy-on-error"
	RuleTaskSchedule     = "task-schedule"
	RuleDynamicTableLag  = "dynamic-table-lag"
	RuleCurrentView      = "scd2-current-filter"
	RuleRawNoDynamic     = "raw-no-dynamic-table"
	RuleSemanticOnly     = "semantic-views-only"
	RuleDuplicate        = "duplicate-object"
	RuleLayerInversion   = "layer-inversion"
	RuleForwardReference = "forward-reference"
	RuleUnscoped         = "unscoped-object"
)

// Violation is one policy breach found by Lint.
type Violation struct {
	Rule    string
	Object  string
	Script  string
	Message string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s [%s] %s: %s", v.Script, v.Rule, v.Object, v.Message)
}

// Lint checks the deployment policies of every script.
func (c *Catalog) Lint() []Violation {
	var out []Violation
	report := func(o *Object, rule, format string, args ...interface{}) {
		out = append(out, Violation{
			Rule:    rule,
			Object:  o.String(),
			Script:  o.Script.Path,
			Message: fmt.Sprintf(format, args...),
		})
	}

	for _, o := range c.duplicates {
		first := c.objects[o.QualifiedName()]
		report(o, RuleDuplicate, "already created in %s", first.Script.Path)
	}

	for _, s := range c.Scripts {
		for _, o := range s.Objects {
			upper := strings.ToUpper(o.Statement)

			switch o.Type {
			case ObjectTypeTask:
				if !strings.Contains(upper, "COPY INTO") {
					report(o, RuleTaskCopy, "task body must be a COPY INTO")
				}
				if o.Option("ON_ERROR") != "CONTINUE" {
					report(o, RuleTaskCopy, "COPY INTO must declare ON_ERROR = CONTINUE")
				}
				if o.Option("SCHEDULE") == "" {
					report(o, RuleTaskSchedule, "task must declare a SCHEDULE")
				}
				if !strings.Contains(upper, "SYSTEM$STREAM_HAS_DATA") {
					report(o, RuleTaskSchedule, "task must be guarded by SYSTEM$STREAM_HAS_DATA")
				}
			case ObjectTypeDynamicTable:
				if o.Option("TARGET_LAG") == "" {
					report(o, RuleDynamicTableLag, "dynamic table must declare TARGET_LAG")
				}
				if o.Option("WAREHOUSE") == "" {
					report(o, RuleDynamicTableLag, "dynamic table must declare WAREHOUSE")
				}
				if s.Layer == LayerRaw {
					report(o, RuleRawNoDynamic, "RAW layer holds landing objects only")
				}
			}

			if (o.Type == ObjectTypeDynamicTable || o.Type == ObjectTypeView) &&
				strings.HasSuffix(o.Name, "_CURRENT") &&
				!strings.Contains(upper, "INSERT_TIMESTAMP_UTC") {
				report(o, RuleCurrentView, "current view must select the latest INSERT_TIMESTAMP_UTC per key")
			}

			if s.Layer == LayerSemantic && o.Type.Creates() && o.Type != ObjectTypeSemanticView {
				report(o, RuleSemanticOnly, "SEMANTIC layer holds semantic views only, found %s", o.Type)
			}

			if o.Type.Creates() && o.Type != ObjectTypeSchema && o.Schema == "" {
				report(o, RuleUnscoped, "object has no schema; qualify it or add USE SCHEMA")
			}

			for _, dep := range o.DependsOn {
				target := c.objects[dep]
				if target.Script.Layer.Rank() > s.Layer.Rank() {
					report(o, RuleLayerInversion, "depends on %s from the later %s layer", dep, target.Script.Layer)
				}
				if target.Script == s && target.Index > o.Index {
					report(o, RuleForwardReference, "depends on %s defined later in the same script", dep)
				}
			}
		}
	}
	return out
}

// LintError folds violations into one catalog error, or nil.
func LintError(violations []Violation) error {
	if len(violations) == 0 {
		return nil
	}
	lines := make([]string, len(violations))
	for i, v := range violations {
		lines[i] = v.String()
	}
	return errors.Newf(errors.ErrCodeCatalogLint, "catalog has %d policy violation(s):\n  %s",
		len(violations), strings.Join(lines, "\n  ")).
		WithContext("violations", len(violations)).
		WithSuggestions("Fix the listed statements or run with --skip-lint to inspect the plan")
}
