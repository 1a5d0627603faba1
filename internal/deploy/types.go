package deploy

import (
	"time"

	"snowbank/internal/catalog"
)

// Decision is what a deployment does with one script.
type Decision string

const (
	DecisionApply   Decision = "APPLY"   // never recorded in the ledger
	DecisionChanged Decision = "CHANGED" // recorded with a different checksum
	DecisionSkip    Decision = "SKIP"    // recorded with the same checksum
)

// PlanItem is one script of a deployment plan.
type PlanItem struct {
	Script          *catalog.Script
	Decision        Decision
	AppliedChecksum string
}

// RunState represents the state of a deployment run
type RunState string

const (
	StateInProgress RunState = "in_progress"
	StateCompleted  RunState = "completed"
	StateFailed     RunState = "failed"
	StateDryRun     RunState = "dry_run"
)

// RunRecord stores information about one deploy invocation.
type RunRecord struct {
	ID           string            `json:"id"`
	Database     string            `json:"database"`
	Source       string            `json:"source"`
	Commit       string            `json:"commit,omitempty"`
	Layers       []string          `json:"layers,omitempty"`
	Domains      []string          `json:"domains,omitempty"`
	DryRun       bool              `json:"dry_run"`
	Force        bool              `json:"force"`
	StartTime    time.Time         `json:"start_time"`
	EndTime      *time.Time        `json:"end_time,omitempty"`
	State        RunState          `json:"state"`
	Scripts      []ScriptExecution `json:"scripts"`
	ErrorMessage string            `json:"error_message,omitempty"`
}

// ScriptExecution represents the execution of a single script
type ScriptExecution struct {
	Path         string        `json:"path"`
	Layer        string        `json:"layer"`
	Domain       string        `json:"domain"`
	Order        int           `json:"order"`
	Checksum     string        `json:"checksum"`
	Decision     Decision      `json:"decision"`
	Status       string        `json:"status"` // APPLIED, SKIP, DRY-RUN, FAILED
	Statements   int           `json:"statements"`
	Duration     time.Duration `json:"duration,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

// Counts returns applied, skipped and failed script totals.
func (r *RunRecord) Counts() (applied, skipped, failed int) {
	for _, s := range r.Scripts {
		switch s.Status {
		case StatusApplied:
			applied++
		case StatusSkipped:
			skipped++
		case StatusFailed:
			failed++
		}
	}
	return applied, skipped, failed
}

// Script statuses.
const (
	StatusApplied = "APPLIED"
	StatusSkipped = "SKIP"
	StatusDryRun  = "DRY-RUN"
	StatusFailed  = "FAILED"
)
