package quality

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"snowbank/internal/logging"
	"snowbank/pkg/errors"
)

// Check outcomes.
const (
	StatusPass  = "PASS"
	StatusFail  = "FAIL"
	StatusError = "ERROR"
)

// Counter runs a query that returns one number.
type Counter interface {
	QueryCount(ctx context.Context, query string, args ...interface{}) (int64, error)
}

// Result is the outcome of one check.
type Result struct {
	Check      Check
	Status     string
	Violations int64
	Err        error
	Duration   time.Duration
}

// Report collects the results of a run in check order.
type Report struct {
	Results  []Result
	Started  time.Time
	Duration time.Duration
}

// Failed reports whether an ERROR severity check failed or could not run.
func (r *Report) Failed() bool {
	for _, res := range r.Results {
		if res.Status != StatusPass && res.Check.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Counts returns pass, fail and error totals.
func (r *Report) Counts() (pass, fail, errored int) {
	for _, res := range r.Results {
		switch res.Status {
		case StatusPass:
			pass++
		case StatusFail:
			fail++
		default:
			errored++
		}
	}
	return pass, fail, errored
}

// Err folds the failing checks into a quality error, or nil.
func (r *Report) Err() error {
	if !r.Failed() {
		return nil
	}
	var ids []string
	for _, res := range r.Results {
		if res.Status != StatusPass && res.Check.Severity == SeverityError {
			ids = append(ids, res.Check.ID)
		}
	}
	return errors.Newf(errors.ErrCodeQualityViolation, "%d data quality check(s) failed", len(ids)).
		WithContext("checks", ids)
}

// Runner executes checks with bounded concurrency.
type Runner struct {
	counter     Counter
	parallelism int
	log         zerolog.Logger
}

// NewRunner creates a runner. parallelism <= 0 runs checks one at a time.
func NewRunner(counter Counter, parallelism int) *Runner {
	if parallelism <= 0 {
		parallelism = 1
	}
	return &Runner{
		counter:     counter,
		parallelism: parallelism,
		log:         logging.With("quality"),
	}
}

// Run executes every check. Query failures are reported per check and do
// not stop the run.
func (r *Runner) Run(ctx context.Context, checks []Check) *Report {
	report := &Report{
		Results: make([]Result, len(checks)),
		Started: time.Now(),
	}

	sem := make(chan struct{}, r.parallelism)
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(i int, check Check) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			report.Results[i] = r.runOne(ctx, check)
		}(i, check)
	}
	wg.Wait()

	report.Duration = time.Since(report.Started)
	pass, fail, errored := report.Counts()
	r.log.Info().Int("pass", pass).Int("fail", fail).Int("error", errored).
		Dur("duration", report.Duration).Msg("quality checks finished")
	return report
}

func (r *Runner) runOne(ctx context.Context, check Check) Result {
	start := time.Now()
	res := Result{Check: check}

	if err := ctx.Err(); err != nil {
		res.Status = StatusError
		res.Err = err
		return res
	}

	n, err := r.counter.QueryCount(ctx, check.Query)
	res.Duration = time.Since(start)
	switch {
	case err != nil:
		res.Status = StatusError
		res.Err = err
		r.log.Warn().Err(err).Str("check", check.ID).Msg("check could not run")
	case n > 0:
		res.Status = StatusFail
		res.Violations = n
		r.log.Warn().Str("check", check.ID).Int64("violations", n).Msg("check failed")
	default:
		res.Status = StatusPass
		r.log.Debug().Str("check", check.ID).Msg("check passed")
	}
	return res
}
