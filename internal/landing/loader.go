package landing

import (
	"context"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"snowbank/internal/logging"
	"snowbank/internal/ui"
	"snowbank/pkg/errors"
)

// TaskRunner executes Snowflake tasks.
type TaskRunner interface {
	ExecuteTask(ctx context.Context, task string) error
}

// Options controls a Load.
type Options struct {
	Progress bool
	// Tasks, when set, runs the load task of every touched route after a
	// fully successful upload.
	Tasks TaskRunner
}

// Result reports what a Load did.
type Result struct {
	Sink     string
	Uploaded []string
	Skipped  []string
	Failed   map[string]error
	Tasks    []string
	Duration time.Duration
}

// Loader pushes a generated tree into a sink.
type Loader struct {
	sink   Sink
	router *Router
	log    zerolog.Logger
}

func NewLoader(sink Sink, router *Router) *Loader {
	if router == nil {
		router = NewRouter()
	}
	return &Loader{sink: sink, router: router, log: logging.With("landing")}
}

type pending struct {
	path  string
	key   string
	route Route
}

// Load walks dir and uploads every routed file. Files without a route, such
// as reports, are skipped. Upload failures do not stop the walk; the error
// returned lists how many files failed.
func (l *Loader) Load(ctx context.Context, dir string, opts Options) (*Result, error) {
	start := time.Now()
	res := &Result{Sink: l.sink.Name(), Failed: map[string]error{}}

	files, err := l.collect(dir, res)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return res, errors.New(errors.ErrCodeLandingFailed, "no generated files found").
			WithContext("dir", dir).
			WithSuggestions("Run 'snowbank generate' first")
	}

	var bar *ui.ProgressBar
	if opts.Progress {
		bar = ui.NewProgressBar("Landing", len(files))
	}

	var touched []Route
	seen := map[string]bool{}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return res, errors.Wrap(err, errors.ErrCodeTimeout, "Landing cancelled")
		}
		if err := l.sink.Upload(ctx, f.path, f.key); err != nil {
			l.log.Warn().Err(err).Str("file", f.key).Msg("upload failed")
			res.Failed[f.key] = err
			if bar != nil {
				bar.Step(f.key, ui.Failed)
			}
			continue
		}
		l.log.Debug().Str("file", f.key).Str("domain", f.route.Domain).Msg("uploaded")
		res.Uploaded = append(res.Uploaded, f.key)
		if bar != nil {
			bar.Step(f.key, ui.Succeeded)
		}
		if !seen[f.route.Task] {
			seen[f.route.Task] = true
			touched = append(touched, f.route)
		}
	}
	if bar != nil {
		bar.Finish()
	}

	if len(res.Failed) > 0 {
		res.Duration = time.Since(start)
		return res, errors.Newf(errors.ErrCodeLandingFailed, "%d of %d files failed to upload", len(res.Failed), len(files)).
			WithContext("sink", res.Sink)
	}

	if opts.Tasks != nil {
		for _, rt := range l.orderTasks(touched) {
			l.log.Info().Str("task", rt.Task).Msg("executing load task")
			if err := opts.Tasks.ExecuteTask(ctx, rt.Task); err != nil {
				res.Duration = time.Since(start)
				return res, errors.Wrap(err, errors.ErrCodeLandingFailed, "Failed to execute load task").
					WithContext("task", rt.Task)
			}
			res.Tasks = append(res.Tasks, rt.Task)
		}
	}

	res.Duration = time.Since(start)
	l.log.Info().
		Int("uploaded", len(res.Uploaded)).
		Int("skipped", len(res.Skipped)).
		Int("tasks", len(res.Tasks)).
		Str("sink", res.Sink).
		Msg("landing complete")
	return res, nil
}

func (l *Loader) collect(dir string, res *Result) ([]pending, error) {
	var files []pending
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		route, ok := l.router.Match(key)
		if !ok {
			res.Skipped = append(res.Skipped, key)
			return nil
		}
		files = append(files, pending{path: p, key: key, route: route})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to read generated files").
			WithContext("dir", dir)
	}
	return files, nil
}

// orderTasks runs tasks in route order: master data before the facts that
// reference it.
func (l *Loader) orderTasks(touched []Route) []Route {
	var out []Route
	for _, rt := range l.router.Routes() {
		for _, t := range touched {
			if t.Task == rt.Task {
				out = append(out, t)
				break
			}
		}
	}
	return out
}
