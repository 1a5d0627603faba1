package snowflake

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"snowbank/internal/logging"
	"snowbank/pkg/errors"
)

// PutOptions controls a PUT upload into an internal stage.
type PutOptions struct {
	Stage        string // fully qualified, without the leading @
	Prefix       string
	AutoCompress bool
	Overwrite    bool
	Parallel     int
}

// PutStatement renders the PUT command for a local file.
func PutStatement(localPath string, opts PutOptions) string {
	path := filepath.ToSlash(localPath)
	target := "@" + strings.TrimPrefix(opts.Stage, "@")
	if p := strings.Trim(opts.Prefix, "/"); p != "" {
		target += "/" + p
	}

	stmt := fmt.Sprintf("PUT 'file://%s' %s AUTO_COMPRESS=%s OVERWRITE=%s",
		path, target, boolWord(opts.AutoCompress), boolWord(opts.Overwrite))
	if opts.Parallel > 0 {
		stmt += fmt.Sprintf(" PARALLEL=%d", opts.Parallel)
	}
	return stmt
}

// Put uploads a local file into a stage.
func (s *Service) Put(ctx context.Context, localPath string, opts PutOptions) error {
	if opts.Stage == "" {
		return errors.New(errors.ErrCodeInvalidInput, "stage name is required for PUT")
	}
	stmt := PutStatement(localPath, opts)
	logging.Debug().Str("file", localPath).Str("stage", opts.Stage).Msg("staging file")

	if err := s.Exec(ctx, stmt); err != nil {
		return errors.Wrap(err, errors.ErrCodeStagingFailed, "Failed to upload file to stage").
			WithContext("file", localPath).
			WithContext("stage", opts.Stage)
	}
	return nil
}

// CopyOptions describes a COPY INTO from a stage. Select, when set, turns
// the load into a transforming one reading from the stage.
type CopyOptions struct {
	Table      string
	Columns    []string
	Select     string
	Stage      string
	Pattern    string
	FileFormat string
	OnError    string
	Force      bool
}

// CopyIntoStatement renders COPY INTO. OnError defaults to CONTINUE.
func CopyIntoStatement(opts CopyOptions) string {
	var b strings.Builder
	stage := "@" + strings.TrimPrefix(opts.Stage, "@")
	fmt.Fprintf(&b, "COPY INTO %s", opts.Table)
	if len(opts.Columns) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(opts.Columns, ", "))
	}
	if opts.Select != "" {
		fmt.Fprintf(&b, " FROM (SELECT %s FROM %s)", opts.Select, stage)
	} else {
		b.WriteString(" FROM " + stage)
	}
	if opts.FileFormat != "" {
		fmt.Fprintf(&b, " FILE_FORMAT = (FORMAT_NAME = '%s')", opts.FileFormat)
	}
	if opts.Pattern != "" {
		fmt.Fprintf(&b, " PATTERN = '%s'", opts.Pattern)
	}
	onError := opts.OnError
	if onError == "" {
		onError = "CONTINUE"
	}
	fmt.Fprintf(&b, " ON_ERROR = %s", onError)
	if opts.Force {
		b.WriteString(" FORCE = TRUE")
	}
	return b.String()
}

// CopyResult summarises the per-file rows returned by COPY INTO.
type CopyResult struct {
	Files      int
	RowsLoaded int64
	Errors     int64
}

// CopyInto runs COPY INTO and totals the per-file load results.
func (s *Service) CopyInto(ctx context.Context, opts CopyOptions) (*CopyResult, error) {
	stmt := CopyIntoStatement(opts)
	rows, err := s.Query(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSQLExecution, "Failed to read COPY result")
	}
	loadedIdx, errorsIdx := -1, -1
	for i, c := range cols {
		switch strings.ToLower(c) {
		case "rows_loaded":
			loadedIdx = i
		case "errors_seen":
			errorsIdx = i
		}
	}

	result := &CopyResult{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSQLExecution, "Failed to scan COPY result")
		}
		result.Files++
		if loadedIdx >= 0 {
			result.RowsLoaded += toInt64(values[loadedIdx])
		}
		if errorsIdx >= 0 {
			result.Errors += toInt64(values[errorsIdx])
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSQLExecution, "Failed to read COPY result")
	}

	logging.Info().
		Str("table", opts.Table).
		Int("files", result.Files).
		Int64("rows", result.RowsLoaded).
		Int64("errors", result.Errors).
		Msg("copy into completed")
	return result, nil
}

// ExecuteTask triggers a serverless task run immediately.
func (s *Service) ExecuteTask(ctx context.Context, task string) error {
	return s.Exec(ctx, "EXECUTE TASK "+task)
}

// RefreshDynamicTable forces a refresh ahead of its target lag.
func (s *Service) RefreshDynamicTable(ctx context.Context, table string) error {
	return s.Exec(ctx, fmt.Sprintf("ALTER DYNAMIC TABLE %s REFRESH", table))
}

// StageFile is one entry of LIST @stage.
type StageFile struct {
	Name string
	Size int64
}

// ListStage lists the files currently in a stage.
func (s *Service) ListStage(ctx context.Context, stage string) ([]StageFile, error) {
	rows, err := s.Query(ctx, "LIST @"+strings.TrimPrefix(stage, "@"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var files []StageFile
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		f := StageFile{Name: toString(values[0])}
		if len(values) > 1 {
			f.Size = toInt64(values[1])
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func boolWord(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case []byte:
		var out int64
		fmt.Sscan(string(n), &out)
		return out
	case string:
		var out int64
		fmt.Sscan(n, &out)
		return out
	}
	return 0
}

func toString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}
