package errors

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"snowbank/internal/common"
	"snowbank/internal/logging"
)

// DefaultJournalSize bounds the in-memory history of a Journal.
const DefaultJournalSize = 500

// JournalEntry is one recorded failure.
type JournalEntry struct {
	Time        time.Time      `json:"time"`
	Code        ErrorCode      `json:"code"`
	Severity    ErrorSeverity  `json:"severity"`
	Message     string         `json:"message"`
	Cause       string         `json:"cause,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
	Recoverable bool           `json:"recoverable"`
}

// Journal keeps the most recent failures in memory and appends each one as a
// JSON line to an optional writer.
type Journal struct {
	mu      sync.Mutex
	enc     *json.Encoder
	closer  io.Closer
	entries []JournalEntry
	size    int
}

// NewJournal writes entries to w, which may be nil.
func NewJournal(w io.Writer, size int) *Journal {
	if size <= 0 {
		size = DefaultJournalSize
	}
	j := &Journal{size: size}
	if w != nil {
		j.enc = json.NewEncoder(w)
	}
	return j
}

// OpenJournal appends to the file at path, creating it and its directory.
func OpenJournal(path string, size int) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), common.DirPermissionSecure); err != nil {
		return nil, Wrap(err, ErrCodeFileOperation, "Failed to create journal directory")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, common.FilePermissionSecure) // #nosec G304
	if err != nil {
		return nil, Wrap(err, ErrCodeFileOperation, "Failed to open journal").WithContext("path", path)
	}
	j := NewJournal(f, size)
	j.closer = f
	return j, nil
}

// Record stores err and logs it. Errors that are not *AppError are recorded
// as internal errors.
func (j *Journal) Record(err error) {
	if err == nil {
		return
	}
	var app *AppError
	if !stderrors.As(err, &app) {
		app = Wrap(err, ErrCodeInternal, err.Error())
	}

	entry := JournalEntry{
		Time:        app.Timestamp,
		Code:        app.Code,
		Severity:    app.Severity,
		Message:     app.Message,
		Context:     app.Context,
		Recoverable: app.Recoverable,
	}
	if app.Cause != nil {
		entry.Cause = app.Cause.Error()
	}

	j.mu.Lock()
	if len(j.entries) == j.size {
		j.entries = append(j.entries[:0], j.entries[1:]...)
	}
	j.entries = append(j.entries, entry)
	if j.enc != nil {
		if encErr := j.enc.Encode(entry); encErr != nil {
			logging.Warn().Err(encErr).Msg("journal write failed")
		}
	}
	j.mu.Unlock()

	ev := logging.Error()
	if app.Severity == SeverityWarning || app.Severity == SeverityInfo {
		ev = logging.Warn()
	}
	ev.Str("code", string(app.Code)).Err(app.Cause).Msg(app.Message)
}

// Entries returns the recorded failures, oldest first.
func (j *Journal) Entries() []JournalEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]JournalEntry(nil), j.entries...)
}

func (j *Journal) Close() error {
	if j.closer == nil {
		return nil
	}
	return j.closer.Close()
}

// Tx is the part of *sql.Tx that Transaction drives.
type Tx interface {
	Commit() error
	Rollback() error
}

// Transaction runs fn and commits tx. When fn fails tx is rolled back and
// fn's error is returned unrecorded; only a failed rollback is recorded here
// since the caller never sees it. A failed commit ends the transaction, so
// no rollback follows it.
func (j *Journal) Transaction(tx Tx, fn func() error) error {
	if err := fn(); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			j.Record(Wrap(rbErr, ErrCodeSQLTransaction, "Failed to roll back transaction").
				WithContext("cause", err.Error()))
		} else {
			logging.Debug().Msg("transaction rolled back")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return Wrap(err, ErrCodeSQLTransaction, "Failed to commit transaction")
	}
	return nil
}

var current atomic.Pointer[Journal]

// DefaultJournal returns the process journal, an in-memory one until
// SetJournal is called.
func DefaultJournal() *Journal {
	if j := current.Load(); j != nil {
		return j
	}
	current.CompareAndSwap(nil, NewJournal(nil, 0))
	return current.Load()
}

// SetJournal replaces the process journal and closes the previous one.
func SetJournal(j *Journal) {
	if prev := current.Swap(j); prev != nil && prev != j {
		_ = prev.Close()
	}
}
