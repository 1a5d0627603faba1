// Package snowflake wraps the gosnowflake driver with the retries,
// transactions and stage helpers the deploy, land and check commands use.
package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/snowflakedb/gosnowflake"

	"snowbank/internal/logging"
	"snowbank/internal/sqltext"
	"snowbank/pkg/errors"
)

const (
	defaultTimeout = 30 * time.Second
	maxOpenConns   = 10
	maxIdleConns   = 5
	connLifetime   = 10 * time.Minute
)

// Config is what a connection needs. Schema may be empty.
type Config struct {
	Account    string
	Username   string
	Password   string
	Database   string
	Schema     string
	Warehouse  string
	Role       string
	Timeout    time.Duration
	MaxRetries int
}

// String masks the password.
func (c Config) String() string {
	return fmt.Sprintf("%s@%s/%s/%s?warehouse=%s&role=%s",
		c.Username, c.Account, c.Database, c.Schema, c.Warehouse, c.Role)
}

// DSN builds the gosnowflake data source name.
func (c Config) DSN() (string, error) {
	cfg := &gosnowflake.Config{
		Account:     c.Account,
		User:        c.Username,
		Password:    c.Password,
		Database:    c.Database,
		Schema:      c.Schema,
		Warehouse:   c.Warehouse,
		Role:        c.Role,
		Application: "snowbank",
	}
	if c.Timeout > 0 {
		cfg.LoginTimeout = c.Timeout
	}
	return gosnowflake.DSN(cfg)
}

// ValidateConfig lists the required settings that are empty.
func ValidateConfig(c Config) error {
	required := []struct{ name, value string }{
		{"account", c.Account},
		{"username", c.Username},
		{"password", c.Password},
		{"warehouse", c.Warehouse},
		{"role", c.Role},
	}
	var missing []string
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing snowflake settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Service is one Snowflake session.
type Service struct {
	config    Config
	db        *sql.DB
	connected bool
	breaker   *errors.CircuitBreaker
	retry     *errors.RetryConfig
}

func NewService(config Config) *Service {
	retry := errors.DefaultRetryConfig()
	if config.MaxRetries > 0 {
		retry.MaxRetries = config.MaxRetries
	}
	return &Service{
		config:  config,
		breaker: errors.NewCircuitBreaker("snowflake", 5, 30*time.Second),
		retry:   retry,
	}
}

// NewServiceWithDB wraps an already open database handle.
func NewServiceWithDB(db *sql.DB, config Config) *Service {
	s := NewService(config)
	s.db = db
	s.connected = db != nil
	return s
}

// Connect opens and pings the connection, retrying transient failures.
// Calling it on a connected service does nothing.
func (s *Service) Connect(ctx context.Context) error {
	if s.connected {
		return nil
	}
	if err := ValidateConfig(s.config); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigMissing, "Incomplete Snowflake configuration").
			WithSuggestions("Run 'snowbank setup' or set SNOWBANK_SNOWFLAKE_* environment variables")
	}
	dsn, err := s.config.DSN()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "Invalid Snowflake connection settings")
	}

	return s.breaker.Execute(ctx, func() error {
		return errors.Retry(ctx, s.retry, func(ctx context.Context) error {
			db, err := s.open(ctx, dsn)
			if err != nil {
				return err
			}
			s.db, s.connected = db, true
			logging.Info().Str("connection", s.config.String()).Msg("connected to snowflake")
			return nil
		})
	})
}

func (s *Service) open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, errors.ConnectionError("Failed to open Snowflake connection", err).
			WithContext("account", s.config.Account).
			WithContext("warehouse", s.config.Warehouse)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connLifetime)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	err = db.PingContext(ctx)
	if err == nil {
		return db, nil
	}
	_ = db.Close()
	if isAuthFailure(err) {
		return nil, errors.New(errors.ErrCodeAuthenticationFailed, "Authentication failed").
			WithContext("user", s.config.Username).
			WithSuggestions(
				"Verify the username and password",
				"Check whether the user is locked out",
			)
	}
	return nil, errors.ConnectionError("Failed to connect to Snowflake", err).
		WithContext("account", s.config.Account)
}

func isAuthFailure(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "authentication") || strings.Contains(msg, "incorrect username or password")
}

func (s *Service) Close() error {
	if !s.connected {
		return nil
	}
	s.connected = false
	if err := s.db.Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeConnectionFailed, "Failed to close connection")
	}
	return nil
}

func (s *Service) ready() error {
	if s.connected {
		return nil
	}
	return errors.New(errors.ErrCodeConnectionFailed, "not connected to database").
		WithSuggestions("Call Connect() before executing SQL")
}

// ExecuteSQL runs every statement of script inside one transaction after
// switching to database and schema. Empty database or schema skips the USE.
// A failed statement rolls the whole script back. Scripts run under ctx alone;
// Config.Timeout bounds single statements only.
func (s *Service) ExecuteSQL(ctx context.Context, script, database, schema string) error {
	if err := s.ready(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLTransaction, "Failed to begin transaction")
	}

	return errors.DefaultJournal().Transaction(tx, func() error {
		for _, use := range []struct{ kind, name string }{{"DATABASE", database}, {"SCHEMA", schema}} {
			if use.name == "" {
				continue
			}
			stmt := "USE " + use.kind + " " + use.name
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return errors.SQLError(fmt.Sprintf("Failed to switch to %s %s", strings.ToLower(use.kind), use.name), stmt, err).
					WithContext(strings.ToLower(use.kind), use.name)
			}
		}

		statements := sqltext.Split(script)
		for i, stmt := range statements {
			logging.Debug().Int("statement", i+1).Str("sql", firstLine(stmt)).Msg("executing")
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return errors.SQLError(fmt.Sprintf("Failed to execute statement %d", i+1), stmt, err).
					WithContext("statement_index", i+1).
					WithContext("total_statements", len(statements))
			}
		}
		return nil
	})
}

// Exec runs a single statement outside a transaction.
func (s *Service) Exec(ctx context.Context, stmt string, args ...any) error {
	if err := s.ready(); err != nil {
		return err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
		return errors.SQLError("Failed to execute statement", stmt, err)
	}
	return nil
}

// Query runs a query. The caller closes the rows.
func (s *Service) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.SQLError("Failed to run query", query, err)
	}
	return rows, nil
}

// QueryCount runs a query returning a single number. NULL counts as zero.
func (s *Service) QueryCount(ctx context.Context, query string, args ...any) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var n sql.NullInt64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, errors.SQLError("Failed to run count query", query, err)
	}
	return n.Int64, nil
}

// withTimeout applies the configured statement timeout unless ctx already
// ends sooner.
func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func firstLine(stmt string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(sqltext.StripComments(stmt)), "\n")
	if len(line) > 80 {
		line = line[:80] + "..."
	}
	return line
}
