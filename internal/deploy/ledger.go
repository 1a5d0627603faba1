package deploy

import (
	"context"
	"database/sql"
	"fmt"

	"snowbank/pkg/errors"
)

// LedgerTable records every applied script with its checksum.
const LedgerTable = "PUBLIC.SNOWBANK_DEPLOYMENT_HISTORY"

// Executor is the part of the Snowflake service a deployment needs.
type Executor interface {
	ExecuteSQL(ctx context.Context, script, database, schema string) error
	Exec(ctx context.Context, stmt string, args ...interface{}) error
	Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Entry is one ledger row.
type Entry struct {
	Script       string
	Checksum     string
	Layer        string
	Domain       string
	DeploymentID string
	GitCommit    string
}

// Ledger reads and writes the deployment history table.
type Ledger struct {
	exec     Executor
	database string
}

// NewLedger creates a ledger in database.
func NewLedger(exec Executor, database string) *Ledger {
	return &Ledger{exec: exec, database: database}
}

// Table returns the fully qualified ledger table name.
func (l *Ledger) Table() string {
	if l.database == "" {
		return LedgerTable
	}
	return l.database + "." + LedgerTable
}

// Ensure creates the ledger table when missing.
func (l *Ledger) Ensure(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    SCRIPT        VARCHAR(500)  NOT NULL,
    CHECKSUM      VARCHAR(64)   NOT NULL,
    LAYER         VARCHAR(20)   NOT NULL,
    DOMAIN        VARCHAR(10)   NOT NULL,
    APPLIED_AT    TIMESTAMP_NTZ NOT NULL,
    DEPLOYMENT_ID VARCHAR(36)   NOT NULL,
    GIT_COMMIT    VARCHAR(40)
)`, l.Table())

	if err := l.exec.Exec(ctx, stmt); err != nil {
		return errors.Wrap(err, errors.ErrCodeLedger, "failed to create deployment ledger").
			WithContext("table", l.Table())
	}
	return nil
}

// Applied returns the latest recorded checksum per script. A missing ledger
// table reads as an empty ledger.
func (l *Ledger) Applied(ctx context.Context) (map[string]string, error) {
	query := fmt.Sprintf(`SELECT SCRIPT, CHECKSUM FROM %s
QUALIFY ROW_NUMBER() OVER (PARTITION BY SCRIPT ORDER BY APPLIED_AT DESC) = 1`, l.Table())

	applied := make(map[string]string)
	rows, err := l.exec.Query(ctx, query)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeSQLObjectNotFound) {
			return applied, nil
		}
		return nil, errors.Wrap(err, errors.ErrCodeLedger, "failed to read deployment ledger")
	}
	defer rows.Close()

	for rows.Next() {
		var script, checksum string
		if err := rows.Scan(&script, &checksum); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeLedger, "failed to scan ledger row")
		}
		applied[script] = checksum
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeLedger, "failed to read deployment ledger")
	}
	return applied, nil
}

// Record appends one applied script.
func (l *Ledger) Record(ctx context.Context, e Entry) error {
	stmt := fmt.Sprintf(`INSERT INTO %s (SCRIPT, CHECKSUM, LAYER, DOMAIN, APPLIED_AT, DEPLOYMENT_ID, GIT_COMMIT)
VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP()::TIMESTAMP_NTZ, ?, ?)`, l.Table())

	var commit interface{}
	if e.GitCommit != "" {
		commit = e.GitCommit
	}
	if err := l.exec.Exec(ctx, stmt, e.Script, e.Checksum, e.Layer, e.Domain, e.DeploymentID, commit); err != nil {
		return errors.Wrap(err, errors.ErrCodeLedger, "failed to record "+e.Script).
			WithContext("script", e.Script)
	}
	return nil
}
