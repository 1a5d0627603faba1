package quality

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowbank/internal/snowflake"
	"snowbank/pkg/errors"
)

type fakeCounter struct {
	counts map[string]int64
	errs   map[string]error
}

func (f *fakeCounter) QueryCount(_ context.Context, query string, _ ...interface{}) (int64, error) {
	for key, err := range f.errs {
		if strings.Contains(query, key) {
			return 0, err
		}
	}
	for key, n := range f.counts {
		if strings.Contains(query, key) {
			return n, nil
		}
	}
	return 0, nil
}

func TestBuiltinChecks(t *testing.T) {
	checks := Builtin(0)
	require.Len(t, checks, 14)

	ids := make(map[string]bool)
	for _, c := range checks {
		assert.False(t, ids[c.ID], "duplicate check %s", c.ID)
		ids[c.ID] = true
		assert.True(t, strings.HasPrefix(c.Query, "SELECT COUNT(*)") || strings.HasPrefix(c.Query, "WITH"), c.ID)
		assert.NotEmpty(t, c.Description, c.ID)
		assert.Contains(t, []Severity{SeverityError, SeverityWarning}, c.Severity)
	}

	for _, id := range []string{
		"fx_bid_mid_ask", "crm_customer_current", "crm_address_current",
		"icg_status_matched", "eqt_position_quantity", "eqt_position_amount",
		"fii_settlement_after_trade", "acc_customer_exists",
	} {
		assert.True(t, ids[id], id)
	}
}

func TestBuiltinTolerance(t *testing.T) {
	checks, err := Select(Builtin(0), []string{"eqt_position_amount"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(checks[0].Query, "> 0.01"))

	checks, err = Select(Builtin(0.5), []string{"eqt_position_quantity"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(checks[0].Query, "> 0.5"))
}

func TestSelect(t *testing.T) {
	all := Builtin(0)

	got, err := Select(all, nil)
	require.NoError(t, err)
	assert.Len(t, got, len(all))

	got, err = Select(all, []string{" FX_MID_POSITIVE", "fx_bid_mid_ask"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "fx_bid_mid_ask", got[0].ID)
	assert.Equal(t, "fx_mid_positive", got[1].ID)

	_, err = Select(all, []string{"fx_bid_mid_ask", "nope", "also_nope"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetErrorCode(err))
	assert.Contains(t, err.Error(), "also_nope, nope")
}

func TestRunnerRun(t *testing.T) {
	counter := &fakeCounter{
		counts: map[string]int64{
			"WHERE QUANTITY <= 0":             3,
			"FXRI_RAW_TB_FX_RATES\nWHERE NOT": 0,
		},
		errs: map[string]error{
			"ICGA_AGG_DT_SWIFT_PACS002": fmt.Errorf("Object does not exist"),
		},
	}

	report := NewRunner(counter, 4).Run(context.Background(), Builtin(0))
	require.Len(t, report.Results, 14)

	byID := make(map[string]Result)
	for i, res := range report.Results {
		assert.Equal(t, Builtin(0)[i].ID, res.Check.ID, "results keep check order")
		byID[res.Check.ID] = res
	}

	assert.Equal(t, StatusPass, byID["fx_bid_mid_ask"].Status)
	assert.Equal(t, StatusFail, byID["eqt_quantity_positive"].Status)
	assert.Equal(t, int64(3), byID["eqt_quantity_positive"].Violations)
	assert.Equal(t, StatusError, byID["icg_status_matched"].Status)
	assert.Error(t, byID["icg_status_matched"].Err)

	pass, fail, errored := report.Counts()
	assert.Equal(t, 12, pass)
	assert.Equal(t, 1, fail)
	assert.Equal(t, 1, errored)

	assert.True(t, report.Failed(), "an ERROR severity check could not run")
	err := report.Err()
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeQualityViolation, errors.GetErrorCode(err))
}

func TestReportWarningsDoNotFail(t *testing.T) {
	counter := &fakeCounter{counts: map[string]int64{"HAVING COUNT(*) > 1": 2}}

	report := NewRunner(counter, 0).Run(context.Background(), Builtin(0))
	assert.False(t, report.Failed())
	assert.NoError(t, report.Err())

	_, fail, _ := report.Counts()
	assert.Equal(t, 1, fail)
}

func TestRunnerCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := NewRunner(&fakeCounter{}, 2).Run(ctx, Builtin(0)[:2])
	for _, res := range report.Results {
		assert.Equal(t, StatusError, res.Status)
		assert.ErrorIs(t, res.Err, context.Canceled)
	}
}

func TestRunnerWithSnowflakeService(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.MatchExpectationsInOrder(false)

	svc := snowflake.NewServiceWithDB(db, snowflake.Config{Database: "TEST_DB", Timeout: 30 * time.Second})
	checks, err := Select(Builtin(0), []string{"fx_bid_mid_ask", "acc_customer_exists"})
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM REF_RAW_001.FXRI_RAW_TB_FX_RATES")).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM CRM_RAW_001.ACCI_RAW_TB_ACCOUNTS")).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(5))

	report := NewRunner(svc, 1).Run(context.Background(), checks)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, StatusPass, report.Results[0].Status)
	assert.Equal(t, StatusFail, report.Results[1].Status)
	assert.Equal(t, int64(5), report.Results[1].Violations)
	assert.False(t, report.Failed())
}
