package snowflake

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowbank/pkg/errors"
)

func TestPutStatement(t *testing.T) {
	tests := []struct {
		name string
		path string
		opts PutOptions
		want string
	}{
		{
			name: "stage with prefix",
			path: "/data/generated/customers.csv",
			opts: PutOptions{Stage: "CRM_RAW_001.CRMI_RAW_STAGE", Prefix: "/customers/", Overwrite: true},
			want: "PUT 'file:///data/generated/customers.csv' @CRM_RAW_001.CRMI_RAW_STAGE/customers AUTO_COMPRESS=FALSE OVERWRITE=TRUE",
		},
		{
			name: "leading at sign and parallel",
			path: "/tmp/a.xml",
			opts: PutOptions{Stage: "@ICG_RAW_001.ICGI_RAW_SWIFT_STAGE", AutoCompress: true, Parallel: 4},
			want: "PUT 'file:///tmp/a.xml' @ICG_RAW_001.ICGI_RAW_SWIFT_STAGE AUTO_COMPRESS=TRUE OVERWRITE=FALSE PARALLEL=4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PutStatement(tt.path, tt.opts))
		})
	}
}

func TestPut(t *testing.T) {
	service, mock := newMockService(t)

	mock.ExpectExec(regexp.QuoteMeta("PUT 'file:///tmp/fx.csv' @REF_RAW_001.FXRI_RAW_STAGE")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("PUT 'file:///tmp/bad.csv'")).
		WillReturnError(fmt.Errorf("Stage 'NOPE' does not exist or not authorized"))

	require.NoError(t, service.Put(context.Background(), "/tmp/fx.csv", PutOptions{Stage: "REF_RAW_001.FXRI_RAW_STAGE"}))

	err := service.Put(context.Background(), "/tmp/bad.csv", PutOptions{Stage: "NOPE"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeStagingFailed, errors.GetErrorCode(err))

	err = service.Put(context.Background(), "/tmp/x.csv", PutOptions{})
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetErrorCode(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyIntoStatement(t *testing.T) {
	got := CopyIntoStatement(CopyOptions{
		Table:      "PAY_RAW_001.PAYI_RAW_TB_TRANSACTIONS",
		Stage:      "PAY_RAW_001.PAYI_RAW_STAGE",
		Pattern:    ".*pay_transactions.*\\.csv",
		FileFormat: "PAY_RAW_001.PAYI_FF_TRANSACTIONS_CSV",
	})
	assert.Equal(t,
		"COPY INTO PAY_RAW_001.PAYI_RAW_TB_TRANSACTIONS FROM @PAY_RAW_001.PAYI_RAW_STAGE"+
			" FILE_FORMAT = (FORMAT_NAME = 'PAY_RAW_001.PAYI_FF_TRANSACTIONS_CSV')"+
			" PATTERN = '.*pay_transactions.*\\.csv' ON_ERROR = CONTINUE",
		got)

	got = CopyIntoStatement(CopyOptions{Table: "T", Stage: "@S", OnError: "ABORT_STATEMENT", Force: true})
	assert.Equal(t, "COPY INTO T FROM @S ON_ERROR = ABORT_STATEMENT FORCE = TRUE", got)

	got = CopyIntoStatement(CopyOptions{
		Table:      "ICG_RAW_001.ICGI_RAW_TB_SWIFT_MESSAGES",
		Columns:    []string{"FILE_NAME", "RAW_XML", "LOADED_AT"},
		Select:     "METADATA$FILENAME, $1, CURRENT_TIMESTAMP()::TIMESTAMP_NTZ",
		Stage:      "ICG_RAW_001.ICGI_RAW_SWIFT_STAGE",
		FileFormat: "ICG_RAW_001.ICGI_FF_XML",
	})
	assert.Equal(t,
		"COPY INTO ICG_RAW_001.ICGI_RAW_TB_SWIFT_MESSAGES (FILE_NAME, RAW_XML, LOADED_AT)"+
			" FROM (SELECT METADATA$FILENAME, $1, CURRENT_TIMESTAMP()::TIMESTAMP_NTZ FROM @ICG_RAW_001.ICGI_RAW_SWIFT_STAGE)"+
			" FILE_FORMAT = (FORMAT_NAME = 'ICG_RAW_001.ICGI_FF_XML') ON_ERROR = CONTINUE",
		got)
}

func TestCopyInto(t *testing.T) {
	service, mock := newMockService(t)

	rows := sqlmock.NewRows([]string{"file", "status", "rows_parsed", "rows_loaded", "errors_seen"}).
		AddRow("a.csv", "LOADED", 10, 10, 0).
		AddRow("b.csv", "PARTIALLY_LOADED", 5, 3, 2)
	mock.ExpectQuery(regexp.QuoteMeta("COPY INTO T FROM @S ON_ERROR = CONTINUE")).WillReturnRows(rows)

	result, err := service.CopyInto(context.Background(), CopyOptions{Table: "T", Stage: "S"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Files)
	assert.Equal(t, int64(13), result.RowsLoaded)
	assert.Equal(t, int64(2), result.Errors)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskAndDynamicTableCommands(t *testing.T) {
	service, mock := newMockService(t)

	mock.ExpectExec(regexp.QuoteMeta("EXECUTE TASK CRM_RAW_001.CRMI_RAW_TA_LOAD_CUSTOMERS")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("ALTER DYNAMIC TABLE CRM_AGG_001.CRMA_AGG_DT_CUSTOMER_CURRENT REFRESH")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, service.ExecuteTask(context.Background(), "CRM_RAW_001.CRMI_RAW_TA_LOAD_CUSTOMERS"))
	require.NoError(t, service.RefreshDynamicTable(context.Background(), "CRM_AGG_001.CRMA_AGG_DT_CUSTOMER_CURRENT"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListStage(t *testing.T) {
	service, mock := newMockService(t)

	rows := sqlmock.NewRows([]string{"name", "size", "md5", "last_modified"}).
		AddRow("crmi_raw_stage/customers.csv", 2048, "abc", "today").
		AddRow("crmi_raw_stage/addresses/a.csv", "512", "def", "today")
	mock.ExpectQuery(regexp.QuoteMeta("LIST @CRM_RAW_001.CRMI_RAW_STAGE")).WillReturnRows(rows)

	files, err := service.ListStage(context.Background(), "@CRM_RAW_001.CRMI_RAW_STAGE")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, StageFile{Name: "crmi_raw_stage/customers.csv", Size: 2048}, files[0])
	assert.Equal(t, int64(512), files[1].Size)
	assert.NoError(t, mock.ExpectationsWereMet())
}
