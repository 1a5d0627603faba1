package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowbank/pkg/errors"
)

func TestParseScript(t *testing.T) {
	body := `-- customers
CREATE SCHEMA IF NOT EXISTS CRM_RAW_001;
USE SCHEMA CRM_RAW_001;

CREATE STAGE IF NOT EXISTS CRMI_RAW_STAGE DIRECTORY = (ENABLE = TRUE);
CREATE OR REPLACE FILE FORMAT CRMI_FF_CSV TYPE = CSV SKIP_HEADER = 1;
CREATE TABLE IF NOT EXISTS CRMI_RAW_TB_CUSTOMER (CUSTOMER_ID VARCHAR, INSERT_TIMESTAMP_UTC TIMESTAMP_NTZ);
CREATE OR REPLACE STREAM CRMI_RAW_SM_FILES ON STAGE CRMI_RAW_STAGE;
create or replace task crmi_raw_ta_load
    warehouse = MD_TEST_WH
    schedule = '60 MINUTE'
when system$stream_has_data('CRM_RAW_001.CRMI_RAW_SM_FILES')
as copy into CRMI_RAW_TB_CUSTOMER from @CRMI_RAW_STAGE on_error = continue;
ALTER TASK CRMI_RAW_TA_LOAD RESUME;
`
	script, err := ParseScript("01_raw/010_crm.sql", body)
	require.NoError(t, err)

	assert.Equal(t, LayerRaw, script.Layer)
	assert.Equal(t, "CRM", script.Domain)
	assert.Len(t, script.Checksum, 64)
	require.Len(t, script.Objects, 8)

	expected := []struct {
		typ    ObjectType
		schema string
		name   string
	}{
		{ObjectTypeSchema, "CRM_RAW_001", "CRM_RAW_001"},
		{ObjectTypeOther, "CRM_RAW_001", ""},
		{ObjectTypeStage, "CRM_RAW_001", "CRMI_RAW_STAGE"},
		{ObjectTypeFileFormat, "CRM_RAW_001", "CRMI_FF_CSV"},
		{ObjectTypeTable, "CRM_RAW_001", "CRMI_RAW_TB_CUSTOMER"},
		{ObjectTypeStream, "CRM_RAW_001", "CRMI_RAW_SM_FILES"},
		{ObjectTypeTask, "CRM_RAW_001", "CRMI_RAW_TA_LOAD"},
		{ObjectTypeAlter, "CRM_RAW_001", "CRMI_RAW_TA_LOAD"},
	}
	for i, e := range expected {
		o := script.Objects[i]
		assert.Equal(t, e.typ, o.Type, "object %d", i)
		assert.Equal(t, e.schema, o.Schema, "object %d", i)
		assert.Equal(t, e.name, o.Name, "object %d", i)
		assert.Equal(t, i, o.Index)
		assert.Same(t, script, o.Script)
	}

	task := script.Objects[6]
	assert.Equal(t, "MD_TEST_WH", task.Option("warehouse"))
	assert.Equal(t, "60 MINUTE", task.Option("SCHEDULE"))
	assert.Equal(t, "CONTINUE", task.Option("ON_ERROR"))
	assert.Equal(t, "RESUME", script.Objects[7].Option("ACTION"))
}

func TestParseScriptQualifiedNames(t *testing.T) {
	body := `CREATE OR REPLACE DYNAMIC TABLE AAA_DEV_SYNTHETIC_BANK.CRM_AGG_001.CRMA_AGG_DT_X
    TARGET_LAG = '60 minutes' WAREHOUSE = MD_TEST_WH
AS SELECT 1;
CREATE VIEW REP_AGG_001.V_X AS SELECT 1`

	script, err := ParseScript("02_agg/010_crm_views.sql", body)
	require.NoError(t, err)
	require.Len(t, script.Objects, 2)

	dt := script.Objects[0]
	assert.Equal(t, ObjectTypeDynamicTable, dt.Type)
	assert.Equal(t, "CRM_AGG_001.CRMA_AGG_DT_X", dt.QualifiedName())
	assert.Equal(t, "60 minutes", dt.Option("TARGET_LAG"))

	assert.Equal(t, "REP_AGG_001.V_X", script.Objects[1].QualifiedName())
	assert.Equal(t, "CRM", script.Domain)
}

func TestParseScriptChecksumIgnoresLineEndings(t *testing.T) {
	a, err := ParseScript("01_raw/010_crm.sql", "CREATE SCHEMA A;\nCREATE SCHEMA B;\n")
	require.NoError(t, err)
	b, err := ParseScript("01_raw/010_crm.sql", "CREATE SCHEMA A;\r\nCREATE SCHEMA B;\r\n")
	require.NoError(t, err)
	c, err := ParseScript("01_raw/010_crm.sql", "CREATE SCHEMA A;\nCREATE SCHEMA C;\n")
	require.NoError(t, err)

	assert.Equal(t, a.Checksum, b.Checksum)
	assert.NotEqual(t, a.Checksum, c.Checksum)
}

func TestParseScriptErrors(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
	}{
		{"not sql", "01_raw/010_crm.txt", "CREATE SCHEMA A"},
		{"unknown layer", "07_gold/010_crm.sql", "CREATE SCHEMA A"},
		{"no domain", "01_raw/010_.sql", "CREATE SCHEMA A"},
		{"empty script", "01_raw/010_crm.sql", "-- nothing here\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScript(tt.path, tt.body)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrCodeCatalogParse))
		})
	}
}

func TestClassifyPath(t *testing.T) {
	tests := []struct {
		path   string
		layer  Layer
		domain string
	}{
		{"01_raw/010_crm.sql", LayerRaw, "CRM"},
		{"02_agg/040_pay.sql", LayerAgg, "PAY"},
		{"03_reporting/010_rep_customer.sql", LayerReporting, "REP"},
		{"04_semantic/020_sem_payments.sql", LayerSemantic, "SEM"},
		{"sql\\02_agg\\080_icg.sql", LayerAgg, "ICG"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			layer, domain, err := classifyPath(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.layer, layer)
			assert.Equal(t, tt.domain, domain)
		})
	}
}

func TestReferences(t *testing.T) {
	refs := references(`SELECT c.ID FROM CRMA_AGG_DT_X c
JOIN CRM_RAW_001.CRMI_RAW_TB_CUSTOMER r ON r.ID = c.ID
JOIN AAA_DEV_SYNTHETIC_BANK.REF_AGG_001.FXRA_LATEST f -- REF_AGG_001.IGNORED
`, "CRM_AGG_001")

	assert.Contains(t, refs, "CRM_AGG_001.CRMA_AGG_DT_X")
	assert.Contains(t, refs, "CRM_RAW_001.CRMI_RAW_TB_CUSTOMER")
	assert.Contains(t, refs, "REF_AGG_001.FXRA_LATEST")
	assert.NotContains(t, refs, "REF_AGG_001.IGNORED")
}

func TestParseLayer(t *testing.T) {
	for in, want := range map[string]Layer{
		"raw": LayerRaw, "AGG": LayerAgg, "rep": LayerReporting,
		"Reporting": LayerReporting, "sem": LayerSemantic, " semantic ": LayerSemantic,
	} {
		got, ok := ParseLayer(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := ParseLayer("gold")
	assert.False(t, ok)
	assert.Less(t, LayerRaw.Rank(), LayerAgg.Rank())
	assert.Less(t, LayerReporting.Rank(), LayerSemantic.Rank())
	assert.Equal(t, len(Layers), Layer("GOLD").Rank())
}
