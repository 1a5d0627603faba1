package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLoad(t *testing.T) {
	script, err := ParseScript("01_raw/080_icg.sql", `USE SCHEMA ICG_RAW_001;
CREATE OR REPLACE TASK LOAD_XML
    WAREHOUSE = WH
    SCHEDULE = '60 MINUTE'
AS
    COPY INTO MESSAGES (FILE_NAME, RAW_XML)
    FROM (
        SELECT METADATA$FILENAME, $1
        FROM @XML_STAGE
    )
    PATTERN = '.*swift_.*\\.xml'
    FILE_FORMAT = (FORMAT_NAME = 'ICG_RAW_001.FF_XML')
    ON_ERROR = CONTINUE;
CREATE OR REPLACE TASK LOAD_CSV
    WAREHOUSE = WH
AS
    COPY INTO OTHER.ROWS FROM @OTHER.CSV_STAGE ON_ERROR = SKIP_FILE;
CREATE OR REPLACE TASK CLEANUP
    WAREHOUSE = WH
AS
    DELETE FROM MESSAGES;`)
	require.NoError(t, err)

	tasks := script.Objects[1:]
	l, ok := ParseLoad(tasks[0])
	require.True(t, ok)
	assert.Equal(t, "ICG_RAW_001.MESSAGES", l.Table)
	assert.Equal(t, []string{"FILE_NAME", "RAW_XML"}, l.Columns)
	assert.Equal(t, "METADATA$FILENAME, $1", l.Select)
	assert.Equal(t, "ICG_RAW_001.XML_STAGE", l.Stage)
	assert.Equal(t, `.*swift_.*\\.xml`, l.Pattern)
	assert.Equal(t, "ICG_RAW_001.FF_XML", l.FileFormat)
	assert.Equal(t, "CONTINUE", l.OnError)

	l, ok = ParseLoad(tasks[1])
	require.True(t, ok)
	assert.Equal(t, "OTHER.ROWS", l.Table)
	assert.Equal(t, "OTHER.CSV_STAGE", l.Stage)
	assert.Empty(t, l.Columns)
	assert.Empty(t, l.Select)
	assert.Empty(t, l.Pattern)
	assert.Equal(t, "SKIP_FILE", l.OnError)

	_, ok = ParseLoad(tasks[2])
	assert.False(t, ok)
}

func TestEveryRawTableHasALoad(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	f, err := NewFilter([]string{"RAW"}, nil)
	require.NoError(t, err)
	for _, s := range c.Select(f) {
		for _, o := range s.Objects {
			if o.Type != ObjectTypeTable {
				continue
			}
			l, ok := c.LoadFor(o)
			if assert.True(t, ok, "no load task for %s", o.QualifiedName()) {
				assert.NotEmpty(t, l.Pattern, o.QualifiedName())
				assert.NotEmpty(t, l.FileFormat, o.QualifiedName())
				_, found := c.Lookup(l.Stage)
				assert.True(t, found, "stage %s of %s", l.Stage, o.QualifiedName())
			}
		}
	}
}
