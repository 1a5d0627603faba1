package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanPath(t *testing.T) {
	got, err := CleanPath("/var/lib/../data/./x")
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean("/var/data/x"), got)

	wd, err := os.Getwd()
	require.NoError(t, err)
	got, err = CleanPath("generated_data/fx_rates")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "generated_data", "fx_rates"), got)

	for _, p := range []string{"..", "../etc/passwd", "a/../../b"} {
		_, err := CleanPath(p)
		assert.ErrorIs(t, err, ErrTraversal, p)
	}
}

func TestValidatePath(t *testing.T) {
	base := t.TempDir()

	got, err := ValidatePath(filepath.Join(base, "master_data", "customers.csv"), base)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "master_data", "customers.csv"), got)

	_, err = ValidatePath(filepath.Join(base, "..", "escape.csv"), base)
	assert.ErrorIs(t, err, ErrOutsideBase)

	// a sibling sharing the base name as prefix is still outside
	_, err = ValidatePath(base+"-other/x.csv", base)
	assert.ErrorIs(t, err, ErrOutsideBase)

	got, err = ValidatePath(base, base)
	require.NoError(t, err)
	assert.Equal(t, base, got)
}
