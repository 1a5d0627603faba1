package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"snowbank/pkg/errors"
)

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cm, err := NewCredentialManager(WithDir(dir), WithKeyring(false))
	require.NoError(t, err)
	assert.False(t, cm.UsesKeyring())

	require.NoError(t, cm.Store("snowflake-password", "hunter2"))

	raw, err := os.ReadFile(filepath.Join(dir, "snowflake-password.cred"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hunter2")

	got, err := cm.Get("snowflake-password")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)

	names, err := cm.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"snowflake-password"}, names)

	require.NoError(t, cm.Delete("snowflake-password"))
	_, err = cm.Get("snowflake-password")
	assert.Error(t, err)
}

func TestFileStoreReusesMasterKey(t *testing.T) {
	dir := t.TempDir()
	first, err := NewCredentialManager(WithDir(dir), WithKeyring(false))
	require.NoError(t, err)
	require.NoError(t, first.Store("s3-secret", "abc"))

	second, err := NewCredentialManager(WithDir(dir), WithKeyring(false))
	require.NoError(t, err)
	got, err := second.Get("s3-secret")
	require.NoError(t, err)
	assert.Equal(t, "abc", got)

	info, err := os.Stat(filepath.Join(dir, ".master"))
	require.NoError(t, err)
	assert.Equal(t, int64(saltSize+keySize), info.Size())
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()
	dir := t.TempDir()
	cm, err := NewCredentialManager(WithDir(dir), WithKeyring(true))
	require.NoError(t, err)

	require.NoError(t, cm.Store("snowflake-password", "from-keyring"))
	require.NoError(t, cm.Store("gcs-token", "tok"))

	got, err := cm.Get("snowflake-password")
	require.NoError(t, err)
	assert.Equal(t, "from-keyring", got)

	names, err := cm.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"gcs-token", "snowflake-password"}, names)

	require.NoError(t, cm.Delete("gcs-token"))
	names, err = cm.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"snowflake-password"}, names)
}

func TestInvalidNames(t *testing.T) {
	cm, err := NewCredentialManager(WithDir(t.TempDir()), WithKeyring(false))
	require.NoError(t, err)

	for _, name := range []string{"", "../escape", "a/b"} {
		assert.Error(t, cm.Store(name, "x"), name)
	}
}

func TestKeyringDisabledByEnv(t *testing.T) {
	t.Setenv(EnvUseKeyring, "false")
	assert.False(t, isKeyringAvailable())
}

func TestDefaultDirFollowsConfigDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SNOWBANK_CONFIG_DIR", dir)

	cm, err := NewCredentialManager(WithKeyring(false))
	require.NoError(t, err)
	require.NoError(t, cm.Store("snowflake-password", "pw"))
	assert.FileExists(t, filepath.Join(dir, "credentials", "snowflake-password.cred"))
}

func TestMissingCredential(t *testing.T) {
	cm, err := NewCredentialManager(WithDir(t.TempDir()), WithKeyring(false))
	require.NoError(t, err)

	_, err = cm.Get("nothing-here")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeCredentialMissing))
}
