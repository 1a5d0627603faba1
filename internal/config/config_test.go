package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowbank/pkg/errors"
	"snowbank/pkg/models"
)

func withConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(EnvConfigDir, dir)
	return dir
}

func TestGetConfigPathDefault(t *testing.T) {
	t.Setenv(EnvConfigDir, "")
	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, ".snowbank"), GetConfigPath())
	assert.Equal(t, filepath.Join(home, ".snowbank", "config.yaml"), GetConfigFile())
}

func TestGetConfigPathFromEnv(t *testing.T) {
	dir := withConfigDir(t)
	assert.Equal(t, dir, GetConfigPath())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	withConfigDir(t)

	cfg, err := LoadFile(GetConfigFile())
	require.NoError(t, err)
	assert.Equal(t, "AAA_DEV_SYNTHETIC_BANK", cfg.Snowflake.Database)
	assert.Equal(t, 10, cfg.Generator.Customers)
	assert.False(t, Exists())
}

func TestSaveAndLoad(t *testing.T) {
	dir := withConfigDir(t)

	cfg := models.Defaults()
	cfg.Snowflake = models.Snowflake{
		Account:   "test123.eu-central-1",
		Username:  "testuser",
		Role:      "SYSADMIN",
		Warehouse: "MD_TEST_WH",
		Database:  "AAA_DEV_SYNTHETIC_BANK",
	}
	cfg.Deployment.Layers = []string{"RAW"}

	require.NoError(t, Save(cfg))
	assert.True(t, Exists())

	info, err := os.Stat(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadFile(GetConfigFile())
	require.NoError(t, err)
	assert.Equal(t, cfg.Snowflake.Account, loaded.Snowflake.Account)
	assert.Equal(t, cfg.Snowflake.Warehouse, loaded.Snowflake.Warehouse)
	assert.Equal(t, []string{"RAW"}, loaded.Deployment.Layers)
	assert.Equal(t, "30s", loaded.Snowflake.Timeout)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := withConfigDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("snowflake: [unclosed"), 0600))

	_, err := LoadFile(GetConfigFile())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
}

func TestEncryptDecryptPassword(t *testing.T) {
	t.Setenv("SNOWBANK_ENCRYPTION_KEY", "unit-test-key")

	enc, err := EncryptPassword("s3cret")
	require.NoError(t, err)
	assert.True(t, IsEncrypted(enc))
	assert.NotContains(t, enc, "s3cret")

	again, err := EncryptPassword(enc)
	require.NoError(t, err)
	assert.Equal(t, enc, again)

	plain, err := DecryptPassword(enc)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", plain)

	t.Setenv("SNOWBANK_ENCRYPTION_KEY", "another-key")
	_, err = DecryptPassword(enc)
	assert.Error(t, err)
}

func TestEncryptConfigPasswordsCoversEnvironments(t *testing.T) {
	t.Setenv("SNOWBANK_ENCRYPTION_KEY", "unit-test-key")
	cfg := models.Defaults()
	cfg.Snowflake.Password = "main"
	cfg.Environments = []models.Environment{{Name: "prod", Password: "prodpw"}}

	require.NoError(t, EncryptConfigPasswords(cfg))
	assert.True(t, IsEncrypted(cfg.Snowflake.Password))
	assert.True(t, IsEncrypted(cfg.Environments[0].Password))

	plain, err := DecryptPassword(cfg.Snowflake.Password)
	require.NoError(t, err)
	assert.Equal(t, "main", plain)

	// the environment overlay carries ENC[...] into the resolved password
	require.True(t, cfg.ApplyEnvironment("prod"))
	require.NoError(t, ResolvePassword(cfg, nil))
	assert.Equal(t, "prodpw", cfg.Snowflake.Password)
}

type fakeStore map[string]string

func (f fakeStore) Get(key string) (string, error) {
	if v, ok := f[key]; ok {
		return v, nil
	}
	return "", fmt.Errorf("credential %s not found", key)
}

func TestResolvePassword(t *testing.T) {
	t.Setenv("SNOWBANK_ENCRYPTION_KEY", "unit-test-key")

	t.Run("literal wins", func(t *testing.T) {
		cfg := models.Defaults()
		cfg.Snowflake.Password = "plain"
		require.NoError(t, ResolvePassword(cfg, fakeStore{PasswordKey: "stored"}))
		assert.Equal(t, "plain", cfg.Snowflake.Password)
	})

	t.Run("encrypted value", func(t *testing.T) {
		cfg := models.Defaults()
		enc, err := EncryptPassword("decrypted")
		require.NoError(t, err)
		cfg.Snowflake.Password = enc
		require.NoError(t, ResolvePassword(cfg, nil))
		assert.Equal(t, "decrypted", cfg.Snowflake.Password)
	})

	t.Run("keyring lookup", func(t *testing.T) {
		cfg := models.Defaults()
		require.NoError(t, ResolvePassword(cfg, fakeStore{PasswordKey: "stored"}))
		assert.Equal(t, "stored", cfg.Snowflake.Password)
	})

	t.Run("missing everywhere", func(t *testing.T) {
		cfg := models.Defaults()
		err := ResolvePassword(cfg, fakeStore{})
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeCredentialMissing, errors.GetErrorCode(err))
	})
}
