package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowbank/internal/catalog"
	"snowbank/internal/config"
	"snowbank/internal/deploy"
	"snowbank/internal/ui"
	"snowbank/pkg/errors"
	"snowbank/pkg/models"
)

func TestGenerateAndLoadLocal(t *testing.T) {
	cfgPath := isolate(t)
	out := filepath.Join(t.TempDir(), "generated")
	dest := filepath.Join(t.TempDir(), "landing")

	stdout, err := execute(t, "generate", "--config", cfgPath,
		"--customers", "5", "--period", "1", "--start-date", "2024-01-01",
		"--seed", "9", "--fixed-income-trades", "20", "--commodity-trades", "20",
		"--pep-records", "10", "--output", out)
	require.NoError(t, err, stdout)
	assert.Contains(t, stdout, "Customers")
	assert.FileExists(t, filepath.Join(out, "master_data", "customers.csv"))
	assert.FileExists(t, filepath.Join(out, "reports", "generation_summary.txt"))

	stdout, err = execute(t, "load", "--config", cfgPath, "--dir", out, "--target", "local", "--local-dir", dest)
	require.NoError(t, err, stdout)
	assert.Contains(t, stdout, "local:"+dest)
	assert.FileExists(t, filepath.Join(dest, "master_data", "customers.csv"))
	assert.FileExists(t, filepath.Join(dest, "master_data", "accounts.csv"))
	assert.NoFileExists(t, filepath.Join(dest, "reports", "generation_summary.txt"))
}

func TestGenerateRejectsInvalidConfig(t *testing.T) {
	cfgPath := isolate(t)
	_, err := execute(t, "generate", "--config", cfgPath, "--start-date", "01/02/2024")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeValidationFailed))
}

func TestPlanOffline(t *testing.T) {
	cfgPath := isolate(t)
	stdout, err := execute(t, "plan", "--config", cfgPath, "--offline", "--layers", "RAW", "--domains", "CRM")
	require.NoError(t, err, stdout)
	assert.Contains(t, stdout, "01_raw/010_crm.sql")
	assert.Contains(t, stdout, "APPLY")
	assert.NotContains(t, stdout, "02_agg")
}

func TestPlanUnknownLayer(t *testing.T) {
	cfgPath := isolate(t)
	_, err := execute(t, "plan", "--config", cfgPath, "--offline", "--layers", "GOLD")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput))
	selLayers, selDomains = nil, nil
}

func TestDeployDryRunRecordsHistory(t *testing.T) {
	cfgPath := isolate(t)
	stdout, err := execute(t, "deploy", "--config", cfgPath, "--dry-run", "--layers", "RAW", "--domains", "REF")
	require.NoError(t, err, stdout)
	assert.Contains(t, stdout, "FXRI_RAW_STAGE")
	assert.Contains(t, stdout, "Dry run")

	h, err := deploy.NewHistory(deploy.DefaultHistoryDir())
	require.NoError(t, err)
	runs := h.List(0)
	require.Len(t, runs, 1)
	assert.Equal(t, deploy.StateDryRun, runs[0].State)

	stdout, err = execute(t, "history", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, runs[0].ID[:8])
	assert.Contains(t, stdout, "DRY-RUN")

	stdout, err = execute(t, "history", "--config", cfgPath, runs[0].ID[:8])
	require.NoError(t, err)
	assert.Contains(t, stdout, "01_raw/030_ref.sql")
	selLayers, selDomains = nil, nil
	deployDryRun = false
}

func TestHistoryEmpty(t *testing.T) {
	cfgPath := isolate(t)
	stdout, err := execute(t, "history", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "No deployments recorded")
}

func TestCheckList(t *testing.T) {
	cfgPath := isolate(t)
	stdout, err := execute(t, "check", "--config", cfgPath, "--list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "fx_bid_mid_ask")
	assert.Contains(t, stdout, "eqt_position_quantity")
	checkFlags.list = false
}

func TestEncryptConfig(t *testing.T) {
	cfgPath := isolate(t)
	t.Setenv("SNOWBANK_ENCRYPTION_KEY", "test-key")
	require.NoError(t, os.WriteFile(cfgPath, []byte("snowflake:\n  account: a\n  password: hunter2\n"), 0o600))

	stdout, err := execute(t, "encrypt-config", "--config", cfgPath)
	require.NoError(t, err, stdout)
	assert.FileExists(t, cfgPath+".backup")

	cfg, err := config.LoadFile(cfgPath)
	require.NoError(t, err)
	assert.True(t, config.IsEncrypted(cfg.Snowflake.Password))
	plain, err := config.DecryptPassword(cfg.Snowflake.Password)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", plain)

	stdout, err = execute(t, "encrypt-config", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "No plaintext passwords")
}

func TestApplyGenerateFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.IntVar(&genFlags.customers, "customers", 0, "")
	flags.BoolVar(&genFlags.skipSwift, "skip-swift", false, "")
	t.Cleanup(func() { genFlags.customers, genFlags.skipSwift = 0, false })
	g := models.Defaults().Generator

	applyGenerateFlags(pflag.NewFlagSet("empty", pflag.ContinueOnError), &g)
	assert.Equal(t, 10, g.Customers, "unset flags keep the config value")

	require.NoError(t, flags.Set("customers", "25"))
	require.NoError(t, flags.Set("skip-swift", "true"))
	applyGenerateFlags(flags, &g)
	assert.Equal(t, 25, g.Customers)
	assert.True(t, g.SkipSwift)
}

func TestSelectionFallsBackToConfig(t *testing.T) {
	selLayers, selDomains = nil, nil
	cfg := models.Defaults()
	cfg.Deployment.Layers = []string{"agg"}
	cfg.Deployment.Domains = []string{"pay"}

	f, err := selection(cfg)
	require.NoError(t, err)
	assert.Equal(t, []catalog.Layer{catalog.LayerAgg}, f.Layers)
	assert.Equal(t, []string{"PAY"}, f.Domains)

	selLayers = []string{"RAW"}
	t.Cleanup(func() { selLayers = nil })
	f, err = selection(cfg)
	require.NoError(t, err)
	assert.Equal(t, []catalog.Layer{catalog.LayerRaw}, f.Layers)
}

func TestObjectSummary(t *testing.T) {
	objs := []*catalog.Object{
		{Type: catalog.ObjectTypeTable},
		{Type: catalog.ObjectTypeStage},
		{Type: catalog.ObjectTypeTable},
		{Type: catalog.ObjectTypeAlter},
	}
	assert.Equal(t, "2 TABLE, 1 STAGE", objectSummary(objs))
	assert.Equal(t, "", objectSummary(nil))
}

func TestHasPlaintextPasswords(t *testing.T) {
	cfg := models.Defaults()
	assert.False(t, hasPlaintextPasswords(cfg))

	cfg.Environments = []models.Environment{{Name: "dev", Password: "x"}}
	assert.True(t, hasPlaintextPasswords(cfg))

	cfg.Environments[0].Password = "ENC[abc]"
	cfg.Snowflake.Password = "plain"
	assert.True(t, hasPlaintextPasswords(cfg))
}

func TestParseDuration(t *testing.T) {
	d, err := parseDuration("x", "", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, d)

	d, err = parseDuration("x", "15m", 0)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, d)

	_, err = parseDuration("deployment.timeout", "soon", 0)
	assert.True(t, errors.HasCode(err, errors.ErrCodeValidationFailed))
}

func TestStatusHelpers(t *testing.T) {
	assert.Equal(t, ui.Failed, scriptOutcome(deploy.StatusFailed))
	assert.Equal(t, ui.Skipped, scriptOutcome(deploy.StatusSkipped))
	assert.Equal(t, ui.Skipped, scriptOutcome(deploy.StatusDryRun))
	assert.Equal(t, ui.Succeeded, scriptOutcome(deploy.StatusApplied))

	assert.Equal(t, "SUCCESS", runStatus(deploy.StateCompleted))
	assert.Equal(t, "PENDING", runStatus(deploy.StateInProgress))

	assert.Equal(t, "abc", shortID("abc", 8))
	assert.Equal(t, "abcdefgh", shortID("abcdefghij", 8))
}
