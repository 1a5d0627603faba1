package cmd

import (
	"context"
	"time"

	"snowbank/internal/catalog"
	"snowbank/internal/config"
	"snowbank/internal/logging"
	"snowbank/internal/security"
	"snowbank/internal/snowflake"
	"snowbank/internal/ui"
	"snowbank/pkg/errors"
	"snowbank/pkg/models"
)

// parseDuration accepts Go durations and falls back to def when empty.
func parseDuration(field, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.ValidationError(field, value, "not a duration such as 30s or 15m")
	}
	return d, nil
}

// snowflakeConfig resolves the password and maps the config section onto
// the service configuration.
func snowflakeConfig(cfg *models.Config) (snowflake.Config, error) {
	var secrets config.SecretStore
	if store, err := security.NewCredentialManager(); err != nil {
		logging.Warn().Err(err).Msg("credential store unavailable")
	} else {
		secrets = store
	}
	if err := config.ResolvePassword(cfg, secrets); err != nil {
		return snowflake.Config{}, err
	}

	timeout, err := parseDuration("snowflake.timeout", cfg.Snowflake.Timeout, 30*time.Second)
	if err != nil {
		return snowflake.Config{}, err
	}
	sf := cfg.Snowflake
	return snowflake.Config{
		Account:    sf.Account,
		Username:   sf.Username,
		Password:   sf.Password,
		Database:   sf.Database,
		Schema:     sf.Schema,
		Warehouse:  sf.Warehouse,
		Role:       sf.Role,
		Timeout:    timeout,
		MaxRetries: cfg.Deployment.MaxRetries,
	}, nil
}

// connect opens a Snowflake session. The caller closes the service.
func connect(ctx context.Context, cfg *models.Config) (*snowflake.Service, error) {
	sfCfg, err := snowflakeConfig(cfg)
	if err != nil {
		return nil, err
	}
	svc := snowflake.NewService(sfCfg)
	ui.ShowInfo("Connecting to " + sfCfg.String())
	if err := svc.Connect(ctx); err != nil {
		return nil, err
	}
	return svc, nil
}

// loadCatalog returns the embedded catalog or the one under deployment.sql_dir.
func loadCatalog(cfg *models.Config) (*catalog.Catalog, error) {
	if dir := cfg.Deployment.SQLDir; dir != "" {
		return catalog.LoadDir(dir)
	}
	return catalog.Load()
}
