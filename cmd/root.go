package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"snowbank/internal/config"
	"snowbank/internal/logging"
	"snowbank/internal/ui"
	"snowbank/pkg/errors"
	"snowbank/pkg/models"
)

var (
	cfgFile     string
	environment string
	logLevel    string
	logJSON     bool
	noColor     bool

	rootCmd = &cobra.Command{
		Use:   "snowbank",
		Short: "Deploy and feed the synthetic bank warehouse on Snowflake",
		Long: `SnowBank deploys the layered RAW, AGG, REPORTING and SEMANTIC catalog of a
synthetic retail bank to Snowflake, generates deterministic test data for every
domain, lands it in the RAW stages and checks the result.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				ui.SetColor(false)
			}
		},
	}
)

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	err := rootCmd.Execute()
	journal := errors.DefaultJournal()
	if err != nil {
		journal.Record(err)
	}
	_ = journal.Close()
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ~/.snowbank/config.yaml)")
	pf.StringVarP(&environment, "env", "e", "", "named environment from the config file")
	pf.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&logJSON, "log-json", false, "log JSON to stderr instead of console output")
	pf.BoolVar(&noColor, "no-color", false, "disable colored output")
}

// envKeys are the settings that SNOWBANK_* variables may override.
var envKeys = []string{
	"snowflake.account",
	"snowflake.username",
	"snowflake.password",
	"snowflake.role",
	"snowflake.warehouse",
	"snowflake.database",
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath(config.GetConfigPath())
	}

	// a missing file falls back to defaults in loadConfig
	_ = viper.ReadInConfig()
}

// envViper only sees SNOWBANK_* variables, never the config file, so an
// environment overlay is not undone by base values.
func envViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("SNOWBANK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
	return v
}

// loadConfig reads the config file found by viper, overlays the selected
// environment and SNOWBANK_* variables and configures logging.
func loadConfig() (*models.Config, error) {
	path := viper.ConfigFileUsed()
	if path == "" {
		path = config.GetConfigFile()
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to load configuration").
			WithContext("path", path)
	}

	if environment != "" && !cfg.ApplyEnvironment(environment) {
		return nil, errors.Newf(errors.ErrCodeConfigInvalid, "unknown environment %q", environment).
			WithSuggestions("Add it under 'environments' in " + path)
	}
	applyEnvOverrides(cfg)

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	logging.Init(logging.Config{
		Level:      level,
		Pretty:     !(logJSON || cfg.Logging.JSON),
		TimeFormat: time.RFC3339,
	})
	openJournal()
	logging.Debug().Str("config", path).Str("env", environment).Msg("configuration loaded")
	return cfg, nil
}

// openJournal records command failures under the config directory.
func openJournal() {
	path := filepath.Join(config.GetConfigPath(), "errors.log")
	j, err := errors.OpenJournal(path, errors.DefaultJournalSize)
	if err != nil {
		logging.Debug().Err(err).Msg("error journal disabled")
		return
	}
	errors.SetJournal(j)
}

func applyEnvOverrides(cfg *models.Config) {
	env := envViper()
	set := func(dst *string, key string) {
		if v := env.GetString(key); v != "" {
			*dst = v
		}
	}
	set(&cfg.Snowflake.Account, "snowflake.account")
	set(&cfg.Snowflake.Username, "snowflake.username")
	set(&cfg.Snowflake.Password, "snowflake.password")
	set(&cfg.Snowflake.Role, "snowflake.role")
	set(&cfg.Snowflake.Warehouse, "snowflake.warehouse")
	set(&cfg.Snowflake.Database, "snowflake.database")
}

func printf(format string, args ...interface{}) {
	fmt.Fprintf(ui.Output, format, args...)
}
