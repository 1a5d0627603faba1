package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"snowbank/internal/common"
	"snowbank/internal/config"
	"snowbank/internal/ui"
	"snowbank/pkg/errors"
	"snowbank/pkg/models"
)

var encryptConfigCmd = &cobra.Command{
	Use:   "encrypt-config",
	Short: "Encrypt passwords in configuration file",
	Long: `Encrypt plaintext passwords in the configuration file using AES-256-GCM.

The encryption key is derived from:
1. SNOWBANK_ENCRYPTION_KEY environment variable (if set)
2. Machine-specific identifier (hostname + home directory)

To supply the password at runtime instead:
  export SNOWBANK_SNOWFLAKE_PASSWORD="your-password"`,
	RunE: runEncryptConfig,
}

var configBackup bool

func init() {
	rootCmd.AddCommand(encryptConfigCmd)
	encryptConfigCmd.Flags().BoolVar(&configBackup, "backup", true, "Create backup of original config")
}

func runEncryptConfig(cmd *cobra.Command, args []string) error {
	configFile := config.GetConfigFile()
	if cfgFile != "" {
		configFile = filepath.Clean(cfgFile)
	}
	ui.ShowInfo("Reading configuration from " + configFile)

	data, err := os.ReadFile(configFile) // #nosec G304 - user selected config file
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to read config file").
			WithContext("path", configFile)
	}
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to load config").
			WithContext("path", configFile)
	}

	if !hasPlaintextPasswords(cfg) {
		ui.ShowInfo("No plaintext passwords found")
		return nil
	}

	if configBackup {
		backupFile := configFile + ".backup"
		if err := os.WriteFile(backupFile, data, common.FilePermissionSecure); err != nil {
			return errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to create backup").
				WithContext("path", backupFile)
		}
		ui.ShowSuccess("Created backup " + backupFile)
	}

	if err := config.EncryptConfigPasswords(cfg); err != nil {
		return errors.Wrap(err, errors.ErrCodeEncryptionFailed, "Failed to encrypt passwords")
	}
	if err := config.SaveFile(configFile, cfg); err != nil {
		return err
	}

	ui.ShowSuccess("Configuration passwords encrypted")
	return nil
}

func hasPlaintextPasswords(cfg *models.Config) bool {
	plain := func(pw string) bool { return pw != "" && !config.IsEncrypted(pw) }
	if plain(cfg.Snowflake.Password) {
		return true
	}
	for _, env := range cfg.Environments {
		if plain(env.Password) {
			return true
		}
	}
	return false
}
