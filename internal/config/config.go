// Package config locates, reads and writes ~/.snowbank/config.yaml and
// handles the ENC[...] password format stored in it.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"snowbank/internal/common"
	"snowbank/pkg/errors"
	"snowbank/pkg/models"
)

// EnvConfigDir overrides the configuration directory.
const EnvConfigDir = "SNOWBANK_CONFIG_DIR"

const fileName = "config.yaml"

// GetConfigPath is the snowbank configuration directory. It also holds the
// deployment history and the error journal.
func GetConfigPath() string {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		if cleaned, err := common.CleanPath(dir); err == nil {
			return cleaned
		}
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".snowbank")
}

func GetConfigFile() string {
	return filepath.Join(GetConfigPath(), fileName)
}

func Exists() bool {
	_, err := os.Stat(GetConfigFile())
	return err == nil
}

// LoadFile reads path and fills unset fields with defaults. A missing file
// yields the defaults alone.
func LoadFile(path string) (*models.Config, error) {
	path, err := common.CleanPath(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "Invalid config file path")
	}

	data, err := os.ReadFile(path) // #nosec G304
	switch {
	case os.IsNotExist(err):
		return models.Defaults(), nil
	case err != nil:
		return nil, errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to read config file").
			WithContext("path", path)
	}

	cfg := &models.Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Config file is not valid YAML").
			WithContext("path", path)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// Save writes cfg to the default config file.
func Save(cfg *models.Config) error {
	return SaveFile(GetConfigFile(), cfg)
}

// SaveFile writes cfg to path readable by the owner only.
func SaveFile(path string, cfg *models.Config) error {
	if err := os.MkdirAll(filepath.Dir(path), common.DirPermissionSecure); err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to create config directory")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to encode config")
	}
	if err := os.WriteFile(path, data, common.FilePermissionSecure); err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to write config file").
			WithContext("path", path)
	}
	return nil
}
