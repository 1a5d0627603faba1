// Package security stores connection secrets outside the config file.
package security

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"snowbank/internal/config"
	"snowbank/internal/logging"
	"snowbank/pkg/errors"
)

// EnvUseKeyring set to "false" forces the encrypted file store.
const EnvUseKeyring = "SNOWBANK_USE_KEYRING"

// backend is one place secrets can live.
type backend interface {
	set(name, value string) error
	get(name string) (string, error)
	remove(name string) error
	names() ([]string, error)
}

// CredentialManager keeps secrets in the OS keyring when one is available
// and in encrypted files under the credentials directory otherwise.
type CredentialManager struct {
	useKeyring bool
	dir        string
	store      backend
}

type Option func(*CredentialManager)

// WithDir overrides the credentials directory.
func WithDir(dir string) Option {
	return func(cm *CredentialManager) { cm.dir = dir }
}

// WithKeyring forces keyring usage on or off.
func WithKeyring(enabled bool) Option {
	return func(cm *CredentialManager) { cm.useKeyring = enabled }
}

func NewCredentialManager(opts ...Option) (*CredentialManager, error) {
	cm := &CredentialManager{
		useKeyring: isKeyringAvailable(),
		dir:        filepath.Join(config.GetConfigPath(), "credentials"),
	}
	for _, opt := range opts {
		opt(cm)
	}

	if cm.useKeyring {
		cm.store = &keyringStore{index: filepath.Join(cm.dir, ".index")}
	} else {
		fs, err := openFileStore(cm.dir)
		if err != nil {
			return nil, err
		}
		cm.store = fs
	}

	logging.Debug().Bool("keyring", cm.useKeyring).Str("dir", cm.dir).Msg("credential store ready")
	return cm, nil
}

// UsesKeyring reports whether secrets go to the OS keyring.
func (cm *CredentialManager) UsesKeyring() bool {
	return cm.useKeyring
}

func (cm *CredentialManager) Store(name, value string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := cm.store.set(name, value); err != nil {
		return errors.Wrap(err, errors.ErrCodeEncryptionFailed, "Failed to store credential").
			WithContext("name", name)
	}
	return nil
}

// Get returns the secret stored under name. A missing secret is
// ErrCodeCredentialMissing.
func (cm *CredentialManager) Get(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	v, err := cm.store.get(name)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeCredentialMissing, "Credential not available").
			WithContext("name", name)
	}
	return v, nil
}

func (cm *CredentialManager) Delete(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := cm.store.remove(name); err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to delete credential").
			WithContext("name", name)
	}
	return nil
}

// List returns stored credential names in sorted order.
func (cm *CredentialManager) List() ([]string, error) {
	return cm.store.names()
}

func validateName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return errors.ValidationError("name", name, "credential names are single path segments")
	}
	return nil
}

func isKeyringAvailable() bool {
	if os.Getenv(EnvUseKeyring) == "false" {
		return false
	}
	switch runtime.GOOS {
	case "darwin", "windows":
		return true
	case "linux":
		return os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != ""
	}
	return false
}
