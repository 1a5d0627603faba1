package config

import (
	"snowbank/pkg/errors"
	"snowbank/pkg/models"
)

// PasswordKey is the credential store key for the Snowflake password.
const PasswordKey = "snowflake-password"

// SecretStore looks up stored credentials.
type SecretStore interface {
	Get(key string) (string, error)
}

// ResolvePassword fills cfg.Snowflake.Password. A literal value wins, ENC[...]
// values are decrypted and an empty value is looked up in store.
func ResolvePassword(cfg *models.Config, store SecretStore) error {
	pw := cfg.Snowflake.Password
	switch {
	case IsEncrypted(pw):
		plain, err := DecryptPassword(pw)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeEncryptionFailed, "Failed to decrypt snowflake.password").
				WithSuggestions("Set SNOWBANK_ENCRYPTION_KEY to the key used by 'snowbank encrypt-config'")
		}
		cfg.Snowflake.Password = plain
	case pw == "" && store != nil:
		stored, err := store.Get(PasswordKey)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeCredentialMissing, "No Snowflake password configured").
				WithSuggestions(
					"Run 'snowbank setup' to store the password in the OS keyring",
					"Or export SNOWBANK_SNOWFLAKE_PASSWORD",
				)
		}
		cfg.Snowflake.Password = stored
	}
	return nil
}
