package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"snowbank/pkg/errors"
	"snowbank/pkg/models"
)

// EnvEncryptionKey holds the passphrase for ENC[...] values. Without it the
// key is bound to this machine and user.
const EnvEncryptionKey = "SNOWBANK_ENCRYPTION_KEY"

const (
	encryptedPrefix = "ENC["
	encryptedSuffix = "]"
)

func passwordCipher() (cipher.AEAD, error) {
	secret := os.Getenv(EnvEncryptionKey)
	if secret == "" {
		hostname, _ := os.Hostname()
		home, _ := os.UserHomeDir()
		secret = hostname + "-" + home + "-snowbank"
	}
	key := sha256.Sum256([]byte(secret))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// IsEncrypted reports whether value has the ENC[...] form.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, encryptedPrefix) && strings.HasSuffix(value, encryptedSuffix)
}

// EncryptPassword seals password with AES-256-GCM as ENC[base64(nonce|ciphertext)].
// Empty and already encrypted values are returned unchanged.
func EncryptPassword(password string) (string, error) {
	if password == "" || IsEncrypted(password) {
		return password, nil
	}
	gcm, err := passwordCipher()
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeEncryptionFailed, "Failed to initialise cipher")
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeEncryptionFailed, "Failed to generate nonce")
	}
	sealed := gcm.Seal(nonce, nonce, []byte(password), nil)
	return encryptedPrefix + base64.StdEncoding.EncodeToString(sealed) + encryptedSuffix, nil
}

// DecryptPassword opens a value produced by EncryptPassword. Plain values
// pass through.
func DecryptPassword(value string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}
	sealed, err := base64.StdEncoding.DecodeString(value[len(encryptedPrefix) : len(value)-len(encryptedSuffix)])
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeEncryptionFailed, "Encrypted password is not valid base64")
	}
	gcm, err := passwordCipher()
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeEncryptionFailed, "Failed to initialise cipher")
	}
	if len(sealed) < gcm.NonceSize() {
		return "", errors.New(errors.ErrCodeEncryptionFailed, "Encrypted password is truncated")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeEncryptionFailed, "Failed to decrypt password").
			WithSuggestions("Set " + EnvEncryptionKey + " to the key used when encrypting")
	}
	return string(plain), nil
}

// EncryptConfigPasswords encrypts the Snowflake password and every
// environment password in place.
func EncryptConfigPasswords(cfg *models.Config) error {
	targets := map[string]*string{"snowflake": &cfg.Snowflake.Password}
	for i := range cfg.Environments {
		targets["environment "+cfg.Environments[i].Name] = &cfg.Environments[i].Password
	}
	for name, pw := range targets {
		enc, err := EncryptPassword(*pw)
		if err != nil {
			return fmt.Errorf("%s password: %w", name, err)
		}
		*pw = enc
	}
	return nil
}
