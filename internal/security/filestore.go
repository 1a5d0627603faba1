package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"snowbank/internal/common"
)

const (
	saltSize         = 32
	keySize          = 32
	pbkdf2Iterations = 100000
	credSuffix       = ".cred"
)

var errShortCiphertext = errors.New("ciphertext too short")

// fileStore writes one AES-GCM sealed file per secret. The key is derived
// with PBKDF2 from a machine identifier and a random salt kept in .master.
type fileStore struct {
	dir  string
	aead cipher.AEAD
}

func openFileStore(dir string) (*fileStore, error) {
	key, err := masterKey(dir)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &fileStore{dir: dir, aead: aead}, nil
}

// masterKey reads salt|key from dir/.master, creating it on first use.
func masterKey(dir string) ([]byte, error) {
	path := filepath.Join(dir, ".master")
	data, err := os.ReadFile(path) // #nosec G304
	if err == nil {
		if len(data) != saltSize+keySize {
			return nil, errors.New("master key file has the wrong size")
		}
		return data[saltSize:], nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key := pbkdf2.Key([]byte(machineID()), salt, pbkdf2Iterations, keySize, sha256.New)
	if err := os.MkdirAll(dir, common.DirPermissionSecure); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, append(salt, key...), common.FilePermissionSecure); err != nil {
		return nil, err
	}
	return key, nil
}

func machineID() string {
	hostname, _ := os.Hostname()
	user := os.Getenv("USER")
	if user == "" {
		user = os.Getenv("USERNAME")
	}
	sum := sha256.Sum256([]byte(strings.Join([]string{hostname, user, runtime.GOOS, runtime.GOARCH}, "-")))
	return base64.StdEncoding.EncodeToString(sum[:])
}

func (s *fileStore) path(name string) string {
	return filepath.Join(s.dir, name+credSuffix)
}

func (s *fileStore) set(name, value string) error {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return err
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(value), nil)
	if err := os.MkdirAll(s.dir, common.DirPermissionSecure); err != nil {
		return err
	}
	return os.WriteFile(s.path(name), []byte(base64.StdEncoding.EncodeToString(sealed)), common.FilePermissionSecure)
}

func (s *fileStore) get(name string) (string, error) {
	data, err := os.ReadFile(s.path(name)) // #nosec G304
	if err != nil {
		return "", err
	}
	sealed, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return "", err
	}
	n := s.aead.NonceSize()
	if len(sealed) < n {
		return "", errShortCiphertext
	}
	plain, err := s.aead.Open(nil, sealed[:n], sealed[n:], nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func (s *fileStore) remove(name string) error {
	return os.Remove(s.path(name))
}

func (s *fileStore) names() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := []string{}
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), credSuffix); ok && !e.IsDir() {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out, nil
}
