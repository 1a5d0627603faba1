package security

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"

	"github.com/zalando/go-keyring"

	"snowbank/internal/common"
)

const keyringService = "snowbank"

// keyringStore uses the OS keyring. The keyring cannot enumerate entries so
// the stored names are kept in a JSON index file.
type keyringStore struct {
	index string
}

func (k *keyringStore) set(name, value string) error {
	if err := keyring.Set(keyringService, name, value); err != nil {
		return err
	}
	return k.update(func(names []string) []string {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
		return names
	})
}

func (k *keyringStore) get(name string) (string, error) {
	return keyring.Get(keyringService, name)
}

func (k *keyringStore) remove(name string) error {
	if err := keyring.Delete(keyringService, name); err != nil {
		return err
	}
	return k.update(func(names []string) []string {
		return slices.DeleteFunc(names, func(n string) bool { return n == name })
	})
}

func (k *keyringStore) names() ([]string, error) {
	data, err := os.ReadFile(k.index) // #nosec G304
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, err
	}
	return names, nil
}

func (k *keyringStore) update(fn func([]string) []string) error {
	names, err := k.names()
	if err != nil {
		return err
	}
	names = fn(names)
	slices.Sort(names)
	data, err := json.Marshal(names)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(k.index), common.DirPermissionSecure); err != nil {
		return err
	}
	return os.WriteFile(k.index, data, common.FilePermissionSecure)
}
