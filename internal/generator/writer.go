package generator

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"snowbank/internal/common"
	"snowbank/pkg/errors"
)

// writeCSV writes header and rows to rel under the output directory.
func (g *Generator) writeCSV(rel string, header []string, rows [][]string) error {
	path := g.path(rel)
	if err := os.MkdirAll(filepath.Dir(path), common.DirPermissionNormal); err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "failed to create directory").
			WithContext("path", filepath.Dir(path))
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, common.FilePermissionNormal)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "failed to create file").
			WithContext("path", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "failed to write header").WithContext("path", path)
	}
	if err := w.WriteAll(rows); err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "failed to write rows").WithContext("path", path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "failed to close file").WithContext("path", path)
	}
	return nil
}

func (g *Generator) writeFile(rel string, data []byte) error {
	path := g.path(rel)
	if err := os.MkdirAll(filepath.Dir(path), common.DirPermissionNormal); err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "failed to create directory").
			WithContext("path", filepath.Dir(path))
	}
	if err := os.WriteFile(path, data, common.FilePermissionNormal); err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "failed to write file").WithContext("path", path)
	}
	return nil
}

// byDay groups rows under their YYYY-MM-DD key and returns the keys sorted.
type byDay map[string][][]string

func (b byDay) add(day string, row []string) {
	b[day] = append(b[day], row)
}

func (b byDay) keys() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func joinKeys[V any](m map[string]V) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return strings.Join(keys, ", ")
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
