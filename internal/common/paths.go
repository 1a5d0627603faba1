// Package common holds path hygiene helpers and the file modes used for
// everything snowbank writes.
package common

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrTraversal is returned for paths that still contain ".." after cleaning.
	ErrTraversal = errors.New("path contains directory traversal")
	// ErrOutsideBase is returned when a path escapes its base directory.
	ErrOutsideBase = errors.New("path is outside the allowed directory")
)

// CleanPath cleans path and makes it absolute. Relative paths that climb
// above the working directory are rejected.
func CleanPath(path string) (string, error) {
	cleaned := filepath.Clean(path)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", ErrTraversal
	}
	if filepath.IsAbs(cleaned) {
		return cleaned, nil
	}
	abs, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	return abs, nil
}

// ValidatePath returns the cleaned absolute path when it lies inside baseDir.
func ValidatePath(path, baseDir string) (string, error) {
	cleanedBase, err := CleanPath(baseDir)
	if err != nil {
		return "", err
	}
	cleanedPath := filepath.Clean(path)
	if !filepath.IsAbs(cleanedPath) {
		if cleanedPath, err = filepath.Abs(cleanedPath); err != nil {
			return "", fmt.Errorf("failed to resolve absolute path: %w", err)
		}
	}

	rel, err := filepath.Rel(cleanedBase, cleanedPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrOutsideBase
	}
	return cleanedPath, nil
}
