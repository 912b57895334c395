package xfs

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandTilde replaces a leading tilde (~) with the user's home directory.
func ExpandTilde(path string) string {
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return path
	}

	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}

	return path
}

// Resolve expands a leading tilde and makes path absolute relative to the
// current working directory.
func Resolve(path string) (string, error) {
	expanded := ExpandTilde(strings.TrimSpace(path))
	if expanded == "" {
		return "", os.ErrNotExist
	}

	return filepath.Abs(expanded)
}

// Ext returns the lower-cased extension of path, including the dot.
func Ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
