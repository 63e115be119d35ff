// Package fsutil provides file system utility functions.
package fsutil

import (
	"os"
	"path/filepath"
	"strings"
)

// FindFilesByExtension lists the files directly inside dir that end with one
// of the specified extensions. Subdirectories are not searched. It returns a
// slice of their full paths in lexical order.
func FindFilesByExtension(dir string, extensions ...string) ([]string, error) {
	if len(extensions) == 0 {
		panic("at least one extension must be given")
	}
	for _, ext := range extensions {
		if ext == "" {
			panic("extension must not be empty")
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		for _, ext := range extensions {
			if strings.HasSuffix(entry.Name(), ext) {
				files = append(files, filepath.Join(dir, entry.Name()))
				break
			}
		}
	}

	return files, nil
}

// Stem returns the base name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
