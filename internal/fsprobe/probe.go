// Package fsprobe answers existence, type and content questions about the
// filesystem without ever failing: any error, including permission and
// transient stat failures, is reported as absence.
package fsprobe

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Stat returns the file info for path, or false when it cannot be stat'ed.
func Stat(path string) (fs.FileInfo, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	return info, true
}

func IsFile(path string) bool {
	info, ok := Stat(path)
	return ok && info.Mode().IsRegular()
}

func IsDir(path string) bool {
	info, ok := Stat(path)
	return ok && info.IsDir()
}

// Exists reports whether path is present as a file or directory.
func Exists(path string) bool {
	_, ok := Stat(path)
	return ok
}

// ReadFile returns the content of path, or false when it is missing or unreadable.
func ReadFile(path string) ([]byte, bool) {
	// #nosec G304 -- resolution reads manifests and entry files named by the caller's import graph.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Realpath resolves symlinks in path. The input is returned unchanged when
// it cannot be resolved.
func Realpath(path string) string {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return path
	}
	return resolved
}

// ReadFileUnder reads targetPath only if it resolves under rootDir.
// Unlike the probes above it reports errors, since callers use it for
// explicitly requested files.
func ReadFileUnder(rootDir, targetPath string) ([]byte, error) {
	rootAbs, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolve root path: %w", err)
	}
	targetAbs, err := filepath.Abs(targetPath)
	if err != nil {
		return nil, fmt.Errorf("resolve target path: %w", err)
	}

	rel, err := filepath.Rel(rootAbs, targetAbs)
	if err != nil {
		return nil, fmt.Errorf("compute relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return nil, fmt.Errorf("path escapes root: %s", targetPath)
	}

	root, err := os.OpenRoot(rootAbs)
	if err != nil {
		return nil, fmt.Errorf("open root: %w", err)
	}
	defer root.Close()

	file, err := root.Open(filepath.Clean(rel))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(file)
}
