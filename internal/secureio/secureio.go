// Package secureio provides traversal-safe file I/O helpers and the
// atomic write pattern used throughout Sift's persisted state: temp file
// in the same directory, permissions locked down, then renamed into place.
package secureio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ReadFileScoped opens the parent directory as an os.Root and reads the
// named file from that root, so a maliciously crafted path component can't
// escape the intended directory.
func ReadFileScoped(path string) ([]byte, error) {
	path = filepath.Clean(strings.TrimSpace(path))
	if path == "" {
		return nil, fmt.Errorf("path required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(abs)
	base := filepath.Base(abs)
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	defer root.Close()
	return root.ReadFile(base)
}

// WriteFileAtomic writes data to path by creating a temp file in the same
// directory, locking its permissions down, then renaming it into place.
// This guarantees readers never observe a partially written file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	path = filepath.Clean(strings.TrimSpace(path))
	if path == "" {
		return fmt.Errorf("path required")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".sift-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file into place: %w", err)
	}
	success = true
	return nil
}
