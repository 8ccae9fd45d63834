// Package fsutil provides the file primitives targets use to read and
// rewrite configuration files.
package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/moby/sys/atomicwriter"
)

// DefaultFileMode is used for files that do not exist yet.
const DefaultFileMode fs.FileMode = 0644

// Expand resolves a leading ~ to the current user's home directory.
func Expand(path string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", path, err)
	}
	return expanded, nil
}

// MustExpand is Expand for well-known default paths; it falls back to the
// unexpanded path when the home directory cannot be determined.
func MustExpand(path string) string {
	expanded, err := Expand(path)
	if err != nil {
		return path
	}
	return expanded
}

// ReadFile reads a file. A missing file is not an error: it returns nil
// content and exists=false.
func ReadFile(path string) (data []byte, exists bool, err error) {
	data, err = os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}
	return data, true, nil
}

// WriteFile atomically replaces path with data. The mode of an existing file
// is kept and symlinks are followed so that the link target is rewritten
// instead of the link itself. The parent directory must exist.
func WriteFile(path string, data []byte) error {
	resolved := path
	if target, err := filepath.EvalSymlinks(path); err == nil {
		resolved = target
	}

	mode := DefaultFileMode
	if info, err := os.Stat(resolved); err == nil {
		mode = info.Mode().Perm()
	}

	if err := atomicwriter.WriteFile(resolved, data, mode); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Remove deletes path. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// Backup copies path to a timestamped sibling and returns the backup path.
// Nothing is written when path does not exist.
func Backup(path string) (string, error) {
	data, exists, err := ReadFile(path)
	if err != nil || !exists {
		return "", err
	}

	mode := DefaultFileMode
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	backupPath := fmt.Sprintf("%s.backup.%s", path, time.Now().Format("20060102-150405"))
	if err := os.WriteFile(backupPath, data, mode); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	return backupPath, nil
}
