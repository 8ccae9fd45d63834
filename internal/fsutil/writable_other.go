//go:build !unix

package fsutil

import (
	"os"
	"path/filepath"
)

// Writable reports whether the current user may write path. Without access(2)
// this only checks that the file or its parent directory exists.
func Writable(path string) bool {
	if _, err := os.Stat(path); err == nil {
		return true
	}
	_, err := os.Stat(filepath.Dir(path))
	return err == nil
}
