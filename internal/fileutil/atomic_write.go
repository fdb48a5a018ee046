package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// AtomicWriteFile replaces filename with data so readers see either the old or
// the new content, never a partial write. Missing parent directories are
// created. It reports whether filename did not exist before.
func AtomicWriteFile(filename string, data []byte, perm os.FileMode) (created bool, err error) {
	if _, statErr := os.Stat(filename); os.IsNotExist(statErr) {
		created = true
	}

	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(filename)+".*.tmp")
	if err != nil {
		return false, err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return false, err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return false, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return false, err
	}
	if err := tmp.Close(); err != nil {
		return false, err
	}
	if err := os.Rename(tmpName, filename); err != nil {
		return false, err
	}
	return created, nil
}
