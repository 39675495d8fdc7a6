// File system access used by Manager.

package persist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// fileSystem abstracts the two operations Manager needs so tests can inject
// failures.
type fileSystem interface {
	ReadFile(name string) ([]byte, error)
	// WriteFile replaces name with data. Readers must never observe a partially
	// written file.
	WriteFile(name string, data []byte) error
}

// osFS is the production fileSystem.
type osFS struct{}

func (osFS) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name) //nolint:gosec // G304: path is validated at construction
}

// WriteFile writes to a temporary file in the same directory then renames it
// over name.
func (osFS) WriteFile(name string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(name), "."+filepath.Base(name)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		return errors.Join(fmt.Errorf("failed to write %s: %w", tmp, err), f.Close(), os.Remove(tmp))
	}
	if err := f.Sync(); err != nil {
		return errors.Join(fmt.Errorf("failed to sync %s: %w", tmp, err), f.Close(), os.Remove(tmp))
	}
	if err := f.Close(); err != nil {
		return errors.Join(fmt.Errorf("failed to close %s: %w", tmp, err), os.Remove(tmp))
	}
	if err := os.Chmod(tmp, 0o644); err != nil { //nolint:gosec // G302: snapshots are meant to be readable
		return errors.Join(fmt.Errorf("failed to chmod %s: %w", tmp, err), os.Remove(tmp))
	}
	if err := os.Rename(tmp, name); err != nil {
		return errors.Join(fmt.Errorf("failed to rename %s: %w", tmp, err), os.Remove(tmp))
	}
	return nil
}
