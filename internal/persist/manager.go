// Package persist owns the primary and backup snapshot files of a store.
//
// Save writes the previous snapshot generation to the backup file before
// rewriting the primary, so an interrupted primary write can always be rolled
// back. Load walks the recovery chain primary, backup, empty and never fails.
package persist

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/maruel/docdb/internal/snapshot"
)

// Ext is the required extension of a primary snapshot path.
const Ext = ".json"

const backupExt = ".backup" + Ext

var (
	// ErrInvalidPath is returned by New when the path cannot hold a snapshot.
	ErrInvalidPath = errors.New("invalid snapshot path")
	// ErrPersistence is returned when a snapshot cannot be written.
	ErrPersistence = errors.New("persistence failure")
)

// Source tells where Load got its data from.
type Source int

const (
	// SourcePrimary means the primary file was read as is.
	SourcePrimary Source = iota
	// SourceCreated means there was no primary file; an empty one was created.
	SourceCreated
	// SourceBackup means the primary was unusable and the backup was restored.
	SourceBackup
	// SourceEmpty means neither file was usable; data was reset to empty.
	SourceEmpty
)

func (s Source) String() string {
	switch s {
	case SourcePrimary:
		return "primary"
	case SourceCreated:
		return "created"
	case SourceBackup:
		return "backup"
	case SourceEmpty:
		return "empty"
	default:
		return fmt.Sprintf("Source(%d)", int(s))
	}
}

// Options configures a Manager.
type Options struct {
	// DisableBackup turns off the backup file. Backups are on by default.
	DisableBackup bool
	// Logger receives recovery warnings. Defaults to slog.Default().
	Logger *slog.Logger

	fs fileSystem
}

// LoadResult is returned by Manager.Load.
type LoadResult struct {
	Collection *snapshot.Collection
	Source     Source
	// Err is set when the recovered data could not be written back to the
	// primary file. Collection is still usable.
	Err error
}

// Manager reads and writes the snapshot files.
//
// At most one Load or Save runs at a time.
type Manager struct {
	path       string
	backupPath string
	backup     bool
	log        *slog.Logger
	fs         fileSystem

	mu sync.Mutex
	// lastGood is the content of the primary file as of the last successful
	// load or save, nil if unknown.
	lastGood []byte
}

// New validates path and returns a Manager. The parent directory is created
// if needed.
func New(path string, opts Options) (*Manager, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidPath, path, err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return nil, fmt.Errorf("failed to create directory for %s: %w", abs, err)
	}
	m := &Manager{
		path:       abs,
		backupPath: strings.TrimSuffix(abs, Ext) + backupExt,
		backup:     !opts.DisableBackup,
		log:        opts.Logger,
		fs:         opts.fs,
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	if m.fs == nil {
		m.fs = osFS{}
	}
	return m, nil
}

func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	base := filepath.Base(path)
	if !strings.HasSuffix(base, Ext) {
		return fmt.Errorf("%w: %q must end in %s", ErrInvalidPath, path, Ext)
	}
	if base == Ext {
		return fmt.Errorf("%w: %q has no file name", ErrInvalidPath, path)
	}
	return nil
}

// Path returns the absolute path of the primary file.
func (m *Manager) Path() string {
	return m.path
}

// BackupPath returns the absolute path of the backup file.
func (m *Manager) BackupPath() string {
	return m.backupPath
}

// BackupEnabled reports whether Save maintains a backup file.
func (m *Manager) BackupEnabled() bool {
	return m.backup
}

// Load reads the primary file, falling back to the backup then to an empty
// collection. Whatever is adopted is written back to the primary unless it was
// read from it.
func (m *Manager) Load() LoadResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := m.fs.ReadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		m.lastGood = nil
		c := snapshot.NewCollection()
		m.log.Debug("Creating snapshot", "path", m.path)
		// A leftover backup is kept as is; only a missing one is initialized.
		_, berr := m.fs.ReadFile(m.backupPath)
		return LoadResult{Collection: c, Source: SourceCreated, Err: m.save(c, errors.Is(berr, fs.ErrNotExist))}
	}
	if err == nil {
		c, derr := snapshot.Decode(data)
		if derr == nil {
			m.lastGood = data
			return LoadResult{Collection: c, Source: SourcePrimary}
		}
		err = derr
	}
	m.log.Warn("Primary snapshot unusable", "path", m.path, "err", err)
	m.lastGood = nil

	if m.backup {
		data, c, berr := m.readBackup()
		if berr == nil {
			m.log.Warn("Restoring snapshot from backup", "path", m.backupPath, "entries", c.Len())
			m.lastGood = data
			return LoadResult{Collection: c, Source: SourceBackup, Err: m.save(c, false)}
		}
		m.log.Error("Backup snapshot unusable", "path", m.backupPath, "err", berr)
	}

	m.log.Error("Starting with an empty collection", "path", m.path)
	c := snapshot.NewCollection()
	return LoadResult{Collection: c, Source: SourceEmpty, Err: m.save(c, false)}
}

func (m *Manager) readBackup() ([]byte, *snapshot.Collection, error) {
	data, err := m.fs.ReadFile(m.backupPath)
	if err != nil {
		return nil, nil, err
	}
	c, err := snapshot.Decode(data)
	if err != nil {
		return nil, nil, err
	}
	return data, c, nil
}

// Save writes c to the primary file, first copying the previous generation to
// the backup file. A backup failure is logged and does not fail the save.
func (m *Manager) Save(c *snapshot.Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(c, false)
}

// save must be called with mu held. fresh is true when neither file exists yet,
// in which case the initial backup holds the same content as the primary.
func (m *Manager) save(c *snapshot.Collection, fresh bool) error {
	data, err := snapshot.Encode(c)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if m.backup {
		prev := m.lastGood
		if prev == nil && fresh {
			prev = data
		}
		// With neither a known-good primary nor a fresh start, the file on disk
		// is corrupt and must not replace the backup.
		if prev != nil {
			if err := m.fs.WriteFile(m.backupPath, prev); err != nil {
				m.log.Warn("Failed to write backup", "path", m.backupPath, "err", err)
			}
		}
	}
	if err := m.fs.WriteFile(m.path, data); err != nil {
		return fmt.Errorf("%w: failed to write %s: %w", ErrPersistence, m.path, err)
	}
	m.lastGood = data
	return nil
}
