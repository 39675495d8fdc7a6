// Store construction, lifecycle and CRUD operations.

package docdb

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/maruel/docdb/internal/persist"
	"github.com/maruel/docdb/internal/snapshot"
	"github.com/maruel/ksid"
)

// Options configures a Store.
type Options struct {
	// Path is the primary snapshot file. It must end in ".json".
	Path string
	// DisableBackup turns off the ".backup.json" copy.
	DisableBackup bool
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Store is an in-memory document collection persisted to a JSON snapshot.
type Store struct {
	mgr *persist.Manager
	log *slog.Logger

	ready    chan struct{}
	loadOnce sync.Once

	mu   sync.RWMutex
	data *snapshot.Collection
}

// New validates opts and returns a Store that is not loaded yet.
//
// Call Load before or concurrently with using it; operations block until the
// initial load completes.
func New(opts Options) (*Store, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	mgr, err := persist.New(opts.Path, persist.Options{DisableBackup: opts.DisableBackup, Logger: log})
	if err != nil {
		return nil, err
	}
	return &Store{
		mgr:   mgr,
		log:   log,
		ready: make(chan struct{}),
		data:  snapshot.NewCollection(),
	}, nil
}

// Open returns a loaded Store.
func Open(opts Options) (*Store, error) {
	s, err := New(opts)
	if err != nil {
		return nil, err
	}
	s.Load()
	return s, nil
}

// Load performs the initial load and marks the store ready. Only the first
// call has an effect.
//
// Load never fails: unusable files degrade to the backup or to an empty
// collection. A failure to write the recovered snapshot back is logged.
func (s *Store) Load() {
	s.loadOnce.Do(func() {
		s.mu.Lock()
		res := s.mgr.Load()
		s.data = res.Collection
		s.mu.Unlock()
		if res.Err != nil {
			s.log.Error("Failed to write snapshot after load", "path", s.mgr.Path(), "source", res.Source.String(), "err", res.Err)
		} else if res.Source != persist.SourcePrimary {
			s.log.Info("Loaded snapshot", "path", s.mgr.Path(), "source", res.Source.String())
		}
		close(s.ready)
	})
}

// Ready reports whether the initial load completed.
func (s *Store) Ready() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// WaitReady blocks until the initial load completed or ctx is done.
func (s *Store) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrNotReady, ctx.Err())
	}
}

func (s *Store) waitReady() {
	<-s.ready
}

// Path returns the absolute path of the primary snapshot.
func (s *Store) Path() string {
	return s.mgr.Path()
}

// BackupPath returns the absolute path of the backup snapshot.
func (s *Store) BackupPath() string {
	return s.mgr.BackupPath()
}

// Get returns a copy of the value stored under key.
func (s *Store) Get(key string) (any, bool) {
	s.waitReady()
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data.Get(key)
	if !ok {
		return nil, false
	}
	return snapshot.Clone(v), true
}

// Has reports whether key is present.
func (s *Store) Has(key string) bool {
	s.waitReady()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Has(key)
}

// Set stores value under key and persists the collection.
//
// value is normalized to the document model: numbers become float64, slices
// []any, maps and structs map[string]any.
func (s *Store) Set(key string, value any) error {
	if err := checkKey(key); err != nil {
		return err
	}
	v, err := normalize(key, value)
	if err != nil {
		return err
	}
	s.waitReady()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Set(key, v)
	return s.save()
}

// Add is an alias of Set.
func (s *Store) Add(key string, value any) error {
	return s.Set(key, value)
}

// Insert stores value under a newly generated key and returns the key.
//
// Generated keys are unique within the process and sort in creation order. As
// with Set, the entry stays in memory when persisting fails; the key is
// returned along with the error.
func (s *Store) Insert(value any) (string, error) {
	key := ksid.NewID().String()
	v, err := normalize(key, value)
	if err != nil {
		return "", err
	}
	s.waitReady()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Set(key, v)
	return key, s.save()
}

// Delete removes key. Deleting an absent key is not an error; the collection
// is persisted either way.
func (s *Store) Delete(key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	s.waitReady()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Delete(key)
	return s.save()
}

// Clear removes every entry and persists the empty collection.
func (s *Store) Clear() error {
	s.waitReady()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = snapshot.NewCollection()
	return s.save()
}

// Keys returns the keys in insertion order.
func (s *Store) Keys() []string {
	s.waitReady()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Keys()
}

// Values returns copies of the values in insertion order.
func (s *Store) Values() []any {
	s.waitReady()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]any, 0, s.data.Len())
	for _, v := range s.data.All() {
		out = append(out, snapshot.Clone(v))
	}
	return out
}

// Size returns the number of entries.
func (s *Store) Size() int {
	s.waitReady()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Len()
}

// All returns a deep copy of the whole collection.
func (s *Store) All() *snapshot.Collection {
	s.waitReady()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Clone()
}

// Save forces a rewrite of the snapshot.
func (s *Store) Save() error {
	s.waitReady()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

// Reload replaces the in-memory collection with the one on disk, discarding
// unsaved changes. It follows the same recovery chain as the initial load; the
// returned error only reports a failure to write the recovered snapshot back.
func (s *Store) Reload() error {
	s.waitReady()
	s.mu.Lock()
	defer s.mu.Unlock()
	res := s.mgr.Load()
	s.data = res.Collection
	if res.Source != persist.SourcePrimary {
		s.log.Warn("Reloaded snapshot", "path", s.mgr.Path(), "source", res.Source.String())
	}
	return res.Err
}

// save must be called with mu held.
func (s *Store) save() error {
	if err := s.mgr.Save(s.data); err != nil {
		s.log.Error("Failed to save snapshot", "path", s.mgr.Path(), "err", err)
		return err
	}
	return nil
}

func checkKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key must be a non-empty string", ErrInvalidKey)
	}
	return nil
}

func normalize(key string, value any) (any, error) {
	v, err := snapshot.Normalize(value)
	if err != nil {
		return nil, fmt.Errorf("%w: key %q: %w", ErrInvalidValue, key, err)
	}
	return v, nil
}
