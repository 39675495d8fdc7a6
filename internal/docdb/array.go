// Array-valued entry mutations.

package docdb

import (
	"fmt"
	"slices"

	"github.com/maruel/docdb/internal/snapshot"
)

type pushConfig struct {
	allowDuplicates bool
}

// PushOption configures Push.
type PushOption func(*pushConfig)

// AllowDuplicates controls whether Push appends a value already present in the
// array. Duplicates are allowed by default.
func AllowDuplicates(allow bool) PushOption {
	return func(c *pushConfig) {
		c.allowDuplicates = allow
	}
}

// Unique is AllowDuplicates(false).
func Unique() PushOption {
	return AllowDuplicates(false)
}

// Push appends value to the array stored under key.
//
// An absent key starts as an empty array. Any other non-array value fails with
// ErrTypeMismatch. With Unique, pushing a value already present is a no-op and
// does not persist.
func (s *Store) Push(key string, value any, opts ...PushOption) error {
	cfg := pushConfig{allowDuplicates: true}
	for _, o := range opts {
		o(&cfg)
	}
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
	var arr []any
	if cur, ok := s.data.Get(key); ok {
		a, isArr := cur.([]any)
		if !isArr {
			return fmt.Errorf("%w: cannot push to %q holding %s", ErrTypeMismatch, key, snapshot.KindOf(cur))
		}
		arr = a
	}
	if !cfg.allowDuplicates && slices.ContainsFunc(arr, func(e any) bool { return snapshot.Equal(e, v) }) {
		return nil
	}
	s.data.Set(key, append(arr, v))
	return s.save()
}

// RemoveFromArray removes every element equal to value from the array stored
// under key. It is a no-op when key is absent or not an array.
func (s *Store) RemoveFromArray(key string, value any) error {
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
	cur, ok := s.data.Get(key)
	if !ok {
		return nil
	}
	arr, isArr := cur.([]any)
	if !isArr {
		return nil
	}
	kept := make([]any, 0, len(arr))
	for _, e := range arr {
		if !snapshot.Equal(e, v) {
			kept = append(kept, e)
		}
	}
	s.data.Set(key, kept)
	return s.save()
}
