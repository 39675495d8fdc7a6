// Insertion-ordered key/value container.

package snapshot

import (
	"iter"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Collection maps string keys to document values, preserving insertion order.
//
// Replacing the value of an existing key keeps its position.
type Collection struct {
	m *orderedmap.OrderedMap[string, any]
}

// NewCollection returns an empty Collection.
func NewCollection() *Collection {
	return &Collection{m: orderedmap.New[string, any]()}
}

func (c *Collection) init() {
	if c.m == nil {
		c.m = orderedmap.New[string, any]()
	}
}

// Len returns the number of entries.
func (c *Collection) Len() int {
	if c.m == nil {
		return 0
	}
	return c.m.Len()
}

// Get returns the value stored under key. The value is not cloned.
func (c *Collection) Get(key string) (any, bool) {
	if c.m == nil {
		return nil, false
	}
	return c.m.Get(key)
}

// Has reports whether key is present.
func (c *Collection) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Set inserts or replaces the value under key.
func (c *Collection) Set(key string, value any) {
	c.init()
	c.m.Set(key, value)
}

// Delete removes key and reports whether it was present.
func (c *Collection) Delete(key string) bool {
	if c.m == nil {
		return false
	}
	_, ok := c.m.Delete(key)
	return ok
}

// Keys returns the keys in insertion order.
func (c *Collection) Keys() []string {
	keys := make([]string, 0, c.Len())
	for k := range c.All() {
		keys = append(keys, k)
	}
	return keys
}

// All iterates over the entries in insertion order. Values are not cloned.
func (c *Collection) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if c.m == nil {
			return
		}
		for pair := c.m.Oldest(); pair != nil; pair = pair.Next() {
			if !yield(pair.Key, pair.Value) {
				return
			}
		}
	}
}

// Clone returns a deep copy.
func (c *Collection) Clone() *Collection {
	out := NewCollection()
	for k, v := range c.All() {
		out.m.Set(k, Clone(v))
	}
	return out
}

// MarshalJSON implements json.Marshaler. Keys are emitted in insertion order.
func (c *Collection) MarshalJSON() ([]byte, error) {
	if c.m == nil {
		return []byte("{}"), nil
	}
	return c.m.MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler. Keys keep their order in data.
func (c *Collection) UnmarshalJSON(data []byte) error {
	c.m = orderedmap.New[string, any]()
	return c.m.UnmarshalJSON(data)
}
