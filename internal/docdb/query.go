// Read-only filtering, searching and sorting over the in-memory collection.

package docdb

import (
	"fmt"
	"slices"
	"strings"

	"github.com/maruel/docdb/internal/snapshot"
)

// Entry is one key/value pair returned by Sort.
type Entry struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Order is a sort direction.
type Order int

const (
	// Ascending sorts from the smallest value.
	Ascending Order = iota
	// Descending is the exact reverse of Ascending.
	Descending
)

func (o Order) String() string {
	if o == Descending {
		return "desc"
	}
	return "asc"
}

// ParseOrder parses "asc", "ascending", "desc" or "descending".
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(s) {
	case "asc", "ascending", "":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	default:
		return Ascending, fmt.Errorf("unknown sort order: %q", s)
	}
}

// Op is a comparison operator for Where.
type Op string

// Operators accepted by Where.
const (
	OpEq       Op = "eq"
	OpNe       Op = "ne"
	OpGt       Op = "gt"
	OpLt       Op = "lt"
	OpGe       Op = "ge"
	OpLe       Op = "le"
	OpContains Op = "contains"
)

// ParseOp parses an operator name or its symbol (=, !=, >, <, >=, <=).
func ParseOp(s string) (Op, error) {
	switch s {
	case "eq", "=", "==":
		return OpEq, nil
	case "ne", "!=":
		return OpNe, nil
	case "gt", ">":
		return OpGt, nil
	case "lt", "<":
		return OpLt, nil
	case "ge", ">=":
		return OpGe, nil
	case "le", "<=":
		return OpLe, nil
	case "contains":
		return OpContains, nil
	default:
		return "", fmt.Errorf("unknown operator: %q", s)
	}
}

// Filter returns the entries for which pred returns true, in insertion order.
//
// pred runs on a copy taken before the first call, without holding any lock,
// so it may call back into the store. Its view does not include changes made
// while Filter runs.
func (s *Store) Filter(pred func(value any, key string) bool) *snapshot.Collection {
	entries := s.entries()
	out := snapshot.NewCollection()
	for _, e := range entries {
		if pred(e.Value, e.Key) {
			out.Set(e.Key, e.Value)
		}
	}
	return out
}

// Search returns the object entries whose field equals expected.
//
// Entries that are not objects or lack field are skipped.
func (s *Store) Search(field string, expected any) *snapshot.Collection {
	want, err := snapshot.Normalize(expected)
	if err != nil {
		return snapshot.NewCollection()
	}
	return s.Filter(func(value any, _ string) bool {
		got, ok := fieldOf(value, field)
		return ok && snapshot.Equal(got, want)
	})
}

// Where returns the object entries whose field satisfies op against operand.
//
// Ordering operators only match values of the same kind as operand. contains
// matches a case-insensitive substring of a string or an element of an array.
func (s *Store) Where(field string, op Op, operand any) (*snapshot.Collection, error) {
	want, err := snapshot.Normalize(operand)
	if err != nil {
		return nil, fmt.Errorf("%w: operand: %w", ErrInvalidValue, err)
	}
	if op, err = ParseOp(string(op)); err != nil {
		return nil, err
	}
	return s.Filter(func(value any, _ string) bool {
		got, ok := fieldOf(value, field)
		return ok && matches(got, op, want)
	}), nil
}

// Sort returns the object entries holding field, ordered by that field.
//
// Entries that are not objects or lack field are dropped from the result.
// Ties keep insertion order when ascending; descending is the exact reverse.
func (s *Store) Sort(field string, order Order) []Entry {
	s.waitReady()
	s.mu.RLock()
	var out []Entry
	for k, v := range s.data.All() {
		if _, ok := fieldOf(v, field); ok {
			out = append(out, Entry{Key: k, Value: snapshot.Clone(v)})
		}
	}
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b Entry) int {
		va, _ := fieldOf(a.Value, field)
		vb, _ := fieldOf(b.Value, field)
		return snapshot.Compare(va, vb)
	})
	if order == Descending {
		slices.Reverse(out)
	}
	return out
}

// entries returns a deep copy of every entry in insertion order.
func (s *Store) entries() []Entry {
	s.waitReady()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, s.data.Len())
	for k, v := range s.data.All() {
		out = append(out, Entry{Key: k, Value: snapshot.Clone(v)})
	}
	return out
}

func fieldOf(value any, field string) (any, bool) {
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := obj[field]
	return v, ok
}

func matches(got any, op Op, want any) bool {
	switch op {
	case OpEq:
		return snapshot.Equal(got, want)
	case OpNe:
		return !snapshot.Equal(got, want)
	case OpGt, OpLt, OpGe, OpLe:
		if snapshot.KindOf(got) != snapshot.KindOf(want) {
			return false
		}
		c := snapshot.Compare(got, want)
		switch op {
		case OpGt:
			return c > 0
		case OpLt:
			return c < 0
		case OpGe:
			return c >= 0
		default:
			return c <= 0
		}
	case OpContains:
		switch g := got.(type) {
		case string:
			w, ok := want.(string)
			return ok && strings.Contains(strings.ToLower(g), strings.ToLower(w))
		case []any:
			return slices.ContainsFunc(g, func(e any) bool { return snapshot.Equal(e, want) })
		}
		return false
	default:
		return false
	}
}
