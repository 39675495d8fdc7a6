// Package snapshot holds the document value model and the on-disk snapshot format.
//
// # Values
//
// A document value is one of nil, bool, float64, string, []any or
// map[string]any, recursively. [Normalize] converts arbitrary Go values into
// that shape and rejects what JSON cannot represent.
//
// # Collection
//
// [Collection] is the insertion-ordered key to value mapping backing a store.
// It is not safe for concurrent use; the owner serializes access.
//
// # File Format
//
// A snapshot is the whole Collection as a single pretty-printed JSON object,
// keys in insertion order, followed by a newline.
//
// Only the top-level keys keep their order. Nested objects are map[string]any,
// so their keys are written sorted and a file edited by hand has them sorted
// again on the next save.
package snapshot
