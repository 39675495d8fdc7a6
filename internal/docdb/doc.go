// Package docdb provides an embedded, concurrent-safe document store backed by
// a single JSON snapshot file.
//
// # Overview
//
// [Store] keeps the whole collection in memory. Reads never touch disk. Every
// mutation updates memory then rewrites the snapshot before returning; the
// previous generation is kept in a backup file used to recover from a corrupt
// primary. See package persist for the recovery chain.
//
// # Readiness
//
// A Store created with [New] is loading until [Store.Load] completes. Every
// operation issued meanwhile blocks until the store is ready. [Open] does both
// steps.
//
// # Concurrency
//
// Mutations hold the write lock for the whole read-modify-write including the
// file rewrite, so concurrent pushes to the same key never lose updates and at
// most one save is in flight. Several Store instances, or processes, on the
// same file are not coordinated: the last writer wins.
//
// # Durability
//
// When a save fails the mutating call returns an error wrapping
// [ErrPersistence] but the in-memory value is kept. Callers must treat such a
// change as not durable.
package docdb
