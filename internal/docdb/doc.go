// Package docdb provides a generic, file-backed document collection with
// soft-delete semantics, whole-collection binary persistence and
// cross-collection relation caches.
//
// # Overview
//
// [Collection] is an ordered container of rows of one document type. Rows are
// never physically removed by [Collection.Remove]: the row's ID is set to
// [Sentinel] and the slot is kept in memory. A save of a dirty collection
// drops tombstones from the file; a save of a clean one writes every slot,
// tombstones included, so only a reload shrinks the slot list. [Store] wraps a
// Collection with its file path and an exclusive lock.
//
// # Concurrency: One Lock Per Collection
//
// A Collection is not synchronized. [Store.Do] grants exclusive access for the
// duration of a callback; there is no reader/writer distinction. Code that
// needs two collections at once must acquire them in a fixed order (see the
// storage package) or, preferably, hold one lock at a time.
//
// # Relations
//
// A [Relation] holds the foreign IDs of documents in another collection (the
// source of truth, persisted) plus a derived cache of [Ref] handles. A Ref is
// an (ID, slot, generation) triple, never a pointer into the target's backing
// array, and every dereference revalidates it against the target. A cache
// built before the target grew, compacted or tombstoned a row can therefore be
// stale but never dangling: a row that is gone reads as absent.
//
// # File Format
//
// A fixed header (magic, format version, compression, codec name, column
// schema, lengths, CRC32) followed by the encoded row slice. See [Encode].
package docdb
