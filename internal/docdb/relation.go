package docdb

import (
	"iter"
	"maps"
	"slices"
)

// Ref is an indirect handle to a document of another collection.
//
// It records the foreign ID, the slot the document occupied and the target's
// generation at resolution time. It never points into the target's storage,
// so it cannot dangle; see [Relation.Get] for how it is revalidated.
type Ref struct {
	ID   ID
	Slot int // -1 if the ID was absent when resolved.
	Gen  uint64
}

// Present reports whether the ID was found when the ref was resolved.
func (r Ref) Present() bool {
	return r.Slot >= 0
}

// Locator maps IDs to refs for a target collection.
type Locator interface {
	Locate(id ID) Ref
	Generation() uint64
}

// RefSnapshot is an immutable ID to slot map captured from a collection.
//
// It lets a caller release the target's lock before locking the collection
// being resolved, so that only one collection lock is held at a time.
type RefSnapshot struct {
	slots map[ID]int
	gen   uint64
}

// Snapshot captures the current ID to slot mapping.
func (c *Collection[T]) Snapshot() *RefSnapshot {
	return &RefSnapshot{slots: maps.Clone(c.index), gen: c.gen}
}

// Locate implements [Locator].
func (s *RefSnapshot) Locate(id ID) Ref {
	if slot, ok := s.slots[id]; ok && id != Sentinel {
		return Ref{ID: id, Slot: slot, Gen: s.gen}
	}
	return Ref{ID: id, Slot: -1, Gen: s.gen}
}

// Generation implements [Locator].
func (s *RefSnapshot) Generation() uint64 {
	return s.gen
}

// Relation is an ordered list of foreign IDs into a collection of T plus a
// derived, non-persisted cache of refs of equal length.
type Relation[T Row[T]] struct {
	IDs []ID `json:"ids" jsonschema:"description=Foreign document identifiers"`

	refs     []Ref
	gen      uint64
	resolved bool
}

// NewRelation returns an unresolved relation holding a copy of ids.
func NewRelation[T Row[T]](ids ...ID) Relation[T] {
	return Relation[T]{IDs: slices.Clone(ids)}
}

// Len returns the number of foreign IDs.
func (r *Relation[T]) Len() int {
	return len(r.IDs)
}

// Resolve rebuilds the cache from loc. The previous cache is discarded, so
// calling it repeatedly is idempotent.
func (r *Relation[T]) Resolve(loc Locator) {
	refs := make([]Ref, len(r.IDs))
	for i, id := range r.IDs {
		refs[i] = loc.Locate(id)
	}
	r.refs = refs
	r.gen = loc.Generation()
	r.resolved = true
}

// Reset drops the cache.
func (r *Relation[T]) Reset() {
	r.refs = nil
	r.gen = 0
	r.resolved = false
}

// Set replaces the foreign IDs and drops the cache.
func (r *Relation[T]) Set(ids []ID) {
	r.IDs = slices.Clone(ids)
	r.Reset()
}

// Append adds a foreign ID. If the relation was resolved, an unresolved ref
// is appended so the cache keeps the same length; it is looked up by ID on
// first use.
func (r *Relation[T]) Append(id ID) {
	r.IDs = append(r.IDs, id)
	if r.resolved {
		r.refs = append(r.refs, Ref{ID: id, Slot: -1})
	}
}

// Resolved reports whether Resolve was called since the last Reset or Set.
func (r *Relation[T]) Resolved() bool {
	return r.resolved
}

// Refs returns a copy of the cache, or nil if the relation is unresolved.
func (r *Relation[T]) Refs() []Ref {
	if !r.resolved {
		return nil
	}
	return slices.Clone(r.refs)
}

// Stale reports whether the cache must be rebuilt to reflect target: it was
// never resolved or the target was mutated since.
func (r *Relation[T]) Stale(target Locator) bool {
	return !r.resolved || r.gen != target.Generation()
}

// Get returns the document referenced by the i-th foreign ID.
//
// A ref whose generation matches the target is read from its slot. Otherwise
// the slot is checked to still hold the same live ID, and failing that the ID
// is looked up again. A document that was tombstoned since resolution is
// reported absent, never served from the cache. The caller must hold target's
// lock.
func (r *Relation[T]) Get(i int, target *Collection[T]) (T, bool) {
	var zero T
	if i < 0 || i >= len(r.IDs) {
		return zero, false
	}
	if !r.resolved || i >= len(r.refs) {
		return target.Get(r.IDs[i])
	}
	ref := r.refs[i]
	if ref.Gen == target.Generation() {
		if !ref.Present() {
			return zero, false
		}
		if row, ok := target.Slot(ref.Slot); ok && row.GetID() == ref.ID {
			return row, true
		}
		return zero, false
	}
	if row, ok := target.Slot(ref.Slot); ok && ref.ID != Sentinel && row.GetID() == ref.ID {
		return row, true
	}
	return target.Get(ref.ID)
}

// Present iterates over the referenced documents that currently exist in
// target, with their position in IDs.
func (r *Relation[T]) Present(target *Collection[T]) iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i := range r.IDs {
			row, ok := r.Get(i, target)
			if !ok {
				continue
			}
			if !yield(i, row) {
				return
			}
		}
	}
}

// Clone returns a deep copy, cache included. Refs are plain values and stay
// safe to use on the copy.
func (r *Relation[T]) Clone() Relation[T] {
	return Relation[T]{
		IDs:      slices.Clone(r.IDs),
		refs:     slices.Clone(r.refs),
		gen:      r.gen,
		resolved: r.resolved,
	}
}

// ResolveAll resolves the relation selected by rel on every live document of
// src against loc. It returns the number of documents resolved.
//
// The cost is O(live documents × IDs per document) with an indexed locator.
func ResolveAll[S Row[S], T Row[T]](src *Collection[S], loc Locator, rel func(S) *Relation[T]) int {
	n := 0
	for row := range src.Live() {
		rel(row).Resolve(loc)
		n++
	}
	return n
}
