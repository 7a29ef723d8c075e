package docdb

import (
	"fmt"
	"iter"
	"reflect"
	"slices"
)

// Observer is notified of row mutations in a [Collection].
//
// Callbacks run synchronously while the caller holds the collection's lock.
// OnRemove is called before the row is tombstoned, so the row still carries
// its ID and field values.
type Observer[T any] interface {
	OnAdd(row T)
	OnUpdate(prev, curr T)
	OnRemove(row T)
}

// Collection is an ordered container of documents of one type.
//
// Mutations are total: invalid input (sentinel ID, duplicate ID on Add,
// unknown ID on Update/Remove) is ignored and reported with a false return
// value. A Collection is not safe for concurrent use; see [Store].
type Collection[T Row[T]] struct {
	rows []T
	// index maps live IDs to their slot.
	index map[ID]int
	// free holds tombstoned slots in ascending order.
	free      []int
	dirty     bool
	gen       uint64
	observers []Observer[T]
}

// NewCollection returns an empty collection.
func NewCollection[T Row[T]]() *Collection[T] {
	return &Collection[T]{index: make(map[ID]int), gen: 1}
}

// newCollectionFrom builds a collection from decoded rows, keeping tombstones
// in place. The result is clean.
func newCollectionFrom[T Row[T]](rows []T) (*Collection[T], error) {
	c := &Collection[T]{rows: rows, index: make(map[ID]int, len(rows)), gen: 1}
	for i, row := range rows {
		if isNil(row) {
			return nil, fmt.Errorf("row %d is null", i)
		}
		id := row.GetID()
		if id == Sentinel {
			c.free = append(c.free, i)
			continue
		}
		if prev, ok := c.index[id]; ok {
			return nil, fmt.Errorf("duplicate id %s in rows %d and %d", id, prev, i)
		}
		c.index[id] = i
	}
	return c, nil
}

// Len returns the number of slots, tombstones included.
func (c *Collection[T]) Len() int {
	return len(c.rows)
}

// LiveLen returns the number of live documents.
func (c *Collection[T]) LiveLen() int {
	return len(c.index)
}

// Dirty reports whether an Add, Update or Remove happened since the last
// compacting save.
func (c *Collection[T]) Dirty() bool {
	return c.dirty
}

// Generation is incremented by every mutation. Relation caches record it to
// detect that they are stale.
func (c *Collection[T]) Generation() uint64 {
	return c.gen
}

// Add inserts doc unless its ID is the sentinel or already used by a live
// document. The first tombstoned slot is reused if there is one.
func (c *Collection[T]) Add(doc T) bool {
	if isNil(doc) {
		return false
	}
	id := doc.GetID()
	if id == Sentinel {
		return false
	}
	if _, ok := c.index[id]; ok {
		return false
	}
	if len(c.free) > 0 {
		slot := c.free[0]
		c.free = c.free[1:]
		c.rows[slot] = doc
		c.index[id] = slot
	} else {
		c.index[id] = len(c.rows)
		c.rows = append(c.rows, doc)
	}
	c.mutated()
	for _, o := range c.observers {
		o.OnAdd(doc)
	}
	return true
}

// Update replaces the live document with the same ID, in the same slot.
func (c *Collection[T]) Update(doc T) bool {
	if isNil(doc) {
		return false
	}
	id := doc.GetID()
	if id == Sentinel {
		return false
	}
	slot, ok := c.index[id]
	if !ok {
		return false
	}
	prev := c.rows[slot]
	c.rows[slot] = doc
	c.mutated()
	for _, o := range c.observers {
		o.OnUpdate(prev, doc)
	}
	return true
}

// Remove tombstones the live document with the given ID. The slot is kept
// until a compacting save.
func (c *Collection[T]) Remove(id ID) bool {
	if id == Sentinel {
		return false
	}
	slot, ok := c.index[id]
	if !ok {
		return false
	}
	row := c.rows[slot]
	for _, o := range c.observers {
		o.OnRemove(row)
	}
	row.Tombstone()
	delete(c.index, id)
	i, _ := slices.BinarySearch(c.free, slot)
	c.free = slices.Insert(c.free, i, slot)
	c.mutated()
	return true
}

// Get returns the live document with the given ID.
//
// The returned row is the stored one, valid while the caller holds the
// collection's lock. Clone it before releasing the lock.
func (c *Collection[T]) Get(id ID) (T, bool) {
	if id == Sentinel {
		var zero T
		return zero, false
	}
	slot, ok := c.index[id]
	if !ok {
		var zero T
		return zero, false
	}
	return c.rows[slot], true
}

// Slot returns the row stored at slot i, which may be a tombstone.
func (c *Collection[T]) Slot(i int) (T, bool) {
	if i < 0 || i >= len(c.rows) {
		var zero T
		return zero, false
	}
	return c.rows[i], true
}

// All returns an iterator over every slot, tombstones included. Filter on
// GetID() != Sentinel to see the live set.
//
// Rows may be mutated in place by the caller, except for their ID.
func (c *Collection[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i, row := range c.rows {
			if !yield(i, row) {
				return
			}
		}
	}
}

// Live returns an iterator over live documents in slot order.
func (c *Collection[T]) Live() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, row := range c.rows {
			if row.GetID() == Sentinel {
				continue
			}
			if !yield(row) {
				return
			}
		}
	}
}

// AddObserver registers o and replays every live row to it with OnAdd.
func (c *Collection[T]) AddObserver(o Observer[T]) {
	c.observers = append(c.observers, o)
	for row := range c.Live() {
		o.OnAdd(row)
	}
}

// Locate implements [Locator].
func (c *Collection[T]) Locate(id ID) Ref {
	if slot, ok := c.index[id]; ok && id != Sentinel {
		return Ref{ID: id, Slot: slot, Gen: c.gen}
	}
	return Ref{ID: id, Slot: -1, Gen: c.gen}
}

// rowsForSave returns the rows to encode: only live rows when dirty,
// otherwise every slot verbatim.
func (c *Collection[T]) rowsForSave() (rows []T, compacted bool) {
	if !c.dirty {
		return c.rows, false
	}
	rows = make([]T, 0, len(c.index))
	for row := range c.Live() {
		rows = append(rows, row)
	}
	return rows, true
}

func (c *Collection[T]) mutated() {
	c.dirty = true
	c.gen++
}

// isNil reports whether v is a nil pointer (or nil interface).
func isNil[T any](v T) bool {
	rv := reflect.ValueOf(any(v))
	if !rv.IsValid() {
		return true
	}
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
