// Provides in-memory secondary indexes for collections.

package docdb

// UniqueIndex provides O(1) lookup by a unique secondary key.
//
// The index is built from existing collection data when created and kept
// synchronized via the [Observer] interface. Like the collection itself it is
// not synchronized: use it while holding the collection's lock.
type UniqueIndex[K comparable, T Row[T]] struct {
	coll    *Collection[T]
	keyFunc func(T) K
	byKey   map[K]ID
}

// NewUniqueIndex creates a unique index on the given collection.
//
// The keyFunc extracts the index key from each row. Keys must be unique;
// if duplicates exist, the last row with each key wins.
func NewUniqueIndex[K comparable, T Row[T]](coll *Collection[T], keyFunc func(T) K) *UniqueIndex[K, T] {
	idx := &UniqueIndex[K, T]{
		coll:    coll,
		keyFunc: keyFunc,
		byKey:   make(map[K]ID),
	}
	coll.AddObserver(idx)
	return idx
}

// Get returns the live row with the given key.
func (idx *UniqueIndex[K, T]) Get(key K) (T, bool) {
	id, ok := idx.byKey[key]
	if !ok {
		var zero T
		return zero, false
	}
	return idx.coll.Get(id)
}

// Has reports whether a live row has the given key.
func (idx *UniqueIndex[K, T]) Has(key K) bool {
	_, ok := idx.byKey[key]
	return ok
}

// Len returns the number of indexed keys.
func (idx *UniqueIndex[K, T]) Len() int {
	return len(idx.byKey)
}

// rebind points the index at a reloaded collection and drops all keys.
func (idx *UniqueIndex[K, T]) rebind(c *Collection[T]) {
	idx.coll = c
	clear(idx.byKey)
}

// OnAdd implements [Observer].
func (idx *UniqueIndex[K, T]) OnAdd(row T) {
	idx.byKey[idx.keyFunc(row)] = row.GetID()
}

// OnUpdate implements [Observer].
func (idx *UniqueIndex[K, T]) OnUpdate(prev, curr T) {
	oldKey := idx.keyFunc(prev)
	newKey := idx.keyFunc(curr)
	if oldKey != newKey && idx.byKey[oldKey] == prev.GetID() {
		delete(idx.byKey, oldKey)
	}
	idx.byKey[newKey] = curr.GetID()
}

// OnRemove implements [Observer].
func (idx *UniqueIndex[K, T]) OnRemove(row T) {
	key := idx.keyFunc(row)
	if idx.byKey[key] == row.GetID() {
		delete(idx.byKey, key)
	}
}
