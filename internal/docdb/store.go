package docdb

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Store is a Collection bound to its file, guarded by an exclusive lock.
//
// All access goes through [Store.Do]; the lock is not reentrant. Store does
// not order itself against other stores: a caller that needs two stores at
// once must acquire them in a fixed global order.
type Store[T Row[T]] struct {
	name string
	path string
	opts Options

	mu   sync.Mutex
	coll *Collection[T]
}

// NewStore returns a store around coll, or around an empty collection if
// coll is nil. Nothing is read from path until [Store.Reload].
func NewStore[T Row[T]](name, path string, coll *Collection[T], opts *Options) *Store[T] {
	if coll == nil {
		coll = NewCollection[T]()
	}
	s := &Store[T]{name: name, path: path, coll: coll}
	if opts != nil {
		s.opts = *opts
	}
	return s
}

func (s *Store[T]) logSaved(ctx context.Context, compacted bool) {
	slog.DebugContext(ctx, "docdb: saved collection",
		"name", s.name, "slots", s.coll.Len(), "live", s.coll.LiveLen(), "compacted", compacted)
}

// Name returns the collection name.
func (s *Store[T]) Name() string {
	return s.name
}

// Path returns the collection file path.
func (s *Store[T]) Path() string {
	return s.path
}

// Lock acquires exclusive access. Prefer [Store.Do].
func (s *Store[T]) Lock() {
	s.mu.Lock()
}

// Unlock releases the lock taken by Lock.
func (s *Store[T]) Unlock() {
	s.mu.Unlock()
}

// Collection returns the guarded collection. The caller must hold the lock.
func (s *Store[T]) Collection() *Collection[T] {
	return s.coll
}

// Do runs fn with exclusive access to the collection. Rows obtained inside fn
// must be cloned before they escape it.
func (s *Store[T]) Do(fn func(c *Collection[T]) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.coll)
}

// Get returns a clone of the live document with the given ID.
func (s *Store[T]) Get(id ID) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.coll.Get(id)
	if !ok {
		return row, false
	}
	return row.Clone(), true
}

// Add inserts doc. See [Collection.Add].
func (s *Store[T]) Add(doc T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coll.Add(doc)
}

// Remove tombstones the document. See [Collection.Remove].
func (s *Store[T]) Remove(id ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coll.Remove(id)
}

// Modify atomically modifies a live document: fn receives a clone, which
// replaces the stored row if fn succeeds. It returns a clone of the result
// and false if the ID is unknown.
func (s *Store[T]) Modify(id ID, fn func(row T) error) (T, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	row, ok := s.coll.Get(id)
	if !ok {
		return zero, false, nil
	}
	c := row.Clone()
	if err := fn(c); err != nil {
		return zero, true, err
	}
	if c.GetID() != id {
		return zero, true, fmt.Errorf("modify must not change the id of %s", id)
	}
	s.coll.Update(c)
	return c.Clone(), true, nil
}

// Live returns clones of every live document.
func (s *Store[T]) Live() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]T, 0, s.coll.LiveLen())
	for row := range s.coll.Live() {
		out = append(out, row.Clone())
	}
	return out
}

// Stats reports slot counts and the dirty flag.
func (s *Store[T]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Slots:      s.coll.Len(),
		Live:       s.coll.LiveLen(),
		Dirty:      s.coll.Dirty(),
		Generation: s.coll.Generation(),
	}
}

// Stats is a point-in-time summary of a collection.
type Stats struct {
	Slots      int
	Live       int
	Dirty      bool
	Generation uint64
}

// Tombstones returns the number of tombstoned slots.
func (s Stats) Tombstones() int {
	return s.Slots - s.Live
}

// Save writes the collection to its file while holding the lock, so two
// saves of the same store never interleave. See [SaveFile].
func (s *Store[T]) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	compacted, err := SaveFile(s.path, s.coll, &s.opts)
	if err != nil {
		return err
	}
	s.logSaved(ctx, compacted)
	return nil
}

// Reload replaces the in-memory collection with the file content, absent
// meaning empty. Unsaved changes are discarded. Relation caches pointing into
// this store become stale and indexes are rebuilt.
func (s *Store[T]) Reload(ctx context.Context) error {
	coll, err := LoadOrEmpty[T](ctx, s.path, &s.opts)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// Keep the generation monotonic so existing refs see the change.
	coll.gen = s.coll.gen + 1
	coll.observers = s.coll.observers
	for _, o := range coll.observers {
		if r, ok := o.(interface{ rebind(c *Collection[T]) }); ok {
			r.rebind(coll)
		}
		for row := range coll.Live() {
			o.OnAdd(row)
		}
	}
	s.coll = coll
	return nil
}
