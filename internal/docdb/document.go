package docdb

import "time"

// Cloner is implemented by types that can clone themselves.
type Cloner[T any] interface {
	Clone() T
}

// Row is the constraint for documents stored in a [Collection].
//
// Implementations are pointer types, usually embedding [Meta]. Clone must
// deep-copy slices so that a clone can be mutated without affecting the
// stored row. Relation caches are not copied by Clone (see [Relation.Clone]).
type Row[T any] interface {
	Cloner[T]
	GetID() ID
	Tombstone()
}

// Meta holds the fields common to every document.
type Meta struct {
	ID       ID        `json:"id" jsonschema:"description=Unique document identifier"`
	Created  time.Time `json:"created" jsonschema:"description=Creation timestamp"`
	Modified time.Time `json:"modified" jsonschema:"description=Last modification timestamp"`
}

// NewMeta returns metadata for a new document with both timestamps set to now.
func NewMeta(id ID) Meta {
	now := Now()
	return Meta{ID: id, Created: now, Modified: now}
}

// Now returns the current time in the form stored in documents: UTC, without
// a monotonic clock reading, so that it compares equal after a round trip.
func Now() time.Time {
	return time.Now().UTC()
}

// GetID returns the document ID.
func (m *Meta) GetID() ID {
	return m.ID
}

// Tombstone marks the document as deleted.
func (m *Meta) Tombstone() {
	m.ID = Sentinel
}

// Touch refreshes the modification timestamp.
func (m *Meta) Touch() {
	m.Modified = Now()
}
