package docdb

import (
	"slices"
	"testing"
	"time"
)

// testDoc is a document type with a self relation for testing.
type testDoc struct {
	Meta
	Name  string             `json:"name" jsonschema:"description=Display name"`
	Tags  []string           `json:"tags,omitempty"`
	Links Relation[*testDoc] `json:"links"`
}

func (d *testDoc) Clone() *testDoc {
	c := *d
	c.Tags = slices.Clone(d.Tags)
	c.Links = d.Links.Clone()
	return &c
}

// newDoc returns a document with fixed timestamps.
func newDoc(id ID, name string, links ...ID) *testDoc {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 600, time.UTC)
	return &testDoc{
		Meta:  Meta{ID: id, Created: ts, Modified: ts},
		Name:  name,
		Links: NewRelation[*testDoc](links...),
	}
}

// liveIDs returns the IDs of live documents in slot order.
func liveIDs(c *Collection[*testDoc]) []ID {
	var ids []ID
	for row := range c.Live() {
		ids = append(ids, row.ID)
	}
	return ids
}

// slotIDs returns the ID of every slot, tombstones included.
func slotIDs(c *Collection[*testDoc]) []ID {
	var ids []ID
	for _, row := range c.All() {
		ids = append(ids, row.ID)
	}
	return ids
}

func mustAdd(t *testing.T, c *Collection[*testDoc], docs ...*testDoc) {
	t.Helper()
	for _, d := range docs {
		if !c.Add(d) {
			t.Fatalf("Add(%d) = false", d.ID)
		}
	}
}
