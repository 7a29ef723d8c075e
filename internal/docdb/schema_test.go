package docdb

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSchema(t *testing.T) {
	cols, err := Schema[*testDoc]()
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]columnType{}
	for _, c := range cols {
		got[c.Name] = c.Type
	}
	want := map[string]columnType{
		"id":       columnTypeID,
		"created":  columnTypeDate,
		"modified": columnTypeDate,
		"name":     columnTypeText,
		"tags":     columnTypeJSONB,
		"links":    columnTypeRelation,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
	for _, c := range cols {
		if c.Name == "name" && c.Description != "Display name" {
			t.Errorf("name description = %q", c.Description)
		}
	}

	if _, err := Schema[int](); err == nil {
		t.Error("Schema[int]() succeeded")
	}
}

func TestCheckColumns(t *testing.T) {
	current := []Column{{Name: "id", Type: columnTypeID}, {Name: "name", Type: columnTypeText}}
	tests := []struct {
		name    string
		stored  []Column
		wantErr error
	}{
		{"same", current, nil},
		{"added column", []Column{{Name: "id", Type: columnTypeID}}, nil},
		{"removed column", append([]Column{{Name: "old", Type: columnTypeBool}}, current...), nil},
		{"type change", []Column{{Name: "name", Type: columnTypeNumber}}, ErrSchemaMismatch},
		{"unnamed", []Column{{Type: columnTypeText}}, errColumnName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkColumns(tt.stored, current)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("checkColumns() = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("checkColumns() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestID(t *testing.T) {
	t.Run("text round trip", func(t *testing.T) {
		id := NewID()
		if id == Sentinel {
			t.Fatal("NewID() returned the sentinel")
		}
		got, err := ParseID(id.String())
		if err != nil || got != id {
			t.Errorf("ParseID(%q) = %d, %v; want %d", id.String(), got, err, id)
		}
	})

	t.Run("json", func(t *testing.T) {
		for _, id := range []ID{Sentinel, NewID()} {
			b, err := id.MarshalJSON()
			if err != nil {
				t.Fatal(err)
			}
			var got ID
			if err := got.UnmarshalJSON(b); err != nil || got != id {
				t.Errorf("UnmarshalJSON(%s) = %d, %v; want %d", b, got, err, id)
			}
		}
		if string(must(Sentinel.MarshalJSON())) != `""` {
			t.Error(`sentinel does not marshal as ""`)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		if _, err := ParseID("!!not-an-id!!"); err == nil {
			t.Error("ParseID() succeeded")
		}
	})
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
