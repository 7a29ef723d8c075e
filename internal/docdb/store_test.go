package docdb

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Get returns a clone", func(t *testing.T) {
		s := NewStore[*testDoc]("docs", "", nil, nil)
		s.Add(newDoc(1, "a"))
		d, _ := s.Get(1)
		d.Name = "changed"
		d.Links.Append(7)
		got, _ := s.Get(1)
		if got.Name != "a" || got.Links.Len() != 0 {
			t.Errorf("stored row modified through a clone: %+v", got)
		}
	})

	t.Run("Modify", func(t *testing.T) {
		s := NewStore[*testDoc]("docs", "", nil, nil)
		s.Add(newDoc(1, "a"))

		got, ok, err := s.Modify(1, func(d *testDoc) error {
			d.Name = "b"
			return nil
		})
		if err != nil || !ok || got.Name != "b" {
			t.Fatalf("Modify() = %v, %v, %v", got, ok, err)
		}

		errBoom := errors.New("boom")
		if _, _, err := s.Modify(1, func(d *testDoc) error {
			d.Name = "lost"
			return errBoom
		}); !errors.Is(err, errBoom) {
			t.Errorf("err = %v, want %v", err, errBoom)
		}
		if d, _ := s.Get(1); d.Name != "b" {
			t.Errorf("Name = %q after failed Modify, want %q", d.Name, "b")
		}

		if _, _, err := s.Modify(1, func(d *testDoc) error {
			d.ID = 2
			return nil
		}); err == nil {
			t.Error("Modify() allowed an id change")
		}

		if _, ok, _ := s.Modify(9, func(*testDoc) error { return nil }); ok {
			t.Error("Modify(unknown) = true")
		}
	})

	t.Run("concurrent adds", func(t *testing.T) {
		s := NewStore[*testDoc]("docs", "", nil, nil)
		var wg sync.WaitGroup
		for i := range 50 {
			wg.Go(func() {
				s.Add(newDoc(ID(i+1), "doc"))
			})
		}
		wg.Wait()
		if st := s.Stats(); st.Live != 50 || st.Tombstones() != 0 {
			t.Errorf("Stats() = %+v", st)
		}
	})

	t.Run("Save and Reload", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "docs.awdb")
		s := NewStore[*testDoc]("docs", path, nil, &Options{Compression: CompressionLZ4})
		s.Add(newDoc(1, "a"))
		s.Add(newDoc(2, "b"))
		s.Remove(1)
		if err := s.Save(ctx); err != nil {
			t.Fatal(err)
		}
		if st := s.Stats(); st.Dirty || st.Slots != 2 {
			t.Errorf("Stats() after save = %+v", st)
		}

		var idx *UniqueIndex[string, *testDoc]
		_ = s.Do(func(c *Collection[*testDoc]) error {
			idx = NewUniqueIndex(c, func(d *testDoc) string { return d.Name })
			return nil
		})
		s.Add(newDoc(3, "unsaved"))
		gen := s.Stats().Generation

		if err := s.Reload(ctx); err != nil {
			t.Fatal(err)
		}
		st := s.Stats()
		if st.Slots != 1 || st.Live != 1 || st.Dirty {
			t.Errorf("Stats() after reload = %+v", st)
		}
		if st.Generation <= gen {
			t.Errorf("Generation = %d, want > %d", st.Generation, gen)
		}
		var names []string
		_ = s.Do(func(c *Collection[*testDoc]) error {
			if idx.Has("unsaved") {
				t.Error("index kept a discarded row")
			}
			if row, ok := idx.Get("b"); !ok || row.ID != 2 {
				t.Errorf("index Get(b) = %v, %v", row, ok)
			}
			for row := range c.Live() {
				names = append(names, row.Name)
			}
			return nil
		})
		if diff := cmp.Diff([]string{"b"}, names); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("Reload absent is empty", func(t *testing.T) {
		s := NewStore[*testDoc]("docs", filepath.Join(t.TempDir(), "none.awdb"), nil, nil)
		s.Add(newDoc(1, "a"))
		if err := s.Reload(ctx); err != nil {
			t.Fatal(err)
		}
		if st := s.Stats(); st.Slots != 0 {
			t.Errorf("Stats() = %+v", st)
		}
	})
}
