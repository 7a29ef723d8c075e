// Tracks every persisted collection of the process and saves them.

package storage

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/maruel/awth/internal/docdb"
	"golang.org/x/sync/errgroup"
)

// Persister is a collection bound to a file. [docdb.Store] implements it.
type Persister interface {
	sync.Locker
	Name() string
	Save(ctx context.Context) error
	Reload(ctx context.Context) error
	Stats() docdb.Stats
}

// Registry is the ordered list of persisted collections.
//
// Registration order is also the global lock order: code that needs several
// collections at once must go through [Registry.LockOrdered].
type Registry struct {
	metrics *Metrics

	mu    sync.Mutex
	items []Persister
	rank  map[sync.Locker]int
}

// NewRegistry returns an empty registry. m may be nil.
func NewRegistry(m *Metrics) *Registry {
	return &Registry{metrics: m, rank: make(map[sync.Locker]int)}
}

// Register appends p. Names must be unique.
func (r *Registry) Register(p Persister) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.items {
		if q.Name() == p.Name() {
			return fmt.Errorf("collection %q is already registered", p.Name())
		}
	}
	r.rank[p] = len(r.items)
	r.items = append(r.items, p)
	return nil
}

func (r *Registry) snapshot() []Persister {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.items)
}

// LoadAll reloads every collection from disk concurrently. Collections are
// independent so no lock order applies.
func (r *Registry) LoadAll(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, p := range r.snapshot() {
		eg.Go(func() error {
			err := p.Reload(ctx)
			r.metrics.observeLoad(p.Name(), err)
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", p.Name(), err)
			}
			st := p.Stats()
			r.metrics.observeStats(p.Name(), st)
			slog.InfoContext(ctx, "storage: loaded collection", "name", p.Name(), "live", st.Live, "tombstones", st.Tombstones())
			return nil
		})
	}
	return eg.Wait()
}

// SaveAll saves every collection in registration order, one lock at a time.
// It does not stop at the first failure; all errors are joined.
//
// There is no cross-collection snapshot: a mutation spanning two collections
// may be saved half way if it runs between two saves.
func (r *Registry) SaveAll(ctx context.Context) error {
	var errs []error
	for _, p := range r.snapshot() {
		start := time.Now()
		err := p.Save(ctx)
		r.metrics.observeSave(p.Name(), start, err)
		r.metrics.observeStats(p.Name(), p.Stats())
		if err != nil {
			slog.ErrorContext(ctx, "storage: save failed", "name", p.Name(), "err", err)
			errs = append(errs, fmt.Errorf("failed to save %s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Run calls SaveAll every interval until ctx is canceled. It does not save
// on exit; the caller does a final SaveAll once it stopped mutating.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Errors were logged by SaveAll; the next tick retries.
			_ = r.SaveAll(ctx)
		}
	}
}

// LockOrdered locks every given registered collection in registration order
// and returns the function that unlocks them in reverse order.
func (r *Registry) LockOrdered(ls ...sync.Locker) (unlock func()) {
	r.mu.Lock()
	sorted := slices.Clone(ls)
	for _, l := range sorted {
		if _, ok := r.rank[l]; !ok {
			r.mu.Unlock()
			panic(fmt.Sprintf("storage: lock %T is not registered", l))
		}
	}
	slices.SortFunc(sorted, func(a, b sync.Locker) int { return cmp.Compare(r.rank[a], r.rank[b]) })
	sorted = slices.Compact(sorted)
	r.mu.Unlock()
	for _, l := range sorted {
		l.Lock()
	}
	return func() {
		for _, l := range slices.Backward(sorted) {
			l.Unlock()
		}
	}
}
