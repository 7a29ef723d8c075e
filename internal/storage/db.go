package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/maruel/awth/internal/docdb"
	"github.com/maruel/awth/internal/storage/entity"
)

// DB is the application state: one store per collection, registered in lock
// order (posts, then users).
type DB struct {
	Posts    *docdb.Store[*entity.Post]
	Users    *docdb.Store[*entity.User]
	Registry *Registry

	// emails is guarded by the Users lock.
	emails *docdb.UniqueIndex[string, *entity.User]
}

// OpenDB loads the collections under dataDir/db, empty ones when their file
// is absent, and resolves relations.
func OpenDB(ctx context.Context, dataDir string, cfg *Config, m *Metrics) (*DB, error) {
	dbDir := filepath.Join(dataDir, "db")
	opts := cfg.StoreOptions()
	db := &DB{
		Posts:    docdb.NewStore[*entity.Post]("posts", filepath.Join(dbDir, "posts.awdb"), nil, opts),
		Users:    docdb.NewStore[*entity.User]("users", filepath.Join(dbDir, "users.awdb"), nil, opts),
		Registry: NewRegistry(m),
	}
	for _, p := range []Persister{db.Posts, db.Users} {
		if err := db.Registry.Register(p); err != nil {
			return nil, err
		}
	}
	_ = db.Users.Do(func(c *docdb.Collection[*entity.User]) error {
		db.emails = docdb.NewUniqueIndex(c, func(u *entity.User) string { return entity.NormalizeEmail(u.Email) })
		return nil
	})
	if err := db.Registry.LoadAll(ctx); err != nil {
		return nil, err
	}
	n := db.ResolveRelations(ctx)
	slog.InfoContext(ctx, "storage: resolved relations", "users", n)
	return db, nil
}

// ResolveRelations rebuilds the post caches of every user.
//
// The posts lock is released before the users lock is taken: the snapshot
// may be outdated by the time it is applied, which dereferences detect.
func (db *DB) ResolveRelations(ctx context.Context) int {
	var snap *docdb.RefSnapshot
	_ = db.Posts.Do(func(c *docdb.Collection[*entity.Post]) error {
		snap = c.Snapshot()
		return nil
	})
	n := 0
	_ = db.Users.Do(func(c *docdb.Collection[*entity.User]) error {
		n = docdb.ResolveAll(c, snap, entity.PostsRelation)
		return nil
	})
	slog.DebugContext(ctx, "storage: resolved user posts", "users", n, "posts_generation", snap.Generation())
	return n
}

// Save saves every collection.
func (db *DB) Save(ctx context.Context) error {
	return db.Registry.SaveAll(ctx)
}

// Reload discards unsaved changes, reloads every collection and resolves
// relations again.
func (db *DB) Reload(ctx context.Context) error {
	if err := db.Registry.LoadAll(ctx); err != nil {
		return fmt.Errorf("failed to reload: %w", err)
	}
	db.ResolveRelations(ctx)
	return nil
}
