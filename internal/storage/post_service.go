package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maruel/awth/internal/docdb"
	"github.com/maruel/awth/internal/storage/entity"
)

// ErrPostNotFound is returned when no live post has the requested ID.
var ErrPostNotFound = errors.New("post not found")

// PostService handles posts and their link to the authoring user.
type PostService struct {
	db *DB
}

// NewPostService creates a new post service.
func NewPostService(db *DB) *PostService {
	return &PostService{db: db}
}

// Create adds a post and appends it to the posts of its author.
//
// Both collections are locked together, so a post is never created for an
// unknown user.
func (s *PostService) Create(ctx context.Context, userID docdb.ID, caption string) (*entity.Post, error) {
	p := &entity.Post{Meta: docdb.NewMeta(docdb.NewID()), Caption: caption}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	unlock := s.db.Registry.LockOrdered(s.db.Posts, s.db.Users)
	defer unlock()
	posts := s.db.Posts.Collection()
	users := s.db.Users.Collection()
	u, ok := users.Get(userID)
	if !ok {
		return nil, ErrUserNotFound
	}
	if !posts.Add(p) {
		return nil, fmt.Errorf("failed to add post %s", p.ID)
	}
	u = u.Clone()
	u.Posts.Append(p.ID)
	u.Touch()
	users.Update(u)
	slog.InfoContext(ctx, "storage: created post", "id", p.ID, "user", userID)
	return p.Clone(), nil
}

// Get returns the post with the given ID.
func (s *PostService) Get(id docdb.ID) (*entity.Post, error) {
	p, ok := s.db.Posts.Get(id)
	if !ok {
		return nil, ErrPostNotFound
	}
	return p, nil
}

// Update replaces the caption of a post.
func (s *PostService) Update(id docdb.ID, caption string) (*entity.Post, error) {
	p, ok, err := s.db.Posts.Modify(id, func(p *entity.Post) error {
		p.Caption = caption
		p.Touch()
		if err := p.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return nil
	})
	if !ok {
		return nil, ErrPostNotFound
	}
	return p, err
}

// Delete tombstones a post. Users keep its ID in their relation; it
// dereferences as absent.
func (s *PostService) Delete(ctx context.Context, id docdb.ID) error {
	if !s.db.Posts.Remove(id) {
		return ErrPostNotFound
	}
	slog.InfoContext(ctx, "storage: deleted post", "id", id)
	return nil
}
