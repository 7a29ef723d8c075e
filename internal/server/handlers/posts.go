package handlers

import (
	"context"

	"github.com/maruel/awth/internal/docdb"
	"github.com/maruel/awth/internal/errors"
	"github.com/maruel/awth/internal/server/reqctx"
	"github.com/maruel/awth/internal/storage"
)

// PostHandler handles post requests.
type PostHandler struct {
	postService *storage.PostService
	userService *storage.UserService
}

// NewPostHandler creates a new post handler.
func NewPostHandler(postService *storage.PostService, userService *storage.UserService) *PostHandler {
	return &PostHandler{postService: postService, userService: userService}
}

// CreatePostRequest is a request to create a post for a user.
type CreatePostRequest struct {
	UserID  string `path:"id" json:"-"`
	Caption string `json:"caption"`
}

// PostRequest identifies a post.
type PostRequest struct {
	ID string `path:"id" json:"-"`
}

// UpdatePostRequest is a request to change a post caption.
type UpdatePostRequest struct {
	ID      string `path:"id" json:"-"`
	Caption string `json:"caption"`
}

// DeletePostResponse is the response to a deletion.
type DeletePostResponse struct {
	ID docdb.ID `json:"id"`
}

// CreatePost creates a post owned by the authenticated user.
func (h *PostHandler) CreatePost(ctx context.Context, req CreatePostRequest) (*PostResponse, error) {
	userID, err := parseID("id", req.UserID)
	if err != nil {
		return nil, err
	}
	if reqctx.UserID(ctx) != userID {
		return nil, errors.Unauthorized("Cannot post as another user")
	}
	if req.Caption == "" {
		return nil, errors.MissingField("caption")
	}
	p, err := h.postService.Create(ctx, userID, req.Caption)
	if err != nil {
		return nil, storageError(err)
	}
	return newPostResponse(p), nil
}

// GetPost returns a post.
func (h *PostHandler) GetPost(ctx context.Context, req PostRequest) (*PostResponse, error) {
	id, err := parseID("id", req.ID)
	if err != nil {
		return nil, err
	}
	p, err := h.postService.Get(id)
	if err != nil {
		return nil, storageError(err)
	}
	return newPostResponse(p), nil
}

// UpdatePost changes the caption of a post of the authenticated user.
func (h *PostHandler) UpdatePost(ctx context.Context, req UpdatePostRequest) (*PostResponse, error) {
	id, err := parseID("id", req.ID)
	if err != nil {
		return nil, err
	}
	if err := h.checkOwner(ctx, id); err != nil {
		return nil, err
	}
	p, err := h.postService.Update(id, req.Caption)
	if err != nil {
		return nil, storageError(err)
	}
	return newPostResponse(p), nil
}

// DeletePost deletes a post of the authenticated user.
func (h *PostHandler) DeletePost(ctx context.Context, req PostRequest) (*DeletePostResponse, error) {
	id, err := parseID("id", req.ID)
	if err != nil {
		return nil, err
	}
	if err := h.checkOwner(ctx, id); err != nil {
		return nil, err
	}
	if err := h.postService.Delete(ctx, id); err != nil {
		return nil, storageError(err)
	}
	return &DeletePostResponse{ID: id}, nil
}

// checkOwner verifies that the post is listed in the authenticated user's
// relation.
func (h *PostHandler) checkOwner(ctx context.Context, postID docdb.ID) error {
	user, err := h.userService.Get(reqctx.UserID(ctx))
	if err != nil {
		return errors.Unauthorized("Unknown user")
	}
	for _, id := range user.Posts.IDs {
		if id == postID {
			return nil
		}
	}
	if _, err := h.postService.Get(postID); err != nil {
		return storageError(err)
	}
	return errors.Unauthorized("Not the author of this post")
}
