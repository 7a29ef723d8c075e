package handlers

import (
	"context"

	"github.com/maruel/awth/internal/server/reqctx"
	"github.com/maruel/awth/internal/storage"
)

// UserHandler handles user requests.
type UserHandler struct {
	userService *storage.UserService
}

// NewUserHandler creates a new user handler.
func NewUserHandler(userService *storage.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// GetUserRequest is a request to get a user.
type GetUserRequest struct {
	ID string `path:"id" json:"-"`
}

// GetUser returns a user and its posts. The email is only shown to the user
// itself.
func (h *UserHandler) GetUser(ctx context.Context, req GetUserRequest) (*UserResponse, error) {
	id, err := parseID("id", req.ID)
	if err != nil {
		return nil, err
	}
	user, err := h.userService.Get(id)
	if err != nil {
		return nil, storageError(err)
	}
	resp := newUserResponse(user, h.userService.Posts(user))
	if reqctx.UserID(ctx) != user.ID {
		resp.Email = ""
	}
	return resp, nil
}
