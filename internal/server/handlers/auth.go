package handlers

import (
	"context"

	"github.com/maruel/awth/internal/docdb"
	"github.com/maruel/awth/internal/errors"
	"github.com/maruel/awth/internal/storage"
)

// AuthHandler handles authentication requests.
type AuthHandler struct {
	userService *storage.UserService
	tokens      *Tokens
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(userService *storage.UserService, tokens *Tokens) *AuthHandler {
	return &AuthHandler{userService: userService, tokens: tokens}
}

// LoginRequest is a request to log in.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is a request to register a new user.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is the response to a successful login or registration.
type AuthResponse struct {
	ID    docdb.ID      `json:"id"`
	Token string        `json:"token"`
	User  *UserResponse `json:"user"`
}

// Login verifies credentials and returns the user with the posts that still
// exist.
func (h *AuthHandler) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, errors.MissingField("email or password")
	}
	user, err := h.userService.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, storageError(err)
	}
	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		return nil, errors.InternalWithError("Failed to generate token", err)
	}
	return &AuthResponse{
		ID:    user.ID,
		Token: token,
		User:  newUserResponse(user, h.userService.Posts(user)),
	}, nil
}

// Register handles user registration.
func (h *AuthHandler) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return nil, errors.MissingField("username, email, or password")
	}
	user, err := h.userService.Register(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		return nil, storageError(err)
	}
	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		return nil, errors.InternalWithError("Failed to generate token", err)
	}
	return &AuthResponse{ID: user.ID, Token: token, User: newUserResponse(user, nil)}, nil
}
