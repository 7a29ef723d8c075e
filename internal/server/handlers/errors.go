package handlers

import (
	"errors"

	"github.com/maruel/awth/internal/docdb"
	apierrors "github.com/maruel/awth/internal/errors"
	"github.com/maruel/awth/internal/storage"
)

// storageError maps service errors to API errors.
func storageError(err error) error {
	switch {
	case errors.Is(err, storage.ErrUserNotFound):
		return apierrors.NotFound("user")
	case errors.Is(err, storage.ErrPostNotFound):
		return apierrors.NotFound("post")
	case errors.Is(err, storage.ErrUserExists):
		return apierrors.Conflict("User already exists")
	case errors.Is(err, storage.ErrInvalidCredentials):
		return apierrors.Unauthorized("Invalid credentials")
	case errors.Is(err, storage.ErrInvalidInput):
		return apierrors.BadRequest(err.Error())
	default:
		return apierrors.Storage(err)
	}
}

// parseID parses an ID received in a path.
func parseID(field, s string) (docdb.ID, error) {
	id, err := docdb.ParseID(s)
	if err != nil || id == docdb.Sentinel {
		return docdb.Sentinel, apierrors.InvalidFormat(field, s)
	}
	return id, nil
}
