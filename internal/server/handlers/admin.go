package handlers

import (
	"context"

	"github.com/maruel/awth/internal/docdb"
	"github.com/maruel/awth/internal/errors"
	"github.com/maruel/awth/internal/storage"
	"github.com/maruel/awth/internal/storage/entity"
)

// AdminHandler handles persistence and introspection requests.
type AdminHandler struct {
	db *storage.DB
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(db *storage.DB) *AdminHandler {
	return &AdminHandler{db: db}
}

// SaveRequest is a request to save every collection (empty).
type SaveRequest struct{}

// CollectionStats describes a collection after a save.
type CollectionStats struct {
	Name       string `json:"name"`
	Live       int    `json:"live"`
	Tombstones int    `json:"tombstones"`
	Dirty      bool   `json:"dirty"`
}

// SaveResponse is the response to a save.
type SaveResponse struct {
	Collections []CollectionStats `json:"collections"`
}

// Save saves every collection now.
func (h *AdminHandler) Save(ctx context.Context, req SaveRequest) (*SaveResponse, error) {
	if err := h.db.Save(ctx); err != nil {
		return nil, errors.Storage(err)
	}
	resp := &SaveResponse{}
	for _, s := range []storage.Persister{h.db.Posts, h.db.Users} {
		st := s.Stats()
		resp.Collections = append(resp.Collections, CollectionStats{
			Name:       s.Name(),
			Live:       st.Live,
			Tombstones: st.Tombstones(),
			Dirty:      st.Dirty,
		})
	}
	return resp, nil
}

// SchemaRequest is a request for the columns of a collection.
type SchemaRequest struct {
	Collection string `path:"collection" json:"-"`
}

// SchemaResponse lists the columns written in the collection file header.
type SchemaResponse struct {
	Collection string         `json:"collection"`
	Columns    []docdb.Column `json:"columns"`
}

// Schema returns the columns of a collection.
func (h *AdminHandler) Schema(ctx context.Context, req SchemaRequest) (*SchemaResponse, error) {
	var cols []docdb.Column
	var err error
	switch req.Collection {
	case h.db.Posts.Name():
		cols, err = docdb.Schema[*entity.Post]()
	case h.db.Users.Name():
		cols, err = docdb.Schema[*entity.User]()
	default:
		return nil, errors.NotFound("collection")
	}
	if err != nil {
		return nil, errors.InternalWithError("Failed to derive schema", err)
	}
	return &SchemaResponse{Collection: req.Collection, Columns: cols}, nil
}
