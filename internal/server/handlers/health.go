package handlers

import "context"

// HealthRequest is the request type for health check (empty).
type HealthRequest struct{}

// HealthResponse is the response for health check.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// HealthHandler reports the server status.
type HealthHandler struct {
	version string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version}
}

// Health returns the health status of the server.
func (h *HealthHandler) Health(ctx context.Context, req HealthRequest) (*HealthResponse, error) {
	return &HealthResponse{Status: "ok", Version: h.version}, nil
}
