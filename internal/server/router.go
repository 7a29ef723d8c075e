// Package server implements the HTTP server and routing logic.
package server

import (
	"net/http"

	"github.com/maruel/awth/internal/server/handlers"
	"github.com/maruel/awth/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config holds the dependencies of the router.
type Config struct {
	DB       *storage.DB
	Users    *storage.UserService
	Posts    *storage.PostService
	Tokens   *handlers.Tokens
	Gatherer prometheus.Gatherer
	// SaveRatePerMin limits /save. 0 means unlimited.
	SaveRatePerMin int
	Version        string
}

// NewRouter creates and configures the HTTP router.
func NewRouter(cfg *Config) http.Handler {
	mux := &http.ServeMux{}
	authh := handlers.NewAuthHandler(cfg.Users, cfg.Tokens)
	uh := handlers.NewUserHandler(cfg.Users)
	ph := handlers.NewPostHandler(cfg.Posts, cfg.Users)
	ah := handlers.NewAdminHandler(cfg.DB)
	hh := handlers.NewHealthHandler(cfg.Version)
	requireAuth := RequireAuth(cfg.Tokens)
	optionalAuth := OptionalAuth(cfg.Tokens)

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("welcome!"))
	})
	mux.Handle("GET /health", Wrap(hh.Health))

	// Persistence
	saveLimit := RateLimit(cfg.SaveRatePerMin)
	save := saveLimit(Wrap(ah.Save))
	mux.Handle("POST /save", save)
	mux.Handle("GET /save", save)
	mux.Handle("GET /schema/{collection}", Wrap(ah.Schema))

	// Auth
	mux.Handle("POST /register", Wrap(authh.Register))
	mux.Handle("POST /login", Wrap(authh.Login))

	// Users and posts
	mux.Handle("GET /users/{id}", optionalAuth(Wrap(uh.GetUser)))
	mux.Handle("POST /users/{id}/posts", requireAuth(Wrap(ph.CreatePost)))
	mux.Handle("GET /posts/{id}", Wrap(ph.GetPost))
	mux.Handle("PATCH /posts/{id}", requireAuth(Wrap(ph.UpdatePost)))
	mux.Handle("DELETE /posts/{id}", requireAuth(Wrap(ph.DeletePost)))

	if cfg.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	return LogRequests(mux)
}
