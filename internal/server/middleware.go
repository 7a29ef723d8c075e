package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	apierrors "github.com/maruel/awth/internal/errors"
	"github.com/maruel/awth/internal/server/handlers"
	"github.com/maruel/awth/internal/server/reqctx"
	"golang.org/x/time/rate"
)

// RequireAuth validates the bearer token and adds the user ID to the context.
func RequireAuth(tokens *handlers.Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				writeAPIError(w, apierrors.Unauthorized("Missing bearer token"))
				return
			}
			id, err := tokens.Parse(token)
			if err != nil {
				slog.InfoContext(r.Context(), "Invalid token", "err", err)
				writeAPIError(w, apierrors.Unauthorized("Invalid token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(reqctx.WithUserID(r.Context(), id)))
		})
	}
}

// OptionalAuth is like RequireAuth but lets anonymous requests through.
// Requests with an invalid token are still rejected.
func OptionalAuth(tokens *handlers.Tokens) func(http.Handler) http.Handler {
	required := RequireAuth(tokens)
	return func(next http.Handler) http.Handler {
		auth := required(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			auth.ServeHTTP(w, r)
		})
	}
}

// RateLimit rejects requests beyond perMin per minute, shared by every
// caller. perMin <= 0 disables limiting.
func RateLimit(perMin int) func(http.Handler) http.Handler {
	if perMin <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	l := rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMin)), max(1, perMin/2))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := l.Reserve()
			if d := res.Delay(); d > 0 {
				res.Cancel()
				w.Header().Set("Retry-After", strconv.Itoa(int(max(d, time.Second).Seconds()+0.5)))
				writeAPIError(w, apierrors.RateLimited(d))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// statusWriter records the status code written by a handler.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusWriter) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// LogRequests logs every request with its status and duration.
func LogRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := reqctx.WithClientIP(r.Context(), reqctx.GetClientIP(r))
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r.WithContext(ctx))
		slog.InfoContext(ctx, "http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"dur", time.Since(start).Round(time.Microsecond),
			"ip", reqctx.ClientIP(ctx),
		)
	})
}
