// Package api provides HTTP handlers for the decoy API.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ashureev/decoy/internal/domain"
	"github.com/ashureev/decoy/internal/engage"
	"github.com/ashureev/decoy/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// ServiceName and Version are reported by the info endpoint.
const (
	ServiceName = "Agentic Honeypot API"
	Version     = "2.0.0"
)

// maxBodyBytes caps the size of a turn request body.
const maxBodyBytes = 1 << 20

// Engager runs the decoy pipeline for one turn.
type Engager interface {
	HandleTurn(ctx context.Context, turn engage.Turn) (engage.Result, error)
	Stats() domain.Stats
}

// Handler serves the decoy API.
type Handler struct {
	engager Engager
	apiKey  string
	limiter *middleware.RateLimiter
	feed    http.Handler
	now     func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithRateLimiter throttles the authenticated routes.
func WithRateLimiter(rl *middleware.RateLimiter) Option {
	return func(h *Handler) { h.limiter = rl }
}

// WithFeed mounts the live event feed at /ws/events.
func WithFeed(feed http.Handler) Option {
	return func(h *Handler) { h.feed = feed }
}

// NewHandler creates a Handler. Authenticated routes require apiKey.
func NewHandler(engager Engager, apiKey string, opts ...Option) *Handler {
	h := &Handler{
		engager: engager,
		apiKey:  apiKey,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers all API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Info)

	r.Group(func(r chi.Router) {
		if h.limiter != nil {
			r.Use(h.limiter.Middleware)
		}
		r.Use(middleware.APIKey(h.apiKey))
		r.Post("/honeypot/message", h.Message)
		r.Get("/stats", h.Stats)
	})

	if h.feed != nil {
		r.With(middleware.APIKeyOrQuery(h.apiKey)).Get("/ws/events", h.feed.ServeHTTP)
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error","message":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"status": "error", "message": message})
}
