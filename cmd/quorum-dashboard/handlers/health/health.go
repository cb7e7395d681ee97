// Package health serves the readiness endpoint.
package health

import (
	"context"
	"encoding/json"
	"net/http"
)

// Checker reports whether one backing component is reachable.
type Checker interface {
	CheckHealth(ctx context.Context) error
}

type namedCheck struct {
	name    string
	checker Checker
}

// Handler processes health check requests across all backing components.
type Handler struct {
	version string
	checks  []namedCheck
}

// Response is the health check body. Details holds per-component status.
type Response struct {
	Status  string         `json:"status"`
	Version string         `json:"version,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// New creates a health handler.
func New(version string) *Handler {
	return &Handler{version: version}
}

// WithCheck registers a named component check. Checks run in registration
// order on every request.
func (h *Handler) WithCheck(name string, checker Checker) *Handler {
	h.checks = append(h.checks, namedCheck{name: name, checker: checker})
	return h
}

// ServeHTTP runs all registered checks and reports overall health.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	response := Response{
		Status:  "healthy",
		Version: h.version,
		Details: make(map[string]any),
	}

	for _, check := range h.checks {
		if err := check.checker.CheckHealth(r.Context()); err != nil {
			response.Status = "unhealthy"
			response.Details[check.name] = map[string]any{
				"status":  "unhealthy",
				"message": err.Error(),
			}
			continue
		}
		response.Details[check.name] = map[string]any{"status": "healthy"}
	}

	if response.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, `{"error":"server_error","error_description":"Error encoding response"}`,
			http.StatusInternalServerError)
	}
}
