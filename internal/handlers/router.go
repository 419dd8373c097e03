package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xelth-com/dmrelay/internal/buildinfo"
	"github.com/xelth-com/dmrelay/internal/config"
	"github.com/xelth-com/dmrelay/internal/middleware"
	"github.com/xelth-com/dmrelay/internal/presence"
	"github.com/xelth-com/dmrelay/internal/websocket"
)

// Router wraps the mux router with the relay's HTTP surface.
type Router struct {
	*mux.Router
	cfg      *config.Config
	hub      *websocket.Hub
	registry *presence.Registry
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(cfg *config.Config, hub *websocket.Hub, registry *presence.Registry) *Router {
	r := &Router{
		Router:   mux.NewRouter(),
		cfg:      cfg,
		hub:      hub,
		registry: registry,
	}

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")

	// Websocket handshake
	r.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		websocket.ServeWs(hub, cfg, w, req)
	}).Methods("GET")

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// API routes (protected)
	api := r.PathPrefix("/api").Subrouter()
	api.Use(mux.MiddlewareFunc(middleware.Auth(cfg.JWTSecret)))
	api.HandleFunc("/status", r.getStatus).Methods("GET")
	api.HandleFunc("/presence", r.getPresence).Methods("GET")

	return r
}

// healthCheck returns the health status of the service
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// getStatus returns the current status
func (r *Router) getStatus(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "running",
		"version": buildinfo.Version,
	})
}

// getPresence returns the online roster and distinct-user count.
func (r *Router) getPresence(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"online": r.registry.Online(),
		"count":  r.registry.Count(),
	})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
