package handler

import (
	"context"
	"log/slog"
	"net/http"
)

// Pinger is the primary store's liveness check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ClusterHealth reports the search cluster status (green, yellow, red).
type ClusterHealth interface {
	Health(ctx context.Context) (string, error)
}

type HealthHandler struct {
	store  Pinger
	index  ClusterHealth
	logger *slog.Logger
}

func NewHealthHandler(store Pinger, index ClusterHealth, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{store: store, index: index, logger: logger}
}

type healthResponse struct {
	Status              string `json:"status"`
	ElasticsearchStatus string `json:"elasticsearch_status,omitempty"`
	Error               string `json:"error,omitempty"`
}

// HandleHealth pings both stores.
//
// HTTP: GET /health
// RESPONSE: 200 {"status": "Healthy", "elasticsearch_status": "green"}, 503 if either is down.
// A red cluster still answers, so it is reported rather than failed.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn("health: primary store unreachable", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "Unhealthy", Error: "Database connection failed"})
		return
	}

	status, err := h.index.Health(r.Context())
	if err != nil {
		h.logger.Warn("health: search cluster unreachable", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "Unhealthy", Error: "Search engine connection failed"})
		return
	}

	writeJSON(w, http.StatusOK, healthResponse{Status: "Healthy", ElasticsearchStatus: status})
}
