// Package admin serves the operational HTTP endpoint: health, Prometheus
// metrics and recent diagnostics. It is separate from the todo protocol
// listener.
package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/todogate/todogate/internal/diag"
	"github.com/todogate/todogate/internal/metrics"
	"github.com/todogate/todogate/internal/queue"
	"github.com/todogate/todogate/internal/todo"
)

const healthPath = "/healthz"

// DiagnosticsReader reads back stored diagnostics, newest first.
type DiagnosticsReader interface {
	Recent(ctx context.Context, limit int) ([]diag.Entry, error)
}

// Handler serves the admin endpoints.
type Handler struct {
	store todo.Store
	queue *queue.Queue
	diags DiagnosticsReader
}

// NewHandler creates a Handler. diags may be nil when no diagnostics store is configured.
func NewHandler(store todo.Store, q *queue.Queue, diags DiagnosticsReader) *Handler {
	return &Handler{store: store, queue: q, diags: diags}
}

// RegisterRoutes registers all admin routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET "+healthPath, h.Health)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /diagnostics", h.Diagnostics)
}

// Routes returns the admin mux wrapped in the standard middleware chain.
func (h *Handler) Routes(apiKeys []string) http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return Chain(mux,
		RequestID,
		Logging,
		Auth(apiKeys),
	)
}

type healthResponse struct {
	Status  string `json:"status"`
	Todos   int    `json:"todos"`
	Workers int    `json:"workers"`
	Pending int    `json:"pending"`
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Todos:   h.store.Len(),
		Workers: h.queue.Size(),
		Pending: h.queue.Pending(),
	})
}

// Diagnostics handles GET /diagnostics?limit=N.
func (h *Handler) Diagnostics(w http.ResponseWriter, r *http.Request) {
	if h.diags == nil {
		writeError(w, http.StatusNotFound, "diagnostics store disabled")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries, err := h.diags.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("admin: read diagnostics", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read diagnostics")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
