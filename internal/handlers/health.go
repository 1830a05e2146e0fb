package handlers

import (
	"net/http"
	"time"

	"github.com/caseflow-systems/caseflow-import/internal/httputil"
	"github.com/caseflow-systems/caseflow-import/internal/repository"
	"github.com/caseflow-systems/caseflow-import/internal/schema"
)

// HealthHandler reports liveness and basic row counts per target table.
type HealthHandler struct {
	store   repository.Store
	started time.Time
	version string
}

func NewHealthHandler(store repository.Store, version string) *HealthHandler {
	return &HealthHandler{store: store, started: time.Now(), version: version}
}

// Healthz handles GET /healthz.
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": h.version,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	})
}

// Stats handles GET /api/v1/stats: row counts for each target table.
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	counts := make(map[string]int)
	for _, table := range schema.Default().Tables() {
		n, err := h.store.CountRows(r.Context(), table)
		if err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "Failed to count rows")
			return
		}
		counts[table] = n
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"tables": counts})
}
