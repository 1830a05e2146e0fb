package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/caseflow-systems/caseflow-import/internal/httputil"
	"github.com/caseflow-systems/caseflow-import/internal/logging"
	"github.com/caseflow-systems/caseflow-import/internal/orchestrator"
)

// SyncHandler triggers pull syncs on demand.
type SyncHandler struct {
	orch   *orchestrator.Orchestrator
	logger *logging.Logger
}

func NewSyncHandler(orch *orchestrator.Orchestrator, logger *logging.Logger) *SyncHandler {
	return &SyncHandler{orch: orch, logger: logger}
}

// Trigger handles POST /api/v1/sync/airtable. The body names the source to
// sync; a source whose previous run is still in flight is rejected with 409
// rather than queued.
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SourceID string `json:"source_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.SourceID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "source_id is required")
		return
	}

	result, err := h.orch.SyncSource(r.Context(), body.SourceID)
	if err != nil {
		if errors.Is(err, orchestrator.ErrSyncInFlight) {
			httputil.WriteError(w, http.StatusConflict, "Sync already running for source")
			return
		}
		h.logger.ErrorContext(r.Context(), "manual sync failed",
			logging.Source(body.SourceID), logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
