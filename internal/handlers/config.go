package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/caseflow-systems/caseflow-import/internal/configstore"
	"github.com/caseflow-systems/caseflow-import/internal/httputil"
	"github.com/caseflow-systems/caseflow-import/internal/logging"
	"github.com/caseflow-systems/caseflow-import/internal/mapping"
)

// ConfigHandler serves mapping set, webhook, and source configuration CRUD.
type ConfigHandler struct {
	cfg    *configstore.Config
	logger *logging.Logger
}

func NewConfigHandler(cfg *configstore.Config, logger *logging.Logger) *ConfigHandler {
	return &ConfigHandler{cfg: cfg, logger: logger}
}

// ListMappings handles GET /api/v1/mappings.
func (h *ConfigHandler) ListMappings(w http.ResponseWriter, r *http.Request) {
	sets, err := h.cfg.ListMappingSets(r.Context())
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "Failed to list mapping sets")
		return
	}
	ids := make([]string, 0, len(sets))
	for id := range sets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"sources":  ids,
		"mappings": sets,
	})
}

// GetMappings handles GET /api/v1/mappings/{source_id}.
func (h *ConfigHandler) GetMappings(w http.ResponseWriter, r *http.Request) {
	set, err := h.cfg.MappingSet(r.Context(), r.PathValue("source_id"))
	if err != nil {
		if errors.Is(err, configstore.ErrNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "No mapping set for source")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "Failed to load mapping set")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, set)
}

// PutMappings handles PUT /api/v1/mappings/{source_id}. Sets with hard
// validation errors are rejected; warnings are echoed back alongside the
// saved set.
func (h *ConfigHandler) PutMappings(w http.ResponseWriter, r *http.Request) {
	sourceID := r.PathValue("source_id")

	var set mapping.Set
	if err := json.NewDecoder(r.Body).Decode(&set); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid mapping set body")
		return
	}

	issues, err := h.cfg.SaveMappingSet(r.Context(), sourceID, set)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]any{
			"error":  err.Error(),
			"issues": issues,
		})
		return
	}

	h.logger.InfoContext(r.Context(), "mapping set saved",
		logging.Source(sourceID), "fields", len(set))
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"source_id": sourceID,
		"fields":    len(set),
		"warnings":  issues,
	})
}

// DeleteMappings handles DELETE /api/v1/mappings/{source_id}.
func (h *ConfigHandler) DeleteMappings(w http.ResponseWriter, r *http.Request) {
	sourceID := r.PathValue("source_id")
	if err := h.cfg.DeleteMappingSet(r.Context(), sourceID); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "Failed to delete mapping set")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"deleted": sourceID})
}

// ListWebhooks handles GET /api/v1/webhooks. Secrets are redacted.
func (h *ConfigHandler) ListWebhooks(w http.ResponseWriter, r *http.Request) {
	hooks, err := h.cfg.ListWebhooks(r.Context())
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "Failed to list webhooks")
		return
	}
	sort.Slice(hooks, func(i, j int) bool { return hooks[i].SourceID < hooks[j].SourceID })
	out := make([]map[string]any, 0, len(hooks))
	for _, hk := range hooks {
		out = append(out, map[string]any{
			"source_id":  hk.SourceID,
			"url":        hk.URL,
			"status":     hk.Status,
			"created_at": hk.CreatedAt,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"webhooks": out})
}

// PutWebhook handles PUT /api/v1/webhooks/{source_id}.
func (h *ConfigHandler) PutWebhook(w http.ResponseWriter, r *http.Request) {
	sourceID := r.PathValue("source_id")

	var cfg configstore.WebhookConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid webhook body")
		return
	}
	cfg.SourceID = sourceID
	if cfg.Secret == "" {
		httputil.WriteError(w, http.StatusBadRequest, "Webhook secret is required")
		return
	}

	if err := h.cfg.SaveWebhook(r.Context(), &cfg); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "Failed to save webhook")
		return
	}
	h.logger.InfoContext(r.Context(), "webhook registered", logging.Source(sourceID))
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"source_id": sourceID})
}

// DeleteWebhook handles DELETE /api/v1/webhooks/{source_id}.
func (h *ConfigHandler) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	sourceID := r.PathValue("source_id")
	if err := h.cfg.DeleteWebhook(r.Context(), sourceID); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "Failed to delete webhook")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"deleted": sourceID})
}

// ListSources handles GET /api/v1/sources. Credentials are redacted.
func (h *ConfigHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.cfg.ListSources(r.Context())
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "Failed to list sources")
		return
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].SourceID < sources[j].SourceID })
	out := make([]map[string]any, 0, len(sources))
	for _, src := range sources {
		entry := map[string]any{
			"source_id": src.SourceID,
			"type":      src.Type,
		}
		if src.API != nil {
			entry["base_id"] = src.API.BaseID
			entry["table"] = src.API.Table
			entry["sync_mode"] = src.API.SyncMode
		}
		out = append(out, entry)
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"sources": out})
}

// PutSource handles PUT /api/v1/sources/{source_id}.
func (h *ConfigHandler) PutSource(w http.ResponseWriter, r *http.Request) {
	sourceID := r.PathValue("source_id")

	var cfg configstore.SourceConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid source body")
		return
	}
	cfg.SourceID = sourceID
	if cfg.API == nil {
		httputil.WriteError(w, http.StatusBadRequest, "Source API configuration is required")
		return
	}

	if err := h.cfg.SaveSource(r.Context(), &cfg); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "Failed to save source")
		return
	}
	h.logger.InfoContext(r.Context(), "source configured",
		logging.Source(sourceID), logging.SourceType(string(cfg.Type)))
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"source_id": sourceID})
}
