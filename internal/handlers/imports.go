package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/caseflow-systems/caseflow-import/internal/adapters"
	"github.com/caseflow-systems/caseflow-import/internal/configstore"
	"github.com/caseflow-systems/caseflow-import/internal/httputil"
	"github.com/caseflow-systems/caseflow-import/internal/logging"
	"github.com/caseflow-systems/caseflow-import/internal/mapping"
	"github.com/caseflow-systems/caseflow-import/internal/orchestrator"
)

// maxUploadSize bounds CSV uploads.
const maxUploadSize = 32 << 20

// ImportHandler serves the management import API: detection, preview, full
// processing, and run history.
type ImportHandler struct {
	orch   *orchestrator.Orchestrator
	cfg    *configstore.Config
	logger *logging.Logger
}

func NewImportHandler(orch *orchestrator.Orchestrator, cfg *configstore.Config, logger *logging.Logger) *ImportHandler {
	return &ImportHandler{orch: orch, cfg: cfg, logger: logger}
}

// importRequest is the JSON body of detect/preview/process calls. CSV
// sources may instead send multipart form data with a "file" part.
type importRequest struct {
	SourceID   string              `json:"source_id"`
	SourceType string              `json:"source_type"`
	CSV        string              `json:"csv,omitempty"`
	Payload    map[string]any      `json:"payload,omitempty"`
	Records    []any               `json:"records,omitempty"`
	API        *adapters.APIConfig `json:"api,omitempty"`
	Mappings   mapping.Set         `json:"mappings,omitempty"`
	MaxRows    int                 `json:"max_rows,omitempty"`
}

// Detect handles POST /api/v1/imports/detect.
func (h *ImportHandler) Detect(w http.ResponseWriter, r *http.Request) {
	req, err := h.parse(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.orch.Detect(r.Context(), req)
	if err != nil {
		h.writeRunError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// Preview handles POST /api/v1/imports/preview.
func (h *ImportHandler) Preview(w http.ResponseWriter, r *http.Request) {
	req, err := h.parse(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.orch.Preview(r.Context(), req)
	if err != nil {
		h.writeRunError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// Process handles POST /api/v1/imports/process.
func (h *ImportHandler) Process(w http.ResponseWriter, r *http.Request) {
	req, err := h.parse(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.orch.Process(r.Context(), req)
	if err != nil {
		h.writeRunError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// History handles GET /api/v1/imports/history.
func (h *ImportHandler) History(w http.ResponseWriter, r *http.Request) {
	log, err := h.cfg.ImportHistory(r.Context())
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "Failed to load import history")
		return
	}
	limit := httputil.ParseIntParam(r.URL.Query().Get("limit"), len(log))
	if limit < len(log) {
		log = log[len(log)-limit:]
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"imports": log,
		"count":   len(log),
	})
}

// WebhookHistory handles GET /api/v1/webhooks/history.
func (h *ImportHandler) WebhookHistory(w http.ResponseWriter, r *http.Request) {
	log, err := h.cfg.WebhookHistory(r.Context())
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "Failed to load webhook history")
		return
	}
	limit := httputil.ParseIntParam(r.URL.Query().Get("limit"), len(log))
	if limit < len(log) {
		log = log[len(log)-limit:]
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"deliveries": log,
		"count":      len(log),
	})
}

// parse builds an orchestrator request from either a multipart CSV upload or
// a JSON body.
func (h *ImportHandler) parse(r *http.Request) (*orchestrator.Request, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return h.parseMultipart(r)
	}

	var body importRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadSize)).Decode(&body); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %v", err)
	}
	if body.SourceType == "" {
		return nil, fmt.Errorf("source_type is required")
	}
	return &orchestrator.Request{
		SourceID:   body.SourceID,
		SourceType: mapping.SourceType(body.SourceType),
		Source: &adapters.Source{
			ID:      body.SourceID,
			CSV:     []byte(body.CSV),
			Payload: body.Payload,
			Records: body.Records,
			API:     body.API,
		},
		Mappings: body.Mappings,
		MaxRows:  body.MaxRows,
	}, nil
}

func (h *ImportHandler) parseMultipart(r *http.Request) (*orchestrator.Request, error) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return nil, fmt.Errorf("invalid multipart form: %v", err)
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("missing file upload")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file: %v", err)
	}

	sourceType := r.FormValue("source_type")
	if sourceType == "" {
		sourceType = string(mapping.SourceCSV)
	}

	var mappings mapping.Set
	if raw := r.FormValue("mappings"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &mappings); err != nil {
			return nil, fmt.Errorf("invalid mappings: %v", err)
		}
	}

	return &orchestrator.Request{
		SourceID:   r.FormValue("source_id"),
		SourceType: mapping.SourceType(sourceType),
		Source: &adapters.Source{
			ID:  r.FormValue("source_id"),
			CSV: data,
		},
		Mappings: mappings,
		MaxRows:  httputil.ParseIntParam(r.FormValue("max_rows"), 0),
	}, nil
}

// writeRunError maps adapter failures to status codes: source-level
// malformed data is the caller's fault, everything else is ours.
func (h *ImportHandler) writeRunError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, adapters.ErrMalformedPayload) || errors.Is(err, adapters.ErrNoRecords) {
		status = http.StatusBadRequest
	}
	if strings.Contains(err.Error(), "no field mappings configured") ||
		strings.Contains(err.Error(), "unknown source type") {
		status = http.StatusBadRequest
	}
	h.logger.ErrorContext(r.Context(), "import request failed",
		logging.Path(r.URL.Path), logging.Error(err))
	httputil.WriteError(w, status, err.Error())
}
