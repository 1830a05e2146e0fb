package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/caseflow-systems/caseflow-import/internal/adapters"
	"github.com/caseflow-systems/caseflow-import/internal/configstore"
	"github.com/caseflow-systems/caseflow-import/internal/dedup"
	"github.com/caseflow-systems/caseflow-import/internal/httputil"
	"github.com/caseflow-systems/caseflow-import/internal/logging"
	"github.com/caseflow-systems/caseflow-import/internal/mapping"
	"github.com/caseflow-systems/caseflow-import/internal/metrics"
	"github.com/caseflow-systems/caseflow-import/internal/orchestrator"
)

const signatureHeader = "X-Pipedream-Signature"

// maxWebhookBody bounds delivery size; Pipedream payloads are small.
const maxWebhookBody = 4 << 20

// WebhookHandler receives push deliveries. Authentication is per delivery:
// the raw body is HMAC-verified against the registered secret BEFORE any
// JSON parsing, so malformed-but-unsigned payloads cannot probe the parser.
type WebhookHandler struct {
	orch    *orchestrator.Orchestrator
	cfg     *configstore.Config
	deduper dedup.Deduper
	logger  *logging.Logger
}

func NewWebhookHandler(orch *orchestrator.Orchestrator, cfg *configstore.Config, deduper dedup.Deduper, logger *logging.Logger) *WebhookHandler {
	return &WebhookHandler{orch: orch, cfg: cfg, deduper: deduper, logger: logger}
}

// Receive handles POST /webhook/pipedream/{source_id}.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sourceID := r.PathValue("source_id")
	received := time.Now().UTC()

	webhook, err := h.cfg.Webhook(ctx, sourceID)
	if err != nil {
		if errors.Is(err, configstore.ErrNotFound) {
			h.finish(w, r, sourceID, received, http.StatusNotFound, 0, false, "Unknown webhook source")
			return
		}
		h.finish(w, r, sourceID, received, http.StatusInternalServerError, 0, false, "Failed to load webhook configuration")
		return
	}
	if !webhook.Active() {
		h.finish(w, r, sourceID, received, http.StatusNotFound, 0, false, "Unknown webhook source")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.finish(w, r, sourceID, received, http.StatusBadRequest, 0, false, "Failed to read request body")
		return
	}

	if !verifySignature(webhook.Secret, body, r.Header.Get(signatureHeader)) {
		h.finish(w, r, sourceID, received, http.StatusUnauthorized, 0, false, "Invalid signature")
		return
	}

	duplicate, err := h.deduper.Seen(ctx, sourceID, body)
	if err != nil {
		// Dedup storage trouble must not drop valid deliveries; process and
		// rely on idempotent upserts downstream.
		h.logger.WarnContext(ctx, "delivery dedup check failed",
			logging.Source(sourceID), logging.Error(err))
	}
	if duplicate {
		metrics.WebhookDuplicates.Inc()
		h.record(ctx, sourceID, received, http.StatusOK, 0, true, "")
		metrics.WebhookRequestsTotal.WithLabelValues("duplicate").Inc()
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"duplicate":         true,
			"records_processed": 0,
		})
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		h.finish(w, r, sourceID, received, http.StatusBadRequest, 0, false, "Malformed JSON payload")
		return
	}

	result, err := h.orch.Process(ctx, &orchestrator.Request{
		SourceID:   sourceID,
		SourceType: mapping.SourcePipedream,
		Source:     &adapters.Source{ID: sourceID, Payload: payload},
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, adapters.ErrMalformedPayload) || errors.Is(err, adapters.ErrNoRecords) {
			status = http.StatusBadRequest
		}
		h.finish(w, r, sourceID, received, status, 0, false, err.Error())
		return
	}

	h.record(ctx, sourceID, received, http.StatusOK, result.Succeeded, false, "")
	metrics.WebhookRequestsTotal.WithLabelValues("ok").Inc()
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"records_processed": result.Succeeded,
		"errors":            result.Errors,
	})
}

// finish records history plus metrics and writes an error response.
func (h *WebhookHandler) finish(w http.ResponseWriter, r *http.Request, sourceID string, received time.Time, status, records int, duplicate bool, message string) {
	h.record(r.Context(), sourceID, received, status, records, duplicate, message)
	label := "error"
	switch {
	case status == http.StatusUnauthorized:
		label = "unauthorized"
	case status == http.StatusNotFound:
		label = "unknown_source"
	case status == http.StatusBadRequest:
		label = "malformed"
	}
	metrics.WebhookRequestsTotal.WithLabelValues(label).Inc()
	h.logger.WarnContext(r.Context(), "webhook delivery rejected",
		logging.Source(sourceID),
		logging.Status(status),
		logging.IP(httputil.GetClientIP(r)),
		"reason", message)
	httputil.WriteError(w, status, message)
}

func (h *WebhookHandler) record(ctx context.Context, sourceID string, received time.Time, status, records int, duplicate bool, message string) {
	entry := configstore.WebhookHistoryEntry{
		SourceID:   sourceID,
		Status:     status,
		Records:    records,
		Duplicate:  duplicate,
		ReceivedAt: received,
		Error:      message,
	}
	if err := h.cfg.AppendWebhookHistory(ctx, entry); err != nil {
		h.logger.ErrorContext(ctx, "failed to record webhook history", logging.Error(err))
	}
}

// verifySignature compares the delivery signature in constant time. Both
// bare hex and the "sha256=<hex>" form are accepted.
func verifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	signature = strings.TrimPrefix(signature, "sha256=")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}
