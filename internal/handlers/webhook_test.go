package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow-systems/caseflow-import/internal/adapters"
	"github.com/caseflow-systems/caseflow-import/internal/configstore"
	"github.com/caseflow-systems/caseflow-import/internal/dedup"
	"github.com/caseflow-systems/caseflow-import/internal/logging"
	"github.com/caseflow-systems/caseflow-import/internal/mapping"
	"github.com/caseflow-systems/caseflow-import/internal/materializer"
	"github.com/caseflow-systems/caseflow-import/internal/orchestrator"
	"github.com/caseflow-systems/caseflow-import/internal/repository"
	"github.com/caseflow-systems/caseflow-import/internal/schema"
)

const webhookSecret = "s3cret"

type webhookEnv struct {
	mux   *http.ServeMux
	cfg   *configstore.Config
	store *repository.MemoryStore
}

func newWebhookEnv(t *testing.T) *webhookEnv {
	t.Helper()

	cfg := configstore.New(configstore.NewMemoryKV(), schema.Default())
	require.NoError(t, cfg.SaveWebhook(t.Context(), &configstore.WebhookConfig{
		SourceID: "pd-orders",
		Secret:   webhookSecret,
	}))
	_, err := cfg.SaveMappingSet(t.Context(), "pd-orders", mapping.Set{
		"email": {TargetTable: "contacts", TargetField: "email", DataType: "email"},
	})
	require.NoError(t, err)

	store := repository.NewMemoryStore(schema.Default())
	registry := adapters.NewRegistry(adapters.NewPipedreamAdapter(mapping.NewSuggester()))
	orch := orchestrator.New(registry, materializer.New(store), cfg, nil, logging.Default())

	h := NewWebhookHandler(orch, cfg, dedup.NewMemoryDeduper(time.Hour), logging.Default())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook/pipedream/{source_id}", h.Receive)

	return &webhookEnv{mux: mux, cfg: cfg, store: store}
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func webhookBody(id string) []byte {
	raw, _ := json.Marshal(map[string]any{
		"workflow_id": "wf_123",
		"timestamp":   "2024-05-01T10:00:00Z",
		"data": []any{
			map[string]any{"id": id, "email": "anna@example.com"},
		},
	})
	return raw
}

func (e *webhookEnv) deliver(t *testing.T, sourceID string, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/pipedream/"+sourceID, bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("X-Pipedream-Signature", signature)
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func TestWebhookUnknownSource(t *testing.T) {
	env := newWebhookEnv(t)
	body := webhookBody("rec-1")

	rec := env.deliver(t, "nobody", body, sign(body))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unknown webhook source")
}

func TestWebhookDisabledSourceLooksUnknown(t *testing.T) {
	env := newWebhookEnv(t)
	require.NoError(t, env.cfg.SaveWebhook(t.Context(), &configstore.WebhookConfig{
		SourceID: "pd-orders",
		Secret:   webhookSecret,
		Status:   "disabled",
	}))

	body := webhookBody("rec-1")
	rec := env.deliver(t, "pd-orders", body, sign(body))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebhookSignatureRequired(t *testing.T) {
	env := newWebhookEnv(t)
	body := webhookBody("rec-1")

	rec := env.deliver(t, "pd-orders", body, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid signature")
}

func TestWebhookTamperedBodyRejected(t *testing.T) {
	env := newWebhookEnv(t)
	body := webhookBody("rec-1")
	signature := sign(body)

	tampered := bytes.Replace(body, []byte("anna"), []byte("mina"), 1)
	rec := env.deliver(t, "pd-orders", tampered, signature)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookValidDelivery(t *testing.T) {
	env := newWebhookEnv(t)
	body := webhookBody("rec-1")

	rec := env.deliver(t, "pd-orders", body, sign(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		RecordsProcessed int `json:"records_processed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.RecordsProcessed)

	n, err := env.store.CountRows(t.Context(), schema.TableContacts)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	history, err := env.cfg.WebhookHistory(t.Context())
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, http.StatusOK, history[0].Status)
	assert.Equal(t, 1, history[0].Records)
}

func TestWebhookAcceptsSha256Prefix(t *testing.T) {
	env := newWebhookEnv(t)
	body := webhookBody("rec-1")

	rec := env.deliver(t, "pd-orders", body, "sha256="+sign(body))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookDuplicateShortCircuits(t *testing.T) {
	env := newWebhookEnv(t)
	body := webhookBody("rec-1")

	rec := env.deliver(t, "pd-orders", body, sign(body))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.deliver(t, "pd-orders", body, sign(body))
	require.Equal(t, http.StatusOK, rec.Code, "replays are acknowledged, not retried")

	var resp struct {
		Duplicate        bool `json:"duplicate"`
		RecordsProcessed int  `json:"records_processed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Duplicate)
	assert.Equal(t, 0, resp.RecordsProcessed)

	history, err := env.cfg.WebhookHistory(t.Context())
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[1].Duplicate)
}

func TestWebhookMalformedJSON(t *testing.T) {
	env := newWebhookEnv(t)
	body := []byte("{not json")

	rec := env.deliver(t, "pd-orders", body, sign(body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Malformed JSON payload")
}

func TestWebhookInvalidEnvelope(t *testing.T) {
	env := newWebhookEnv(t)
	body, _ := json.Marshal(map[string]any{"stuff": "x"})

	rec := env.deliver(t, "pd-orders", body, sign(body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
