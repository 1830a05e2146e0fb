package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/caseflow-systems/caseflow-import/internal/auth"
	"github.com/caseflow-systems/caseflow-import/internal/handlers"
	"github.com/caseflow-systems/caseflow-import/internal/middleware"
)

// Handlers bundles everything the router wires up.
type Handlers struct {
	Imports *handlers.ImportHandler
	Config  *handlers.ConfigHandler
	Sync    *handlers.SyncHandler
	Export  *handlers.ExportHandler
	Webhook *handlers.WebhookHandler
	Health  *handlers.HealthHandler
	Auth    *auth.Middleware
}

// NewRouter constructs the ServeMux. The management API sits behind bearer
// JWT auth; the webhook endpoint authenticates per delivery with HMAC and
// is deliberately outside the JWT guard.
func NewRouter(h Handlers) http.Handler {
	mux := http.NewServeMux()

	api := http.NewServeMux()

	// Import lifecycle
	api.HandleFunc("POST /api/v1/imports/detect", h.Imports.Detect)
	api.HandleFunc("POST /api/v1/imports/preview", h.Imports.Preview)
	api.HandleFunc("POST /api/v1/imports/process", h.Imports.Process)
	api.HandleFunc("GET /api/v1/imports/history", h.Imports.History)
	api.HandleFunc("GET /api/v1/webhooks/history", h.Imports.WebhookHistory)

	// Mapping sets
	api.HandleFunc("GET /api/v1/mappings", h.Config.ListMappings)
	api.HandleFunc("GET /api/v1/mappings/{source_id}", h.Config.GetMappings)
	api.HandleFunc("PUT /api/v1/mappings/{source_id}", h.Config.PutMappings)
	api.HandleFunc("DELETE /api/v1/mappings/{source_id}", h.Config.DeleteMappings)

	// Webhook registrations
	api.HandleFunc("GET /api/v1/webhooks", h.Config.ListWebhooks)
	api.HandleFunc("PUT /api/v1/webhooks/{source_id}", h.Config.PutWebhook)
	api.HandleFunc("DELETE /api/v1/webhooks/{source_id}", h.Config.DeleteWebhook)

	// Pull sources and sync
	api.HandleFunc("GET /api/v1/sources", h.Config.ListSources)
	api.HandleFunc("PUT /api/v1/sources/{source_id}", h.Config.PutSource)
	api.HandleFunc("POST /api/v1/sync/airtable", h.Sync.Trigger)

	// Export and templates
	api.HandleFunc("GET /api/v1/export/cases", h.Export.Cases)
	api.HandleFunc("GET /api/v1/templates", h.Export.Templates)
	api.HandleFunc("GET /api/v1/templates/{name}", h.Export.Template)

	// Stats
	api.HandleFunc("GET /api/v1/stats", h.Health.Stats)

	if h.Auth != nil {
		mux.Handle("/api/v1/", h.Auth.RequireAuth(api))
	} else {
		mux.Handle("/api/v1/", api)
	}

	// Push deliveries, HMAC-authenticated per request
	mux.HandleFunc("POST /webhook/pipedream/{source_id}", h.Webhook.Receive)

	// Health and metrics
	mux.HandleFunc("GET /healthz", h.Health.Healthz)
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.RequestID(mux)
}
