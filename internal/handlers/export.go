package handlers

import (
	"fmt"
	"net/http"

	"github.com/caseflow-systems/caseflow-import/internal/export"
	"github.com/caseflow-systems/caseflow-import/internal/httputil"
	"github.com/caseflow-systems/caseflow-import/internal/logging"
	"github.com/caseflow-systems/caseflow-import/internal/repository"
)

// ExportHandler serves CSV case exports and blank import templates.
type ExportHandler struct {
	exporter *export.Exporter
	logger   *logging.Logger
}

func NewExportHandler(exporter *export.Exporter, logger *logging.Logger) *ExportHandler {
	return &ExportHandler{exporter: exporter, logger: logger}
}

// exportOptions reads the shared CSV rendering parameters.
func exportOptions(r *http.Request) export.Options {
	opts := export.Options{BOM: r.URL.Query().Get("bom") != "false"}
	if r.URL.Query().Get("delimiter") == "semicolon" {
		opts.Delimiter = ';'
	}
	return opts
}

// Cases handles GET /api/v1/export/cases.
func (h *ExportHandler) Cases(w http.ResponseWriter, r *http.Request) {
	opts := exportOptions(r)
	opts.Filter = repository.ExportFilter{
		From:              r.URL.Query().Get("from"),
		To:                r.URL.Query().Get("to"),
		IncludeFinancials: r.URL.Query().Get("financials") == "true",
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="cases-export.csv"`)
	if err := h.exporter.WriteCases(r.Context(), w, opts); err != nil {
		// Headers are gone by now; log and cut the stream.
		h.logger.ErrorContext(r.Context(), "case export failed", logging.Error(err))
	}
}

// Templates handles GET /api/v1/templates.
func (h *ExportHandler) Templates(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"templates": export.TemplateNames(),
	})
}

// Template handles GET /api/v1/templates/{name}.
func (h *ExportHandler) Template(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s-template.csv"`, name))
	if err := export.WriteTemplate(w, name, exportOptions(r)); err != nil {
		httputil.WriteError(w, http.StatusNotFound, err.Error())
	}
}
