// Package adapters translates external data formats (CSV uploads, Airtable
// bases, Pipedream webhooks, generic REST APIs, the partner export format)
// into the engine's internal record shape.
package adapters

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/caseflow-systems/caseflow-import/internal/convert"
	"github.com/caseflow-systems/caseflow-import/internal/mapping"
	"github.com/caseflow-systems/caseflow-import/internal/materializer"
)

var (
	// ErrMalformedPayload is returned when source data cannot be parsed at
	// all; it aborts the request before any record is processed.
	ErrMalformedPayload = errors.New("malformed source payload")
	// ErrNoRecords is returned when the payload parses but contains nothing.
	ErrNoRecords = errors.New("no records in source data")
)

// DetectedField describes one field found in source data. Purely advisory,
// never persisted.
type DetectedField struct {
	Name            string   `json:"name"`
	SampleValues    []string `json:"sample_values"`
	InferredType    string   `json:"inferred_data_type"`
	EmptyPercentage float64  `json:"empty_percentage"`
}

// DetectionResult is the outcome of field detection on a source.
type DetectionResult struct {
	DetectedFields    []DetectedField                 `json:"detected_fields"`
	SuggestedMappings map[string]mapping.FieldMapping `json:"suggested_mappings"`
	TotalRecords      int                             `json:"total_records"`
}

// PreviewRow is the dry-run outcome for one sampled record.
type PreviewRow struct {
	RowNumber  int                       `json:"row_number"`
	Valid      bool                      `json:"valid"`
	MappedData map[string]map[string]any `json:"mapped_data"`
	Errors     []string                  `json:"errors,omitempty"`
}

// PreviewResult is the outcome of a preview run. The materializer is never
// touched while producing it.
type PreviewResult struct {
	TotalRecords int          `json:"total_records"`
	SampledRows  int          `json:"sampled_rows"`
	Rows         []PreviewRow `json:"rows"`
}

// ImportResult aggregates a full processing run.
type ImportResult struct {
	Total            int                 `json:"total"`
	Processed        int                 `json:"processed"`
	Succeeded        int                 `json:"succeeded"`
	Failed           int                 `json:"failed"`
	Errors           []string            `json:"errors,omitempty"`
	CreatedRecordIDs map[string][]string `json:"created_record_ids,omitempty"`
}

// Outcome is the union returned by ProcessImport: exactly one of Preview or
// Result is set, depending on the requested mode.
type Outcome struct {
	Preview *PreviewResult `json:"preview,omitempty"`
	Result  *ImportResult  `json:"result,omitempty"`
}

// Sink receives projected records for persistence. The orchestrator passes
// the materializer; preview runs never call it.
type Sink interface {
	Persist(ctx context.Context, rec *materializer.Record, externalID, source string) (materializer.CreatedIDs, error)
}

// Options controls one ProcessImport invocation.
type Options struct {
	PreviewOnly bool
	// MaxRows bounds preview sampling (default 5, cap 100). Ignored for
	// full processing runs.
	MaxRows int
	// Sink persists records during full runs. Required unless PreviewOnly.
	Sink Sink
	// SourceTag is recorded on every persisted row for dedup and audit.
	SourceTag string
}

const (
	defaultPreviewRows = 5
	maxPreviewRows     = 100
)

func (o Options) previewLimit() int {
	n := o.MaxRows
	if n <= 0 {
		n = defaultPreviewRows
	}
	if n > maxPreviewRows {
		n = maxPreviewRows
	}
	return n
}

// APIConfig carries connection details for pull-based sources (Airtable,
// generic REST APIs).
type APIConfig struct {
	BaseURL  string `json:"base_url"`
	APIKey   string `json:"api_key"`
	BaseID   string `json:"base_id"`
	Table    string `json:"table"`
	AuthType string `json:"auth_type"` // bearer, token, api_key, basic
	Username string `json:"username"`
	Password string `json:"password"`
	// SyncMode selects full or incremental Airtable sync.
	SyncMode string    `json:"sync_mode"`
	LastSync time.Time `json:"last_sync"`
}

// Source is the input union handed to an adapter. Exactly one of the data
// carriers is populated, depending on the source type.
type Source struct {
	ID      string
	CSV     []byte
	Payload map[string]any
	// Records holds a bare JSON array payload (generic APIs may respond with
	// a top-level list instead of an envelope object).
	Records []any
	API     *APIConfig
}

// SourceAdapter is the capability set every source variant implements.
type SourceAdapter interface {
	Type() mapping.SourceType
	DetectFields(ctx context.Context, src *Source) (*DetectionResult, error)
	ProcessImport(ctx context.Context, src *Source, mappings mapping.Set, opts Options) (*Outcome, error)
}

// Registry holds the compile-time-registered adapter set, dispatched by the
// typed source enum.
type Registry struct {
	adapters map[mapping.SourceType]SourceAdapter
}

func NewRegistry(adapters ...SourceAdapter) *Registry {
	m := make(map[mapping.SourceType]SourceAdapter, len(adapters))
	for _, a := range adapters {
		m[a.Type()] = a
	}
	return &Registry{adapters: m}
}

// Get returns the adapter for the source type.
func (r *Registry) Get(t mapping.SourceType) (SourceAdapter, error) {
	a, ok := r.adapters[t]
	if !ok {
		return nil, fmt.Errorf("unknown source type %q", t)
	}
	return a, nil
}

// Types returns the registered source types in deterministic order.
func (r *Registry) Types() []mapping.SourceType {
	out := make([]mapping.SourceType, 0, len(r.adapters))
	for t := range r.adapters {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// projection is one row translated through the mapping set.
type projection struct {
	record *materializer.Record
	mapped map[string]map[string]any
	errors []string
}

// project converts one raw row through the mapping set into a materializer
// record. Conversion errors are collected per field, formatted for operator
// display; a row with errors is invalid but never aborts the batch.
func project(row map[string]string, mappings mapping.Set) *projection {
	p := &projection{
		record: &materializer.Record{},
		mapped: make(map[string]map[string]any),
	}

	contacts := make(map[string]map[string]any) // keyed by role
	var roles []string

	fields := make([]string, 0, len(mappings))
	for f := range mappings {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, sourceField := range fields {
		m := mappings[sourceField]
		raw := row[sourceField]

		value, err := convert.Convert(raw, convert.Params{
			DataType:     m.DataType,
			Required:     m.Required,
			AllowEmpty:   m.AllowEmpty,
			ValueMapping: m.ValueMapping,
		})
		if err != nil {
			if errors.Is(err, convert.ErrRequiredFieldEmpty) {
				p.errors = append(p.errors, fmt.Sprintf("Field '%s': Required field is empty", sourceField))
			} else if errors.Is(err, convert.ErrEmptyNotAllowed) {
				p.errors = append(p.errors, fmt.Sprintf("Field '%s': Empty value not allowed", sourceField))
			} else {
				p.errors = append(p.errors, fmt.Sprintf("Field '%s': %s", sourceField, err))
			}
			continue
		}
		if value == nil {
			continue
		}

		switch m.TargetTable {
		case "contacts":
			role := m.ContactRole
			if role == "" {
				role = "client"
			}
			if _, ok := contacts[role]; !ok {
				contacts[role] = make(map[string]any)
				roles = append(roles, role)
			}
			contacts[role][m.TargetField] = value
		case "financials":
			p.addFinancial(m.FinancialType, m.TargetField, value)
		default:
			// Everything else lands on the case row.
			if p.record.Case == nil {
				p.record.Case = make(map[string]any)
			}
			p.record.Case[m.TargetField] = value
			if p.mapped[m.TargetTable] == nil {
				p.mapped[m.TargetTable] = make(map[string]any)
			}
			p.mapped[m.TargetTable][m.TargetField] = value
		}
	}

	// Deterministic contact order: client first, then by role name.
	sort.SliceStable(roles, func(i, j int) bool {
		if roles[i] == "client" {
			return true
		}
		if roles[j] == "client" {
			return false
		}
		return roles[i] < roles[j]
	})
	for _, role := range roles {
		p.record.Contacts = append(p.record.Contacts, materializer.Contact{
			Role:   role,
			Fields: contacts[role],
		})
		key := "contacts"
		if role != "client" {
			key = "contacts:" + role
		}
		p.mapped[key] = contacts[role]
	}

	return p
}

func (p *projection) addFinancial(finType, field string, value any) {
	for i := range p.record.Financials {
		if p.record.Financials[i].Type == finType {
			p.record.Financials[i].Fields[field] = value
			p.mappedFinancial(finType)[field] = value
			return
		}
	}
	p.record.Financials = append(p.record.Financials, materializer.Financial{
		Type:   finType,
		Fields: map[string]any{field: value},
	})
	p.mappedFinancial(finType)[field] = value
}

func (p *projection) mappedFinancial(finType string) map[string]any {
	key := "financials"
	if finType != "" {
		key = "financials:" + finType
	}
	if p.mapped[key] == nil {
		p.mapped[key] = make(map[string]any)
	}
	return p.mapped[key]
}

func (p *projection) valid() bool {
	return len(p.errors) == 0
}
