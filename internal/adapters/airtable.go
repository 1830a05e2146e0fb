package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/caseflow-systems/caseflow-import/internal/mapping"
)

const (
	airtablePageSize   = 100
	airtableDetectSize = 10
)

// airtableRecord is one row of an Airtable REST response.
type airtableRecord struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

type airtablePage struct {
	Records []airtableRecord `json:"records"`
	Offset  string           `json:"offset"`
}

// AirtableAdapter polls the Airtable REST API. Full syncs paginate via the
// offset cursor with a fixed inter-page delay as rate-limit courtesy; there
// is deliberately no adaptive backoff. Incremental syncs filter on records
// modified after the last sync watermark.
type AirtableAdapter struct {
	suggester *mapping.Suggester
	client    *http.Client
	baseURL   string
	pageDelay time.Duration
}

func NewAirtableAdapter(suggester *mapping.Suggester, baseURL string, pageDelay time.Duration) *AirtableAdapter {
	if baseURL == "" {
		baseURL = "https://api.airtable.com/v0"
	}
	return &AirtableAdapter{
		suggester: suggester,
		client:    &http.Client{Timeout: 30 * time.Second},
		baseURL:   baseURL,
		pageDelay: pageDelay,
	}
}

func (a *AirtableAdapter) Type() mapping.SourceType {
	return mapping.SourceAirtable
}

// DetectFields inspects the fields map of the first records of the table.
func (a *AirtableAdapter) DetectFields(ctx context.Context, src *Source) (*DetectionResult, error) {
	if src.API == nil {
		return nil, fmt.Errorf("%w: airtable connection not configured", ErrMalformedPayload)
	}
	page, err := a.fetchPage(ctx, src.API, "", airtableDetectSize, "")
	if err != nil {
		return nil, err
	}
	if len(page.Records) == 0 {
		return nil, ErrNoRecords
	}

	rows := make([]map[string]string, 0, len(page.Records))
	for _, rec := range page.Records {
		rows = append(rows, collapseAirtableFields(rec.Fields, nil))
	}
	result := detectFromRows(rows, fieldOrder(rows))
	result.SuggestedMappings = suggestAll(result.DetectedFields, a.Type(), a.suggester)
	return result, nil
}

func (a *AirtableAdapter) ProcessImport(ctx context.Context, src *Source, mappings mapping.Set, opts Options) (*Outcome, error) {
	if src.API == nil {
		return nil, fmt.Errorf("%w: airtable connection not configured", ErrMalformedPayload)
	}

	formula := ""
	if src.API.SyncMode == "incremental" && !src.API.LastSync.IsZero() {
		formula = fmt.Sprintf("IS_AFTER(LAST_MODIFIED_TIME(), '%s')",
			src.API.LastSync.UTC().Format(time.RFC3339))
	}

	var rows []map[string]string
	var recordIDs []string
	offset := ""
	for {
		page, err := a.fetchPage(ctx, src.API, offset, airtablePageSize, formula)
		if err != nil {
			return nil, err
		}
		for _, rec := range page.Records {
			rows = append(rows, collapseAirtableFields(rec.Fields, mappings))
			recordIDs = append(recordIDs, rec.ID)
		}
		if page.Offset == "" {
			break
		}
		offset = page.Offset

		// Fixed courtesy delay between pages; Airtable rate-limits at 5 rps.
		select {
		case <-time.After(a.pageDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return runImport(ctx, a.Type(), rows, mappings, opts, runHooks{
		externalID: func(i int, _ map[string]string) string {
			return recordIDs[i]
		},
	})
}

func (a *AirtableAdapter) fetchPage(ctx context.Context, cfg *APIConfig, offset string, pageSize int, formula string) (*airtablePage, error) {
	base := cfg.BaseURL
	if base == "" {
		base = a.baseURL
	}
	endpoint := fmt.Sprintf("%s/%s/%s", strings.TrimRight(base, "/"),
		url.PathEscape(cfg.BaseID), url.PathEscape(cfg.Table))

	q := url.Values{}
	q.Set("pageSize", fmt.Sprintf("%d", pageSize))
	if offset != "" {
		q.Set("offset", offset)
	}
	if formula != "" {
		q.Set("filterByFormula", formula)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build airtable request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("airtable request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("airtable rejected the API key")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("airtable returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read airtable response: %w", err)
	}

	var page airtablePage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return &page, nil
}

// collapseAirtableFields stringifies an Airtable fields map. Arrays collapse
// to a comma-joined string, or to their first element when the target data
// type of the mapped field is scalar (decimal, date, ...). Attachment
// objects collapse to their url.
func collapseAirtableFields(fields map[string]any, mappings mapping.Set) map[string]string {
	row := make(map[string]string, len(fields))
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := fields[key]
		list, isList := value.([]any)
		if !isList {
			row[key] = stringify(collapseAttachment(value))
			continue
		}

		parts := make([]string, 0, len(list))
		for _, item := range list {
			parts = append(parts, stringify(collapseAttachment(item)))
		}

		if m, ok := mappings[key]; ok && scalarType(m.DataType) && len(parts) > 0 {
			row[key] = parts[0]
			continue
		}
		row[key] = strings.Join(parts, ",")
	}
	return row
}

// collapseAttachment reduces an attachment object to its url (or filename).
func collapseAttachment(v any) any {
	obj, ok := v.(map[string]any)
	if !ok {
		return v
	}
	if u, ok := obj["url"].(string); ok {
		return u
	}
	if name, ok := obj["filename"].(string); ok {
		return name
	}
	return v
}

func scalarType(dataType string) bool {
	switch dataType {
	case "string", "text", "json", "array", "":
		return false
	default:
		return true
	}
}
