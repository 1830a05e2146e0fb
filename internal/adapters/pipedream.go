package adapters

import (
	"context"
	"fmt"
	"sort"

	"github.com/caseflow-systems/caseflow-import/internal/mapping"
)

// timestampKeys are the top-level keys accepted as the delivery timestamp of
// a Pipedream payload.
var timestampKeys = []string{"timestamp", "ts", "time", "created_at"}

// PipedreamAdapter handles webhook payloads emitted by Pipedream workflows.
// Records may nest under data/records/items or arrive as a bare object;
// nested objects are flattened to dot-separated keys before mapping.
type PipedreamAdapter struct {
	suggester *mapping.Suggester
}

func NewPipedreamAdapter(suggester *mapping.Suggester) *PipedreamAdapter {
	return &PipedreamAdapter{suggester: suggester}
}

func (a *PipedreamAdapter) Type() mapping.SourceType {
	return mapping.SourcePipedream
}

func (a *PipedreamAdapter) DetectFields(ctx context.Context, src *Source) (*DetectionResult, error) {
	rows, err := a.rows(src)
	if err != nil {
		return nil, err
	}
	result := detectFromRows(rows, fieldOrder(rows))
	result.SuggestedMappings = suggestAll(result.DetectedFields, a.Type(), a.suggester)
	return result, nil
}

func (a *PipedreamAdapter) ProcessImport(ctx context.Context, src *Source, mappings mapping.Set, opts Options) (*Outcome, error) {
	rows, err := a.rows(src)
	if err != nil {
		return nil, err
	}
	return runImport(ctx, a.Type(), rows, mappings, opts, runHooks{
		externalID: pipedreamExternalID(mappings),
	})
}

// rows validates the payload envelope and flattens every record.
func (a *PipedreamAdapter) rows(src *Source) ([]map[string]string, error) {
	payload := src.Payload
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedPayload)
	}

	if _, hasWorkflow := payload["workflow_id"]; !hasWorkflow {
		if _, hasData := payload["data"]; !hasData {
			return nil, fmt.Errorf("%w: payload needs workflow_id or data", ErrMalformedPayload)
		}
	}
	if !hasTimestamp(payload) {
		return nil, fmt.Errorf("%w: payload carries no timestamp field", ErrMalformedPayload)
	}

	records := extractRecords(stripEnvelope(payload))
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	rows := make([]map[string]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, flatten(rec))
	}
	return rows, nil
}

func hasTimestamp(payload map[string]any) bool {
	for _, key := range timestampKeys {
		if _, ok := payload[key]; ok {
			return true
		}
	}
	return false
}

// stripEnvelope drops the workflow metadata so envelope keys never surface
// as detected fields when records nest under "data".
func stripEnvelope(payload map[string]any) map[string]any {
	if _, ok := payload["data"]; !ok {
		return payload
	}
	stripped := make(map[string]any, 1)
	stripped["data"] = payload["data"]
	return stripped
}

// pipedreamExternalID prefers an explicitly mapped external id, falling back
// to the conventional record "id" key so webhook replays dedup by default.
func pipedreamExternalID(mappings mapping.Set) func(int, map[string]string) string {
	mapped := externalIDFromMapping(mappings)
	return func(i int, row map[string]string) string {
		if mapped != nil {
			if id := mapped(i, row); id != "" {
				return id
			}
		}
		return row["id"]
	}
}

// fieldOrder returns the union of row keys in deterministic order.
func fieldOrder(rows []map[string]string) []string {
	seen := make(map[string]bool)
	var order []string
	for _, row := range rows {
		for key := range row {
			if !seen[key] {
				seen[key] = true
				order = append(order, key)
			}
		}
	}
	sort.Strings(order)
	return order
}
