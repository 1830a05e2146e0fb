package adapters

import (
	"context"
	"fmt"

	"github.com/caseflow-systems/caseflow-import/internal/mapping"
	"github.com/caseflow-systems/caseflow-import/internal/materializer"
	"github.com/caseflow-systems/caseflow-import/internal/metrics"
)

// suggestAll runs the suggester over the detected field names. Fields with
// no matching pattern are simply absent from the map.
func suggestAll(fields []DetectedField, sourceType mapping.SourceType, sug *mapping.Suggester) map[string]mapping.FieldMapping {
	out := make(map[string]mapping.FieldMapping)
	for _, f := range fields {
		if m := sug.Suggest(f.Name, sourceType); m != nil {
			out[f.Name] = *m
		}
	}
	return out
}

// runHooks lets adapter variants customize the shared loop without owning
// their own copy of it.
type runHooks struct {
	// externalID derives the record's external id from the raw row.
	externalID func(index int, row map[string]string) string
	// rowCheck returns additional per-row validation errors (partner format
	// column rules). Reported in preview and processing alike.
	rowCheck func(index int, row map[string]string) []string
	// decorate mutates the projected record before persistence (generated
	// case numbers, per-contact external ids).
	decorate func(index int, row map[string]string, rec *materializer.Record)
}

// externalIDFromMapping derives external ids from the row value of the
// mapping that targets cases.external_id, when one is configured.
func externalIDFromMapping(mappings mapping.Set) func(int, map[string]string) string {
	for sourceField, m := range mappings {
		if m.TargetTable == "cases" && m.TargetField == "external_id" {
			field := sourceField
			return func(_ int, row map[string]string) string {
				return row[field]
			}
		}
	}
	return nil
}

// runImport is the shared processing loop: preview samples rows without any
// persistence; full runs project and persist each row independently, so one
// failed record never aborts the batch.
func runImport(ctx context.Context, sourceType mapping.SourceType, rows []map[string]string, mappings mapping.Set, opts Options, hooks runHooks) (*Outcome, error) {
	if len(mappings) == 0 {
		return nil, fmt.Errorf("no field mappings configured")
	}

	if opts.PreviewOnly {
		limit := opts.previewLimit()
		preview := &PreviewResult{TotalRecords: len(rows)}
		for i, row := range rows {
			if i >= limit {
				break
			}
			p := project(row, mappings)
			if hooks.rowCheck != nil {
				p.errors = append(hooks.rowCheck(i, row), p.errors...)
			}
			preview.Rows = append(preview.Rows, PreviewRow{
				RowNumber:  i + 1,
				Valid:      p.valid(),
				MappedData: p.mapped,
				Errors:     p.errors,
			})
		}
		preview.SampledRows = len(preview.Rows)
		return &Outcome{Preview: preview}, nil
	}

	if opts.Sink == nil {
		return nil, fmt.Errorf("processing run requires a sink")
	}

	result := &ImportResult{
		Total:            len(rows),
		CreatedRecordIDs: make(map[string][]string),
	}

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.Processed++

		p := project(row, mappings)
		if hooks.rowCheck != nil {
			p.errors = append(hooks.rowCheck(i, row), p.errors...)
		}
		if !p.valid() {
			result.Failed++
			metrics.RecordsTotal.WithLabelValues(string(sourceType), "invalid").Inc()
			for _, e := range p.errors {
				result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %s", i+1, e))
			}
			continue
		}

		externalID := ""
		if hooks.externalID != nil {
			externalID = hooks.externalID(i, row)
		}
		if hooks.decorate != nil {
			hooks.decorate(i, row, p.record)
		}

		created, err := opts.Sink.Persist(ctx, p.record, externalID, opts.SourceTag)
		if err != nil {
			result.Failed++
			metrics.RecordsTotal.WithLabelValues(string(sourceType), "failed").Inc()
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %s", i+1, err))
			continue
		}

		result.Succeeded++
		metrics.RecordsTotal.WithLabelValues(string(sourceType), "succeeded").Inc()
		for table, ids := range created {
			result.CreatedRecordIDs[table] = append(result.CreatedRecordIDs[table], ids...)
		}
	}

	return &Outcome{Result: result}, nil
}
