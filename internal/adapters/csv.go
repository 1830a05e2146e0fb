package adapters

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/caseflow-systems/caseflow-import/internal/mapping"
	"github.com/caseflow-systems/caseflow-import/internal/materializer"
)

// CSVAdapter imports uploaded CSV files. Files are parsed with a comma
// delimiter; when the header parses to a single column the file is re-parsed
// with a semicolon, which covers the common European export dialect.
type CSVAdapter struct {
	suggester *mapping.Suggester
}

func NewCSVAdapter(suggester *mapping.Suggester) *CSVAdapter {
	return &CSVAdapter{suggester: suggester}
}

func (a *CSVAdapter) Type() mapping.SourceType {
	return mapping.SourceCSV
}

func (a *CSVAdapter) DetectFields(ctx context.Context, src *Source) (*DetectionResult, error) {
	header, rows, err := parseCSV(src.CSV)
	if err != nil {
		return nil, err
	}
	result := detectFromRows(rows, header)
	result.SuggestedMappings = suggestAll(result.DetectedFields, a.Type(), a.suggester)
	return result, nil
}

func (a *CSVAdapter) ProcessImport(ctx context.Context, src *Source, mappings mapping.Set, opts Options) (*Outcome, error) {
	_, rows, err := parseCSV(src.CSV)
	if err != nil {
		return nil, err
	}
	return runImport(ctx, a.Type(), rows, mappings, opts, runHooks{
		externalID: externalIDFromMapping(mappings),
		decorate:   a.ensureCaseNumber(mappings),
	})
}

// ensureCaseNumber generates a case number for rows whose mapping set leaves
// it unmapped, so every created case is addressable by operators.
func (a *CSVAdapter) ensureCaseNumber(mappings mapping.Set) func(int, map[string]string, *materializer.Record) {
	for _, m := range mappings {
		if m.TargetTable == "cases" && m.TargetField == "case_number" {
			return nil
		}
	}
	return func(_ int, _ map[string]string, rec *materializer.Record) {
		if len(rec.Case) == 0 {
			return
		}
		if rec.Case["case_number"] == nil {
			rec.Case["case_number"] = generateCaseNumber()
		}
	}
}

// generateCaseNumber builds an operator-facing case id like CSV-2026-4821.
func generateCaseNumber() string {
	return fmt.Sprintf("CSV-%d-%04d", time.Now().Year(), rand.Intn(10000))
}

// parseCSV parses raw CSV bytes into a header and row maps. A header that
// yields exactly one column under comma splitting triggers the semicolon
// fallback.
func parseCSV(raw []byte) (header []string, rows []map[string]string, err error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil, fmt.Errorf("%w: empty file", ErrMalformedPayload)
	}
	// Strip a UTF-8 BOM so the first header cell survives.
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})

	records, err := readAll(raw, ',')
	if err == nil && len(records) > 0 && len(records[0]) == 1 {
		if semi, semiErr := readAll(raw, ';'); semiErr == nil && len(semi) > 0 && len(semi[0]) > 1 {
			records = semi
		}
	}
	if err != nil {
		// Comma parse failed outright; try semicolon before giving up.
		records, err = readAll(raw, ';')
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%w: empty file", ErrMalformedPayload)
	}

	header = make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}

	for _, record := range records[1:] {
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

func readAll(raw []byte, delimiter rune) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(raw))
	r.Comma = delimiter
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	return r.ReadAll()
}
