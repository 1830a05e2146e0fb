package adapters

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// recordKeys are the envelope keys pull/push payloads nest their records
// under, probed in order.
var recordKeys = []string{"data", "records", "items", "results"}

// extractRecords pulls the list of record objects out of a decoded payload.
// The payload may nest records under one of the well-known envelope keys, be
// a bare object (one record), or -- for generic APIs -- a bare array.
func extractRecords(payload map[string]any) []map[string]any {
	for _, key := range recordKeys {
		nested, ok := payload[key]
		if !ok {
			continue
		}
		switch v := nested.(type) {
		case []any:
			return toRecordList(v)
		case map[string]any:
			return []map[string]any{v}
		}
	}
	// Bare object: the payload itself is the record.
	return []map[string]any{payload}
}

func toRecordList(items []any) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if rec, ok := item.(map[string]any); ok {
			out = append(out, rec)
		}
	}
	return out
}

// flatten converts a nested record into a flat map with dot-separated keys,
// stringifying leaf values. Arrays are joined with commas.
func flatten(record map[string]any) map[string]string {
	out := make(map[string]string)
	flattenInto(out, "", record)
	return out
}

func flattenInto(out map[string]string, prefix string, value any) {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			flattenInto(out, key, v[k])
		}
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, stringify(item))
		}
		out[prefix] = strings.Join(parts, ",")
	default:
		out[prefix] = stringify(value)
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		// JSON numbers decode as float64; keep integers clean.
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

var (
	emailValueRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	dateValueRe  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	numberRe     = regexp.MustCompile(`^-?\d+([.,]\d+)?$`)
)

// inferenceSampleSize bounds how many rows the type vote looks at.
const inferenceSampleSize = 10

// inferenceThreshold is the majority share a candidate type needs to win.
const inferenceThreshold = 0.8

// inferType votes a data type from sample values: a candidate type wins when
// at least 80% of the non-empty samples match it, otherwise string.
func inferType(samples []string) string {
	counts := map[string]int{}
	nonEmpty := 0
	for _, s := range samples {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		nonEmpty++
		switch {
		case emailValueRe.MatchString(s):
			counts["email"]++
		case dateValueRe.MatchString(s):
			counts["date"]++
		case numberRe.MatchString(s):
			counts["decimal"]++
		}
	}
	if nonEmpty == 0 {
		return "string"
	}
	for _, candidate := range []string{"email", "date", "decimal"} {
		if float64(counts[candidate])/float64(nonEmpty) >= inferenceThreshold {
			return candidate
		}
	}
	return "string"
}

// detectFromRows builds detection results from flattened string rows:
// sample values (at most 3), inferred type from a bounded sample, and empty
// percentage across all rows. The caller fills in suggested mappings.
func detectFromRows(rows []map[string]string, fieldOrder []string) *DetectionResult {
	result := &DetectionResult{
		TotalRecords: len(rows),
	}
	for _, name := range fieldOrder {
		var samples []string
		empty := 0
		for i, row := range rows {
			v := strings.TrimSpace(row[name])
			if v == "" {
				empty++
				continue
			}
			if i < inferenceSampleSize && len(samples) < inferenceSampleSize {
				samples = append(samples, v)
			}
		}

		field := DetectedField{
			Name:         name,
			InferredType: inferType(samples),
		}
		if len(samples) > 3 {
			field.SampleValues = samples[:3]
		} else {
			field.SampleValues = samples
		}
		if len(rows) > 0 {
			field.EmptyPercentage = float64(empty) / float64(len(rows)) * 100
		}
		result.DetectedFields = append(result.DetectedFields, field)
	}
	return result
}
