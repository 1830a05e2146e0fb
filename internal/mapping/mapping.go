// Package mapping defines field mappings from external source fields to the
// relational target schema, plus the regex-based suggester that proposes
// mappings from detected field names.
package mapping

import (
	"fmt"

	"github.com/caseflow-systems/caseflow-import/internal/schema"
)

// FieldMapping declares how one source field lands in the target schema.
type FieldMapping struct {
	SourceField string `json:"source_field" yaml:"source_field"`
	TargetTable string `json:"target_table" yaml:"target_table"`
	TargetField string `json:"target_field" yaml:"target_field"`
	DataType    string `json:"data_type" yaml:"data_type"`
	Required    bool   `json:"required,omitempty" yaml:"required,omitempty"`
	AllowEmpty  bool   `json:"allow_empty,omitempty" yaml:"allow_empty,omitempty"`
	// ValueMapping remaps categorical raw values after type conversion.
	ValueMapping map[string]string `json:"value_mapping,omitempty" yaml:"value_mapping,omitempty"`
	// ContactRole tags contact mappings (client, debtor, lawyer, ...) so the
	// materializer can build case_contacts join rows with the right role.
	ContactRole string `json:"contact_role,omitempty" yaml:"contact_role,omitempty"`
	// FinancialType tags financial mappings (claim, damages, fee, ...).
	FinancialType string `json:"financial_type,omitempty" yaml:"financial_type,omitempty"`
}

// Set is a named collection of mappings for one configured source, keyed by
// source field name. Sets are owned by configuration and read-only during
// processing.
type Set map[string]FieldMapping

// ValidationIssue describes one problem found while validating a mapping set.
type ValidationIssue struct {
	SourceField string `json:"source_field"`
	Message     string `json:"message"`
	Warning     bool   `json:"warning"`
}

// Validate checks every mapping in the set against the registry. Unknown
// table/field combinations are errors and reject the set at configuration
// load time. Type incompatibilities are reported as warnings only; they
// never block detection or processing.
func (s Set) Validate(reg *schema.Registry) ([]ValidationIssue, error) {
	var issues []ValidationIssue
	hasError := false

	for sourceField, m := range s {
		if m.TargetTable == "" || m.TargetField == "" {
			issues = append(issues, ValidationIssue{
				SourceField: sourceField,
				Message:     "mapping is missing target table or field",
			})
			hasError = true
			continue
		}
		if _, ok := reg.TableSchema(m.TargetTable); !ok {
			issues = append(issues, ValidationIssue{
				SourceField: sourceField,
				Message:     fmt.Sprintf("unknown target table %q", m.TargetTable),
			})
			hasError = true
			continue
		}
		if !reg.HasField(m.TargetTable, m.TargetField) {
			issues = append(issues, ValidationIssue{
				SourceField: sourceField,
				Message: fmt.Sprintf("unknown field %q in table %q",
					m.TargetField, m.TargetTable),
			})
			hasError = true
			continue
		}
		declared, _ := reg.FieldType(m.TargetTable, m.TargetField)
		if !IsCompatible(m.DataType, declared) {
			issues = append(issues, ValidationIssue{
				SourceField: sourceField,
				Message: fmt.Sprintf("data type %q may not fit declared type %q of %s.%s",
					m.DataType, declared, m.TargetTable, m.TargetField),
				Warning: true,
			})
		}
	}

	if hasError {
		return issues, fmt.Errorf("mapping set has %d invalid mapping(s)", countErrors(issues))
	}
	return issues, nil
}

// IsCompatible reports whether a mapping data type can be stored in a field
// of the declared schema type. Used only to emit warnings during mapping
// validation, never to block detection.
func IsCompatible(dataType string, declared schema.FieldType) bool {
	if dataType == string(declared) {
		return true
	}
	switch declared {
	case schema.TypeString, schema.TypeText:
		// Everything serializes to a string column.
		return true
	case schema.TypeDecimal:
		return dataType == "integer" || dataType == "decimal"
	case schema.TypeDatetime:
		return dataType == "date" || dataType == "datetime"
	case schema.TypeJSON:
		return dataType == "json" || dataType == "array"
	default:
		return false
	}
}

func countErrors(issues []ValidationIssue) int {
	n := 0
	for _, i := range issues {
		if !i.Warning {
			n++
		}
	}
	return n
}
