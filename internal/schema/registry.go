// Package schema describes the fixed relational target schema the import
// engine materializes records into. The registry is read-only after
// construction; changing the schema means shipping a new registry version.
package schema

import (
	"fmt"
	"sort"
)

// FieldType is the declared storage type of a target field.
type FieldType string

const (
	TypeString   FieldType = "string"
	TypeText     FieldType = "text"
	TypeEmail    FieldType = "email"
	TypePhone    FieldType = "phone"
	TypeURL      FieldType = "url"
	TypeInteger  FieldType = "integer"
	TypeDecimal  FieldType = "decimal"
	TypeDate     FieldType = "date"
	TypeDatetime FieldType = "datetime"
	TypeBoolean  FieldType = "boolean"
	TypeJSON     FieldType = "json"
)

// Target table names.
const (
	TableContacts     = "contacts"
	TableCases        = "cases"
	TableCaseContacts = "case_contacts"
	TableFinancials   = "financials"
)

// Registry holds the table and field definitions of the target schema.
type Registry struct {
	tables map[string]map[string]FieldType
}

// Default returns the process-wide registry covering contacts, cases,
// case-contact links and financial records.
func Default() *Registry {
	return &Registry{
		tables: map[string]map[string]FieldType{
			TableContacts: {
				"external_id":  TypeString,
				"source":       TypeString,
				"first_name":   TypeString,
				"last_name":    TypeString,
				"company":      TypeString,
				"email":        TypeEmail,
				"phone":        TypePhone,
				"website":      TypeURL,
				"address":      TypeString,
				"city":         TypeString,
				"postal_code":  TypeString,
				"country":      TypeString,
				"contact_type": TypeString,
				"notes":        TypeText,
			},
			TableCases: {
				"external_id":    TypeString,
				"source":         TypeString,
				"case_number":    TypeString,
				"lawyer_case_id": TypeString,
				"title":          TypeString,
				"status":         TypeString,
				"opened_at":      TypeDate,
				"closed_at":      TypeDate,
				"description":    TypeText,
				"metadata":       TypeJSON,
			},
			TableCaseContacts: {
				"case_id":    TypeString,
				"contact_id": TypeString,
				"role":       TypeString,
			},
			TableFinancials: {
				"external_id":    TypeString,
				"source":         TypeString,
				"case_id":        TypeString,
				"financial_type": TypeString,
				"amount":         TypeDecimal,
				"currency":       TypeString,
				"booked_at":      TypeDate,
				"reference":      TypeString,
				"notes":          TypeText,
			},
		},
	}
}

// Tables returns the known table names in deterministic order.
func (r *Registry) Tables() []string {
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TableSchema returns the field->type map of a table. The second return is
// false when the table is unknown. Callers must not mutate the returned map.
func (r *Registry) TableSchema(table string) (map[string]FieldType, bool) {
	fields, ok := r.tables[table]
	return fields, ok
}

// HasField reports whether a table declares the given field.
func (r *Registry) HasField(table, field string) bool {
	fields, ok := r.tables[table]
	if !ok {
		return false
	}
	_, ok = fields[field]
	return ok
}

// FieldType returns the declared type of a field.
func (r *Registry) FieldType(table, field string) (FieldType, error) {
	fields, ok := r.tables[table]
	if !ok {
		return "", fmt.Errorf("unknown table %q", table)
	}
	ft, ok := fields[field]
	if !ok {
		return "", fmt.Errorf("unknown field %q in table %q", field, table)
	}
	return ft, nil
}
