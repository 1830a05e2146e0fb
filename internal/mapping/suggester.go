package mapping

import (
	"regexp"
	"strings"
)

// SourceType identifies the adapter variant a suggestion is requested for.
// Kept here (not in the adapters package) so the suggester has no dependency
// on adapter implementations.
type SourceType string

const (
	SourceCSV        SourceType = "csv"
	SourceAirtable   SourceType = "airtable"
	SourcePipedream  SourceType = "pipedream"
	SourceGenericAPI SourceType = "generic_api"
	SourcePartner    SourceType = "partner"
)

// pattern is one named regex rule mapping a field name onto a target field.
type pattern struct {
	name       string
	re         *regexp.Regexp
	table      string
	field      string
	dataType   string
	confidence float64
	role       string
	finType    string
}

// Suggester proposes field mappings from source field names. Suggestions are
// advisory; the caller decides whether to accept them.
type Suggester struct {
	base    []pattern
	partner []pattern
}

// NewSuggester builds the suggester with the built-in pattern tables.
func NewSuggester() *Suggester {
	return &Suggester{
		base:    basePatterns(),
		partner: partnerPatterns(),
	}
}

// Suggest returns a mapping for the field name, or nil when no pattern
// matches. Matching is ordered and case-insensitive against the lower-cased
// field name; the first matching pattern wins. The partner source type
// consults its own patterns before the base list.
func (s *Suggester) Suggest(fieldName string, sourceType SourceType) *FieldMapping {
	lower := strings.ToLower(strings.TrimSpace(fieldName))
	if lower == "" {
		return nil
	}

	patterns := s.base
	if sourceType == SourcePartner {
		patterns = append(s.partner, s.base...)
	}

	for _, p := range patterns {
		if p.re.MatchString(lower) {
			return &FieldMapping{
				SourceField:   fieldName,
				TargetTable:   p.table,
				TargetField:   p.field,
				DataType:      p.dataType,
				ContactRole:   p.role,
				FinancialType: p.finType,
			}
		}
	}
	return nil
}

// Confidence returns the confidence score of the first matching pattern,
// or 0 when nothing matches.
func (s *Suggester) Confidence(fieldName string, sourceType SourceType) float64 {
	lower := strings.ToLower(strings.TrimSpace(fieldName))
	patterns := s.base
	if sourceType == SourcePartner {
		patterns = append(s.partner, s.base...)
	}
	for _, p := range patterns {
		if p.re.MatchString(lower) {
			return p.confidence
		}
	}
	return 0
}

func basePatterns() []pattern {
	return []pattern{
		{name: "email", re: regexp.MustCompile(`e[-_]?mail`),
			table: "contacts", field: "email", dataType: "email", confidence: 0.95},
		{name: "first_name", re: regexp.MustCompile(`first[-_\s]?name|vorname|given`),
			table: "contacts", field: "first_name", dataType: "string", confidence: 0.9},
		{name: "last_name", re: regexp.MustCompile(`last[-_\s]?name|surname|nachname|family`),
			table: "contacts", field: "last_name", dataType: "string", confidence: 0.9},
		{name: "company", re: regexp.MustCompile(`company|firma|organi[sz]ation`),
			table: "contacts", field: "company", dataType: "string", confidence: 0.85},
		{name: "phone", re: regexp.MustCompile(`phone|tele[ff]on|mobile|mobil`),
			table: "contacts", field: "phone", dataType: "phone", confidence: 0.9},
		{name: "address", re: regexp.MustCompile(`address|stra(ss|ß)e|street`),
			table: "contacts", field: "address", dataType: "string", confidence: 0.8},
		{name: "city", re: regexp.MustCompile(`^city$|^ort$|^town$`),
			table: "contacts", field: "city", dataType: "string", confidence: 0.8},
		{name: "postal_code", re: regexp.MustCompile(`postal|zip|plz`),
			table: "contacts", field: "postal_code", dataType: "string", confidence: 0.85},
		{name: "country", re: regexp.MustCompile(`country|land$`),
			table: "contacts", field: "country", dataType: "string", confidence: 0.8},
		{name: "case_id", re: regexp.MustCompile(`case[-_\s]?(id|number|no)|akte`),
			table: "cases", field: "case_number", dataType: "string", confidence: 0.85},
		{name: "status", re: regexp.MustCompile(`^status$|^state$`),
			table: "cases", field: "status", dataType: "string", confidence: 0.75},
		{name: "amount", re: regexp.MustCompile(`amount|betrag|sum|value`),
			table: "financials", field: "amount", dataType: "decimal", confidence: 0.8,
			finType: "claim"},
		{name: "notes", re: regexp.MustCompile(`note|comment|bemerkung|description`),
			table: "cases", field: "description", dataType: "text", confidence: 0.6},
		{name: "date", re: regexp.MustCompile(`date|datum|created|opened`),
			table: "cases", field: "opened_at", dataType: "date", confidence: 0.6},
	}
}

// partnerPatterns extends the base list for the partner export format.
func partnerPatterns() []pattern {
	return []pattern{
		{name: "lawyer_case_id", re: regexp.MustCompile(`lawyer[-_\s]?case[-_\s]?id`),
			table: "cases", field: "lawyer_case_id", dataType: "string", confidence: 0.98},
		{name: "debtor_name", re: regexp.MustCompile(`debtor[-_\s]?(first[-_\s]?)?name`),
			table: "contacts", field: "last_name", dataType: "string", confidence: 0.9,
			role: "debtor"},
		{name: "claim_damages", re: regexp.MustCompile(`art[-_\s]?15[-_\s]?claim[-_\s]?damages`),
			table: "financials", field: "amount", dataType: "decimal", confidence: 0.95,
			finType: "damages"},
		{name: "partner_user_first", re: regexp.MustCompile(`user[-_\s]?first[-_\s]?name`),
			table: "contacts", field: "first_name", dataType: "string", confidence: 0.95,
			role: "client"},
		{name: "partner_user_last", re: regexp.MustCompile(`user[-_\s]?last[-_\s]?name`),
			table: "contacts", field: "last_name", dataType: "string", confidence: 0.95,
			role: "client"},
		{name: "partner_id", re: regexp.MustCompile(`^id$`),
			table: "cases", field: "external_id", dataType: "string", confidence: 0.9},
	}
}
