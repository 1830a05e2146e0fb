// Package export renders case data and blank import templates as CSV for
// operator download.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/caseflow-systems/caseflow-import/internal/repository"
)

// Options controls CSV rendering.
type Options struct {
	// Delimiter is comma by default; semicolon suits locales whose
	// spreadsheet tools expect it.
	Delimiter rune
	// BOM prepends a UTF-8 byte order mark so Excel detects the encoding.
	BOM    bool
	Filter repository.ExportFilter
}

func (o Options) delimiter() rune {
	if o.Delimiter == 0 {
		return ','
	}
	return o.Delimiter
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Exporter streams case exports from the store.
type Exporter struct {
	store repository.Store
}

func New(store repository.Store) *Exporter {
	return &Exporter{store: store}
}

// WriteCases writes the joined case/contact export to w.
func (e *Exporter) WriteCases(ctx context.Context, w io.Writer, opts Options) error {
	rows, err := e.store.ListCaseExports(ctx, opts.Filter)
	if err != nil {
		return fmt.Errorf("failed to load case export: %w", err)
	}

	if opts.BOM {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	cw := csv.NewWriter(w)
	cw.Comma = opts.delimiter()

	header := []string{
		"Case Number", "Lawyer Case ID", "Title", "Status", "Opened At",
		"Contact Name", "Contact Email", "Contact Phone", "Contact Role",
	}
	if opts.Filter.IncludeFinancials {
		header = append(header, "Financial Type", "Amount", "Currency")
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write export header: %w", err)
	}

	for _, row := range rows {
		record := []string{
			row.CaseNumber, row.LawyerCaseID, row.Title, row.Status, row.OpenedAt,
			row.ContactName, row.ContactEmail, row.ContactPhone, row.ContactRole,
		}
		if opts.Filter.IncludeFinancials {
			record = append(record, row.FinancialType, row.Amount, row.Currency)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write export row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Template names accepted by WriteTemplate.
const (
	TemplateCases    = "cases"
	TemplateContacts = "contacts"
	TemplatePartner  = "partner"
)

type template struct {
	header  []string
	example []string
}

var templates = map[string]template{
	TemplateCases: {
		header: []string{
			"Case ID", "Case Number", "Title", "Status", "Opened At",
			"First Name", "Last Name", "Email", "Phone", "Amount",
		},
		example: []string{
			"CASE-000001", "CN-2024-001", "Unpaid invoice", "open", "2024-03-01",
			"Anna", "Schmidt", "anna.schmidt@example.com", "+49 30 1234567", "1200.50",
		},
	},
	TemplateContacts: {
		header: []string{
			"First Name", "Last Name", "Company", "Email", "Phone",
			"Address", "City", "Postal Code", "Country", "Notes",
		},
		example: []string{
			"Anna", "Schmidt", "Müller GmbH", "anna.schmidt@example.com", "+49 30 1234567",
			"Hauptstr. 5", "Berlin", "10115", "DE", "Imported via template",
		},
	},
	TemplatePartner: {
		header: []string{
			"ID", "Lawyer Case ID", "Status", "User_First_Name", "User_Last_Name",
			"User_Email", "User_Phone", "debtor_name", "claim_damages", "created",
		},
		example: []string{
			"1001", "AB-2024-001", "open", "Anna", "Schmidt",
			"anna.schmidt@example.com", "+49 30 1234567", "Müller GmbH", "1200.50", "2024-03-01",
		},
	},
}

// WriteTemplate writes an import template (header row plus one example row)
// to w.
func WriteTemplate(w io.Writer, name string, opts Options) error {
	tpl, ok := templates[name]
	if !ok {
		return fmt.Errorf("unknown template %q", name)
	}
	if opts.BOM {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}
	cw := csv.NewWriter(w)
	cw.Comma = opts.delimiter()
	if err := cw.Write(tpl.header); err != nil {
		return fmt.Errorf("failed to write template header: %w", err)
	}
	if err := cw.Write(tpl.example); err != nil {
		return fmt.Errorf("failed to write template example row: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

// TemplateNames lists available templates for the API.
func TemplateNames() []string {
	return []string{TemplateCases, TemplateContacts, TemplatePartner}
}
