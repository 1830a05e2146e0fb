// Package repository is the persistence port of the import engine: execute
// writes, read for dedup, and run multi-table writes atomically.
package repository

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no row matches a lookup.
	ErrNotFound = errors.New("record not found")
	// ErrUnknownTable is returned for tables outside the target schema.
	ErrUnknownTable = errors.New("unknown table")
	// ErrUnknownColumn is returned for columns outside the target schema.
	ErrUnknownColumn = errors.New("unknown column")
)

// Tx is the write scope handed to the materializer for one logical record.
// All operations inside a Tx commit or roll back together.
type Tx interface {
	// Insert writes a row and returns its generated ID.
	Insert(ctx context.Context, table string, values map[string]any) (string, error)
	// Update overwrites the given columns of an existing row.
	Update(ctx context.Context, table, id string, values map[string]any) error
	// FindByExternalID returns the ID of the row whose external_id and
	// source columns match, or ErrNotFound.
	//
	// Dedup is keyed on (external_id, source) exactly as the WHERE clause of
	// the original system; two sources emitting the same external id only
	// collide when they also share the source tag. There is deliberately no
	// composite unique index enforcing more than that.
	FindByExternalID(ctx context.Context, table, externalID, source string) (string, error)
}

// ExportFilter bounds the case export query.
type ExportFilter struct {
	From              string // inclusive opened_at lower bound (YYYY-MM-DD), empty = unbounded
	To                string // inclusive opened_at upper bound
	IncludeFinancials bool
}

// CaseExportRow is one row of the cases-joined-with-contacts export.
type CaseExportRow struct {
	CaseNumber    string
	LawyerCaseID  string
	Title         string
	Status        string
	OpenedAt      string
	ContactName   string
	ContactEmail  string
	ContactPhone  string
	ContactRole   string
	FinancialType string
	Amount        string
	Currency      string
}

// Store is the persistence interface consumed by the materializer and the
// exporter.
type Store interface {
	// WithinTx runs fn inside one transaction. Any error from fn rolls the
	// transaction back and is returned unchanged.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	// CountRows returns the number of rows in a table.
	CountRows(ctx context.Context, table string) (int, error)
	// ListCaseExports returns cases joined with their contacts and,
	// optionally, financial records.
	ListCaseExports(ctx context.Context, filter ExportFilter) ([]CaseExportRow, error)
	Close()
}
