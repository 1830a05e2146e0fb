package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/caseflow-systems/caseflow-import/internal/schema"
)

type memoryRow struct {
	id     string
	values map[string]any
}

// MemoryStore is an in-memory Store used in tests and single-node setups.
// Transactions operate on a copy of the table data that is swapped in on
// commit, which gives real rollback semantics.
type MemoryStore struct {
	reg    *schema.Registry
	tables map[string][]memoryRow
	mu     sync.RWMutex
}

func NewMemoryStore(reg *schema.Registry) *MemoryStore {
	return &MemoryStore{
		reg:    reg,
		tables: make(map[string][]memoryRow),
	}
}

func (s *MemoryStore) Close() {}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{reg: s.reg, tables: cloneTables(s.tables)}
	if err := fn(tx); err != nil {
		return err
	}
	s.tables = tx.tables
	return nil
}

func (s *MemoryStore) CountRows(ctx context.Context, table string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.reg.TableSchema(table); !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return len(s.tables[table]), nil
}

func (s *MemoryStore) ListCaseExports(ctx context.Context, filter ExportFilter) ([]CaseExportRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	contactsByID := make(map[string]map[string]any)
	for _, row := range s.tables[schema.TableContacts] {
		contactsByID[row.id] = row.values
	}
	linksByCase := make(map[string][]map[string]any)
	for _, row := range s.tables[schema.TableCaseContacts] {
		caseID, _ := row.values["case_id"].(string)
		linksByCase[caseID] = append(linksByCase[caseID], row.values)
	}
	financialsByCase := make(map[string][]map[string]any)
	for _, row := range s.tables[schema.TableFinancials] {
		caseID, _ := row.values["case_id"].(string)
		financialsByCase[caseID] = append(financialsByCase[caseID], row.values)
	}

	var out []CaseExportRow
	for _, caseRow := range s.tables[schema.TableCases] {
		opened := str(caseRow.values["opened_at"])
		if filter.From != "" && opened != "" && opened < filter.From {
			continue
		}
		if filter.To != "" && opened != "" && opened > filter.To {
			continue
		}

		base := CaseExportRow{
			CaseNumber:   str(caseRow.values["case_number"]),
			LawyerCaseID: str(caseRow.values["lawyer_case_id"]),
			Title:        str(caseRow.values["title"]),
			Status:       str(caseRow.values["status"]),
			OpenedAt:     opened,
		}

		links := linksByCase[caseRow.id]
		if len(links) == 0 {
			links = []map[string]any{nil}
		}
		for _, link := range links {
			row := base
			if link != nil {
				if contact, ok := contactsByID[str(link["contact_id"])]; ok {
					name := strings.TrimSpace(str(contact["first_name"]) + " " + str(contact["last_name"]))
					row.ContactName = name
					row.ContactEmail = str(contact["email"])
					row.ContactPhone = str(contact["phone"])
				}
				row.ContactRole = str(link["role"])
			}
			if filter.IncludeFinancials {
				fins := financialsByCase[caseRow.id]
				if len(fins) == 0 {
					out = append(out, row)
					continue
				}
				for _, fin := range fins {
					finRow := row
					finRow.FinancialType = str(fin["financial_type"])
					finRow.Amount = str(fin["amount"])
					finRow.Currency = str(fin["currency"])
					out = append(out, finRow)
				}
				continue
			}
			out = append(out, row)
		}
	}
	return out, nil
}

type memoryTx struct {
	reg    *schema.Registry
	tables map[string][]memoryRow
}

func (t *memoryTx) Insert(ctx context.Context, table string, values map[string]any) (string, error) {
	if err := t.checkColumns(table, values); err != nil {
		return "", err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate id: %w", err)
	}
	t.tables[table] = append(t.tables[table], memoryRow{
		id:     id.String(),
		values: cloneValues(values),
	})
	return id.String(), nil
}

func (t *memoryTx) Update(ctx context.Context, table, id string, values map[string]any) error {
	if err := t.checkColumns(table, values); err != nil {
		return err
	}
	for i, row := range t.tables[table] {
		if row.id == id {
			merged := cloneValues(row.values)
			for k, v := range values {
				merged[k] = v
			}
			t.tables[table][i].values = merged
			return nil
		}
	}
	return ErrNotFound
}

func (t *memoryTx) FindByExternalID(ctx context.Context, table, externalID, source string) (string, error) {
	if _, ok := t.reg.TableSchema(table); !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	for _, row := range t.tables[table] {
		if str(row.values["external_id"]) == externalID && str(row.values["source"]) == source {
			return row.id, nil
		}
	}
	return "", ErrNotFound
}

func (t *memoryTx) checkColumns(table string, values map[string]any) error {
	if _, ok := t.reg.TableSchema(table); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	for col := range values {
		if !t.reg.HasField(table, col) {
			return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, table, col)
		}
	}
	return nil
}

func cloneTables(src map[string][]memoryRow) map[string][]memoryRow {
	dst := make(map[string][]memoryRow, len(src))
	for table, rows := range src {
		cloned := make([]memoryRow, len(rows))
		for i, row := range rows {
			cloned[i] = memoryRow{id: row.id, values: cloneValues(row.values)}
		}
		dst[table] = cloned
	}
	return dst
}

func cloneValues(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func str(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
