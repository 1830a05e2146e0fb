package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow-systems/caseflow-import/internal/repository"
	"github.com/caseflow-systems/caseflow-import/internal/schema"
)

func exportStore(t *testing.T) *repository.MemoryStore {
	t.Helper()
	store := repository.NewMemoryStore(schema.Default())
	ctx := context.Background()

	err := store.WithinTx(ctx, func(tx repository.Tx) error {
		contactID, err := tx.Insert(ctx, schema.TableContacts, map[string]any{
			"first_name": "Anna", "last_name": "Schmidt", "email": "anna@example.com",
		})
		if err != nil {
			return err
		}
		caseID, err := tx.Insert(ctx, schema.TableCases, map[string]any{
			"case_number": "CN-1", "title": "Claim", "status": "open", "opened_at": "2024-03-01",
		})
		if err != nil {
			return err
		}
		if _, err := tx.Insert(ctx, schema.TableCaseContacts, map[string]any{
			"case_id": caseID, "contact_id": contactID, "role": "client",
		}); err != nil {
			return err
		}
		_, err = tx.Insert(ctx, schema.TableFinancials, map[string]any{
			"case_id": caseID, "financial_type": "damages", "amount": "1200.50", "currency": "EUR",
		})
		return err
	})
	require.NoError(t, err)
	return store
}

func TestWriteCases(t *testing.T) {
	e := New(exportStore(t))

	var buf bytes.Buffer
	require.NoError(t, e.WriteCases(context.Background(), &buf, Options{}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Case Number", records[0][0])
	assert.Equal(t, "CN-1", records[1][0])
	assert.Equal(t, "Anna Schmidt", records[1][5])
	assert.Len(t, records[0], 9, "financial columns only appear when requested")
}

func TestWriteCasesBOM(t *testing.T) {
	e := New(exportStore(t))

	var buf bytes.Buffer
	require.NoError(t, e.WriteCases(context.Background(), &buf, Options{BOM: true}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte{0xEF, 0xBB, 0xBF}))

	buf.Reset()
	require.NoError(t, e.WriteCases(context.Background(), &buf, Options{}))
	assert.False(t, bytes.HasPrefix(buf.Bytes(), []byte{0xEF, 0xBB, 0xBF}))
}

func TestWriteCasesSemicolon(t *testing.T) {
	e := New(exportStore(t))

	var buf bytes.Buffer
	require.NoError(t, e.WriteCases(context.Background(), &buf, Options{Delimiter: ';'}))

	first, _, _ := strings.Cut(buf.String(), "\n")
	assert.Contains(t, first, "Case Number;Lawyer Case ID")
}

func TestWriteCasesWithFinancials(t *testing.T) {
	e := New(exportStore(t))

	var buf bytes.Buffer
	opts := Options{Filter: repository.ExportFilter{IncludeFinancials: true}}
	require.NoError(t, e.WriteCases(context.Background(), &buf, opts))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records[0], 12)
	assert.Equal(t, "Amount", records[0][10])
	assert.Equal(t, "1200.50", records[1][10])
	assert.Equal(t, "EUR", records[1][11])
}

func TestWriteTemplate(t *testing.T) {
	for _, name := range TemplateNames() {
		var buf bytes.Buffer
		require.NoError(t, WriteTemplate(&buf, name, Options{}))

		records, err := csv.NewReader(&buf).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 2, name)
		assert.Len(t, records[1], len(records[0]),
			"%s example row matches the header width", name)
	}

	var buf bytes.Buffer
	err := WriteTemplate(&buf, "invoices", Options{})
	require.Error(t, err)
	assert.Zero(t, buf.Len(), "nothing is written before the name check")
}

func TestWriteTemplateExampleRowsImportCleanly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTemplate(&buf, TemplatePartner, Options{}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Regexp(t, `^[A-Z]{2,4}-\d{4}-\d{3,4}$`, records[1][1],
		"partner example passes the lawyer case id validation")
	assert.Equal(t, "open", records[1][2])
}
