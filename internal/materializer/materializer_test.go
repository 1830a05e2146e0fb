package materializer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow-systems/caseflow-import/internal/repository"
	"github.com/caseflow-systems/caseflow-import/internal/schema"
)

func sampleRecord() *Record {
	return &Record{
		Contacts: []Contact{
			{Role: "client", Fields: map[string]any{"first_name": "Anna", "email": "anna@example.com"}},
		},
		Case: map[string]any{"case_number": "CN-1", "status": "open"},
		Financials: []Financial{
			{Type: "damages", Fields: map[string]any{"amount": 1200.50}},
		},
	}
}

func count(t *testing.T, store repository.Store, table string) int {
	t.Helper()
	n, err := store.CountRows(context.Background(), table)
	require.NoError(t, err)
	return n
}

func TestPersistCreatesAllTables(t *testing.T) {
	store := repository.NewMemoryStore(schema.Default())
	m := New(store)

	created, err := m.Persist(context.Background(), sampleRecord(), "ext-1", "csv")
	require.NoError(t, err)

	assert.Len(t, created[schema.TableContacts], 1)
	assert.Len(t, created[schema.TableCases], 1)
	assert.Len(t, created[schema.TableCaseContacts], 1)
	assert.Len(t, created[schema.TableFinancials], 1)

	assert.Equal(t, 1, count(t, store, schema.TableContacts))
	assert.Equal(t, 1, count(t, store, schema.TableCases))
	assert.Equal(t, 1, count(t, store, schema.TableCaseContacts))
	assert.Equal(t, 1, count(t, store, schema.TableFinancials))
}

func TestPersistReplayIsIdempotent(t *testing.T) {
	store := repository.NewMemoryStore(schema.Default())
	m := New(store)

	_, err := m.Persist(context.Background(), sampleRecord(), "ext-1", "csv")
	require.NoError(t, err)

	// Same external id and source again: everything updates in place.
	rec := sampleRecord()
	rec.Case["status"] = "settled"
	created, err := m.Persist(context.Background(), rec, "ext-1", "csv")
	require.NoError(t, err)

	assert.Empty(t, created[schema.TableContacts])
	assert.Empty(t, created[schema.TableCases])
	assert.Empty(t, created[schema.TableCaseContacts],
		"replay must not duplicate the case-contact link")
	assert.Equal(t, 1, count(t, store, schema.TableCases))
	assert.Equal(t, 1, count(t, store, schema.TableContacts))
	assert.Equal(t, 1, count(t, store, schema.TableCaseContacts))
	assert.Equal(t, 1, count(t, store, schema.TableFinancials))
}

func TestPersistSameIDDifferentSourceInserts(t *testing.T) {
	store := repository.NewMemoryStore(schema.Default())
	m := New(store)

	_, err := m.Persist(context.Background(), sampleRecord(), "ext-1", "csv")
	require.NoError(t, err)
	_, err = m.Persist(context.Background(), sampleRecord(), "ext-1", "airtable")
	require.NoError(t, err)

	assert.Equal(t, 2, count(t, store, schema.TableCases),
		"duplicate handling is scoped per source")
}

func TestPersistRollsBackOnFailure(t *testing.T) {
	store := repository.NewMemoryStore(schema.Default())
	m := New(store)

	rec := sampleRecord()
	rec.Financials[0].Fields["no_such_column"] = "x"

	_, err := m.Persist(context.Background(), rec, "ext-1", "csv")
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrUnknownColumn)

	// Earlier writes of the same record are gone too.
	assert.Equal(t, 0, count(t, store, schema.TableContacts))
	assert.Equal(t, 0, count(t, store, schema.TableCases))
	assert.Equal(t, 0, count(t, store, schema.TableCaseContacts))
}

func TestPersistContactExternalIDDefaults(t *testing.T) {
	store := repository.NewMemoryStore(schema.Default())
	m := New(store)

	rec := &Record{
		Contacts: []Contact{
			{Role: "client", Fields: map[string]any{"first_name": "Anna"}},
			{Role: "debtor", ExternalID: "ext-1-debtor", Fields: map[string]any{"last_name": "Weiss AG"}},
		},
	}
	_, err := m.Persist(context.Background(), rec, "ext-1", "partner")
	require.NoError(t, err)

	// Replaying finds both contacts under their distinct external ids.
	created, err := m.Persist(context.Background(), rec, "ext-1", "partner")
	require.NoError(t, err)
	assert.Empty(t, created[schema.TableContacts])
	assert.Equal(t, 2, count(t, store, schema.TableContacts))
}

func TestPersistFinancialExternalIDSuffix(t *testing.T) {
	store := repository.NewMemoryStore(schema.Default())
	m := New(store)

	rec := &Record{
		Case: map[string]any{"case_number": "CN-1"},
		Financials: []Financial{
			{Type: "damages", Fields: map[string]any{"amount": 100.0}},
			{Type: "costs", Fields: map[string]any{"amount": 20.0}},
		},
	}
	_, err := m.Persist(context.Background(), rec, "ext-1", "csv")
	require.NoError(t, err)
	assert.Equal(t, 2, count(t, store, schema.TableFinancials))

	// Typed suffixes keep the two entries from colliding on replay.
	created, err := m.Persist(context.Background(), rec, "ext-1", "csv")
	require.NoError(t, err)
	assert.Empty(t, created[schema.TableFinancials])
	assert.Equal(t, 2, count(t, store, schema.TableFinancials))
}

func TestPersistWithoutExternalIDKeepsRecordsApart(t *testing.T) {
	store := repository.NewMemoryStore(schema.Default())
	m := New(store)

	// Sources that never map an external id (plain CSV uploads) must still
	// land every record, financials included, as its own rows.
	for i := 0; i < 2; i++ {
		rec := &Record{
			Contacts: []Contact{
				{Role: "client", Fields: map[string]any{"first_name": "Anna"}},
			},
			Case: map[string]any{"case_number": "CN-1"},
			Financials: []Financial{
				{Type: "damages", Fields: map[string]any{"amount": 100.0}},
			},
		}
		created, err := m.Persist(context.Background(), rec, "", "csv")
		require.NoError(t, err)
		assert.Len(t, created[schema.TableFinancials], 1)
	}

	assert.Equal(t, 2, count(t, store, schema.TableContacts))
	assert.Equal(t, 2, count(t, store, schema.TableCases))
	assert.Equal(t, 2, count(t, store, schema.TableFinancials),
		"the second record's financial must not overwrite the first record's row")
}

func TestPersistCaseOnlyRecordSkipsLinks(t *testing.T) {
	store := repository.NewMemoryStore(schema.Default())
	m := New(store)

	rec := &Record{Case: map[string]any{"case_number": "CN-1"}}
	created, err := m.Persist(context.Background(), rec, "ext-1", "csv")
	require.NoError(t, err)

	assert.Len(t, created[schema.TableCases], 1)
	assert.Equal(t, 0, count(t, store, schema.TableCaseContacts))
}

func TestPersistEmptyRecord(t *testing.T) {
	m := New(repository.NewMemoryStore(schema.Default()))

	_, err := m.Persist(context.Background(), &Record{}, "ext-1", "csv")
	assert.Error(t, err)
	_, err = m.Persist(context.Background(), nil, "ext-1", "csv")
	assert.Error(t, err)
}
