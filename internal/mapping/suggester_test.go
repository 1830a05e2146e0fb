package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuggestCommonFields(t *testing.T) {
	s := NewSuggester()

	cases := []struct {
		field string
		table string
		tgt   string
	}{
		{"Email", "contacts", "email"},
		{"E-Mail", "contacts", "email"},
		{"First Name", "contacts", "first_name"},
		{"Vorname", "contacts", "first_name"},
		{"surname", "contacts", "last_name"},
		{"Telefon", "contacts", "phone"},
		{"ZIP", "contacts", "postal_code"},
		{"Case Number", "cases", "case_number"},
		{"Status", "cases", "status"},
		{"Betrag", "financials", "amount"},
	}
	for _, tc := range cases {
		m := s.Suggest(tc.field, SourceCSV)
		require.NotNil(t, m, tc.field)
		assert.Equal(t, tc.table, m.TargetTable, tc.field)
		assert.Equal(t, tc.tgt, m.TargetField, tc.field)
		assert.Equal(t, tc.field, m.SourceField)
	}
}

func TestSuggestNoMatch(t *testing.T) {
	s := NewSuggester()
	assert.Nil(t, s.Suggest("xyzzy_42", SourceCSV))
	assert.Nil(t, s.Suggest("", SourceCSV))
}

func TestSuggestFirstMatchWins(t *testing.T) {
	s := NewSuggester()

	// "email_address" matches both the email and the address patterns; the
	// email pattern is listed first and must win.
	m := s.Suggest("email_address", SourceCSV)
	require.NotNil(t, m)
	assert.Equal(t, "email", m.TargetField)
}

func TestSuggestPartnerPatternsTakePriority(t *testing.T) {
	s := NewSuggester()

	// For plain CSV, "ID" matches nothing.
	assert.Nil(t, s.Suggest("ID", SourceCSV))

	// For the partner format, "ID" is the case external id.
	m := s.Suggest("ID", SourcePartner)
	require.NotNil(t, m)
	assert.Equal(t, "cases", m.TargetTable)
	assert.Equal(t, "external_id", m.TargetField)

	// User_First_Name carries the client role.
	m = s.Suggest("User_First_Name", SourcePartner)
	require.NotNil(t, m)
	assert.Equal(t, "first_name", m.TargetField)
	assert.Equal(t, "client", m.ContactRole)

	// Partner-only patterns stay inert for other source types;
	// "first name" inside the field still matches the base pattern.
	m = s.Suggest("User_First_Name", SourceCSV)
	require.NotNil(t, m)
	assert.Empty(t, m.ContactRole)
}

func TestSuggestPartnerDamages(t *testing.T) {
	s := NewSuggester()
	m := s.Suggest("art15_claim_damages", SourcePartner)
	require.NotNil(t, m)
	assert.Equal(t, "financials", m.TargetTable)
	assert.Equal(t, "damages", m.FinancialType)
}

func TestConfidence(t *testing.T) {
	s := NewSuggester()
	assert.InDelta(t, 0.95, s.Confidence("email", SourceCSV), 0.001)
	assert.Zero(t, s.Confidence("xyzzy", SourceCSV))
	assert.Greater(t, s.Confidence("Lawyer Case ID", SourcePartner), 0.9)
}
