package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow-systems/caseflow-import/internal/schema"
)

func TestValidateAcceptsKnownTargets(t *testing.T) {
	set := Set{
		"Email": {TargetTable: "contacts", TargetField: "email", DataType: "email"},
		"Case":  {TargetTable: "cases", TargetField: "case_number", DataType: "string"},
	}
	issues, err := set.Validate(schema.Default())
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestValidateRejectsUnknownTable(t *testing.T) {
	set := Set{
		"Email": {TargetTable: "customers", TargetField: "email", DataType: "email"},
	}
	issues, err := set.Validate(schema.Default())
	require.Error(t, err)
	require.Len(t, issues, 1)
	assert.False(t, issues[0].Warning)
	assert.Contains(t, issues[0].Message, "unknown target table")
}

func TestValidateRejectsUnknownField(t *testing.T) {
	set := Set{
		"Fax": {TargetTable: "contacts", TargetField: "fax_number", DataType: "string"},
	}
	_, err := set.Validate(schema.Default())
	require.Error(t, err)
}

func TestValidateRejectsIncompleteMapping(t *testing.T) {
	set := Set{
		"X": {TargetTable: "contacts"},
	}
	_, err := set.Validate(schema.Default())
	require.Error(t, err)
}

func TestValidateTypeMismatchIsWarningOnly(t *testing.T) {
	set := Set{
		"Amount": {TargetTable: "financials", TargetField: "amount", DataType: "email"},
	}
	issues, err := set.Validate(schema.Default())
	require.NoError(t, err, "type mismatches never reject the set")
	require.Len(t, issues, 1)
	assert.True(t, issues[0].Warning)
}

func TestIsCompatible(t *testing.T) {
	assert.True(t, IsCompatible("integer", schema.TypeDecimal))
	assert.True(t, IsCompatible("date", schema.TypeDatetime))
	assert.True(t, IsCompatible("email", schema.TypeString), "strings hold anything")
	assert.False(t, IsCompatible("string", schema.TypeDecimal))
	assert.False(t, IsCompatible("boolean", schema.TypeDatetime))
}
