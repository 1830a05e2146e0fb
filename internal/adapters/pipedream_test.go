package adapters

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow-systems/caseflow-import/internal/mapping"
)

func pipedreamPayload() map[string]any {
	return map[string]any{
		"workflow_id": "wf_123",
		"timestamp":   "2024-05-01T10:00:00Z",
		"data": []any{
			map[string]any{
				"id":    "rec-1",
				"email": "anna@example.com",
				"customer": map[string]any{
					"first_name": "Anna",
				},
			},
			map[string]any{
				"id":    "rec-2",
				"email": "ben@example.com",
				"customer": map[string]any{
					"first_name": "Ben",
				},
			},
		},
	}
}

func TestPipedreamEnvelopeValidation(t *testing.T) {
	a := NewPipedreamAdapter(mapping.NewSuggester())

	t.Run("empty payload", func(t *testing.T) {
		_, err := a.DetectFields(context.Background(), &Source{Payload: nil})
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})

	t.Run("missing workflow_id and data", func(t *testing.T) {
		_, err := a.DetectFields(context.Background(), &Source{Payload: map[string]any{
			"timestamp": "2024-05-01T10:00:00Z",
			"stuff":     "x",
		}})
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})

	t.Run("missing timestamp", func(t *testing.T) {
		_, err := a.DetectFields(context.Background(), &Source{Payload: map[string]any{
			"workflow_id": "wf_123",
			"data":        []any{map[string]any{"id": "1"}},
		}})
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})

	t.Run("alternate timestamp keys", func(t *testing.T) {
		for _, key := range []string{"timestamp", "ts", "time", "created_at"} {
			payload := map[string]any{
				"workflow_id": "wf_123",
				key:           "2024-05-01T10:00:00Z",
				"data":        []any{map[string]any{"id": "1"}},
			}
			_, err := a.DetectFields(context.Background(), &Source{Payload: payload})
			assert.NoError(t, err, key)
		}
	})

	t.Run("empty record list", func(t *testing.T) {
		_, err := a.DetectFields(context.Background(), &Source{Payload: map[string]any{
			"workflow_id": "wf_123",
			"timestamp":   "2024-05-01T10:00:00Z",
			"data":        []any{},
		}})
		assert.ErrorIs(t, err, ErrNoRecords)
	})
}

func TestPipedreamDetectFlattensNestedFields(t *testing.T) {
	a := NewPipedreamAdapter(mapping.NewSuggester())
	result, err := a.DetectFields(context.Background(), &Source{Payload: pipedreamPayload()})
	require.NoError(t, err)

	names := make([]string, 0, len(result.DetectedFields))
	for _, f := range result.DetectedFields {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "customer.first_name")
	assert.Contains(t, names, "email")
	assert.NotContains(t, names, "workflow_id", "envelope keys never surface as fields")
	assert.Equal(t, 2, result.TotalRecords)

	// Dot-keys still match the suggester patterns.
	assert.Equal(t, "first_name", result.SuggestedMappings["customer.first_name"].TargetField)
}

func TestPipedreamProcessUsesRecordID(t *testing.T) {
	set := mapping.Set{
		"email":               {TargetTable: "contacts", TargetField: "email", DataType: "email"},
		"customer.first_name": {TargetTable: "contacts", TargetField: "first_name", DataType: "string"},
	}

	sink := &memorySink{}
	a := NewPipedreamAdapter(mapping.NewSuggester())
	out, err := a.ProcessImport(context.Background(), &Source{Payload: pipedreamPayload()},
		set, Options{Sink: sink, SourceTag: "pd-orders"})
	require.NoError(t, err)

	assert.Equal(t, 2, out.Result.Succeeded)
	require.Len(t, sink.persisted, 2)
	assert.Equal(t, "rec-1", sink.persisted[0].externalID,
		"falls back to the record id key when no external id is mapped")
	assert.Equal(t, "pd-orders", sink.persisted[0].source)
}

func TestPipedreamBareObjectPayload(t *testing.T) {
	payload := map[string]any{
		"workflow_id": "wf_123",
		"ts":          1714557600,
		"data": map[string]any{
			"id":    "rec-9",
			"email": "solo@example.com",
		},
	}

	a := NewPipedreamAdapter(mapping.NewSuggester())
	result, err := a.DetectFields(context.Background(), &Source{Payload: payload})
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalRecords)
}
