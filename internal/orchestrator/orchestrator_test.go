package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow-systems/caseflow-import/internal/adapters"
	"github.com/caseflow-systems/caseflow-import/internal/configstore"
	"github.com/caseflow-systems/caseflow-import/internal/logging"
	"github.com/caseflow-systems/caseflow-import/internal/mapping"
	"github.com/caseflow-systems/caseflow-import/internal/materializer"
	"github.com/caseflow-systems/caseflow-import/internal/notify"
	"github.com/caseflow-systems/caseflow-import/internal/schema"
)

// stubAdapter lets tests script the adapter behavior and capture the inputs
// the orchestrator hands down.
type stubAdapter struct {
	sourceType mapping.SourceType
	outcome    *adapters.Outcome
	err        error

	gotSource   *adapters.Source
	gotMappings mapping.Set
	gotOptions  adapters.Options
	block       chan struct{}
	started     chan struct{}
}

func (s *stubAdapter) Type() mapping.SourceType { return s.sourceType }

func (s *stubAdapter) DetectFields(ctx context.Context, src *adapters.Source) (*adapters.DetectionResult, error) {
	s.gotSource = src
	return &adapters.DetectionResult{TotalRecords: 1}, s.err
}

func (s *stubAdapter) ProcessImport(ctx context.Context, src *adapters.Source, mappings mapping.Set, opts adapters.Options) (*adapters.Outcome, error) {
	s.gotSource = src
	s.gotMappings = mappings
	s.gotOptions = opts
	if s.started != nil {
		close(s.started)
	}
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.outcome != nil {
		return s.outcome, nil
	}
	if opts.PreviewOnly {
		return &adapters.Outcome{Preview: &adapters.PreviewResult{TotalRecords: 1}}, nil
	}
	return &adapters.Outcome{Result: &adapters.ImportResult{Total: 2, Processed: 2, Succeeded: 2}}, nil
}

type captureNotifier struct {
	events []notify.ImportCompleted
}

func (n *captureNotifier) ImportCompleted(ctx context.Context, e notify.ImportCompleted) error {
	n.events = append(n.events, e)
	return nil
}

type nopSink struct{}

func (nopSink) Persist(ctx context.Context, rec *materializer.Record, externalID, source string) (materializer.CreatedIDs, error) {
	return materializer.CreatedIDs{}, nil
}

func newTestOrchestrator(t *testing.T, adapter *stubAdapter) (*Orchestrator, *configstore.Config, *captureNotifier) {
	t.Helper()
	cfg := configstore.New(configstore.NewMemoryKV(), schema.Default())
	notifier := &captureNotifier{}
	o := New(adapters.NewRegistry(adapter), nopSink{}, cfg, notifier, logging.Default())
	return o, cfg, notifier
}

func inlineMappings() mapping.Set {
	return mapping.Set{
		"Email": {TargetTable: "contacts", TargetField: "email", DataType: "email"},
	}
}

func TestProcessRecordsHistoryAndNotifies(t *testing.T) {
	adapter := &stubAdapter{sourceType: mapping.SourceCSV}
	o, cfg, notifier := newTestOrchestrator(t, adapter)

	result, err := o.Process(context.Background(), &Request{
		SourceID:   "upload-1",
		SourceType: mapping.SourceCSV,
		Source:     &adapters.Source{CSV: []byte("x")},
		Mappings:   inlineMappings(),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, "upload-1", adapter.gotOptions.SourceTag)

	history, err := cfg.ImportHistory(context.Background())
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "process", history[0].Mode)
	assert.Equal(t, 2, history[0].Succeeded)
	assert.NotEmpty(t, history[0].ImportID)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, history[0].ImportID, notifier.events[0].ImportID)
}

func TestProcessFailureStillLandsInHistory(t *testing.T) {
	adapter := &stubAdapter{sourceType: mapping.SourceCSV, err: errors.New("upstream broke")}
	o, cfg, notifier := newTestOrchestrator(t, adapter)

	_, err := o.Process(context.Background(), &Request{
		SourceType: mapping.SourceCSV,
		Source:     &adapters.Source{CSV: []byte("x")},
		Mappings:   inlineMappings(),
	})
	require.Error(t, err)

	history, err := cfg.ImportHistory(context.Background())
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "upstream broke", history[0].Error)
	assert.Empty(t, notifier.events, "failed runs publish no completion event")
}

func TestProcessFallsBackToStoredMappings(t *testing.T) {
	adapter := &stubAdapter{sourceType: mapping.SourceCSV}
	o, cfg, _ := newTestOrchestrator(t, adapter)

	_, err := cfg.SaveMappingSet(context.Background(), "crm-feed", inlineMappings())
	require.NoError(t, err)

	_, err = o.Process(context.Background(), &Request{
		SourceID:   "crm-feed",
		SourceType: mapping.SourceCSV,
		Source:     &adapters.Source{CSV: []byte("x")},
	})
	require.NoError(t, err)
	assert.Equal(t, "email", adapter.gotMappings["Email"].TargetField)
}

func TestProcessUnconfiguredSource(t *testing.T) {
	adapter := &stubAdapter{sourceType: mapping.SourceCSV}
	o, _, _ := newTestOrchestrator(t, adapter)

	_, err := o.Process(context.Background(), &Request{
		SourceID:   "nobody-configured-this",
		SourceType: mapping.SourceCSV,
		Source:     &adapters.Source{CSV: []byte("x")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no field mappings configured")
}

func TestProcessSourceTagFallsBackToType(t *testing.T) {
	adapter := &stubAdapter{sourceType: mapping.SourceCSV}
	o, _, _ := newTestOrchestrator(t, adapter)

	_, err := o.Process(context.Background(), &Request{
		SourceType: mapping.SourceCSV,
		Source:     &adapters.Source{CSV: []byte("x")},
		Mappings:   inlineMappings(),
	})
	require.NoError(t, err)
	assert.Equal(t, string(mapping.SourceCSV), adapter.gotOptions.SourceTag)
}

func TestPreviewNeverPersists(t *testing.T) {
	adapter := &stubAdapter{sourceType: mapping.SourceCSV}
	o, cfg, _ := newTestOrchestrator(t, adapter)

	preview, err := o.Preview(context.Background(), &Request{
		SourceType: mapping.SourceCSV,
		Source:     &adapters.Source{CSV: []byte("x")},
		Mappings:   inlineMappings(),
		MaxRows:    10,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, preview.TotalRecords)
	assert.True(t, adapter.gotOptions.PreviewOnly)
	assert.Equal(t, 10, adapter.gotOptions.MaxRows)
	assert.Nil(t, adapter.gotOptions.Sink)

	history, err := cfg.ImportHistory(context.Background())
	require.NoError(t, err)
	assert.Empty(t, history, "previews do not land in the import log")
}

func seedSyncSource(t *testing.T, cfg *configstore.Config, syncMode string) {
	t.Helper()
	require.NoError(t, cfg.SaveSource(context.Background(), &configstore.SourceConfig{
		SourceID: "at-main",
		Type:     mapping.SourceAirtable,
		API:      &adapters.APIConfig{BaseID: "appXYZ", Table: "Cases", APIKey: "k", SyncMode: syncMode},
	}))
	_, err := cfg.SaveMappingSet(context.Background(), "at-main", inlineMappings())
	require.NoError(t, err)
}

func TestSyncSourceAdvancesWatermarkToStartTime(t *testing.T) {
	adapter := &stubAdapter{sourceType: mapping.SourceAirtable}
	o, cfg, _ := newTestOrchestrator(t, adapter)
	seedSyncSource(t, cfg, "incremental")

	before := time.Now()
	_, err := o.SyncSource(context.Background(), "at-main")
	require.NoError(t, err)
	after := time.Now()

	wm, err := cfg.Watermark(context.Background(), "at-main")
	require.NoError(t, err)
	assert.False(t, wm.Before(before))
	assert.False(t, wm.After(after))

	assert.True(t, adapter.gotSource.API.LastSync.IsZero(),
		"first incremental sync runs without a watermark filter")

	// The next sync sees the stored watermark.
	_, err = o.SyncSource(context.Background(), "at-main")
	require.NoError(t, err)
	assert.False(t, adapter.gotSource.API.LastSync.IsZero())
}

func TestSyncSourceFailureKeepsWatermark(t *testing.T) {
	adapter := &stubAdapter{sourceType: mapping.SourceAirtable, err: errors.New("airtable down")}
	o, cfg, _ := newTestOrchestrator(t, adapter)
	seedSyncSource(t, cfg, "incremental")

	_, err := o.SyncSource(context.Background(), "at-main")
	require.Error(t, err)

	wm, err := cfg.Watermark(context.Background(), "at-main")
	require.NoError(t, err)
	assert.True(t, wm.IsZero(), "failed syncs never advance the watermark")
}

func TestSyncSourceSingleFlight(t *testing.T) {
	adapter := &stubAdapter{
		sourceType: mapping.SourceAirtable,
		block:      make(chan struct{}),
		started:    make(chan struct{}),
	}
	o, cfg, _ := newTestOrchestrator(t, adapter)
	seedSyncSource(t, cfg, "full")

	done := make(chan error, 1)
	go func() {
		_, err := o.SyncSource(context.Background(), "at-main")
		done <- err
	}()
	<-adapter.started

	_, err := o.SyncSource(context.Background(), "at-main")
	assert.ErrorIs(t, err, ErrSyncInFlight, "concurrent syncs are rejected, not queued")

	close(adapter.block)
	require.NoError(t, <-done)
}

func TestSyncSourceUnknown(t *testing.T) {
	adapter := &stubAdapter{sourceType: mapping.SourceAirtable}
	o, _, _ := newTestOrchestrator(t, adapter)

	_, err := o.SyncSource(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown sync source")
}
