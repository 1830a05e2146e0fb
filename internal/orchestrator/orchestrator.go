// Package orchestrator coordinates import runs: it resolves the adapter for
// a source, loads configured mappings, runs detection/preview/processing,
// records history, and publishes completion events. Adapters never talk to
// the config store or the notifier directly.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/caseflow-systems/caseflow-import/internal/adapters"
	"github.com/caseflow-systems/caseflow-import/internal/configstore"
	"github.com/caseflow-systems/caseflow-import/internal/logging"
	"github.com/caseflow-systems/caseflow-import/internal/mapping"
	"github.com/caseflow-systems/caseflow-import/internal/metrics"
	"github.com/caseflow-systems/caseflow-import/internal/notify"
)

// ErrSyncInFlight is returned when a sync is requested for a source whose
// previous run has not finished.
var ErrSyncInFlight = errors.New("sync already running for source")

// Request describes one import invocation. Mappings may be supplied inline
// (ad-hoc uploads) or loaded from the stored set for SourceID.
type Request struct {
	SourceID   string
	SourceType mapping.SourceType
	Source     *adapters.Source
	Mappings   mapping.Set
	// MaxRows bounds preview sampling.
	MaxRows int
}

// Orchestrator ties the adapter registry to persistence and bookkeeping.
type Orchestrator struct {
	registry *adapters.Registry
	sink     adapters.Sink
	cfg      *configstore.Config
	notifier notify.Notifier
	logger   *logging.Logger

	// inflight guards one sync per source; values are struct{}.
	inflight sync.Map
}

func New(registry *adapters.Registry, sink adapters.Sink, cfg *configstore.Config, notifier notify.Notifier, logger *logging.Logger) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		sink:     sink,
		cfg:      cfg,
		notifier: notifier,
		logger:   logger,
	}
}

// Detect runs field detection without persisting anything.
func (o *Orchestrator) Detect(ctx context.Context, req *Request) (*adapters.DetectionResult, error) {
	adapter, err := o.registry.Get(req.SourceType)
	if err != nil {
		return nil, err
	}
	return adapter.DetectFields(ctx, req.Source)
}

// Preview runs a dry-run sample through the mapping set. No database write
// happens on this path.
func (o *Orchestrator) Preview(ctx context.Context, req *Request) (*adapters.PreviewResult, error) {
	adapter, mappings, err := o.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	metrics.ImportsTotal.WithLabelValues(string(req.SourceType), "preview").Inc()

	outcome, err := adapter.ProcessImport(ctx, req.Source, mappings, adapters.Options{
		PreviewOnly: true,
		MaxRows:     req.MaxRows,
	})
	if err != nil {
		return nil, err
	}
	return outcome.Preview, nil
}

// Process runs a full import: every record is projected, persisted in its
// own transaction, and counted. The run lands in the bounded history log and
// a completion event is published regardless of per-record failures.
func (o *Orchestrator) Process(ctx context.Context, req *Request) (*adapters.ImportResult, error) {
	return o.process(ctx, req, "process")
}

func (o *Orchestrator) process(ctx context.Context, req *Request, mode string) (*adapters.ImportResult, error) {
	adapter, mappings, err := o.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	importID := uuid.Must(uuid.NewV7()).String()
	start := time.Now()
	metrics.ImportsTotal.WithLabelValues(string(req.SourceType), mode).Inc()

	outcome, err := adapter.ProcessImport(ctx, req.Source, mappings, adapters.Options{
		Sink:      o.sink,
		SourceTag: o.sourceTag(req),
	})
	duration := time.Since(start)
	metrics.ImportDuration.WithLabelValues(string(req.SourceType)).Observe(duration.Seconds())

	entry := configstore.ImportHistoryEntry{
		ImportID:   importID,
		SourceID:   req.SourceID,
		SourceType: string(req.SourceType),
		Mode:       mode,
		StartedAt:  start.UTC(),
		FinishedAt: start.Add(duration).UTC(),
	}
	if err != nil {
		entry.Error = err.Error()
		o.appendHistory(ctx, entry)
		return nil, err
	}

	result := outcome.Result
	entry.Total = result.Total
	entry.Succeeded = result.Succeeded
	entry.Failed = result.Failed
	o.appendHistory(ctx, entry)

	o.logger.InfoContext(ctx, "import completed",
		logging.ImportID(importID),
		logging.Source(req.SourceID),
		logging.SourceType(string(req.SourceType)),
		logging.Records(result.Total),
		logging.Duration(duration.Milliseconds()))

	if o.notifier != nil {
		event := notify.ImportCompleted{
			ImportID:   importID,
			SourceID:   req.SourceID,
			SourceType: string(req.SourceType),
			Total:      result.Total,
			Succeeded:  result.Succeeded,
			Failed:     result.Failed,
			FinishedAt: entry.FinishedAt,
		}
		if err := o.notifier.ImportCompleted(ctx, event); err != nil {
			o.logger.WarnContext(ctx, "failed to publish import event", logging.Error(err))
		}
	}
	return result, nil
}

// SyncSource runs one pull sync for a configured source. Incremental
// Airtable syncs filter on the stored watermark; on success the watermark
// advances to the moment the sync STARTED, so records modified while the
// sync was running are picked up again next time rather than lost.
func (o *Orchestrator) SyncSource(ctx context.Context, sourceID string) (*adapters.ImportResult, error) {
	if _, loaded := o.inflight.LoadOrStore(sourceID, struct{}{}); loaded {
		metrics.SyncSkipped.Inc()
		return nil, fmt.Errorf("%w: %s", ErrSyncInFlight, sourceID)
	}
	defer o.inflight.Delete(sourceID)

	src, err := o.cfg.Source(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("unknown sync source %q: %w", sourceID, err)
	}
	if src.API == nil {
		return nil, fmt.Errorf("source %q has no API configuration", sourceID)
	}

	api := *src.API
	if api.SyncMode == "incremental" {
		watermark, err := o.cfg.Watermark(ctx, sourceID)
		if err != nil {
			return nil, err
		}
		api.LastSync = watermark
	}

	start := time.Now()
	result, err := o.process(ctx, &Request{
		SourceID:   sourceID,
		SourceType: src.Type,
		Source:     &adapters.Source{ID: sourceID, API: &api},
	}, "sync")
	if err != nil {
		metrics.SyncRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if err := o.cfg.SetWatermark(ctx, sourceID, start); err != nil {
		o.logger.ErrorContext(ctx, "failed to advance sync watermark",
			logging.Source(sourceID), logging.Error(err))
	}
	metrics.SyncRunsTotal.WithLabelValues("ok").Inc()
	return result, nil
}

// SyncAll runs every configured pull source once. Sources still in flight
// from a previous tick are skipped, not queued.
func (o *Orchestrator) SyncAll(ctx context.Context) {
	sources, err := o.cfg.ListSources(ctx)
	if err != nil {
		o.logger.ErrorContext(ctx, "failed to list sync sources", logging.Error(err))
		return
	}
	for _, src := range sources {
		if _, err := o.SyncSource(ctx, src.SourceID); err != nil {
			if errors.Is(err, ErrSyncInFlight) {
				o.logger.WarnContext(ctx, "sync still running, skipping tick",
					logging.Source(src.SourceID))
				continue
			}
			o.logger.ErrorContext(ctx, "scheduled sync failed",
				logging.Source(src.SourceID), logging.Error(err))
		}
	}
}

// resolve picks the adapter and the effective mapping set for a request.
func (o *Orchestrator) resolve(ctx context.Context, req *Request) (adapters.SourceAdapter, mapping.Set, error) {
	adapter, err := o.registry.Get(req.SourceType)
	if err != nil {
		return nil, nil, err
	}
	mappings := req.Mappings
	if len(mappings) == 0 && req.SourceID != "" {
		stored, err := o.cfg.MappingSet(ctx, req.SourceID)
		if err != nil {
			if errors.Is(err, configstore.ErrNotFound) {
				return nil, nil, fmt.Errorf("no field mappings configured for source %q", req.SourceID)
			}
			return nil, nil, err
		}
		mappings = stored
	}
	return adapter, mappings, nil
}

func (o *Orchestrator) sourceTag(req *Request) string {
	if req.SourceID != "" {
		return req.SourceID
	}
	return string(req.SourceType)
}

func (o *Orchestrator) appendHistory(ctx context.Context, entry configstore.ImportHistoryEntry) {
	if err := o.cfg.AppendImportHistory(ctx, entry); err != nil {
		o.logger.ErrorContext(ctx, "failed to record import history", logging.Error(err))
	}
}
