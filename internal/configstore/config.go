package configstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/caseflow-systems/caseflow-import/internal/adapters"
	"github.com/caseflow-systems/caseflow-import/internal/mapping"
	"github.com/caseflow-systems/caseflow-import/internal/schema"
)

// Key namespaces. Everything the engine persists outside the target schema
// lives under one of these prefixes.
const (
	prefixMappings    = "mappings/"
	prefixWebhooks    = "webhooks/"
	prefixAirtable    = "airtable/"
	prefixWatermark   = "watermark/"
	keyImportHistory  = "history/imports"
	keyWebhookHistory = "history/webhooks"
)

// History bounds; oldest entries are evicted first.
const (
	maxImportHistory  = 100
	maxWebhookHistory = 200
)

// WebhookConfig is one webhook registration. Created by operator setup and
// consulted read-only by the gateway; ingestion never mutates it.
type WebhookConfig struct {
	SourceID  string    `json:"source_id"`
	Secret    string    `json:"secret"`
	URL       string    `json:"url"`
	Status    string    `json:"status"` // active | disabled
	CreatedAt time.Time `json:"created_at"`
}

// Active reports whether the registration accepts deliveries.
func (w *WebhookConfig) Active() bool {
	return w.Status == "" || w.Status == "active"
}

// SourceConfig describes one configured import source.
type SourceConfig struct {
	SourceID string              `json:"source_id"`
	Type     mapping.SourceType  `json:"type"`
	API      *adapters.APIConfig `json:"api,omitempty"`
}

// ImportHistoryEntry is one line of the bounded import log.
type ImportHistoryEntry struct {
	ImportID   string    `json:"import_id"`
	SourceID   string    `json:"source_id"`
	SourceType string    `json:"source_type"`
	Mode       string    `json:"mode"` // preview | process | sync
	Total      int       `json:"total"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Error      string    `json:"error,omitempty"`
}

// WebhookHistoryEntry is one line of the bounded webhook log.
type WebhookHistoryEntry struct {
	SourceID   string    `json:"source_id"`
	Status     int       `json:"status"`
	Records    int       `json:"records"`
	Duplicate  bool      `json:"duplicate,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
	Error      string    `json:"error,omitempty"`
}

// Config is the typed layer over the raw KV. One instance is shared by the
// orchestrator and the webhook gateway.
type Config struct {
	kv  KV
	reg *schema.Registry
}

func New(kv KV, reg *schema.Registry) *Config {
	return &Config{kv: kv, reg: reg}
}

// MappingSet loads the field mappings configured for a source.
func (c *Config) MappingSet(ctx context.Context, sourceID string) (mapping.Set, error) {
	raw, err := c.kv.Get(ctx, prefixMappings+sourceID)
	if err != nil {
		return nil, err
	}
	var set mapping.Set
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("corrupt mapping set for %q: %w", sourceID, err)
	}
	return set, nil
}

// SaveMappingSet validates the set against the registry and persists it.
// Invalid sets are rejected here, at configuration-load time, so processing
// never sees an unknown table or field. Warnings are returned to the caller.
func (c *Config) SaveMappingSet(ctx context.Context, sourceID string, set mapping.Set) ([]mapping.ValidationIssue, error) {
	issues, err := set.Validate(c.reg)
	if err != nil {
		return issues, err
	}
	raw, err := json.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal mapping set: %w", err)
	}
	if err := c.kv.Set(ctx, prefixMappings+sourceID, raw); err != nil {
		return nil, err
	}
	return issues, nil
}

// DeleteMappingSet removes the stored mappings for a source.
func (c *Config) DeleteMappingSet(ctx context.Context, sourceID string) error {
	return c.kv.Delete(ctx, prefixMappings+sourceID)
}

// ListMappingSets returns every stored set keyed by source id.
func (c *Config) ListMappingSets(ctx context.Context) (map[string]mapping.Set, error) {
	entries, err := c.kv.List(ctx, prefixMappings)
	if err != nil {
		return nil, err
	}
	out := make(map[string]mapping.Set, len(entries))
	for key, raw := range entries {
		var set mapping.Set
		if err := json.Unmarshal(raw, &set); err != nil {
			return nil, fmt.Errorf("corrupt mapping set at %q: %w", key, err)
		}
		out[strings.TrimPrefix(key, prefixMappings)] = set
	}
	return out, nil
}

// Webhook loads one webhook registration.
func (c *Config) Webhook(ctx context.Context, sourceID string) (*WebhookConfig, error) {
	raw, err := c.kv.Get(ctx, prefixWebhooks+sourceID)
	if err != nil {
		return nil, err
	}
	var cfg WebhookConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("corrupt webhook config for %q: %w", sourceID, err)
	}
	return &cfg, nil
}

// SaveWebhook persists a webhook registration.
func (c *Config) SaveWebhook(ctx context.Context, cfg *WebhookConfig) error {
	if cfg.SourceID == "" {
		return fmt.Errorf("webhook config needs a source id")
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook config: %w", err)
	}
	return c.kv.Set(ctx, prefixWebhooks+cfg.SourceID, raw)
}

// DeleteWebhook removes a webhook registration.
func (c *Config) DeleteWebhook(ctx context.Context, sourceID string) error {
	return c.kv.Delete(ctx, prefixWebhooks+sourceID)
}

// ListWebhooks returns every registration.
func (c *Config) ListWebhooks(ctx context.Context) ([]*WebhookConfig, error) {
	entries, err := c.kv.List(ctx, prefixWebhooks)
	if err != nil {
		return nil, err
	}
	out := make([]*WebhookConfig, 0, len(entries))
	for key, raw := range entries {
		var cfg WebhookConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("corrupt webhook config at %q: %w", key, err)
		}
		out = append(out, &cfg)
	}
	return out, nil
}

// Source loads one source configuration.
func (c *Config) Source(ctx context.Context, sourceID string) (*SourceConfig, error) {
	raw, err := c.kv.Get(ctx, prefixAirtable+sourceID)
	if err != nil {
		return nil, err
	}
	var cfg SourceConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("corrupt source config for %q: %w", sourceID, err)
	}
	return &cfg, nil
}

// SaveSource persists a source configuration.
func (c *Config) SaveSource(ctx context.Context, cfg *SourceConfig) error {
	if cfg.SourceID == "" {
		return fmt.Errorf("source config needs a source id")
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal source config: %w", err)
	}
	return c.kv.Set(ctx, prefixAirtable+cfg.SourceID, raw)
}

// ListSources returns every configured pull source.
func (c *Config) ListSources(ctx context.Context) ([]*SourceConfig, error) {
	entries, err := c.kv.List(ctx, prefixAirtable)
	if err != nil {
		return nil, err
	}
	out := make([]*SourceConfig, 0, len(entries))
	for key, raw := range entries {
		var cfg SourceConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("corrupt source config at %q: %w", key, err)
		}
		out = append(out, &cfg)
	}
	return out, nil
}

// Watermark returns the last successful incremental sync boundary for a
// source, or the zero time when none is recorded.
func (c *Config) Watermark(ctx context.Context, sourceID string) (time.Time, error) {
	raw, err := c.kv.Get(ctx, prefixWatermark+sourceID)
	if err != nil {
		if err == ErrNotFound {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, strings.Trim(string(raw), `"`))
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt watermark for %q: %w", sourceID, err)
	}
	return t, nil
}

// SetWatermark records a new sync boundary. Last write wins.
func (c *Config) SetWatermark(ctx context.Context, sourceID string, t time.Time) error {
	raw, _ := json.Marshal(t.UTC().Format(time.RFC3339Nano))
	return c.kv.Set(ctx, prefixWatermark+sourceID, raw)
}

// AppendImportHistory appends one entry, evicting the oldest beyond the cap.
func (c *Config) AppendImportHistory(ctx context.Context, entry ImportHistoryEntry) error {
	var log []ImportHistoryEntry
	if err := c.readLog(ctx, keyImportHistory, &log); err != nil {
		return err
	}
	log = append(log, entry)
	if len(log) > maxImportHistory {
		log = log[len(log)-maxImportHistory:]
	}
	return c.writeLog(ctx, keyImportHistory, log)
}

// ImportHistory returns the bounded import log, oldest first.
func (c *Config) ImportHistory(ctx context.Context) ([]ImportHistoryEntry, error) {
	var log []ImportHistoryEntry
	if err := c.readLog(ctx, keyImportHistory, &log); err != nil {
		return nil, err
	}
	return log, nil
}

// AppendWebhookHistory appends one entry, evicting the oldest beyond the cap.
func (c *Config) AppendWebhookHistory(ctx context.Context, entry WebhookHistoryEntry) error {
	var log []WebhookHistoryEntry
	if err := c.readLog(ctx, keyWebhookHistory, &log); err != nil {
		return err
	}
	log = append(log, entry)
	if len(log) > maxWebhookHistory {
		log = log[len(log)-maxWebhookHistory:]
	}
	return c.writeLog(ctx, keyWebhookHistory, log)
}

// WebhookHistory returns the bounded webhook log, oldest first.
func (c *Config) WebhookHistory(ctx context.Context) ([]WebhookHistoryEntry, error) {
	var log []WebhookHistoryEntry
	if err := c.readLog(ctx, keyWebhookHistory, &log); err != nil {
		return nil, err
	}
	return log, nil
}

func (c *Config) readLog(ctx context.Context, key string, dst any) error {
	raw, err := c.kv.Get(ctx, key)
	if err != nil {
		if err == ErrNotFound {
			return nil
		}
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("corrupt history log %q: %w", key, err)
	}
	return nil
}

func (c *Config) writeLog(ctx context.Context, key string, log any) error {
	raw, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("failed to marshal history log: %w", err)
	}
	return c.kv.Set(ctx, key, raw)
}
