package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8086, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Database.Type)
	assert.Equal(t, 15*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, 24*time.Hour, cfg.Redis.DedupTTL)
	assert.Equal(t, "caseflow.imports.completed", cfg.NATS.Subject)
	assert.Equal(t, 250*time.Millisecond, cfg.Airtable.PageDelay)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Sync.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9999
database:
  type: postgres
  postgres:
    host: db.internal
    user: importd
    password: pw
    database: caseflow
sync:
  enabled: true
  interval: 5m
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.True(t, cfg.Sync.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Sync.Interval)
	assert.Equal(t,
		"postgres://importd:pw@db.internal:5432/caseflow?sslmode=disable",
		cfg.Database.Postgres.ConnString(),
		"port and sslmode fall back to defaults")
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("IMPORTD_SERVER_PORT", "7070")
	t.Setenv("IMPORTD_LOGGING_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}
