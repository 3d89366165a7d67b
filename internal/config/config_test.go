package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("INVENTORY_URL", "http://inventory.local")
	t.Setenv("STORE_PATH", ":memory:")

	cfg := Load()

	assert.Equal(t, "http://inventory.local", cfg.InventoryURL)
	assert.Equal(t, ":memory:", cfg.StorePath)
	assert.Equal(t, "events-scrape", cfg.ServiceName)
	assert.Equal(t, 5, cfg.MaxWorkers)
	assert.Equal(t, []string{"user", "metrics"}, cfg.EventCategories)
	assert.Empty(t, cfg.ClusterIgnoreFields)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, time.Second, cfg.RetryBaseDelay)
	assert.Equal(t, 4*time.Second, cfg.RetryMaxDelay)
	assert.False(t, cfg.ExportEnabled())
	assert.NotEmpty(t, cfg.InstanceID)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("INVENTORY_URL", "http://inventory.local")
	t.Setenv("STORE_PATH", "/data/events.db")
	t.Setenv("MAX_WORKERS", "12")
	t.Setenv("EVENT_CATEGORIES", "user")
	t.Setenv("CLUSTER_EVENTS_IGNORE_FIELDS", "updated_at, hosts.*.checked_in_at,,")
	t.Setenv("SCRAPE_INTERVAL", "90s")
	t.Setenv("LOG_PRETTY", "true")
	t.Setenv("S3_BUCKET", "mybucket")
	t.Setenv("SPOOL_MAX_SIZE_BYTES", "1024")

	cfg := Load()

	assert.Equal(t, 12, cfg.MaxWorkers)
	assert.Equal(t, []string{"user"}, cfg.EventCategories)
	require.Len(t, cfg.ClusterIgnoreFields, 2)
	assert.Equal(t, "hosts.*.checked_in_at", cfg.ClusterIgnoreFields[1])
	assert.Equal(t, 90*time.Second, cfg.ScrapeInterval)
	assert.True(t, cfg.LogPretty)
	assert.True(t, cfg.ExportEnabled())
	assert.Equal(t, int64(1024), cfg.SpoolMaxSizeBytes)
}
