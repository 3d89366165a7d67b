package logger

import (
	"bytes"
	"strings"
	"testing"

	"events-scrape/internal/config"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_AddsCommonFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(config.Config{ServiceName: "events-scrape", InstanceID: "scraper-0", LogLevel: "debug"}, &buf)

	l.Info().Str("cluster_id", "c1").Msg("cluster stored")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "events-scrape", line["service"])
	assert.Equal(t, "scraper-0", line["instance"])
	assert.Equal(t, "c1", line["cluster_id"])
	assert.Equal(t, "cluster stored", line["message"])
}

func TestNew_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New(config.Config{LogLevel: "warn"}, &buf)

	l.Info().Msg("dropped")
	l.Error().Msg("kept")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "kept")
}

func TestNew_SamplingNeverDropsErrors(t *testing.T) {
	var buf bytes.Buffer
	l := New(config.Config{LogLevel: "info", LogSampleN: 100}, &buf)

	for i := 0; i < 10; i++ {
		l.Error().Msg("failure")
	}
	assert.Equal(t, 10, strings.Count(buf.String(), "failure"))
}
