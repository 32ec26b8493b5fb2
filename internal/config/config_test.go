package config

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setArea satisfies the one required geometry variable.
func setArea(t *testing.T) {
	t.Helper()
	t.Setenv("CROSS_SECTION_AREA_CM2", "2826")
}

func TestLoad_Defaults(t *testing.T) {
	setArea(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultManifestPath, cfg.ManifestPath)
	assert.Equal(t, "out", cfg.OutputDir)
	assert.Empty(t, cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 3, cfg.LoadRetries)
	assert.InDelta(t, 2826.0, cfg.AreaCM2, 1e-12)
	assert.Equal(t, 5, cfg.FitDegree)
	assert.Equal(t, 500, cfg.FitSamples)
	assert.Equal(t, "15:04", cfg.TimeLayout)
	assert.True(t, cfg.BaseDate.IsZero())
	assert.Equal(t, time.UTC, cfg.TimeZone)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.KafkaEnabled())
	assert.Equal(t, "runoff-derived-series", cfg.KafkaSinkTopic)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("MANIFEST_PATH", "/data/roof-b.yaml")
	t.Setenv("OUTPUT_DIR", "/data/out")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("LOAD_RETRIES", "5")
	t.Setenv("CYLINDER_RADIUS_CM", "30")
	t.Setenv("FIT_DEGREE", "3")
	t.Setenv("FIT_SAMPLES", "250")
	t.Setenv("TIME_LAYOUT", "15:04:05")
	t.Setenv("BASE_DATE", "2024-05-10")
	t.Setenv("TIME_ZONE", "America/Noronha")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/roof-b.yaml", cfg.ManifestPath)
	assert.Equal(t, "/data/out", cfg.OutputDir)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 5, cfg.LoadRetries)
	assert.InDelta(t, math.Pi*900, cfg.AreaCM2, 1e-9)
	assert.Equal(t, 3, cfg.FitDegree)
	assert.Equal(t, 250, cfg.FitSamples)
	assert.Equal(t, "15:04:05", cfg.TimeLayout)
	assert.Equal(t, "America/Noronha", cfg.TimeZone.String())
	assert.Equal(t, time.Date(2024, time.May, 10, 0, 0, 0, 0, cfg.TimeZone), cfg.BaseDate)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
}

func TestLoad_AreaWinsOverRadius(t *testing.T) {
	t.Setenv("CROSS_SECTION_AREA_CM2", "100")
	t.Setenv("CYLINDER_RADIUS_CM", "30")

	cfg, err := Load()
	require.NoError(t, err)
	assert.InDelta(t, 100.0, cfg.AreaCM2, 1e-12)
}

func TestLoad_MissingArea(t *testing.T) {
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CROSS_SECTION_AREA_CM2")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"CROSS_SECTION_AREA_CM2", "-1"},
		{"CROSS_SECTION_AREA_CM2", "abc"},
		{"CROSS_SECTION_AREA_CM2", "+Inf"},
		{"CYLINDER_RADIUS_CM", "0"},
		{"FIT_DEGREE", "0"},
		{"FIT_SAMPLES", "many"},
		{"LOAD_RETRIES", "-2"},
		{"TIME_ZONE", "Mars/Olympus"},
		{"BASE_DATE", "10/05/2024"},
		{"SHUTDOWN_TIMEOUT", "not-a-duration"},
		{"BATCH_SIZE", "9999"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			if tt.key != "CROSS_SECTION_AREA_CM2" && tt.key != "CYLINDER_RADIUS_CM" {
				setArea(t)
			}
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestConfig_ProcessParams(t *testing.T) {
	setArea(t)
	t.Setenv("FIT_DEGREE", "2")
	t.Setenv("BASE_DATE", "2024-05-10")

	cfg, err := Load()
	require.NoError(t, err)

	p := cfg.ProcessParams()
	assert.InDelta(t, 2826.0, p.Area, 1e-12)
	assert.Equal(t, 2, p.Fit.Degree)
	assert.Equal(t, 500, p.Fit.SampleCount)
	assert.Equal(t, "15:04", p.Parser.Layout)
	assert.Equal(t, time.Date(2024, time.May, 10, 0, 0, 0, 0, time.UTC), p.Parser.BaseDate)
}
