package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(envFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.StorageDriver)
	assert.Equal(t, "finchat.db", cfg.SQLitePath)
	assert.Equal(t, 15*time.Second, cfg.ExtractionTimeout)
	assert.Equal(t, 10, cfg.HistoryLimit)
	assert.Equal(t, int64(8), cfg.MaxConcurrentTurns)
	assert.Equal(t, "/telegram/webhook", cfg.WebhookPath)
	assert.Error(t, cfg.RequireTelegram())
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(envFrom(map[string]string{
		"TELEGRAM_TOKEN":       "token",
		"STORAGE_DRIVER":       "supabase",
		"SUPABASE_URL":         "https://x.supabase.co",
		"SUPABASE_KEY":         "key",
		"EXTRACTION_TIMEOUT":   "3s",
		"MAX_CONCURRENT_TURNS": "2",
	}))
	require.NoError(t, err)

	assert.Equal(t, DriverSupabase, cfg.StorageDriver)
	assert.Equal(t, 3*time.Second, cfg.ExtractionTimeout)
	assert.Equal(t, int64(2), cfg.MaxConcurrentTurns)
	assert.NoError(t, cfg.RequireTelegram())
}

func TestFromEnvErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown driver", map[string]string{"STORAGE_DRIVER": "mongo"}, "STORAGE_DRIVER"},
		{"supabase without key", map[string]string{"STORAGE_DRIVER": "supabase", "SUPABASE_URL": "u"}, "SUPABASE_KEY"},
		{"bad timeout", map[string]string{"EXTRACTION_TIMEOUT": "soon"}, "EXTRACTION_TIMEOUT"},
		{"zero timeout", map[string]string{"EXTRACTION_TIMEOUT": "0s"}, "EXTRACTION_TIMEOUT"},
		{"bad history", map[string]string{"HISTORY_LIMIT": "ten"}, "HISTORY_LIMIT"},
		{"zero turns", map[string]string{"MAX_CONCURRENT_TURNS": "0"}, "MAX_CONCURRENT_TURNS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnv(envFrom(tt.env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
