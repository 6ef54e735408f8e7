package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "LISTEN_ADDR", "DATABASE_PATH", "AUTO_SOURCE_BACKEND", "STATS_WINDOW_DAYS", "TIMEZONE"} {
		t.Setenv(key, "")
	}

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "tracklog.db", cfg.DatabasePath)
	assert.Equal(t, BackendSQLite, cfg.AutoSourceBackend)
	assert.Equal(t, 90, cfg.StatsWindowDays)
	assert.Equal(t, "release", cfg.GinMode)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LISTEN_ADDR", "")
	t.Setenv("DATABASE_PATH", "/tmp/habits.db")
	t.Setenv("STATS_WINDOW_DAYS", "120")
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "/tmp/habits.db", cfg.DatabasePath)
	assert.Equal(t, 120, cfg.StatsWindowDays)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("AUTO_SOURCE_BACKEND", "")
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_KEY", "")

	path := filepath.Join(t.TempDir(), "tracklog.yaml")
	content := "auto_source_backend: supabase\nsupabase_url: https://example.supabase.co\nsupabase_key: anon\nlog_format: json\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendSupabase, cfg.AutoSourceBackend)
	assert.Equal(t, "https://example.supabase.co", cfg.SupabaseURL)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestValidate(t *testing.T) {
	base := AppConfig{AutoSourceBackend: BackendSQLite, StatsWindowDays: 90, Timezone: "Local"}

	tests := []struct {
		name    string
		modify  func(*AppConfig)
		wantErr bool
	}{
		{name: "valid", modify: func(*AppConfig) {}},
		{name: "unknown backend", modify: func(c *AppConfig) { c.AutoSourceBackend = "mysql" }, wantErr: true},
		{name: "supabase without key", modify: func(c *AppConfig) { c.AutoSourceBackend = BackendSupabase; c.SupabaseURL = "https://x" }, wantErr: true},
		{name: "window too small", modify: func(c *AppConfig) { c.StatsWindowDays = 7 }, wantErr: true},
		{name: "bad timezone", modify: func(c *AppConfig) { c.Timezone = "Mars/Olympus" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.modify(&cfg)
			err := cfg.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}
}
