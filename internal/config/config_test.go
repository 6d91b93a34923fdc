package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rosterd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("missing file falls back to defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, DriverPostgres, cfg.Store.Driver)
		assert.Equal(t, "8080", cfg.Server.Port)
		assert.Equal(t, 7*24*time.Hour, cfg.Engine.Retention())
		assert.False(t, cfg.Engine.BlockClaimsWhenLocked)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := writeConfig(t, `
server:
  port: "9090"
store:
  driver: sqlite
  sqlite:
    path: /tmp/rosters.db
engine:
  block_claims_when_locked: true
  retention_days: 3
  sweep_interval: 10m
logging:
  level: debug
  format: json
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "9090", cfg.Server.Port)
		assert.Equal(t, DriverSQLite, cfg.Store.Driver)
		assert.Equal(t, "/tmp/rosters.db", cfg.Store.SQLite.Path)
		assert.True(t, cfg.Engine.BlockClaimsWhenLocked)
		assert.Equal(t, 3, cfg.Engine.RetentionDays)
		assert.Equal(t, 10*time.Minute, cfg.Engine.SweepInterval)
		assert.Equal(t, "json", cfg.Logging.Format)
		// untouched sections keep their defaults
		assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	})

	t.Run("environment wins over file", func(t *testing.T) {
		path := writeConfig(t, "server:\n  port: \"9090\"\n")
		t.Setenv("PORT", "7070")
		t.Setenv("DB_HOST", "db.internal")
		t.Setenv("BLOCK_CLAIMS_WHEN_LOCKED", "true")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "7070", cfg.Server.Port)
		assert.Equal(t, "db.internal", cfg.Store.Postgres.Host)
		assert.True(t, cfg.Engine.BlockClaimsWhenLocked)
	})

	t.Run("rejects bad boolean in environment", func(t *testing.T) {
		t.Setenv("BLOCK_CLAIMS_WHEN_LOCKED", "maybe")
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("rejects malformed yaml", func(t *testing.T) {
		path := writeConfig(t, "server: [unterminated")
		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Store.Driver = "mysql" },
			wantErr: "unsupported store driver",
		},
		{
			name:    "sqlite without path",
			mutate:  func(c *Config) { c.Store.Driver = DriverSQLite; c.Store.SQLite.Path = "" },
			wantErr: "store.sqlite.path",
		},
		{
			name:    "zero retention",
			mutate:  func(c *Config) { c.Engine.RetentionDays = 0 },
			wantErr: "retention_days",
		},
		{
			name:    "no redis",
			mutate:  func(c *Config) { c.Redis.URL = "" },
			wantErr: "redis.url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	dsn := Default().Store.Postgres.DSN()
	assert.Equal(t, "host=localhost port=5432 user=postgres password=postgres dbname=guildroster sslmode=disable", dsn)
}
