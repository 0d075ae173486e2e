package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abuseshield/federation/pkg/federation/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	// A missing file is not an error; defaults plus a generated key apply.
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Len(t, cfg.Server.APIKey, models.APIKeyLength)
	assert.Equal(t, 30*time.Minute, cfg.Server.MinBlacklistTime)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: ":9090"
  api_key: "`+strings.Repeat("K", models.APIKeyLength)+`"
  min_blacklist_time: 1h
database:
  type: sqlite
  sqlite_path: /tmp/federation.db
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.Equal(t, time.Hour, cfg.Server.MinBlacklistTime)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	// Untouched keys keep their defaults.
	assert.Equal(t, 100, cfg.Server.PageLimits.Operators)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FEDERATION_LISTEN", ":7070")
	t.Setenv("FEDERATION_API_KEY", strings.Repeat("E", models.APIKeyLength))
	t.Setenv("FEDERATION_MIN_BLACKLIST_TIME", "120")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Listen)
	assert.Equal(t, strings.Repeat("E", models.APIKeyLength), cfg.Server.APIKey)
	// Bare integers in duration fields are seconds.
	assert.Equal(t, 2*time.Minute, cfg.Server.MinBlacklistTime)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Server.APIKey = strings.Repeat("K", models.APIKeyLength)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "short api key", mutate: func(c *Config) { c.Server.APIKey = "short" }, wantErr: true},
		{name: "negative blacklist time", mutate: func(c *Config) { c.Server.MinBlacklistTime = -time.Minute }, wantErr: true},
		{name: "unknown public audit type", mutate: func(c *Config) { c.Server.PublicAuditEntries = []string{"BOGUS"} }, wantErr: true},
		{name: "known public audit type", mutate: func(c *Config) { c.Server.PublicAuditEntries = []string{"ENTITY_PUSHED"} }},
		{name: "sqlite without path", mutate: func(c *Config) { c.Database.Type = "sqlite"; c.Database.SQLitePath = "" }, wantErr: true},
		{name: "mysql without host", mutate: func(c *Config) { c.Database.Host = "" }, wantErr: true},
		{name: "zero upload size", mutate: func(c *Config) { c.Server.MaxUploadSize = 0 }, wantErr: true},
		{name: "zero page limit", mutate: func(c *Config) { c.Server.PageLimits.Evidence = 0 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWriteSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, WriteSample(path, false))
	assert.Error(t, WriteSample(path, false), "overwriting without force should fail")
	assert.NoError(t, WriteSample(path, true))

	// The sample must load and validate.
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Server.Listen)
}
