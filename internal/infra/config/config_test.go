package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080", AllowedOrigin: "*"},
		Admin:  AdminConfig{Token: "test-admin-token"},
		Playback: PlaybackConfig{
			PlayCountThresholdSec:  30,
			MaxConsecutiveFailures: 3,
			EventBuffer:            32,
		},
		Output:  OutputConfig{Type: "null"},
		Catalog: CatalogConfig{DSN: "user:pass@tcp(localhost:3306)/playerd"},
		Cache:   CacheConfig{Addr: "localhost:6379", TTLSeconds: 60},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing admin token",
			mutate:  func(c *Config) { c.Admin.Token = "" },
			wantErr: true,
			errMsg:  "Token",
		},
		{
			name:    "missing catalog dsn",
			mutate:  func(c *Config) { c.Catalog.DSN = "" },
			wantErr: true,
			errMsg:  "DSN",
		},
		{
			name:    "unknown output type",
			mutate:  func(c *Config) { c.Output.Type = "pulse" },
			wantErr: true,
			errMsg:  "Type",
		},
		{
			name:    "failure cap out of range",
			mutate:  func(c *Config) { c.Playback.MaxConsecutiveFailures = 0 },
			wantErr: true,
			errMsg:  "MaxConsecutiveFailures",
		},
		{
			name:    "negative play count threshold",
			mutate:  func(c *Config) { c.Playback.PlayCountThresholdSec = -1 },
			wantErr: true,
			errMsg:  "PlayCountThresholdSec",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err, "expected validation to fail")
				assert.Contains(t, err.Error(), tt.errMsg,
					"error message should mention the problematic field")
			} else {
				assert.NoError(t, err, "expected validation to pass")
			}
		})
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeConfigFile(t, `
admin:
  token: secret
catalog:
  dsn: user:pass@tcp(localhost:3306)/playerd
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "*", cfg.Server.AllowedOrigin)
	assert.Equal(t, "mpv", cfg.Output.Type)
	assert.Equal(t, 30.0, cfg.Playback.PlayCountThresholdSec)
	assert.Equal(t, 3, cfg.Playback.MaxConsecutiveFailures)
	assert.Equal(t, 32, cfg.Playback.EventBuffer)
	assert.False(t, cfg.Playback.DisablePreload)
	assert.Equal(t, 30*time.Second, cfg.PlayCountThreshold())
	assert.Equal(t, time.Minute, cfg.CacheTTL())
}

func TestLoad_FileValuesKept(t *testing.T) {
	path := writeConfigFile(t, `
server:
  addr: ":9090"
admin:
  token: secret
playback:
  play_count_threshold_sec: 15
  max_consecutive_failures: 5
  disable_preload: true
output:
  type: "null"
  settings:
    device: hw:0
catalog:
  dsn: user:pass@tcp(localhost:3306)/playerd
cache:
  enabled: true
  ttl_seconds: 120
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 15.0, cfg.Playback.PlayCountThresholdSec)
	assert.Equal(t, 5, cfg.Playback.MaxConsecutiveFailures)
	assert.True(t, cfg.Playback.DisablePreload)
	assert.Equal(t, "null", cfg.Output.Type)
	assert.Equal(t, "hw:0", cfg.Output.Settings["device"])
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 2*time.Minute, cfg.CacheTTL())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PLAYERD_DB_DSN", "env:dsn@tcp(db:3306)/playerd")
	t.Setenv("PLAYERD_ADMIN_TOKEN", "env-token")

	path := writeConfigFile(t, `
admin:
  token: file-token
catalog:
  dsn: file-dsn
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env:dsn@tcp(db:3306)/playerd", cfg.Catalog.DSN)
	assert.Equal(t, "env-token", cfg.Admin.Token)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
