// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the daemon configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Admin    AdminConfig    `yaml:"admin"`
	Playback PlaybackConfig `yaml:"playback"`
	Output   OutputConfig   `yaml:"output"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Cache    CacheConfig    `yaml:"cache"`
	Media    MediaConfig    `yaml:"media"`
}

// ServerConfig represents the HTTP server configuration.
type ServerConfig struct {
	Addr          string `yaml:"addr" default:":8080"`
	AllowedOrigin string `yaml:"allowed_origin" default:"*"`
}

// AdminConfig represents admin-related configuration.
type AdminConfig struct {
	Token string `yaml:"token" validate:"required"`
}

// PlaybackConfig represents playback control configuration.
type PlaybackConfig struct {
	PlayCountThresholdSec  float64 `yaml:"play_count_threshold_sec" default:"30" validate:"gte=0,lte=600"`
	MaxConsecutiveFailures int     `yaml:"max_consecutive_failures" default:"3" validate:"gte=1,lte=20"`
	EventBuffer            int     `yaml:"event_buffer" default:"32" validate:"gte=1,lte=1024"`
	DisablePreload         bool    `yaml:"disable_preload"`
}

// OutputConfig represents the audio output backend configuration.
type OutputConfig struct {
	Type     string         `yaml:"type" default:"mpv" validate:"oneof=mpv null"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// CatalogConfig represents the track database configuration.
type CatalogConfig struct {
	DSN string `yaml:"dsn" validate:"required"`
}

// CacheConfig represents the redis catalog cache configuration.
type CacheConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Addr       string `yaml:"addr" default:"localhost:6379"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db" validate:"gte=0,lte=15"`
	TTLSeconds int    `yaml:"ttl_seconds" default:"60" validate:"gte=1,lte=86400"`
}

// MediaConfig represents OS media integration configuration.
type MediaConfig struct {
	DisableSystemControls bool `yaml:"disable_system_controls"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("PLAYERD_DB_DSN"); v != "" {
		c.Catalog.DSN = v
	}
	if v := os.Getenv("PLAYERD_REDIS_ADDR"); v != "" {
		c.Cache.Addr = v
	}
	if v := os.Getenv("PLAYERD_REDIS_PASSWORD"); v != "" {
		c.Cache.Password = v
	}
	if v := os.Getenv("PLAYERD_ADMIN_TOKEN"); v != "" {
		c.Admin.Token = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// PlayCountThreshold returns the listen time required before a play counts.
func (c *Config) PlayCountThreshold() time.Duration {
	return time.Duration(c.Playback.PlayCountThresholdSec * float64(time.Second))
}

// CacheTTL returns the catalog cache entry lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}
