// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Spotify  SpotifyConfig  `yaml:"spotify"`
	Settings SettingsConfig `yaml:"settings"`
	Sync     SyncConfig     `yaml:"sync"`
	Export   ExportConfig   `yaml:"export"`
	Status   StatusConfig   `yaml:"status"`
	Log      LogConfig      `yaml:"log"`
}

// SpotifyConfig represents Spotify API configuration.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id" env:"SPOTIFY_CLIENT_ID" validate:"required"`
	ClientSecret string `yaml:"client_secret" env:"SPOTIFY_CLIENT_SECRET" validate:"required"`
	RefreshToken string `yaml:"refresh_token" env:"SPOTIFY_REFRESH_TOKEN" validate:"required"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"JP"`
}

// SettingsConfig represents the sync preference store.
type SettingsConfig struct {
	Backend string `yaml:"backend" default:"file" validate:"oneof=file sqlite"`
	Path    string `yaml:"path" env:"PLSYNC_SETTINGS_PATH" default:"plsync-settings.yaml" validate:"required"`
	Section string `yaml:"section" default:"syncPlaylists" validate:"required"`
	Watch   bool   `yaml:"watch"`
}

// SyncConfig represents playlist polling and sync configuration.
type SyncConfig struct {
	DisableStarred  bool `yaml:"disable_starred"`
	PollIntervalSec int  `yaml:"poll_interval_sec" default:"30" validate:"gte=5"`
	EventBuffer     int  `yaml:"event_buffer" default:"64" validate:"gte=1"`
}

// PollInterval returns the poll interval as a duration.
func (s SyncConfig) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalSec) * time.Second
}

// ExportConfig represents export configuration.
type ExportConfig struct {
	Type     string                  `yaml:"type" default:"yaml" validate:"oneof=yaml m3u"`
	Dir      string                  `yaml:"dir" env:"PLSYNC_EXPORT_DIR" default:"exports" validate:"required"`
	Buffer   int                     `yaml:"buffer" default:"16" validate:"gte=1"`
	Settings map[string]any          `yaml:"settings"`
	Filters  map[string]FilterConfig `yaml:"filters"`
}

// FilterConfig represents an export filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// StatusConfig represents the status HTTP server. An empty address disables it.
type StatusConfig struct {
	Addr  string `yaml:"addr" env:"PLSYNC_STATUS_ADDR"`
	Token string `yaml:"token" env:"PLSYNC_STATUS_TOKEN"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn warning error"`
	Output string `yaml:"output" default:"stdout"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}
	return cfg, nil
}

// LoadLocal loads configuration for commands that only touch local state.
// Spotify credentials are not required.
func LoadLocal(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}
	if err := validator.New().StructExcept(cfg, "Spotify"); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}
	return cfg, nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	if err := env.Parse(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to read environment")
	}

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}
