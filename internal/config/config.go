package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// GoogleConfig holds the OAuth client credentials used for the refresh-token
// grant and the initial authorization-code exchange.
type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	// RedirectURL defaults to the out-of-band flow used by the link command.
	RedirectURL string `yaml:"redirect_url"`
}

// Config is the top-level application configuration.
type Config struct {
	// DBPath is the SQLite database holding linked accounts and calendars.
	DBPath string `yaml:"db_path"`

	// Timezone is the IANA timezone used when a request does not carry one
	// and an event does not declare its own (e.g. "Europe/Berlin").
	Timezone string `yaml:"timezone"`

	// FanOut caps the number of concurrent provider calls per request.
	// Kept small to respect Google Calendar API rate limits.
	FanOut int `yaml:"fan_out"`

	// MetricsListen is the address of the Prometheus scrape endpoint started
	// by the serve command. Empty disables the listener.
	MetricsListen string `yaml:"metrics_listen"`

	Google GoogleConfig `yaml:"google"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		DBPath:        defaultDBPath(),
		Timezone:      "UTC",
		FanOut:        4,
		MetricsListen: "",
		Google: GoogleConfig{
			RedirectURL: "urn:ietf:wg:oauth:2.0:oob",
		},
	}
}

// Normalize fills in missing/zero values so partially-filled configs still
// behave correctly.
func (c *Config) Normalize() {
	if c.DBPath == "" {
		c.DBPath = defaultDBPath()
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.FanOut <= 0 {
		c.FanOut = 4
	}
	if c.Google.RedirectURL == "" {
		c.Google.RedirectURL = "urn:ietf:wg:oauth:2.0:oob"
	}
}

// Validate checks values that Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Load reads configuration from the given YAML path. A missing file is not an
// error: the defaults are written back so the first run leaves a template the
// user can fill in with OAuth credentials.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to path with 0600 perms, creating the parent
// directory if needed. The file carries OAuth client secrets.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// DefaultPath returns the per-user config location.
func DefaultPath() string {
	return filepath.Join(configDir(), "whenfree", "config.yaml")
}

func defaultDBPath() string {
	return filepath.Join(configDir(), "whenfree", "whenfree.db")
}

func configDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir
	}
	return "."
}
