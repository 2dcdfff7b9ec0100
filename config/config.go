package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type ServerConfig struct {
	Port int `toml:"port"`
}

// IdentityConfig points at the external identity service that owns account
// creation and authentication.
type IdentityConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

// DatabaseConfig points at the remote realtime database holding mailboxes.
type DatabaseConfig struct {
	BaseURL string `toml:"base_url"`
}

type AuthConfig struct {
	JWTSecret   string `toml:"jwt_secret"`   // signs the local session token
	SnapshotKey string `toml:"snapshot_key"` // seals persisted session snapshots
}

type PollConfig struct {
	IntervalMS int `toml:"interval_ms"`
}

type StorageConfig struct {
	DataDir string `toml:"data_dir"`
}

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Identity IdentityConfig `toml:"identity"`
	Database DatabaseConfig `toml:"database"`
	Auth     AuthConfig     `toml:"auth"`
	Poll     PollConfig     `toml:"poll"`
	Storage  StorageConfig  `toml:"storage"`
}

// LoadConfig reads the TOML config file and applies environment overrides.
// A missing file is fine as long as the required values arrive through the
// environment.
func LoadConfig(filepath string) (*Config, error) {
	var config Config

	// Set default values
	config.Server.Port = 3000
	config.Identity.BaseURL = "https://identitytoolkit.googleapis.com/v1"
	config.Poll.IntervalMS = 2000
	config.Storage.DataDir = "./data"

	if _, err := toml.DecodeFile(filepath, &config); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Environment wins over the file so secrets can stay out of it.
	if v := os.Getenv("FLAREMAIL_API_KEY"); v != "" {
		config.Identity.APIKey = v
	}
	if v := os.Getenv("FLAREMAIL_DB_URL"); v != "" {
		config.Database.BaseURL = v
	}
	if v := os.Getenv("FLAREMAIL_JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
	if v := os.Getenv("FLAREMAIL_SNAPSHOT_KEY"); v != "" {
		config.Auth.SnapshotKey = v
	}

	// Clamp alongside the defaults; a shorter cadence just hammers the
	// remote database.
	if config.Poll.IntervalMS < 250 {
		config.Poll.IntervalMS = 250
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the values no sane deployment can run without.
func (c *Config) Validate() error {
	if c.Identity.APIKey == "" {
		return fmt.Errorf("identity api_key is required (config or FLAREMAIL_API_KEY)")
	}
	if c.Database.BaseURL == "" {
		return fmt.Errorf("database base_url is required (config or FLAREMAIL_DB_URL)")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth jwt_secret is required (config or FLAREMAIL_JWT_SECRET)")
	}
	if c.Auth.SnapshotKey == "" {
		return fmt.Errorf("auth snapshot_key is required (config or FLAREMAIL_SNAPSHOT_KEY)")
	}
	return nil
}

// Interval returns the polling cadence as a duration.
func (c *PollConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}
