package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Library     LibraryConfig     `toml:"library"`
	Sync        SyncConfig        `toml:"sync"`
	Database    DatabaseConfig    `toml:"database"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Bandcamp BandcampConfig `toml:"bandcamp"`
}

// BandcampConfig locates the stored Bandcamp session.
type BandcampConfig struct {
	Username    string `toml:"username"`
	CookiesPath string `toml:"cookies_path"`
}

// LibraryConfig controls where and in which format downloads land.
type LibraryConfig struct {
	Root   string `toml:"root"`
	Format string `toml:"format"`
}

// SyncConfig contains download scheduling settings.
type SyncConfig struct {
	Jobs              int `toml:"jobs"`
	MaxAttempts       int `toml:"max_attempts"`
	RequestIntervalMS int `toml:"request_interval_ms"`
}

// DatabaseConfig contains manifest database settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	config.applyDefaults()
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, exampleConf, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyDefaults fills empty paths with XDG locations and clamps scheduling
// settings to usable values. Environment variables BANDSYNC_USERNAME and
// BANDSYNC_COOKIES override the stored credentials (loaded into the process
// environment from .env by the CLI entry point).
func (c *Config) applyDefaults() {
	if u := os.Getenv("BANDSYNC_USERNAME"); u != "" {
		c.Credentials.Bandcamp.Username = u
	}
	if p := os.Getenv("BANDSYNC_COOKIES"); p != "" {
		c.Credentials.Bandcamp.CookiesPath = p
	}
	if c.Credentials.Bandcamp.CookiesPath == "" {
		c.Credentials.Bandcamp.CookiesPath = filepath.Join(ConfigDir(), "cookies.txt")
	}
	if c.Library.Root == "" {
		c.Library.Root = filepath.Join(DataDir(), "library")
	}
	if c.Library.Format == "" {
		c.Library.Format = "flac"
	}
	if c.Sync.Jobs <= 0 {
		c.Sync.Jobs = 3
	}
	if c.Sync.MaxAttempts <= 0 {
		c.Sync.MaxAttempts = 3
	}
	if c.Sync.RequestIntervalMS <= 0 {
		c.Sync.RequestIntervalMS = 500
	}
	if c.Database.Path == "" {
		c.Database.Path = filepath.Join(CacheDir(), "manifest.db")
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 1
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = 1
	}
}

// ConfigPath returns the default config file location under the XDG config dir.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}
