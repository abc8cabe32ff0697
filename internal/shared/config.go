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
	Downloads DownloadsConfig `toml:"downloads"`
	Fetch     FetchConfig     `toml:"fetch"`
	Session   SessionConfig   `toml:"session"`
	Catalog   CatalogConfig   `toml:"catalog"`
	Database  DatabaseConfig  `toml:"database"`
}

// DownloadsConfig contains output layout and format settings.
type DownloadsConfig struct {
	Path             string `toml:"path"`
	AudioFormat      string `toml:"audio_format"`
	FolderTemplate   string `toml:"folder_template"`
	FilenamePreset   string `toml:"filename_preset"`
	FilenameTemplate string `toml:"filename_template"`
	TrackNumber      bool   `toml:"track_number"`
	TargetOS         string `toml:"target_os"`
	WriteManifest    bool   `toml:"write_manifest"`
	ManifestExtended bool   `toml:"manifest_extended"`
}

// FetchConfig contains settings for the external fetch service.
type FetchConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// SessionConfig contains token issuance settings.
type SessionConfig struct {
	HelperPath      string `toml:"helper_path"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	RetryAttempts   int    `toml:"retry_attempts"`
	TokenTTLSeconds int    `toml:"token_ttl_seconds"`
}

// CatalogConfig contains metadata source credentials.
type CatalogConfig struct {
	BaseURL      string `toml:"base_url"`
	TokenURL     string `toml:"token_url"`
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingConfig, err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DownloadDir resolves the configured download directory, defaulting to ~/Music/tunegrab.
func (c *Config) DownloadDir() string {
	if c.Downloads.Path != "" {
		return c.Downloads.Path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Music", "tunegrab")
}
