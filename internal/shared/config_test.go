package shared

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "tunegrab.db" {
			t.Errorf("expected database path tunegrab.db, got %s", config.Database.Path)
		}

		if config.Downloads.AudioFormat != "mp3" {
			t.Errorf("expected audio format mp3, got %s", config.Downloads.AudioFormat)
		}

		if config.Downloads.FolderTemplate != "{artist}/{album}" {
			t.Errorf("expected folder template {artist}/{album}, got %s", config.Downloads.FolderTemplate)
		}

		if config.Session.TokenTTLSeconds != 180 {
			t.Errorf("expected token TTL 180, got %d", config.Session.TokenTTLSeconds)
		}

		if config.Session.TimeoutSeconds != 5 {
			t.Errorf("expected helper timeout 5, got %d", config.Session.TimeoutSeconds)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[downloads]
path = "/music/library"
audio_format = "flac"
folder_template = "{album_artist}/{year} - {album}"
filename_preset = "custom"
filename_template = "{track}. {title}"
track_number = true
write_manifest = true

[fetch]
base_url = "http://localhost:9090"
timeout_seconds = 30

[session]
timeout_seconds = 10
retry_attempts = 3
token_ttl_seconds = 120

[database]
path = "/custom/path.db"
max_open_conns = 20
max_idle_conns = 10
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}

		if config.Downloads.AudioFormat != "flac" {
			t.Errorf("expected audio format flac, got %s", config.Downloads.AudioFormat)
		}

		if config.Session.RetryAttempts != 3 {
			t.Errorf("expected 3 retry attempts, got %d", config.Session.RetryAttempts)
		}

		if config.DownloadDir() != "/music/library" {
			t.Errorf("expected download dir /music/library, got %s", config.DownloadDir())
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
		if err == nil {
			t.Fatal("expected error for missing config file")
		}
	})
}
