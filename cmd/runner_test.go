package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tunegrab/internal/formatter"
	"tunegrab/internal/models"
	"tunegrab/internal/services"
	"tunegrab/internal/shared"
	tu "tunegrab/internal/testing"
)

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			fetcher := services.NewFetcher(config.Fetch)
			session := services.NewSession(services.NewHelperIssuer(config.Session), time.Minute)

			runner := NewRunner(RunnerOpts{
				Config:  config,
				Logger:  logger,
				Output:  output,
				Fetcher: fetcher,
				Session: session,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.fetcher != fetcher {
				t.Error("expected fetcher to be set")
			}
			if runner.session != session {
				t.Error("expected session to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil fetcher and session builds from config", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.fetcher == nil {
				t.Error("expected a default fetcher")
			}
			if runner.session == nil {
				t.Error("expected a default session")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, true)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			expected := `{"key":"value"}` + "\n"
			if result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			// channels cannot be marshaled to JSON
			data := make(chan int)
			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			failing := &tu.FWriter{}
			runner := NewRunner(RunnerOpts{Output: failing})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			data := map[string]string{"key": "value"}
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writePlain("hello %s", "world")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			failing := &tu.FWriter{}
			runner := NewRunner(RunnerOpts{Output: failing})

			err := runner.writePlain("test")

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		if len(commands) != 5 {
			t.Errorf("expected 5 commands, got %d", len(commands))
		}

		for i, cmd := range commands {
			if cmd == nil {
				t.Errorf("command at index %d is nil", i)
			}
		}
	})

	t.Run("openDatabase", func(t *testing.T) {
		tmpDir := t.TempDir()

		config := shared.DefaultConfig()
		config.Database.Path = filepath.Join(tmpDir, "tunegrab.db")

		runner := NewRunner(RunnerOpts{Config: config})

		db, err := runner.openDatabase()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer db.Close()

		// Migrations ran: the queue table should be queryable.
		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM queue").Scan(&count); err != nil {
			t.Fatalf("expected queue table to exist, got %v", err)
		}
		if count != 0 {
			t.Errorf("expected empty queue, got %d entries", count)
		}
	})

	t.Run("targetOS", func(t *testing.T) {
		cases := []struct {
			configured string
			expected   formatter.TargetOS
		}{
			{"windows", formatter.OSWindows},
			{"darwin", formatter.OSDarwin},
			{"linux", formatter.OSLinux},
		}

		for _, tc := range cases {
			config := shared.DefaultConfig()
			config.Downloads.TargetOS = tc.configured

			runner := NewRunner(RunnerOpts{Config: config})
			if got := runner.targetOS(); got != tc.expected {
				t.Errorf("targetOS(%q) = %q, want %q", tc.configured, got, tc.expected)
			}
		}

		t.Run("defaults to host OS", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Downloads.TargetOS = ""

			runner := NewRunner(RunnerOpts{Config: config})
			if runner.targetOS() == "" {
				t.Error("expected a non-empty target OS")
			}
		})
	})

	t.Run("batchOptions", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Downloads.Path = "/music"
		config.Downloads.AudioFormat = "flac"
		config.Downloads.WriteManifest = true

		runner := NewRunner(RunnerOpts{Config: config})

		collection := models.Collection{Name: "Road Trip", Kind: models.CollectionPlaylist}
		opts := runner.batchOptions(collection)

		if opts.Collection.Name != "Road Trip" {
			t.Errorf("expected collection name to carry over, got %q", opts.Collection.Name)
		}
		if opts.OutputDir != "/music" {
			t.Errorf("expected output dir /music, got %q", opts.OutputDir)
		}
		if opts.Format != "flac" {
			t.Errorf("expected format flac, got %q", opts.Format)
		}
		if !opts.WriteManifest {
			t.Error("expected manifest writing enabled")
		}
	})

	t.Run("buildEngine", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})

		if runner.buildEngine(nil) == nil {
			t.Error("expected an engine")
		}
	})
}

func TestLoadCollectionFile(t *testing.T) {
	writeFile := func(t *testing.T, name string, data any) string {
		t.Helper()
		payload, err := json.Marshal(data)
		if err != nil {
			t.Fatalf("failed to marshal fixture: %v", err)
		}
		path := filepath.Join(t.TempDir(), name)
		if err := os.WriteFile(path, payload, 0644); err != nil {
			t.Fatalf("failed to write fixture: %v", err)
		}
		return path
	}

	t.Run("parses collection object", func(t *testing.T) {
		path := writeFile(t, "collection.json", models.Collection{
			Name: "Summer Mix",
			Kind: models.CollectionPlaylist,
			Tracks: []models.Track{
				{ID: "t1", Title: "Song One", Artist: "Artist A"},
				{ID: "t2", Title: "Song Two", Artist: "Artist B"},
			},
		})

		collection, err := loadCollectionFile(path)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if collection.Name != "Summer Mix" {
			t.Errorf("expected collection name, got %q", collection.Name)
		}
		if len(collection.Tracks) != 2 {
			t.Errorf("expected 2 tracks, got %d", len(collection.Tracks))
		}
	})

	t.Run("defaults kind to playlist", func(t *testing.T) {
		path := writeFile(t, "collection.json", map[string]any{
			"name":   "No Kind",
			"tracks": []models.Track{{ID: "t1", Title: "Song", Artist: "Artist"}},
		})

		collection, err := loadCollectionFile(path)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if collection.Kind != models.CollectionPlaylist {
			t.Errorf("expected playlist kind, got %q", collection.Kind)
		}
	})

	t.Run("parses bare track array", func(t *testing.T) {
		path := writeFile(t, "tracks.json", []models.Track{
			{ID: "t1", Title: "Song One", Artist: "Artist A"},
		})

		collection, err := loadCollectionFile(path)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if collection.Name != "" {
			t.Errorf("expected anonymous collection, got %q", collection.Name)
		}
		if len(collection.Tracks) != 1 {
			t.Errorf("expected 1 track, got %d", len(collection.Tracks))
		}
	})

	t.Run("requires a path", func(t *testing.T) {
		if _, err := loadCollectionFile(""); err == nil {
			t.Fatal("expected error for empty path")
		}
	})

	t.Run("rejects missing file", func(t *testing.T) {
		if _, err := loadCollectionFile(filepath.Join(t.TempDir(), "absent.json")); err == nil {
			t.Fatal("expected error for missing file")
		}
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
			t.Fatalf("failed to write fixture: %v", err)
		}

		if _, err := loadCollectionFile(path); err == nil {
			t.Fatal("expected error for malformed JSON")
		}
	})
}
