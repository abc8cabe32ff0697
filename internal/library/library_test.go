package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"tunegrab/internal/formatter"
	"tunegrab/internal/models"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte("audio"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
}

func TestProbeCheck(t *testing.T) {
	root := t.TempDir()
	probe := NewProbe(root, formatter.OSLinux)

	writeFile(t, filepath.Join(root, "Daft Punk", "Discovery", "One More Time - Daft Punk.mp3"))
	writeFile(t, filepath.Join(root, "Blur", "Parklife", "03. Girls and Boys - Blur.mp3"))

	candidates := []Candidate{
		{
			Index:     0,
			Track:     models.Track{Title: "One More Time", Artist: "Daft Punk"},
			Segments:  []string{"Daft Punk", "Discovery", "One More Time - Daft Punk"},
			Extension: "mp3",
		},
		{
			// exact name differs (template decoration), directory scan should match
			Index:     1,
			Track:     models.Track{Title: "Girls and Boys", Artist: "Blur"},
			Segments:  []string{"Blur", "Parklife", "Girls and Boys - Blur"},
			Extension: "mp3",
		},
		{
			Index:     2,
			Track:     models.Track{Title: "Never Downloaded", Artist: "Nobody"},
			Segments:  []string{"Nobody", "Nothing", "Never Downloaded - Nobody"},
			Extension: "mp3",
		},
	}

	results, err := probe.Check(context.Background(), candidates)
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	if !results[0].Exists {
		t.Error("exact path match should report exists")
	}
	if want := filepath.Join(root, "Daft Punk", "Discovery", "One More Time - Daft Punk.mp3"); results[0].Path != want {
		t.Errorf("expected path %q, got %q", want, results[0].Path)
	}

	if !results[1].Exists {
		t.Error("directory scan should tolerate a track number prefix")
	}

	if results[2].Exists {
		t.Errorf("missing track reported as existing at %q", results[2].Path)
	}
}

func TestProbeCheckExtensionMismatch(t *testing.T) {
	root := t.TempDir()
	probe := NewProbe(root, formatter.OSLinux)

	writeFile(t, filepath.Join(root, "Album", "Song - Artist.flac"))

	results, err := probe.Check(context.Background(), []Candidate{{
		Index:     0,
		Track:     models.Track{Title: "Song", Artist: "Artist"},
		Segments:  []string{"Album", "Song - Artist"},
		Extension: "mp3",
	}})
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if results[0].Exists {
		t.Error("a different audio format should not satisfy the probe")
	}
}

func TestProbeCheckCancelled(t *testing.T) {
	probe := NewProbe(t.TempDir(), formatter.OSLinux)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	candidates := make([]Candidate, 50)
	for i := range candidates {
		candidates[i] = Candidate{
			Index:     i,
			Track:     models.Track{Title: "x", Artist: "y"},
			Segments:  []string{"a", "b"},
			Extension: "mp3",
		}
	}

	if _, err := probe.Check(ctx, candidates); err == nil {
		t.Error("expected context cancellation to surface")
	}
}

func TestProbeCheckEmpty(t *testing.T) {
	probe := NewProbe(t.TempDir(), formatter.OSLinux)

	results, err := probe.Check(context.Background(), nil)
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}
