package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"tunegrab/internal/shared"
)

func newFetchServer(t *testing.T, handler http.HandlerFunc) (*Fetcher, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	fetcher := NewFetcher(shared.FetchConfig{BaseURL: server.URL, TimeoutSeconds: 5})
	return fetcher, server
}

func TestFetcherFetch(t *testing.T) {
	t.Run("successful download", func(t *testing.T) {
		fetcher, _ := newFetchServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/download" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer eyJtest" {
				t.Errorf("unexpected authorization header %q", got)
			}

			var request FetchRequest
			if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
				t.Errorf("failed to decode request: %v", err)
			}
			if request.TrackID != "track1" {
				t.Errorf("unexpected track ID %q", request.TrackID)
			}

			json.NewEncoder(w).Encode(FetchResult{
				Success:  true,
				FilePath: "/music/a.mp3",
			})
		})

		result, err := fetcher.Fetch(context.Background(), "eyJtest", FetchRequest{
			TrackID:   "track1",
			OutputDir: "/music",
			Filename:  "a",
			Format:    "mp3",
		})
		if err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		if !result.Success {
			t.Error("expected success")
		}
		if result.FilePath != "/music/a.mp3" {
			t.Errorf("unexpected file path %q", result.FilePath)
		}
	})

	t.Run("already exists", func(t *testing.T) {
		fetcher, _ := newFetchServer(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(FetchResult{
				Success:       true,
				AlreadyExists: true,
				FilePath:      "/music/existing.mp3",
			})
		})

		result, err := fetcher.Fetch(context.Background(), "eyJtest", FetchRequest{TrackID: "track1"})
		if err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		if !result.AlreadyExists {
			t.Error("expected already-exists flag")
		}
	})

	t.Run("rejected credential becomes a classifiable result", func(t *testing.T) {
		fetcher, _ := newFetchServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "ERR_UNAUTHORIZED", http.StatusForbidden)
		})

		result, err := fetcher.Fetch(context.Background(), "eyJstale", FetchRequest{TrackID: "track1"})
		if err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		if result.Success {
			t.Error("expected failure result")
		}
		if !IsAuthError(result.Error) {
			t.Errorf("expected auth classification for %q", result.Error)
		}
	})

	t.Run("in-band failure", func(t *testing.T) {
		fetcher, _ := newFetchServer(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(FetchResult{
				Success: false,
				Error:   "track not available in region",
			})
		})

		result, err := fetcher.Fetch(context.Background(), "eyJtest", FetchRequest{TrackID: "track1"})
		if err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		if result.Success {
			t.Error("expected failure result")
		}
		if IsAuthError(result.Error) {
			t.Errorf("item failure misclassified as auth error: %q", result.Error)
		}
	})

	t.Run("missing track ID fails before the network", func(t *testing.T) {
		fetcher := NewFetcher(shared.FetchConfig{BaseURL: "http://127.0.0.1:1"})

		_, err := fetcher.Fetch(context.Background(), "eyJtest", FetchRequest{})
		if !errors.Is(err, shared.ErrMissingTrackID) {
			t.Errorf("expected ErrMissingTrackID, got %v", err)
		}
	})

	t.Run("unreachable service", func(t *testing.T) {
		fetcher := NewFetcher(shared.FetchConfig{BaseURL: "http://127.0.0.1:1", TimeoutSeconds: 1})

		_, err := fetcher.Fetch(context.Background(), "eyJtest", FetchRequest{TrackID: "track1"})
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

func TestIsAuthError(t *testing.T) {
	tests := []struct {
		message string
		want    bool
	}{
		{"ERR_UNAUTHORIZED", true},
		{"status 403: forbidden", true},
		{"Unauthorized request", true},
		{"track not found", false},
		{"status 500: internal error", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			if got := IsAuthError(tt.message); got != tt.want {
				t.Errorf("IsAuthError(%q) = %v, want %v", tt.message, got, tt.want)
			}
		})
	}
}
