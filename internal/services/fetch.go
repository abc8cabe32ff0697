package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tunegrab/internal/shared"
)

// FetchRequest asks the fetch service to resolve one track to a local file.
type FetchRequest struct {
	TrackID   string `json:"id"`
	OutputDir string `json:"output_dir"`
	Filename  string `json:"filename"`
	Format    string `json:"format"`
}

// FetchResult is the fetch service's verdict for one track.
//
// AlreadyExists is authoritative: when the service reports the file was
// already present, the item is a skip regardless of what the local probe said.
type FetchResult struct {
	Success       bool   `json:"success"`
	AlreadyExists bool   `json:"already_exists"`
	FilePath      string `json:"file_path"`
	Error         string `json:"error"`
}

// Fetcher sends download requests to the external fetch service.
type Fetcher struct {
	baseURL    string
	httpClient *http.Client
}

// NewFetcher creates a fetch service client from configuration.
func NewFetcher(cfg shared.FetchConfig) *Fetcher {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Fetcher{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch posts a download request authenticated with the given session token.
//
// A non-2xx status becomes a FetchResult carrying the body as its error
// string, so credential rejections flow through the same classification path
// as in-band failures.
func (f *Fetcher) Fetch(ctx context.Context, token string, request FetchRequest) (*FetchResult, error) {
	if request.TrackID == "" {
		return nil, shared.ErrMissingTrackID
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fetch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/download", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build fetch request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read fetch response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		message := strings.TrimSpace(string(body))
		if message == "" {
			message = resp.Status
		}
		return &FetchResult{
			Success: false,
			Error:   fmt.Sprintf("status %d: %s", resp.StatusCode, message),
		}, nil
	}

	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty response", shared.ErrAPIRequest)
	}

	var result FetchResult
	if err := json.Unmarshal(body, &result); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		return nil, fmt.Errorf("%w: undecodable response: %s", shared.ErrAPIRequest, preview)
	}

	return &result, nil
}
