package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2/clientcredentials"

	"tunegrab/internal/models"
	"tunegrab/internal/shared"
)

// Catalog looks up canonical track metadata from the catalog web API.
// Requests authenticate via the OAuth2 client-credentials flow.
type Catalog struct {
	baseURL    string
	httpClient *http.Client
}

// NewCatalog creates a catalog client. The returned client refreshes its own
// access token as needed; callers never see OAuth details.
func NewCatalog(ctx context.Context, cfg shared.CatalogConfig) (*Catalog, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: catalog client credentials not configured", shared.ErrMissingConfig)
	}

	oauthConfig := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}

	return &Catalog{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: oauthConfig.Client(ctx),
	}, nil
}

// trackResponse mirrors the catalog API's track object.
type trackResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name        string `json:"name"`
		ReleaseDate string `json:"release_date"`
		TotalTracks int    `json:"total_tracks"`
		Artists     []struct {
			Name string `json:"name"`
		} `json:"artists"`
	} `json:"album"`
	TrackNumber int `json:"track_number"`
	DiscNumber  int `json:"disc_number"`
	DurationMS  int `json:"duration_ms"`
	ExternalIDs struct {
		ISRC string `json:"isrc"`
	} `json:"external_ids"`
	Popularity int `json:"popularity"`
}

// albumResponse mirrors the catalog API's album object.
type albumResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	ReleaseDate string `json:"release_date"`
	TotalTracks int    `json:"total_tracks"`
	Tracks      struct {
		Items []trackResponse `json:"items"`
	} `json:"tracks"`
}

// LookupTrack fetches the canonical metadata for a track ID. Cached or
// user-supplied metadata is corrected against this before path resolution.
func (c *Catalog) LookupTrack(ctx context.Context, id string) (*models.Track, error) {
	if id == "" {
		return nil, shared.ErrMissingTrackID
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tracks/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload trackResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: undecodable track response: %v", shared.ErrAPIRequest, err)
	}

	track := &models.Track{
		ID:          payload.ID,
		Title:       payload.Name,
		Album:       payload.Album.Name,
		ReleaseDate: payload.Album.ReleaseDate,
		TrackNumber: payload.TrackNumber,
		DiscNumber:  payload.DiscNumber,
		TotalTracks: payload.Album.TotalTracks,
		Duration:    payload.DurationMS / 1000,
		ISRC:        payload.ExternalIDs.ISRC,
		Popularity:  payload.Popularity,
	}
	if len(payload.Artists) > 0 {
		names := make([]string, 0, len(payload.Artists))
		for _, artist := range payload.Artists {
			names = append(names, artist.Name)
		}
		track.Artist = strings.Join(names, ", ")
	}
	if len(payload.Album.Artists) > 0 {
		track.AlbumArtist = payload.Album.Artists[0].Name
	}

	return track, nil
}

// LookupAlbum fetches an album and its track listing as a collection ready for
// a batch download.
func (c *Catalog) LookupAlbum(ctx context.Context, id string) (*models.Collection, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: album ID", shared.ErrMissingArgument)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/albums/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: album %s", shared.ErrTrackNotFound, id)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload albumResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: undecodable album response: %v", shared.ErrAPIRequest, err)
	}

	albumArtist := ""
	if len(payload.Artists) > 0 {
		albumArtist = payload.Artists[0].Name
	}

	collection := &models.Collection{
		Name:  payload.Name,
		Owner: albumArtist,
		Kind:  models.CollectionAlbum,
	}

	for _, item := range payload.Tracks.Items {
		track := models.Track{
			ID:          item.ID,
			Title:       item.Name,
			Album:       payload.Name,
			AlbumArtist: albumArtist,
			ReleaseDate: payload.ReleaseDate,
			TrackNumber: item.TrackNumber,
			DiscNumber:  item.DiscNumber,
			TotalTracks: payload.TotalTracks,
			Duration:    item.DurationMS / 1000,
		}
		if len(item.Artists) > 0 {
			names := make([]string, 0, len(item.Artists))
			for _, artist := range item.Artists {
				names = append(names, artist.Name)
			}
			track.Artist = strings.Join(names, ", ")
		}
		collection.Tracks = append(collection.Tracks, track)
	}

	return collection, nil
}
