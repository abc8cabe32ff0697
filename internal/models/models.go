// package models defines the data model for the tunegrab download service
package models

import (
	"fmt"
	"time"
)

// Model defines the base interface for all persistent models in the download service.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// Track represents a downloadable catalog item.
//
// ID is the stable catalog identifier; a track without one cannot be downloaded.
type Track struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album,omitempty"`
	AlbumArtist string `json:"album_artist,omitempty"`
	ReleaseDate string `json:"release_date,omitempty"` // YYYY or YYYY-MM-DD
	TrackNumber int    `json:"track_number,omitempty"`
	DiscNumber  int    `json:"disc_number,omitempty"`
	TotalTracks int    `json:"total_tracks,omitempty"`
	TotalDiscs  int    `json:"total_discs,omitempty"`
	Duration    int    `json:"duration,omitempty"` // Duration in seconds
	CoverURL    string `json:"cover_url,omitempty"`
	ISRC        string `json:"isrc,omitempty"`
	Popularity  int    `json:"popularity,omitempty"`
	Copyright   string `json:"copyright,omitempty"`
	Publisher   string `json:"publisher,omitempty"`
}

// CollectionKind enumerates the grouping types a batch can originate from.
type CollectionKind string

const (
	CollectionAlbum       CollectionKind = "album"
	CollectionPlaylist    CollectionKind = "playlist"
	CollectionDiscography CollectionKind = "discography"
)

// Collection represents an album, playlist, or artist discography grouping tracks.
type Collection struct {
	Name   string         `json:"name"`
	Owner  string         `json:"owner,omitempty"`
	Kind   CollectionKind `json:"kind"`
	Tracks []Track        `json:"tracks,omitempty"`
}

// QueueStatus represents the lifecycle state of a ledger entry.
type QueueStatus string

const (
	StatusQueued      QueueStatus = "queued"
	StatusDownloading QueueStatus = "downloading"
	StatusSucceeded   QueueStatus = "succeeded"
	StatusSkipped     QueueStatus = "skipped"
	StatusFailed      QueueStatus = "failed"
)

// Terminal reports whether the status is a terminal lifecycle state.
func (s QueueStatus) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusSkipped, StatusFailed:
		return true
	}
	return false
}

// Valid reports whether the status is a known lifecycle state.
func (s QueueStatus) Valid() bool {
	switch s {
	case StatusQueued, StatusDownloading, StatusSucceeded, StatusSkipped, StatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether a transition from s to next is legal.
//
// Terminal states are set exactly once; downloading may retry back into downloading
// (bounded auth retry) before reaching a terminal state.
func (s QueueStatus) CanTransition(next QueueStatus) bool {
	if s.Terminal() {
		return false
	}
	switch s {
	case StatusQueued:
		return next == StatusDownloading || next == StatusSkipped || next == StatusFailed
	case StatusDownloading:
		return next == StatusDownloading || next.Terminal()
	}
	return false
}

// QueueEntry is the durable ledger record for one attempted track.
//
// Entries are created when a track enters the pipeline (including tracks
// resolved as already existing) and mutated exactly once to a terminal state.
// They are never deleted during a session; clearing history is explicit.
type QueueEntry struct {
	id         string
	sequence   int
	trackID    string
	title      string
	artist     string
	collection string
	status     QueueStatus
	filePath   string
	failReason string
	createdAt  time.Time
	updatedAt  time.Time
}

// NewQueueEntry creates a queued entry for the given track and collection name.
func NewQueueEntry(sequence int, track Track, collection string) *QueueEntry {
	now := time.Now()
	return &QueueEntry{
		sequence:   sequence,
		trackID:    track.ID,
		title:      track.Title,
		artist:     track.Artist,
		collection: collection,
		status:     StatusQueued,
		createdAt:  now,
		updatedAt:  now,
	}
}

func (e *QueueEntry) ID() string           { return e.id }
func (e *QueueEntry) Sequence() int        { return e.sequence }
func (e *QueueEntry) TrackID() string      { return e.trackID }
func (e *QueueEntry) Title() string        { return e.title }
func (e *QueueEntry) Artist() string       { return e.artist }
func (e *QueueEntry) Collection() string   { return e.collection }
func (e *QueueEntry) Status() QueueStatus  { return e.status }
func (e *QueueEntry) FilePath() string     { return e.filePath }
func (e *QueueEntry) FailReason() string   { return e.failReason }
func (e *QueueEntry) CreatedAt() time.Time { return e.createdAt }
func (e *QueueEntry) UpdatedAt() time.Time { return e.updatedAt }

func (e *QueueEntry) SetID(id string)            { e.id = id }
func (e *QueueEntry) SetSequence(seq int)        { e.sequence = seq }
func (e *QueueEntry) SetFilePath(path string)    { e.filePath = path }
func (e *QueueEntry) SetFailReason(r string)     { e.failReason = r }
func (e *QueueEntry) SetUpdatedAt(t time.Time)   { e.updatedAt = t }
func (e *QueueEntry) SetCreatedAt(t time.Time)   { e.createdAt = t }
func (e *QueueEntry) SetStatusRaw(s QueueStatus) { e.status = s }

// Transition moves the entry to the next lifecycle state, enforcing the state machine.
func (e *QueueEntry) Transition(next QueueStatus) error {
	if !next.Valid() {
		return fmt.Errorf("unknown queue status: %q", next)
	}
	if !e.status.CanTransition(next) {
		return fmt.Errorf("illegal queue transition: %s -> %s", e.status, next)
	}
	e.status = next
	e.updatedAt = time.Now()
	return nil
}

// Validate checks if the entry's data is valid.
func (e *QueueEntry) Validate() error {
	if e.trackID == "" {
		return fmt.Errorf("queue entry requires a track ID")
	}
	if e.title == "" {
		return fmt.Errorf("queue entry requires a title")
	}
	if !e.status.Valid() {
		return fmt.Errorf("unknown queue status: %q", e.status)
	}
	return nil
}
