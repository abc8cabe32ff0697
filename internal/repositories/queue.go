package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"tunegrab/internal/models"
	"tunegrab/internal/shared"
)

// QueueRepository persists the download ledger.
//
// Lifecycle mutations go through the entry state machine, so a terminal state
// can only ever be written once; the UPDATE additionally guards on the prior
// status to hold that under concurrent readers.
type QueueRepository struct {
	db *sql.DB
}

// NewQueueRepository creates a new QueueRepository with the given database connection
func NewQueueRepository(db *sql.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

// Enqueue inserts a new queued entry with generated ID and sequence.
func (r *QueueRepository) Enqueue(entry *models.QueueEntry) error {
	sequence, err := NextSequence(r.db, "queue")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	entry.SetID(id)
	entry.SetSequence(sequence)

	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO queue (id, sequence, track_id, title, artist, collection, status, file_path, fail_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		entry.TrackID(),
		entry.Title(),
		entry.Artist(),
		entry.Collection(),
		string(entry.Status()),
		entry.FilePath(),
		entry.FailReason(),
		entry.CreatedAt(),
		entry.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert queue entry: %w", err)
	}

	return nil
}

// Get retrieves a queue entry by ID
func (r *QueueRepository) Get(id string) (*models.QueueEntry, error) {
	query := `
		SELECT id, sequence, track_id, title, artist, collection, status, file_path, fail_reason, created_at, updated_at
		FROM queue
		WHERE id = ?
	`

	return r.scanOne(r.db.QueryRow(query, id))
}

// MarkDownloading transitions an entry into the downloading state.
func (r *QueueRepository) MarkDownloading(id string) error {
	return r.transition(id, models.StatusDownloading, "", "")
}

// MarkSucceeded records a completed download and its resolved file path.
func (r *QueueRepository) MarkSucceeded(id, filePath string) error {
	return r.transition(id, models.StatusSucceeded, filePath, "")
}

// MarkSkipped records an item skipped because the file already exists.
func (r *QueueRepository) MarkSkipped(id, filePath string) error {
	return r.transition(id, models.StatusSkipped, filePath, "")
}

// MarkFailed records a terminal failure with its reason.
func (r *QueueRepository) MarkFailed(id, reason string) error {
	return r.transition(id, models.StatusFailed, "", reason)
}

func (r *QueueRepository) transition(id string, next models.QueueStatus, filePath, failReason string) error {
	entry, err := r.Get(id)
	if err != nil {
		return err
	}

	previous := entry.Status()
	if err := entry.Transition(next); err != nil {
		return err
	}
	if filePath != "" {
		entry.SetFilePath(filePath)
	}
	if failReason != "" {
		entry.SetFailReason(failReason)
	}

	query := `
		UPDATE queue
		SET status = ?, file_path = ?, fail_reason = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := r.db.Exec(query,
		string(entry.Status()),
		entry.FilePath(),
		entry.FailReason(),
		entry.UpdatedAt(),
		id,
		string(previous),
	)
	if err != nil {
		return fmt.Errorf("failed to update queue entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("queue entry changed state concurrently: %s", id)
	}

	return nil
}

// List retrieves queue entries matching the given criteria in sequence order.
func (r *QueueRepository) List(criteria map[string]any) ([]*models.QueueEntry, error) {
	query := `
		SELECT id, sequence, track_id, title, artist, collection, status, file_path, fail_reason, created_at, updated_at
		FROM queue
		WHERE 1 = 1
	`

	args := []any{}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	if collection, ok := criteria["collection"].(string); ok && collection != "" {
		query += " AND collection = ?"
		args = append(args, collection)
	}

	if trackID, ok := criteria["track_id"].(string); ok && trackID != "" {
		query += " AND track_id = ?"
		args = append(args, trackID)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query queue: %w", err)
	}
	defer rows.Close()

	var entries []*models.QueueEntry
	for rows.Next() {
		entry, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return entries, nil
}

// Clear deletes the entire download history and resets the sequence counter.
func (r *QueueRepository) Clear() error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM queue"); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	if _, err := tx.Exec("UPDATE queue_sequence SET value = 0 WHERE id = 1"); err != nil {
		return fmt.Errorf("failed to reset queue sequence: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit clear: %w", err)
	}

	return nil
}

// scanOne scans a single [sql.Row] into a [models.QueueEntry]
func (r *QueueRepository) scanOne(row *sql.Row) (*models.QueueEntry, error) {
	entry, err := scanEntry(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("queue entry not found")
	}
	return entry, err
}

// scanRow scans a [sql.Rows] cursor position into a [models.QueueEntry]
func (r *QueueRepository) scanRow(rows *sql.Rows) (*models.QueueEntry, error) {
	return scanEntry(rows.Scan)
}

func scanEntry(scan func(...any) error) (*models.QueueEntry, error) {
	var (
		id         string
		sequence   int
		trackID    string
		title      string
		artist     string
		collection string
		status     string
		filePath   string
		failReason string
		createdAt  time.Time
		updatedAt  time.Time
	)

	err := scan(&id, &sequence, &trackID, &title, &artist, &collection, &status, &filePath, &failReason, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	entry := models.NewQueueEntry(sequence, models.Track{ID: trackID, Title: title, Artist: artist}, collection)
	entry.SetID(id)
	entry.SetStatusRaw(models.QueueStatus(status))
	entry.SetFilePath(filePath)
	entry.SetFailReason(failReason)
	entry.SetCreatedAt(createdAt)
	entry.SetUpdatedAt(updatedAt)

	return entry, nil
}
