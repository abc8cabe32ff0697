package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"tunegrab/internal/models"
	"tunegrab/internal/repositories"
	"tunegrab/internal/shared"
)

// QueueList prints the download ledger, optionally filtered by status or collection.
func (r *Runner) QueueList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	criteria := map[string]any{}
	if status := cmd.String("status"); status != "" {
		if !models.QueueStatus(status).Valid() {
			return fmt.Errorf("%w: unknown status %q", shared.ErrInvalidInput, status)
		}
		criteria["status"] = status
	}
	if collection := cmd.String("collection"); collection != "" {
		criteria["collection"] = collection
	}

	repo := repositories.NewQueueRepository(db)
	entries, err := repo.List(criteria)
	if err != nil {
		return fmt.Errorf("failed to list queue: %w", err)
	}

	if cmd.Bool("json") {
		items := make([]map[string]any, 0, len(entries))
		for _, entry := range entries {
			items = append(items, queueEntryJSON(entry))
		}
		return r.writeJSON(items, cmd.Bool("pretty"))
	}

	if len(entries) == 0 {
		r.writePlain("Queue is empty\n")
		return nil
	}

	r.writePlainHeader(fmt.Sprintf("Download Queue (%d entries)", len(entries)))
	for _, entry := range entries {
		r.writePlain("%4d. [%s] %s - %s\n", entry.Sequence(), entry.Status(), entry.Artist(), entry.Title())
		if entry.Collection() != "" {
			r.writePlain("      Collection: %s\n", entry.Collection())
		}
		if entry.FilePath() != "" {
			r.writePlain("      %s\n", entry.FilePath())
		}
		if entry.FailReason() != "" {
			r.writePlain("      Reason: %s\n", entry.FailReason())
		}
	}

	return nil
}

// QueueClear wipes the download ledger and resets its sequence.
func (r *Runner) QueueClear(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repositories.NewQueueRepository(db)
	if err := repo.Clear(); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}

	r.logger.Info("queue cleared")
	r.writePlain("✓ Queue cleared\n")
	return nil
}

func queueEntryJSON(entry *models.QueueEntry) map[string]any {
	return map[string]any{
		"id":          entry.ID(),
		"sequence":    entry.Sequence(),
		"track_id":    entry.TrackID(),
		"title":       entry.Title(),
		"artist":      entry.Artist(),
		"collection":  entry.Collection(),
		"status":      string(entry.Status()),
		"file_path":   entry.FilePath(),
		"fail_reason": entry.FailReason(),
		"created_at":  entry.CreatedAt(),
		"updated_at":  entry.UpdatedAt(),
	}
}

// queueCommand handles download ledger inspection.
func queueCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "queue",
		Usage: "Inspect the download queue ledger",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List queue entries",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status", Usage: "Filter by status (queued, downloading, succeeded, skipped, failed)"},
					&cli.StringFlag{Name: "collection", Usage: "Filter by collection name"},
					&cli.BoolFlag{Name: "json", Usage: "Output as JSON"},
					&cli.BoolFlag{Name: "pretty", Usage: "Pretty-print JSON output"},
				},
				Action: r.QueueList,
			},
			{
				Name:   "clear",
				Usage:  "Delete all queue entries and reset the sequence",
				Action: r.QueueClear,
			},
		},
	}
}
