package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"tunegrab/internal/models"
	"tunegrab/internal/repositories"
	"tunegrab/internal/shared"
	"tunegrab/internal/tasks"
)

// DownloadTrack downloads a single track by catalog ID.
func (r *Runner) DownloadTrack(ctx context.Context, cmd *cli.Command) error {
	trackID := cmd.StringArg("id")
	if trackID == "" {
		return fmt.Errorf("%w: track ID", shared.ErrMissingArgument)
	}

	track := models.Track{
		ID:     trackID,
		Title:  cmd.String("title"),
		Artist: cmd.String("artist"),
		Album:  cmd.String("album"),
	}
	if track.Title == "" && r.catalog == nil {
		// No catalog to fill the blanks; the ID at least yields a stable filename.
		track.Title = trackID
	}

	r.logger.Info("downloading track", "id", trackID)

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	engine := r.buildEngine(repositories.NewQueueRepository(db))

	item, err := engine.RunOne(ctx, track, r.batchOptions(models.Collection{}))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"id":        item.Track.ID,
			"title":     item.Track.Title,
			"artist":    item.Track.Artist,
			"status":    string(item.Status),
			"file_path": item.FilePath,
			"reason":    item.Reason,
		}, cmd.Bool("pretty"))
	}

	switch item.Status {
	case models.StatusSucceeded:
		r.writePlain("✓ Downloaded: %s - %s\n", item.Track.Artist, item.Track.Title)
		r.writePlain("  %s\n", item.FilePath)
	case models.StatusSkipped:
		r.writePlain("• Already in library: %s - %s\n", item.Track.Artist, item.Track.Title)
		if item.FilePath != "" {
			r.writePlain("  %s\n", item.FilePath)
		}
	default:
		r.writePlain("✗ Failed: %s - %s\n", item.Track.Artist, item.Track.Title)
		if item.Reason != "" {
			r.writePlain("  %s\n", item.Reason)
		}
		return fmt.Errorf("download failed: %s", item.Reason)
	}

	return nil
}

// collectionSource resolves a catalog album ID into a ready-to-download collection.
type collectionSource interface {
	LookupAlbum(ctx context.Context, id string) (*models.Collection, error)
}

// DownloadBatch downloads every track in a collection sequentially. The
// collection comes from a JSON file or from the catalog by album ID.
func (r *Runner) DownloadBatch(ctx context.Context, cmd *cli.Command) error {
	var collection *models.Collection
	var err error

	switch albumID := cmd.String("album"); {
	case albumID != "" && cmd.String("file") != "":
		return fmt.Errorf("%w: --file and --album are mutually exclusive", shared.ErrInvalidInput)
	case albumID != "":
		source, ok := r.catalog.(collectionSource)
		if r.catalog == nil || !ok {
			return fmt.Errorf("%w: catalog client not configured", shared.ErrServiceUnavailable)
		}
		if collection, err = source.LookupAlbum(ctx, albumID); err != nil {
			return err
		}
	default:
		if collection, err = loadCollectionFile(cmd.String("file")); err != nil {
			return err
		}
	}
	if name := cmd.String("name"); name != "" {
		collection.Name = name
	}
	if len(collection.Tracks) == 0 {
		return fmt.Errorf("%w: collection has no tracks", shared.ErrInvalidInput)
	}

	r.logger.Info("starting batch download", "collection", collection.Name, "tracks", len(collection.Tracks))
	if collection.Name != "" {
		r.writePlain("Collection: %s (%d tracks)\n\n", collection.Name, len(collection.Tracks))
	} else {
		r.writePlain("Downloading %d tracks\n\n", len(collection.Tracks))
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	engine := r.buildEngine(repositories.NewQueueRepository(db))

	// Create progress channel and goroutine to handle updates
	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			switch update.Phase {
			case tasks.CorrectMetadata:
				r.writePlain("🏷  %s\n", update.Message)
			case tasks.ProbeLibrary:
				r.writePlain("🔍 %s\n", update.Message)
			case tasks.RefreshSession:
				r.writePlain("🔑 %s\n", update.Message)
			case tasks.FetchTrack:
				if _, ok := update.Data.(tasks.ItemResult); ok {
					r.writePlain("   %s\n", update.Message)
				} else {
					r.writePlain("📥 %s\n", update.Message)
				}
			case tasks.WriteManifest:
				r.writePlain("\n📝 %s\n", update.Message)
			}
		}
	}()

	opts := r.batchOptions(*collection)
	if cmd.Bool("no-manifest") {
		opts.WriteManifest = false
	}

	result, err := engine.RunBatch(ctx, collection.Tracks, opts, progressCh)
	close(progressCh)
	<-done

	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(batchResultJSON(result), cmd.Bool("pretty"))
	}

	r.writePlain("\n")
	r.writePlainHeader(batchHeader(result))
	r.writePlain("%s\n", result.Summary())

	if result.Failed > 0 {
		r.writePlain("\nFailed tracks:\n")
		for _, item := range result.Items {
			if item.Status == models.StatusFailed {
				r.writePlain("  - %s - %s: %s\n", item.Track.Artist, item.Track.Title, item.Reason)
			}
		}
	}
	if result.ManifestPath != "" {
		r.writePlain("\nManifest: %s\n", result.ManifestPath)
	}

	return nil
}

func batchHeader(result *tasks.BatchResult) string {
	switch result.Outcome() {
	case tasks.OutcomeComplete, tasks.OutcomeMixed:
		return "Batch Complete!"
	case tasks.OutcomeNothingNew:
		return "Nothing To Do"
	case tasks.OutcomeCancelled:
		return "Batch Cancelled"
	case tasks.OutcomePartial:
		return "Batch Finished With Errors"
	default:
		return "Batch Failed"
	}
}

// batchResultJSON flattens a batch result into a JSON-friendly shape.
func batchResultJSON(result *tasks.BatchResult) map[string]any {
	items := make([]map[string]any, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, map[string]any{
			"id":        item.Track.ID,
			"title":     item.Track.Title,
			"artist":    item.Track.Artist,
			"position":  item.Position,
			"status":    string(item.Status),
			"file_path": item.FilePath,
			"reason":    item.Reason,
			"retried":   item.Retried,
		})
	}
	return map[string]any{
		"outcome":       result.Outcome().String(),
		"total":         result.Total,
		"attempted":     result.Attempted,
		"succeeded":     result.Succeeded,
		"skipped":       result.Skipped,
		"failed":        result.Failed,
		"cancelled":     result.Cancelled,
		"manifest_path": result.ManifestPath,
		"items":         items,
	}
}

// loadCollectionFile parses a JSON collection file. The file holds either a
// collection object ({"name": ..., "tracks": [...]}) or a bare track array.
func loadCollectionFile(path string) (*models.Collection, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: --file", shared.ErrMissingArgument)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read collection file: %w", err)
	}

	var collection models.Collection
	if err := json.Unmarshal(data, &collection); err == nil && len(collection.Tracks) > 0 {
		if collection.Kind == "" {
			collection.Kind = models.CollectionPlaylist
		}
		return &collection, nil
	}

	var tracks []models.Track
	if err := json.Unmarshal(data, &tracks); err != nil {
		return nil, fmt.Errorf("%w: %s is not a collection or track array", shared.ErrInvalidInput, path)
	}
	return &models.Collection{Tracks: tracks}, nil
}

// downloadCommand handles single-track and batch download operations.
func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "download",
		Usage: "Download tracks to the local library",
		Commands: []*cli.Command{
			{
				Name:  "track",
				Usage: "Download a single track by catalog ID",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name:      "id",
						UsageText: "Catalog track ID",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Usage: "Track title (filled from the catalog when omitted)"},
					&cli.StringFlag{Name: "artist", Usage: "Track artist"},
					&cli.StringFlag{Name: "album", Usage: "Album name"},
					&cli.BoolFlag{Name: "json", Usage: "Output result as JSON"},
					&cli.BoolFlag{Name: "pretty", Usage: "Pretty-print JSON output"},
				},
				Action: r.DownloadTrack,
			},
			{
				Name:  "batch",
				Usage: "Download a collection from a JSON file or a catalog album",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "Path to a JSON collection or track array",
					},
					&cli.StringFlag{Name: "album", Usage: "Catalog album ID to download"},
					&cli.StringFlag{Name: "name", Usage: "Override the collection name"},
					&cli.BoolFlag{Name: "no-manifest", Usage: "Skip writing the playlist manifest"},
					&cli.BoolFlag{Name: "json", Usage: "Output result as JSON"},
					&cli.BoolFlag{Name: "pretty", Usage: "Pretty-print JSON output"},
				},
				Action: r.DownloadBatch,
			},
		},
	}
}
