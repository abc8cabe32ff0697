package tasks

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"tunegrab/internal/formatter"
	"tunegrab/internal/library"
	"tunegrab/internal/manifest"
	"tunegrab/internal/models"
	"tunegrab/internal/services"
	"tunegrab/internal/shared"
)

// Fetcher sends one download request to the fetch service.
type Fetcher interface {
	Fetch(ctx context.Context, token string, request services.FetchRequest) (*services.FetchResult, error)
}

// SessionManager supplies a valid credential, refreshing when needed.
type SessionManager interface {
	EnsureValid(ctx context.Context, force bool) (string, error)
}

// Prober reports which candidates already exist in the local library.
type Prober interface {
	Check(ctx context.Context, candidates []library.Candidate) ([]library.Result, error)
}

// Ledger is the durable download history the engine writes through.
type Ledger interface {
	Enqueue(entry *models.QueueEntry) error
	MarkDownloading(id string) error
	MarkSucceeded(id, filePath string) error
	MarkSkipped(id, filePath string) error
	MarkFailed(id, reason string) error
}

// MetadataSource corrects cached track metadata against the catalog.
type MetadataSource interface {
	LookupTrack(ctx context.Context, id string) (*models.Track, error)
}

// ManifestWriter emits a playlist manifest for a finished batch.
type ManifestWriter interface {
	Write(dir, name string, entries []manifest.Entry) (string, error)
}

// BatchOptions carries the per-run settings for a batch download.
type BatchOptions struct {
	Collection    models.Collection // zero value for an ad-hoc track list
	OutputDir     string
	Format        string // audio format / file extension, e.g. "mp3"
	Paths         formatter.Config
	WriteManifest bool
}

// ItemResult is the terminal verdict for one track in a batch.
type ItemResult struct {
	Track    models.Track
	Position int // 1-based position within the batch
	Status   models.QueueStatus
	FilePath string
	Reason   string // failure reason, empty otherwise
	Retried  bool   // an auth retry was spent on this item
}

// BatchResult aggregates a finished (or cancelled) batch.
type BatchResult struct {
	Total        int
	Attempted    int
	Succeeded    int
	Skipped      int
	Failed       int
	Cancelled    bool
	Items        []ItemResult
	ManifestPath string
}

// Outcome classifies the batch for summary display. No-failure batches split
// into three classes so "everything was already there" reads differently from
// a fresh download.
func (r *BatchResult) Outcome() Outcome {
	switch {
	case r.Cancelled:
		return OutcomeCancelled
	case r.Failed == 0 && r.Skipped > 0 && r.Succeeded == 0:
		return OutcomeNothingNew
	case r.Failed == 0 && r.Skipped > 0:
		return OutcomeMixed
	case r.Failed == 0:
		return OutcomeComplete
	case r.Succeeded > 0 || r.Skipped > 0:
		return OutcomePartial
	default:
		return OutcomeFailed
	}
}

// Summary renders the one-line batch summary.
func (r *BatchResult) Summary() string {
	switch r.Outcome() {
	case OutcomeCancelled:
		return fmt.Sprintf("Cancelled: %d of %d processed (%d downloaded, %d skipped, %d failed)",
			r.Attempted, r.Total, r.Succeeded, r.Skipped, r.Failed)
	case OutcomeNothingNew:
		return fmt.Sprintf("Nothing new: all %d tracks already in the library", r.Skipped)
	case OutcomeMixed:
		return fmt.Sprintf("Done: %d downloaded, %d already in the library", r.Succeeded, r.Skipped)
	case OutcomeComplete:
		return fmt.Sprintf("Done: %d downloaded", r.Succeeded)
	case OutcomePartial:
		return fmt.Sprintf("Done with errors: %d downloaded, %d skipped, %d failed", r.Succeeded, r.Skipped, r.Failed)
	default:
		return fmt.Sprintf("Failed: all %d items failed", r.Failed)
	}
}

// DownloadEngine orchestrates batch downloads end to end.
type DownloadEngine struct {
	fetcher   Fetcher
	session   SessionManager
	ledger    Ledger
	probe     Prober
	catalog   MetadataSource
	manifests ManifestWriter
	logger    *log.Logger

	stop atomic.Bool
}

// EngineDeps bundles the engine's collaborators. Fetcher, Session and Ledger
// are required; the rest degrade gracefully when nil.
type EngineDeps struct {
	Fetcher   Fetcher
	Session   SessionManager
	Ledger    Ledger
	Probe     Prober
	Catalog   MetadataSource
	Manifests ManifestWriter
	Logger    *log.Logger
}

// NewDownloadEngine creates an engine from its dependency set.
func NewDownloadEngine(deps EngineDeps) *DownloadEngine {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &DownloadEngine{
		fetcher:   deps.Fetcher,
		session:   deps.Session,
		ledger:    deps.Ledger,
		probe:     deps.Probe,
		catalog:   deps.Catalog,
		manifests: deps.Manifests,
		logger:    logger,
	}
}

// Stop requests cooperative cancellation of the running batch. The current
// item finishes; nothing after it starts.
func (e *DownloadEngine) Stop() {
	e.stop.Store(true)
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *DownloadEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func (e *DownloadEngine) cancelled(ctx context.Context) bool {
	return ctx.Err() != nil || e.stop.Load()
}

// RunOne downloads a single track. No probe pre-pass and no manifest; the
// fetch service's own already-exists answer still applies.
func (e *DownloadEngine) RunOne(ctx context.Context, track models.Track, opts BatchOptions) (*ItemResult, error) {
	opts.WriteManifest = false

	result, err := e.RunBatch(ctx, []models.Track{track}, opts, nil)
	if err != nil {
		return nil, err
	}
	if len(result.Items) == 0 {
		return nil, fmt.Errorf("track was not attempted")
	}
	item := result.Items[0]
	return &item, nil
}

// RunBatch downloads the given tracks sequentially and returns the aggregate
// result. Cancellation (context or Stop) finishes the current item, marks the
// batch cancelled, and leaves the remaining items unattempted.
func (e *DownloadEngine) RunBatch(ctx context.Context, tracks []models.Track, opts BatchOptions, progress chan<- ProgressUpdate) (*BatchResult, error) {
	if e.fetcher == nil || e.session == nil {
		return nil, fmt.Errorf("%w: download engine not initialized", shared.ErrServiceUnavailable)
	}

	e.stop.Store(false)
	defer e.stop.Store(false)

	total := len(tracks)
	result := &BatchResult{Total: total}
	if total == 0 {
		return result, nil
	}

	tracks = e.correctMetadata(ctx, tracks, progress)

	items := make([]ItemResult, total)
	for i, track := range tracks {
		items[i] = ItemResult{Track: track, Position: i + 1}
	}

	targets := e.resolveTargets(tracks, opts)
	existing := e.probeExisting(ctx, tracks, targets, opts, progress)

	for i := range items {
		if e.cancelled(ctx) {
			result.Cancelled = true
			break
		}

		if path, ok := existing[i]; ok {
			e.finishItem(result, &items[i], models.StatusSkipped, path, "", opts, progress)
			continue
		}

		e.runItem(ctx, result, &items[i], targets[i], opts, progress)

		if items[i].Status == models.StatusFailed && errors.Is(ctx.Err(), context.Canceled) {
			result.Cancelled = true
			break
		}
	}

	result.Items = items

	if opts.WriteManifest {
		e.writeManifest(result, opts, progress)
	}

	e.sendProgress(progress, summaryUpdate(result))
	e.logger.Info("batch finished",
		"outcome", result.Outcome().String(),
		"total", result.Total,
		"succeeded", result.Succeeded,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)

	return result, nil
}

// correctMetadata fills in canonical release dates and ordinals from the
// catalog before paths are resolved. Lookup failures keep the cached values.
func (e *DownloadEngine) correctMetadata(ctx context.Context, tracks []models.Track, progress chan<- ProgressUpdate) []models.Track {
	if e.catalog == nil {
		return tracks
	}

	corrected := make([]models.Track, len(tracks))
	copy(corrected, tracks)

	for i := range corrected {
		if e.cancelled(ctx) || corrected[i].ID == "" {
			continue
		}

		e.sendProgress(progress, correctMetadataUpdate(0, len(tracks), corrected[i]))

		canonical, err := e.catalog.LookupTrack(ctx, corrected[i].ID)
		if err != nil {
			e.logger.Warn("metadata lookup failed", "track", corrected[i].ID, "error", err)
			continue
		}

		if corrected[i].Title == "" {
			corrected[i].Title = canonical.Title
		}
		if corrected[i].Artist == "" {
			corrected[i].Artist = canonical.Artist
		}
		if canonical.ReleaseDate != "" {
			corrected[i].ReleaseDate = canonical.ReleaseDate
		}
		if canonical.TrackNumber > 0 {
			corrected[i].TrackNumber = canonical.TrackNumber
		}
		if canonical.DiscNumber > 0 {
			corrected[i].DiscNumber = canonical.DiscNumber
		}
		if corrected[i].Album == "" {
			corrected[i].Album = canonical.Album
		}
		if corrected[i].AlbumArtist == "" {
			corrected[i].AlbumArtist = canonical.AlbumArtist
		}
	}
	return corrected
}

// target is a track's resolved location split the way collaborators need it.
type target struct {
	folders  []string
	filename string
}

func (t target) outputDir(root string) string {
	return filepath.Join(append([]string{root}, t.folders...)...)
}

func (t target) fullPath(root, format string) string {
	path := filepath.Join(t.outputDir(root), t.filename)
	if format != "" {
		path += "." + format
	}
	return path
}

func (e *DownloadEngine) resolveTargets(tracks []models.Track, opts BatchOptions) []target {
	targets := make([]target, len(tracks))
	for i, track := range tracks {
		input := formatter.Input{
			Track:    track,
			Playlist: opts.Collection.Name,
			Owner:    opts.Collection.Owner,
			Position: i + 1,
		}
		targets[i] = target{
			folders:  formatter.Folders(opts.Paths, input),
			filename: formatter.Filename(opts.Paths, input),
		}
	}
	return targets
}

// probeExisting returns the batch indexes whose files are already on disk,
// mapped to the found path. A probe error disables the fast path; the fetch
// service's already-exists answer still catches duplicates.
func (e *DownloadEngine) probeExisting(ctx context.Context, tracks []models.Track, targets []target, opts BatchOptions, progress chan<- ProgressUpdate) map[int]string {
	existing := map[int]string{}
	if e.probe == nil {
		return existing
	}

	candidates := make([]library.Candidate, 0, len(tracks))
	for i, track := range tracks {
		if track.ID == "" {
			continue
		}
		candidates = append(candidates, library.Candidate{
			Index:     i,
			Track:     track,
			Segments:  append(append([]string{}, targets[i].folders...), targets[i].filename),
			Extension: opts.Format,
		})
	}
	if len(candidates) == 0 {
		return existing
	}

	e.sendProgress(progress, probeLibraryUpdate(len(tracks)))

	results, err := e.probe.Check(ctx, candidates)
	if err != nil {
		e.logger.Warn("library probe failed", "error", err)
		return existing
	}

	for _, r := range results {
		if r.Exists {
			existing[r.Index] = r.Path
		}
	}
	return existing
}

// runItem takes one track to a terminal state: ledger entry, credential,
// fetch, and at most one forced-refresh retry on a credential rejection.
func (e *DownloadEngine) runItem(ctx context.Context, result *BatchResult, item *ItemResult, tgt target, opts BatchOptions, progress chan<- ProgressUpdate) {
	if item.Track.ID == "" {
		e.finishItem(result, item, models.StatusFailed, "", shared.ErrMissingTrackID.Error(), opts, progress)
		return
	}

	e.sendProgress(progress, fetchingUpdate(result.Attempted, result.Total, item.Track))

	entry := e.enqueue(item, opts)

	token, err := e.session.EnsureValid(ctx, false)
	if err != nil {
		e.failEntry(entry, err.Error())
		e.finishItem(result, item, models.StatusFailed, "", err.Error(), opts, progress)
		return
	}

	request := services.FetchRequest{
		TrackID:   item.Track.ID,
		OutputDir: tgt.outputDir(opts.OutputDir),
		Filename:  tgt.filename,
		Format:    opts.Format,
	}
	resolvedPath := tgt.fullPath(opts.OutputDir, opts.Format)

	e.markDownloading(entry)

	for attempt := 0; ; attempt++ {
		fetched, err := e.fetcher.Fetch(ctx, token, request)
		if err != nil {
			e.failEntry(entry, err.Error())
			e.finishItem(result, item, models.StatusFailed, "", err.Error(), opts, progress)
			return
		}

		if fetched.AlreadyExists {
			path := fetched.FilePath
			if path == "" {
				path = resolvedPath
			}
			e.skipEntry(entry, path)
			e.finishItem(result, item, models.StatusSkipped, path, "", opts, progress)
			return
		}

		if fetched.Success {
			path := fetched.FilePath
			if path == "" {
				path = resolvedPath
			}
			e.succeedEntry(entry, path)
			e.finishItem(result, item, models.StatusSucceeded, path, "", opts, progress)
			return
		}

		if services.IsAuthError(fetched.Error) && attempt == 0 {
			e.sendProgress(progress, refreshSessionUpdate(result.Attempted, result.Total))

			token, err = e.session.EnsureValid(ctx, true)
			if err != nil {
				e.failEntry(entry, err.Error())
				e.finishItem(result, item, models.StatusFailed, "", err.Error(), opts, progress)
				return
			}

			item.Retried = true
			e.markDownloading(entry)
			continue
		}

		e.failEntry(entry, fetched.Error)
		e.finishItem(result, item, models.StatusFailed, "", fetched.Error, opts, progress)
		return
	}
}

// finishItem records an item's terminal state, updates the tallies, and
// emits the per-item progress event.
func (e *DownloadEngine) finishItem(result *BatchResult, item *ItemResult, status models.QueueStatus, path, reason string, opts BatchOptions, progress chan<- ProgressUpdate) {
	item.Status = status
	item.FilePath = path
	item.Reason = reason

	switch status {
	case models.StatusSucceeded:
		result.Succeeded++
	case models.StatusSkipped:
		result.Skipped++
		// Probe skips bypass runItem, so the ledger write happens here.
		if item.Reason == "" && path != "" {
			e.recordSkip(item, path, opts)
		}
	case models.StatusFailed:
		result.Failed++
	}
	result.Attempted++

	e.sendProgress(progress, itemDoneUpdate(result.Attempted, result.Total, *item))
}

// Ledger helpers. Bookkeeping failures are logged but never change an item's
// outcome: the download already happened (or didn't).

func (e *DownloadEngine) enqueue(item *ItemResult, opts BatchOptions) *models.QueueEntry {
	if e.ledger == nil {
		return nil
	}
	entry := models.NewQueueEntry(0, item.Track, opts.Collection.Name)
	if err := e.ledger.Enqueue(entry); err != nil {
		e.logger.Warn("failed to record queue entry", "track", item.Track.ID, "error", err)
		return nil
	}
	return entry
}

func (e *DownloadEngine) recordSkip(item *ItemResult, path string, opts BatchOptions) {
	entry := e.enqueue(item, opts)
	e.skipEntry(entry, path)
}

func (e *DownloadEngine) markDownloading(entry *models.QueueEntry) {
	if entry == nil {
		return
	}
	if err := e.ledger.MarkDownloading(entry.ID()); err != nil {
		e.logger.Warn("ledger update failed", "entry", entry.ID(), "error", err)
	}
}

func (e *DownloadEngine) succeedEntry(entry *models.QueueEntry, path string) {
	if entry == nil {
		return
	}
	if err := e.ledger.MarkSucceeded(entry.ID(), path); err != nil {
		e.logger.Warn("ledger update failed", "entry", entry.ID(), "error", err)
	}
}

func (e *DownloadEngine) skipEntry(entry *models.QueueEntry, path string) {
	if entry == nil {
		return
	}
	if err := e.ledger.MarkSkipped(entry.ID(), path); err != nil {
		e.logger.Warn("ledger update failed", "entry", entry.ID(), "error", err)
	}
}

func (e *DownloadEngine) failEntry(entry *models.QueueEntry, reason string) {
	if entry == nil {
		return
	}
	if err := e.ledger.MarkFailed(entry.ID(), reason); err != nil {
		e.logger.Warn("ledger update failed", "entry", entry.ID(), "error", err)
	}
}

// writeManifest emits the playlist manifest for succeeded and skipped items
// in batch order. A write failure is reported but never alters outcomes.
func (e *DownloadEngine) writeManifest(result *BatchResult, opts BatchOptions, progress chan<- ProgressUpdate) {
	if e.manifests == nil || opts.Collection.Name == "" {
		return
	}

	var entries []manifest.Entry
	for _, item := range result.Items {
		if item.FilePath == "" {
			continue
		}
		if item.Status != models.StatusSucceeded && item.Status != models.StatusSkipped {
			continue
		}
		entries = append(entries, manifest.Entry{
			Path:     item.FilePath,
			Title:    item.Track.Title,
			Artist:   item.Track.Artist,
			Duration: item.Track.Duration,
		})
	}
	if len(entries) == 0 {
		return
	}

	path, err := e.manifests.Write(opts.OutputDir, opts.Collection.Name, entries)
	if err != nil {
		e.logger.Warn("manifest write failed", "collection", opts.Collection.Name, "error", err)
		return
	}

	result.ManifestPath = path
	e.sendProgress(progress, manifestUpdate(result.Attempted, result.Total, path))
}
