package tasks

import (
	"fmt"

	"tunegrab/internal/models"
)

// ProgressUpdate represents a progress event during a batch download.
//
// Step/Total track completed items, so Step never decreases within a run and
// a percent derived from them is monotone.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Items completed so far
	Total   int    // Total items in the batch
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Percent returns the completed share as an integer 0-100, rounded half up.
func (u ProgressUpdate) Percent() int {
	if u.Total <= 0 {
		return 0
	}
	percent := (u.Step*100 + u.Total/2) / u.Total
	if percent > 100 {
		return 100
	}
	return percent
}

// Operation phase enumeration
type Phase int

const (
	CorrectMetadata Phase = iota
	ProbeLibrary
	RefreshSession
	FetchTrack
	WriteManifest
	Summarize
)

func (p Phase) String() string {
	switch p {
	case CorrectMetadata:
		return "correct_metadata"
	case ProbeLibrary:
		return "probe_library"
	case RefreshSession:
		return "refresh_session"
	case FetchTrack:
		return "fetch_track"
	case WriteManifest:
		return "write_manifest"
	case Summarize:
		return "summarize"
	default:
		return ""
	}
}

// Outcome classifies a finished batch for summary display.
type Outcome int

const (
	OutcomeComplete   Outcome = iota // every item downloaded fresh
	OutcomeNothingNew                // every item already existed
	OutcomeMixed                     // downloads and skips, no failures
	OutcomeCancelled                 // run stopped before all items were attempted
	OutcomePartial                   // some items failed, some made it
	OutcomeFailed                    // nothing succeeded or was skipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeComplete:
		return "complete"
	case OutcomeNothingNew:
		return "nothing_new"
	case OutcomeMixed:
		return "mixed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomePartial:
		return "partial"
	case OutcomeFailed:
		return "failed"
	default:
		return ""
	}
}

// Severity maps an outcome to a display level for the summary line.
func (o Outcome) Severity() Severity {
	switch o {
	case OutcomeComplete, OutcomeNothingNew, OutcomeMixed:
		return SeverityInfo
	case OutcomeCancelled, OutcomePartial:
		return SeverityWarn
	default:
		return SeverityError
	}
}

// Severity grades summary messages for CLI/TUI styling.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarn
	SeverityError
)

func correctMetadataUpdate(step, total int, track models.Track) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CorrectMetadata,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Fetching metadata: %s - %s...", track.Artist, track.Title),
	}
}

func probeLibraryUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ProbeLibrary,
		Step:    0,
		Total:   total,
		Message: "Checking library for existing files...",
	}
}

func refreshSessionUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RefreshSession,
		Step:    step,
		Total:   total,
		Message: "Refreshing session token...",
	}
}

func fetchingUpdate(step, total int, track models.Track) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchTrack,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Downloading: %s - %s...", step+1, total, track.Artist, track.Title),
	}
}

func itemDoneUpdate(step, total int, item ItemResult) ProgressUpdate {
	var mark string
	switch item.Status {
	case models.StatusSucceeded:
		mark = "✓"
	case models.StatusSkipped:
		mark = "•"
	default:
		mark = "✗"
	}

	message := fmt.Sprintf("[%d/%d] %s %s - %s", step, total, mark, item.Track.Artist, item.Track.Title)
	if item.Status == models.StatusFailed && item.Reason != "" {
		message += ": " + item.Reason
	}

	return ProgressUpdate{
		Phase:   FetchTrack,
		Step:    step,
		Total:   total,
		Message: message,
		Data:    item,
	}
}

func manifestUpdate(step, total int, path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteManifest,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Wrote playlist manifest: %s", path),
	}
}

func summaryUpdate(result *BatchResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Summarize,
		Step:    result.Attempted,
		Total:   result.Total,
		Message: result.Summary(),
		Data:    result,
	}
}
