// package library answers "is this track already on disk?" without touching
// the network. The probe stats the exact resolved path first and falls back to
// scanning the target directory for a file that carries the same title and
// artist under a different filename decoration.
package library

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"tunegrab/internal/formatter"
	"tunegrab/internal/models"
)

// defaultConcurrency bounds parallel stat calls during a batch pre-pass.
const defaultConcurrency = 8

// Candidate is one track with its fully resolved target location.
type Candidate struct {
	Index     int      // position within the batch, carried through to the result
	Track     models.Track
	Segments  []string // folder segments plus filename, no extension
	Extension string   // audio format without the dot, e.g. "mp3"
}

// Result reports whether a candidate already exists and where.
type Result struct {
	Index  int
	Exists bool
	Path   string
}

// Probe checks the local library for already-downloaded tracks.
type Probe struct {
	root        string
	targetOS    formatter.TargetOS
	concurrency int
}

// NewProbe creates a probe rooted at the download directory.
func NewProbe(root string, target formatter.TargetOS) *Probe {
	return &Probe{root: root, targetOS: target, concurrency: defaultConcurrency}
}

// Check stats every candidate concurrently and reports which ones already
// exist. The result slice is indexed like the input; an unreadable directory
// counts as not-exists rather than failing the batch.
func (p *Probe) Check(ctx context.Context, candidates []Candidate) ([]Result, error) {
	results := make([]Result, len(candidates))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(p.concurrency)

	for i, candidate := range candidates {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = p.checkOne(candidate)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Probe) checkOne(candidate Candidate) Result {
	result := Result{Index: candidate.Index}
	if len(candidate.Segments) == 0 {
		return result
	}

	exact := p.exactPath(candidate)
	if info, err := os.Stat(exact); err == nil && !info.IsDir() {
		result.Exists = true
		result.Path = exact
		return result
	}

	if path, ok := p.scanDir(candidate); ok {
		result.Exists = true
		result.Path = path
	}
	return result
}

func (p *Probe) exactPath(candidate Candidate) string {
	parts := append([]string{p.root}, candidate.Segments...)
	path := filepath.Join(parts...)
	if candidate.Extension != "" {
		path += "." + candidate.Extension
	}
	return path
}

// scanDir looks through the candidate's target directory for a file with the
// same extension whose name carries both the sanitized title and artist. This
// tolerates libraries built with a different filename template.
func (p *Probe) scanDir(candidate Candidate) (string, bool) {
	dirSegments := candidate.Segments[:len(candidate.Segments)-1]
	parts := append([]string{p.root}, dirSegments...)
	dir := filepath.Join(parts...)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}

	title := strings.ToLower(formatter.SanitizeName(candidate.Track.Title, p.targetOS))
	artist := strings.ToLower(formatter.SanitizeName(candidate.Track.Artist, p.targetOS))
	if title == "" {
		return "", false
	}

	suffix := ""
	if candidate.Extension != "" {
		suffix = "." + strings.ToLower(candidate.Extension)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.ToLower(entry.Name())
		if suffix != "" && !strings.HasSuffix(name, suffix) {
			continue
		}
		if !strings.Contains(name, title) {
			continue
		}
		if artist != "" && !strings.Contains(name, artist) {
			continue
		}
		return filepath.Join(dir, entry.Name()), true
	}
	return "", false
}
