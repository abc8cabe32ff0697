// package manifest writes m3u playlist files referencing downloaded tracks.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tunegrab/internal/formatter"
)

// Entry is one playlist line: a resolved file plus display metadata.
type Entry struct {
	Path     string
	Title    string
	Artist   string
	Duration int // seconds, 0 when unknown
}

// Writer emits m3u manifests into the download directory.
type Writer struct {
	// Extended adds #EXTINF metadata lines ahead of each path.
	Extended bool

	// OS selects sanitization rules for the manifest filename.
	OS formatter.TargetOS
}

// Write creates <name>.m3u in dir listing the entries in order and returns
// the manifest path. Entry paths inside dir are written relative so the
// library stays portable; anything else keeps its absolute path.
func (w *Writer) Write(dir, name string, entries []Entry) (string, error) {
	if len(entries) == 0 {
		return "", fmt.Errorf("no entries to write")
	}

	filename := formatter.SanitizeName(name, w.OS) + ".m3u"
	path := filepath.Join(dir, filename)

	var b strings.Builder
	if w.Extended {
		b.WriteString("#EXTM3U\n")
	}

	for _, entry := range entries {
		if w.Extended {
			duration := entry.Duration
			if duration <= 0 {
				duration = -1
			}
			fmt.Fprintf(&b, "#EXTINF:%d,%s - %s\n", duration, entry.Artist, entry.Title)
		}
		b.WriteString(w.entryPath(dir, entry.Path))
		b.WriteByte('\n')
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create manifest directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}

	return path, nil
}

func (w *Writer) entryPath(dir, path string) string {
	rel, err := filepath.Rel(dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
