// package formatter resolves path templates for downloaded tracks.
//
// Templates are placeholder-bearing strings ("{artist}/{album}") mapped against
// track metadata to produce sanitized, OS-appropriate path segments. Resolution
// is a pure function of its inputs: no filesystem access, no side effects.
package formatter

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"tunegrab/internal/models"
)

// TargetOS selects the sanitization rules for a filesystem family.
type TargetOS string

const (
	OSWindows TargetOS = "windows"
	OSDarwin  TargetOS = "darwin"
	OSLinux   TargetOS = "linux"
)

// Filename presets recognized by [Config]. PresetCustom uses the
// user-supplied filename template verbatim.
const (
	PresetTitleArtist = "title-artist"
	PresetArtistTitle = "artist-title"
	PresetTitle       = "title"
	PresetCustom      = "custom"
)

// sepToken temporarily stands in for path separators found inside metadata
// values, so a value like "AC/DC" never splits into two segments. It is
// restored as a space after segmentation.
const sepToken = "\x00"

// windowsReserved lists device names that cannot be used as path segments on Windows.
var windowsReserved = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

var (
	multiSpace      = regexp.MustCompile(`\s+`)
	multiUnderscore = regexp.MustCompile(`_+`)
	danglingTrack   = regexp.MustCompile(`\{track\}(\.\s*|\s*-\s*|\s*)`)
)

// Config describes how folder and file names are derived from track metadata.
type Config struct {
	FolderTemplate     string   // segment-separated placeholder template, may be empty
	FilenamePreset     string   // one of the Preset* constants
	FilenameTemplate   string   // used when FilenamePreset == PresetCustom
	IncludeTrackNumber bool     // prefix preset filenames with a two-digit position
	OS                 TargetOS // sanitization target, defaults to OSLinux rules
}

// Input carries one track plus its batch context into template resolution.
type Input struct {
	Track    models.Track
	Playlist string // collection name, empty outside collection downloads
	Owner    string // collection owner
	Position int    // 1-based index of the track within the current batch
}

// position picks the numbering value for the {track} placeholder.
//
// When a template references {album} the layout is album-oriented and the
// track's own ordinal preserves canonical disc ordering; ad-hoc lists number
// sequentially by batch position instead.
func (c Config) position(in Input) int {
	albumLayout := strings.Contains(c.FolderTemplate, "{album}") ||
		(c.FilenamePreset == PresetCustom && strings.Contains(c.FilenameTemplate, "{album}"))
	if albumLayout && in.Track.TrackNumber > 0 {
		return in.Track.TrackNumber
	}
	return in.Position
}

// Folders resolves the folder template into sanitized path segments.
//
// Empty segments (all placeholders resolved to nothing) collapse away rather
// than producing stray directory levels.
func Folders(cfg Config, in Input) []string {
	if cfg.FolderTemplate == "" {
		return nil
	}

	expanded := substitute(cfg.FolderTemplate, in, cfg.position(in))

	var segments []string
	for _, raw := range strings.Split(expanded, "/") {
		restored := restoreSeparators(raw)
		if strings.TrimSpace(restored) == "" {
			continue
		}
		segments = append(segments, SanitizeName(restored, cfg.OS))
	}
	return segments
}

// Filename resolves the filename (without extension) for a track.
func Filename(cfg Config, in Input) string {
	position := cfg.position(in)

	var name string
	if cfg.FilenamePreset == PresetCustom && cfg.FilenameTemplate != "" {
		name = substitute(cfg.FilenameTemplate, in, position)
		if position <= 0 {
			name = danglingTrack.ReplaceAllString(name, "")
		}
	} else {
		title := in.Track.Title
		artist := in.Track.Artist
		switch cfg.FilenamePreset {
		case PresetArtistTitle:
			name = fmt.Sprintf("%s - %s", artist, title)
		case PresetTitle:
			name = title
		default:
			name = fmt.Sprintf("%s - %s", title, artist)
		}
		if cfg.IncludeTrackNumber && position > 0 {
			name = fmt.Sprintf("%02d. %s", position, name)
		}
	}

	return SanitizeName(restoreSeparators(name), cfg.OS)
}

// Resolve returns the full relative path segments (folders plus filename) for a track.
func Resolve(cfg Config, in Input) []string {
	return append(Folders(cfg, in), Filename(cfg, in))
}

// substitute expands every recognized placeholder against the track metadata.
//
// Textual values pass through escapeSeparators first so a separator inside a
// value can never introduce a segment boundary. Missing optional values
// substitute as empty strings.
func substitute(template string, in Input, position int) string {
	track := in.Track

	albumArtist := track.AlbumArtist
	if albumArtist == "" {
		albumArtist = track.Artist
	}

	year := ""
	if len(track.ReleaseDate) >= 4 {
		year = track.ReleaseDate[:4]
	}

	out := template
	out = strings.ReplaceAll(out, "{title}", escapeSeparators(track.Title))
	out = strings.ReplaceAll(out, "{artist}", escapeSeparators(track.Artist))
	out = strings.ReplaceAll(out, "{album}", escapeSeparators(track.Album))
	out = strings.ReplaceAll(out, "{album_artist}", escapeSeparators(albumArtist))
	out = strings.ReplaceAll(out, "{playlist}", escapeSeparators(in.Playlist))
	out = strings.ReplaceAll(out, "{creator}", escapeSeparators(in.Owner))
	out = strings.ReplaceAll(out, "{year}", year)
	out = strings.ReplaceAll(out, "{date}", escapeSeparators(track.ReleaseDate))
	out = strings.ReplaceAll(out, "{id}", escapeSeparators(track.ID))

	if track.DiscNumber > 0 {
		out = strings.ReplaceAll(out, "{disc}", fmt.Sprintf("%d", track.DiscNumber))
	} else {
		out = strings.ReplaceAll(out, "{disc}", "")
	}

	if position > 0 {
		out = strings.ReplaceAll(out, "{track}", fmt.Sprintf("%02d", position))
	}

	return out
}

func escapeSeparators(value string) string {
	value = strings.ReplaceAll(value, "/", sepToken)
	return strings.ReplaceAll(value, "\\", sepToken)
}

func restoreSeparators(value string) string {
	return strings.ReplaceAll(value, sepToken, " ")
}

// SanitizeName strips characters illegal on the target filesystem from a
// single path segment, trims surrounding junk, and avoids reserved device
// names. A name sanitized away entirely becomes "Unknown".
func SanitizeName(name string, target TargetOS) string {
	result := name

	switch target {
	case OSWindows:
		for _, ch := range []string{"\\", "/", ":", "*", "?", "\"", "<", ">", "|"} {
			result = strings.ReplaceAll(result, ch, " ")
		}
	case OSDarwin:
		result = strings.ReplaceAll(result, "/", " ")
		result = strings.ReplaceAll(result, ":", " ")
	default:
		result = strings.ReplaceAll(result, "/", " ")
	}

	var cleaned strings.Builder
	for _, r := range result {
		if r < 0x20 || r == 0x7F {
			continue
		}
		cleaned.WriteRune(r)
	}
	result = cleaned.String()

	result = multiSpace.ReplaceAllString(result, " ")
	result = multiUnderscore.ReplaceAllString(result, "_")
	result = strings.TrimSpace(result)
	result = strings.Trim(result, ". _")

	if target == OSWindows && windowsReserved[strings.ToUpper(result)] {
		result = "_" + result
	}

	if result == "" {
		return "Unknown"
	}

	if !utf8.ValidString(result) {
		result = strings.ToValidUTF8(result, "_")
	}

	return result
}
