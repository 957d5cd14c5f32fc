package filter

import (
	"regexp"
	"strings"

	"github.com/osa030/plsync/internal/domain/track"
)

const codeDuplicateTrack = "duplicate_track"

var (
	remasterPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*-?\s*\d{4}\s+remaster(ed)?`),      // "- 2011 Remaster"
		regexp.MustCompile(`\s*\(remaster(ed)?\s*\d{0,4}\)`),     // "(Remastered 2023)"
		regexp.MustCompile(`\s*\[remaster(ed)?\s*\d{0,4}\]`),     // "[Remastered]"
		regexp.MustCompile(`\s*-?\s*remaster(ed)?(\s+version)?`), // "- Remastered"
		regexp.MustCompile(`\s*\(.*?remaster.*?\)`),              // "(Any Remaster text)"
		regexp.MustCompile(`\s*\[.*?remaster.*?\]`),              // "[Any Remaster text]"
	}
	versionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*\(.*?version\)`),        // "(Single Version)"
		regexp.MustCompile(`\s*\(.*?edit\)`),           // "(Radio Edit)"
		regexp.MustCompile(`\s+-\s+live\b.*$`),         // "- Live", "- Live at Wembley"
		regexp.MustCompile(`\s*\(live\b[^)]*\)`),       // "(Live)", "(Live in Tokyo)"
		regexp.MustCompile(`\s*-?\s*radio\s+edit`),     // "- Radio Edit"
		regexp.MustCompile(`\s*-?\s*single\s+version`), // "- Single Version"
	}
	spaces = regexp.MustCompile(`\s+`)
)

// DuplicateTrackFilter drops tracks already exported earlier in the same
// playlist.
// Detects:
// - Exact track ID matches
// - Remasters (normalized track name + same artist)
// Excludes:
// - Cover songs (same track name but different artist)
type DuplicateTrackFilter struct{}

// NewDuplicateTrackFilter creates a new duplicate track filter.
func NewDuplicateTrackFilter() *DuplicateTrackFilter {
	return &DuplicateTrackFilter{}
}

// Name returns the filter name.
func (f *DuplicateTrackFilter) Name() string {
	return "duplicate_track_filter"
}

// Description returns the filter description.
func (f *DuplicateTrackFilter) Description() string {
	return "Drops repeated tracks, remasters included. Covers by other artists are kept"
}

// ReturnCodes returns possible return codes.
func (f *DuplicateTrackFilter) ReturnCodes() []string {
	return []string{codeDuplicateTrack}
}

// ValidateConfig validates the filter configuration.
func (f *DuplicateTrackFilter) ValidateConfig(map[string]any) error {
	// No configuration needed
	return nil
}

// Check rejects t when an accepted track is the same recording or a
// remaster of it.
func (f *DuplicateTrackFilter) Check(t track.Track, accepted []track.Track) Result {
	for _, prev := range accepted {
		if t.ID != "" && prev.ID == t.ID {
			return Reject(codeDuplicateTrack)
		}
		if isRemaster(prev, t) {
			return Reject(codeDuplicateTrack)
		}
	}
	return Accept()
}

// isRemaster checks if two tracks are the same song (remaster/different version).
func isRemaster(track1, track2 track.Track) bool {
	if normalizeTrackName(track1.Name) != normalizeTrackName(track2.Name) {
		return false
	}
	// Different artists means a cover
	return isSameArtist(track1, track2)
}

// normalizeTrackName removes remaster information and version details.
func normalizeTrackName(name string) string {
	normalized := strings.ToLower(name)

	for _, pattern := range remasterPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}
	for _, pattern := range versionPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}

	normalized = strings.TrimSpace(normalized)
	normalized = spaces.ReplaceAllString(normalized, " ")
	return strings.TrimRight(normalized, " -")
}

// isSameArtist checks if two tracks have the same main artist.
func isSameArtist(track1, track2 track.Track) bool {
	if len(track1.Artists) == 0 || len(track2.Artists) == 0 {
		return false
	}
	return strings.EqualFold(track1.Artists[0], track2.Artists[0])
}

func init() {
	Register("duplicate_track_filter", func() Filter {
		return NewDuplicateTrackFilter()
	})
}
