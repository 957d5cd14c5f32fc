// Package track provides the Track domain entity.
package track

import (
	"strings"
	"time"
)

// Handle is an opaque reference to a track object owned by the session.
// The zero Handle never refers to a track.
type Handle uint64

// Track represents the metadata of a Spotify track.
// Contains only information retrieved from Spotify API.
type Track struct {
	ID       string        // Spotify Track ID
	URI      string        // Spotify URI (spotify:track:...)
	Name     string        // Track name
	Artists  []string      // Artist names
	Album    string        // Album name
	Duration time.Duration // Track duration
	URL      string        // Spotify URL
}

// ArtistLine returns the artist names joined for display.
func (t *Track) ArtistLine() string {
	return strings.Join(t.Artists, ", ")
}

// Title returns "Artists - Name", or just the name when no artist is known.
func (t *Track) Title() string {
	if len(t.Artists) == 0 {
		return t.Name
	}
	return t.ArtistLine() + " - " + t.Name
}
