// Package playlist provides the Playlist domain entity and its persisted
// sync preference.
package playlist

import (
	"strings"

	"github.com/osa030/plsync/internal/domain/track"
)

// Handle is an opaque reference to a playlist object owned by the session.
// The zero Handle never refers to a playlist.
type Handle uint64

const (
	// StarredSentinel replaces the playlist hash in the link of the user's
	// starred tracks.
	StarredSentinel = "0000000000000000000000"

	// StarredName is the fixed display name of the starred pseudo-playlist.
	StarredName = "Starred Tracks"
)

// Playlist is a loaded snapshot of a session playlist.
type Playlist struct {
	ID                 string         // Canonical link (spotify:user:...:playlist:...)
	Name               string         // Display name
	IsStarredContainer bool           // True only for the starred pseudo-playlist
	IsSynced           bool           // Sync/export enabled
	IsLoaded           bool           // Metadata and tracks fully populated
	Tracks             []track.Handle // Ordered track references
	Handle             Handle         // Back-reference to the session playlist
}

// IsStarredID reports whether id carries the starred sentinel.
func IsStarredID(id string) bool {
	return strings.Contains(id, StarredSentinel)
}

// StarredID returns the link of the starred pseudo-playlist of user.
func StarredID(user string) string {
	return "spotify:user:" + user + ":playlist:" + StarredSentinel
}

// Clone returns a copy that shares no track storage with p.
func (p *Playlist) Clone() Playlist {
	c := *p
	c.Tracks = make([]track.Handle, len(p.Tracks))
	copy(c.Tracks, p.Tracks)
	return c
}

// TrackCount returns the number of tracks in the playlist.
func (p *Playlist) TrackCount() int {
	return len(p.Tracks)
}
