package registry

import (
	"github.com/osa030/plsync/internal/domain/playlist"
	"github.com/osa030/plsync/internal/domain/track"
)

// Session is the capability boundary of the streaming session that owns
// playlist and track objects.
type Session interface {
	// IsPlaylistLoaded reports the session's own readiness flag.
	IsPlaylistLoaded(h playlist.Handle) bool
	PlaylistName(h playlist.Handle) string
	PlaylistTrackCount(h playlist.Handle) int
	// PlaylistTrackAt returns the zero Handle when i is out of range.
	PlaylistTrackAt(h playlist.Handle, i int) track.Handle
	// LinkString returns the canonical link of h, or "" if it has none yet.
	LinkString(h playlist.Handle) string

	AcquireTrack(t track.Handle)
	ReleaseTrack(t track.Handle) error
	ReleasePlaylist(h playlist.Handle) error

	// RegisterSyncCallbacks subscribes h to sync-state notifications.
	RegisterSyncCallbacks(h playlist.Handle)
	// RemoveCallbacks drops every subscription held for h.
	RemoveCallbacks(h playlist.Handle) error
}

// Store persists sync preferences as an ordered array per section.
type Store interface {
	ReadArray(section string) ([]playlist.SyncPreference, error)
	// WriteArray replaces the whole section.
	WriteArray(section string, prefs []playlist.SyncPreference) error
}

// Exporter receives a read-only snapshot of a synced playlist once it has
// finished loading. Implementations must not block.
type Exporter interface {
	Export(p playlist.Playlist)
}
