package registry

import (
	"github.com/osa030/plsync/internal/domain/playlist"
	"github.com/osa030/plsync/internal/domain/track"
)

// EventType represents a registry event type.
type EventType int

const (
	EventPlaylistStateChanged EventType = iota // Playlist readiness changed
	EventSyncStateChanged                      // Synced playlist changed
	EventTracksAdded                           // Tracks inserted at Position
	EventTracksRemoved                         // Count tracks removed at Positions
	EventTracksMoved                           // Count tracks at Positions moved to Position
	EventPlaylistAdded                         // Playlist added to the container
	EventPlaylistMoved                         // Playlist moved from Position to NewPosition
	EventPlaylistRemoved                       // Playlist removed from the container
	EventLoadProgress                          // Playlist update in progress (Done=false) or finished
	EventContainerLoaded                       // Container ready; Playlists lists it, Playlist is the starred one
	EventPreferencesChanged                    // Settings store changed outside the registry
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventPlaylistStateChanged:
		return "playlist_state_changed"
	case EventSyncStateChanged:
		return "sync_state_changed"
	case EventTracksAdded:
		return "tracks_added"
	case EventTracksRemoved:
		return "tracks_removed"
	case EventTracksMoved:
		return "tracks_moved"
	case EventPlaylistAdded:
		return "playlist_added"
	case EventPlaylistMoved:
		return "playlist_moved"
	case EventPlaylistRemoved:
		return "playlist_removed"
	case EventLoadProgress:
		return "load_progress"
	case EventContainerLoaded:
		return "container_loaded"
	case EventPreferencesChanged:
		return "preferences_changed"
	default:
		return "unknown"
	}
}

// Event represents a notification delivered to the registry.
// Only the fields relevant to Type are set.
type Event struct {
	Type        EventType
	Playlist    playlist.Handle
	Tracks      []track.Handle    // tracks_added
	Positions   []int             // tracks_removed, tracks_moved
	Count       int               // tracks_removed, tracks_moved
	Position    int               // tracks_added insert, tracks_moved destination, playlist_moved source
	NewPosition int               // playlist_moved
	Done        bool              // load_progress
	Playlists   []playlist.Handle // container_loaded
}

// PlaylistStateChanged reports that the readiness of h changed.
func PlaylistStateChanged(h playlist.Handle) Event {
	return Event{Type: EventPlaylistStateChanged, Playlist: h}
}

// SyncStateChanged reports that a synced playlist h was updated.
func SyncStateChanged(h playlist.Handle) Event {
	return Event{Type: EventSyncStateChanged, Playlist: h}
}

// TracksAdded reports tracks inserted into h starting at position.
func TracksAdded(h playlist.Handle, tracks []track.Handle, position int) Event {
	return Event{Type: EventTracksAdded, Playlist: h, Tracks: tracks, Position: position}
}

// TracksRemoved reports count removals from h, read against the shrinking list.
func TracksRemoved(h playlist.Handle, positions []int, count int) Event {
	return Event{Type: EventTracksRemoved, Playlist: h, Positions: positions, Count: count}
}

// TracksMoved reports count tracks of h moved as a block to destination.
func TracksMoved(h playlist.Handle, positions []int, count, destination int) Event {
	return Event{Type: EventTracksMoved, Playlist: h, Positions: positions, Count: count, Position: destination}
}

// PlaylistAdded reports h added to the container at position.
func PlaylistAdded(h playlist.Handle, position int) Event {
	return Event{Type: EventPlaylistAdded, Playlist: h, Position: position}
}

// PlaylistMoved reports h moved from oldPosition to newPosition.
func PlaylistMoved(h playlist.Handle, oldPosition, newPosition int) Event {
	return Event{Type: EventPlaylistMoved, Playlist: h, Position: oldPosition, NewPosition: newPosition}
}

// PlaylistRemoved reports h removed from the container at position.
func PlaylistRemoved(h playlist.Handle, position int) Event {
	return Event{Type: EventPlaylistRemoved, Playlist: h, Position: position}
}

// LoadProgress reports whether h finished loading.
func LoadProgress(h playlist.Handle, done bool) Event {
	return Event{Type: EventLoadProgress, Playlist: h, Done: done}
}

// ContainerLoaded reports the loaded container playlists and the starred playlist.
func ContainerLoaded(playlists []playlist.Handle, starred playlist.Handle) Event {
	return Event{Type: EventContainerLoaded, Playlists: playlists, Playlist: starred}
}

// PreferencesChanged reports that the settings store was edited by another writer.
func PreferencesChanged() Event {
	return Event{Type: EventPreferencesChanged}
}
