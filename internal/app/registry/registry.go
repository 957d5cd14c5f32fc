// Package registry keeps an ordered model of the user's playlists in step with
// the notifications delivered by the streaming session.
//
// All mutations are expected to arrive through Run, which drains a single
// event channel and so serializes them. The collection is additionally
// guarded by a RWMutex so that readers such as the status server can take
// snapshots from other goroutines.
package registry

import (
	"context"
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/plsync/internal/domain/playlist"
	"github.com/osa030/plsync/internal/domain/track"
	"github.com/osa030/plsync/internal/infra/metrics"
)

// DefaultSection is the settings section holding sync preferences.
const DefaultSection = "syncPlaylists"

// Config holds registry configuration.
type Config struct {
	Section     string // Settings section for sync preferences
	SyncStarred bool   // Enable sync for the starred pseudo-playlist on container load
}

// Registry manages the playlist collection and the sync preferences.
type Registry struct {
	mu sync.RWMutex

	config   Config
	session  Session
	store    Store
	exporter Exporter

	playlists []*playlist.Playlist
	prefs     []playlist.SyncPreference
}

// New creates a new registry. Call Initialize before delivering events.
func New(cfg Config, session Session, store Store, exporter Exporter) *Registry {
	if cfg.Section == "" {
		cfg.Section = DefaultSection
	}
	return &Registry{
		config:    cfg,
		session:   session,
		store:     store,
		exporter:  exporter,
		playlists: make([]*playlist.Playlist, 0),
		prefs:     make([]playlist.SyncPreference, 0),
	}
}

// Initialize loads the persisted sync preferences in stored order and tries
// to activate each enabled one. A store failure is logged and leaves the
// preference set empty.
func (r *Registry) Initialize() {
	r.mu.Lock()
	defer r.mu.Unlock()

	prefs, err := r.store.ReadArray(r.config.Section)
	if err != nil {
		metrics.SettingsErrors.WithLabelValues("read").Inc()
		zlog.Warn().Err(err).Msgf("failed to read sync preferences: section=%s", r.config.Section)
		return
	}

	for _, p := range prefs {
		if playlist.IndexPreference(r.prefs, p.ID) >= 0 {
			continue
		}
		r.prefs = append(r.prefs, p)
		if p.Enabled {
			r.setSyncEnabledLocked(p.ID)
		}
	}
	zlog.Info().Msgf("loaded sync preferences: count=%d", len(r.prefs))
}

// Teardown removes callbacks and releases every playlist and track claim the
// registry holds. Release failures are logged and do not stop the walk.
func (r *Registry) Teardown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	zlog.Debug().Msgf("tearing down registry: playlists=%d", len(r.playlists))
	for _, p := range r.playlists {
		r.releaseLocked(p)
	}
	r.playlists = r.playlists[:0]
	metrics.Playlists.Set(0)
}

// Run applies events from ch until ch is closed or ctx is done.
func (r *Registry) Run(ctx context.Context, ch <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			r.Apply(ev)
		}
	}
}

// Apply dispatches a single event.
func (r *Registry) Apply(ev Event) {
	metrics.EventsApplied.WithLabelValues(ev.Type.String()).Inc()
	zlog.Debug().Msgf("applying event: type=%s playlist=%d", ev.Type, ev.Playlist)

	switch ev.Type {
	case EventPlaylistStateChanged, EventPlaylistAdded:
		r.OnPlaylistStateChanged(ev.Playlist)
	case EventSyncStateChanged:
		r.OnSyncStateChanged(ev.Playlist)
	case EventTracksAdded:
		r.AddTracks(ev.Playlist, ev.Tracks, ev.Position)
	case EventTracksRemoved:
		r.RemoveTracks(ev.Playlist, ev.Positions, ev.Count)
	case EventTracksMoved:
		r.MoveTracks(ev.Playlist, ev.Positions, ev.Count, ev.Position)
	case EventPlaylistMoved:
		r.MovePlaylist(ev.Playlist, ev.Position, ev.NewPosition)
	case EventPlaylistRemoved:
		r.RemovePlaylist(ev.Playlist)
	case EventLoadProgress:
		r.SetPlaylistLoadProgress(ev.Playlist, ev.Done)
	case EventContainerLoaded:
		r.OnContainerLoaded(ev.Playlists, ev.Playlist)
	case EventPreferencesChanged:
		r.ReloadPreferences()
	default:
		zlog.Warn().Msgf("ignoring unknown event type: %d", ev.Type)
	}
}

// OnPlaylistStateChanged adds h once the session reports it loaded.
func (r *Registry) OnPlaylistStateChanged(h playlist.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onStateChangedLocked(h)
}

func (r *Registry) onStateChangedLocked(h playlist.Handle) {
	if !r.session.IsPlaylistLoaded(h) {
		zlog.Debug().Msgf("playlist not loaded yet, waiting: playlist=%d", h)
		return
	}
	r.addOrRefreshLocked(h)
}

// OnSyncStateChanged exports the snapshot of a loaded, known playlist.
func (r *Registry) OnSyncStateChanged(h playlist.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.session.IsPlaylistLoaded(h) {
		zlog.Debug().Msgf("synced playlist not loaded yet, waiting: playlist=%d", h)
		return
	}
	idx := r.indexOf(h)
	if idx < 0 {
		return
	}
	r.exportLocked(r.playlists[idx])
}

// OnContainerLoaded handles every playlist of a freshly loaded container and
// then the starred pseudo-playlist, enabling sync for it when configured.
// A starred playlist that is not loaded yet gets its preference recorded, so
// sync is restored when it is added.
func (r *Registry) OnContainerLoaded(handles []playlist.Handle, starred playlist.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, h := range handles {
		r.onStateChangedLocked(h)
	}
	if starred == 0 {
		return
	}
	r.onStateChangedLocked(starred)
	if !r.config.SyncStarred {
		return
	}
	id := r.session.LinkString(starred)
	if id == "" {
		return
	}
	if r.indexOfID(id) < 0 {
		r.recordPreferenceLocked(id)
		return
	}
	r.setSyncEnabledLocked(id)
}

// AddOrRefreshPlaylist appends a snapshot of h unless the registry already
// holds the same playlist.
func (r *Registry) AddOrRefreshPlaylist(h playlist.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addOrRefreshLocked(h)
}

func (r *Registry) addOrRefreshLocked(h playlist.Handle) {
	if r.indexOf(h) >= 0 {
		return
	}

	p := &playlist.Playlist{
		ID:     r.session.LinkString(h),
		Name:   r.session.PlaylistName(h),
		Handle: h,
	}
	if playlist.IsStarredID(p.ID) {
		p.Name = playlist.StarredName
		p.IsStarredContainer = true
	}

	n := r.session.PlaylistTrackCount(h)
	p.Tracks = make([]track.Handle, 0, n)
	for i := 0; i < n; i++ {
		t := r.session.PlaylistTrackAt(h, i)
		r.session.AcquireTrack(t)
		p.Tracks = append(p.Tracks, t)
	}
	p.IsLoaded = true

	r.playlists = append(r.playlists, p)
	metrics.Playlists.Set(float64(len(r.playlists)))
	zlog.Debug().Msgf("added playlist: id=%s name=%q tracks=%d", p.ID, p.Name, n)

	if i := playlist.IndexPreference(r.prefs, p.ID); i >= 0 && r.prefs[i].Enabled {
		zlog.Debug().Msgf("restoring sync for playlist: id=%s", p.ID)
		r.setSyncEnabledLocked(p.ID)
	}
}

// MovePlaylist relocates the playlist at oldPosition to newPosition.
// Nothing happens if h is unknown or either position is out of range.
func (r *Registry) MovePlaylist(h playlist.Handle, oldPosition, newPosition int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOf(h) < 0 {
		return
	}
	n := len(r.playlists)
	if newPosition < 0 || newPosition >= n || oldPosition < 0 || oldPosition >= n {
		return
	}
	r.playlists = move(r.playlists, oldPosition, newPosition)
}

// RemovePlaylist drops h from the collection and releases its claims.
func (r *Registry) RemovePlaylist(h playlist.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(h)
	if idx < 0 {
		return
	}
	p := r.playlists[idx]
	r.releaseLocked(p)
	r.playlists = append(r.playlists[:idx], r.playlists[idx+1:]...)
	metrics.Playlists.Set(float64(len(r.playlists)))
	zlog.Debug().Msgf("removed playlist: id=%s", p.ID)
}

// SetPlaylistLoadProgress records whether h is fully loaded. A synced
// playlist is exported when it goes from loading to loaded.
func (r *Registry) SetPlaylistLoadProgress(h playlist.Handle, done bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(h)
	if idx < 0 {
		return
	}
	p := r.playlists[idx]
	wasLoaded := p.IsLoaded
	p.IsLoaded = done
	if done && !wasLoaded && p.IsSynced {
		r.exportLocked(p)
	}
}

// Playlists returns copies of all playlists in collection order.
func (r *Registry) Playlists() []playlist.Playlist {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]playlist.Playlist, 0, len(r.playlists))
	for _, p := range r.playlists {
		result = append(result, p.Clone())
	}
	return result
}

// Playlist returns a copy of the playlist with the given id.
func (r *Registry) Playlist(id string) (playlist.Playlist, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx := r.indexOfID(id)
	if idx < 0 {
		return playlist.Playlist{}, false
	}
	return r.playlists[idx].Clone(), true
}

// Len returns the number of playlists.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.playlists)
}

// indexOf resolves h to a position in the collection. The id derived from
// h's link is matched first; if no playlist carries it, a playlist recorded
// with the same handle is returned (its link may have changed since it was
// added). The stored handle is not rebound on an id-only match, so claims
// are always released through the handle they were taken on.
func (r *Registry) indexOf(h playlist.Handle) int {
	if id := r.session.LinkString(h); id != "" {
		if idx := r.indexOfID(id); idx >= 0 {
			if r.playlists[idx].Handle != h {
				zlog.Debug().Msgf("playlist matched by id with a different handle: id=%s stored=%d got=%d", id, r.playlists[idx].Handle, h)
			}
			return idx
		}
	}
	for i, p := range r.playlists {
		if p.Handle == h {
			return i
		}
	}
	return -1
}

func (r *Registry) indexOfID(id string) int {
	for i, p := range r.playlists {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// releaseLocked drops the callbacks and every claim held for p.
func (r *Registry) releaseLocked(p *playlist.Playlist) {
	if err := r.session.RemoveCallbacks(p.Handle); err != nil {
		metrics.ReleaseFailures.Inc()
		zlog.Warn().Err(err).Msgf("failed to remove callbacks: id=%s", p.ID)
	}
	r.releaseTracksLocked(p, p.Tracks)
	p.Tracks = p.Tracks[:0]
	if err := r.session.ReleasePlaylist(p.Handle); err != nil {
		metrics.ReleaseFailures.Inc()
		zlog.Warn().Err(err).Msgf("failed to release playlist: id=%s", p.ID)
	}
}

func (r *Registry) exportLocked(p *playlist.Playlist) {
	zlog.Info().Msgf("exporting playlist: id=%s name=%q tracks=%d", p.ID, p.Name, len(p.Tracks))
	r.exporter.Export(p.Clone())
}
