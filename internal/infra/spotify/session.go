package spotify

import (
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/plsync/internal/domain/playlist"
	"github.com/osa030/plsync/internal/domain/track"
)

// Errors
var (
	ErrUnknownHandle = errors.New("unknown handle")
	ErrNotReferenced = errors.New("track is not referenced")
)

type playlistState struct {
	link     string
	name     string
	snapshot string
	loaded   bool
	attached bool // Still part of the user's library
	tracks   []track.Handle
}

type trackState struct {
	track track.Track
	owned int // Occurrences in session playlists
	refs  int // Claims taken through AcquireTrack
}

// Session mirrors the user's library as handle-based playlist and track
// objects. Registry-facing methods are safe for concurrent use with the
// poller that feeds it.
type Session struct {
	mu sync.Mutex

	nextPlaylist playlist.Handle
	nextTrack    track.Handle

	playlists  map[playlist.Handle]*playlistState
	byLink     map[string]playlist.Handle
	tracks     map[track.Handle]*trackState
	trackByURI map[string]track.Handle

	subscribed map[playlist.Handle]bool
	pending    []playlist.Handle
	notify     chan struct{} // Signalled when pending grows
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{
		playlists:  make(map[playlist.Handle]*playlistState),
		byLink:     make(map[string]playlist.Handle),
		tracks:     make(map[track.Handle]*trackState),
		trackByURI: make(map[string]track.Handle),
		subscribed: make(map[playlist.Handle]bool),
		notify:     make(chan struct{}, 1),
	}
}

// IsPlaylistLoaded reports whether the tracks of h have been fetched.
func (s *Session) IsPlaylistLoaded(h playlist.Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.playlists[h]
	return ok && p.loaded
}

func (s *Session) PlaylistName(h playlist.Handle) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.playlists[h]; ok {
		return p.name
	}
	return ""
}

func (s *Session) PlaylistTrackCount(h playlist.Handle) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.playlists[h]; ok {
		return len(p.tracks)
	}
	return 0
}

// PlaylistTrackAt returns the zero Handle when i is out of range.
func (s *Session) PlaylistTrackAt(h playlist.Handle, i int) track.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.playlists[h]
	if !ok || i < 0 || i >= len(p.tracks) {
		return 0
	}
	return p.tracks[i]
}

func (s *Session) LinkString(h playlist.Handle) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.playlists[h]; ok {
		return p.link
	}
	return ""
}

// AcquireTrack takes a claim on t. Unknown handles are ignored.
func (s *Session) AcquireTrack(t track.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.tracks[t]
	if !ok {
		zlog.Warn().Msgf("acquire on unknown track: handle=%d", t)
		return
	}
	ts.refs++
}

// ReleaseTrack drops a claim taken with AcquireTrack.
func (s *Session) ReleaseTrack(t track.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.tracks[t]
	if !ok {
		return errors.Wrapf(ErrUnknownHandle, "track %d", t)
	}
	if ts.refs == 0 {
		return errors.Wrapf(ErrNotReferenced, "track %d", t)
	}
	ts.refs--
	s.collectTrackLocked(t, ts)
	return nil
}

// ReleasePlaylist forgets h once it has left the library. A playlist that is
// still attached stays known so that it can be added again.
func (s *Session) ReleasePlaylist(h playlist.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.playlists[h]
	if !ok {
		return errors.Wrapf(ErrUnknownHandle, "playlist %d", h)
	}
	if p.attached {
		return nil
	}
	delete(s.playlists, h)
	if s.byLink[p.link] == h {
		delete(s.byLink, p.link)
	}
	return nil
}

// RegisterSyncCallbacks subscribes h and queues one sync notification,
// signalling the poller that it can be sent.
func (s *Session) RegisterSyncCallbacks(h playlist.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.playlists[h]; !ok {
		zlog.Warn().Msgf("sync subscription for unknown playlist: handle=%d", h)
		return
	}
	s.subscribed[h] = true
	for _, p := range s.pending {
		if p == h {
			return
		}
	}
	s.pending = append(s.pending, h)
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// RemoveCallbacks drops the subscriptions of h.
func (s *Session) RemoveCallbacks(h playlist.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.playlists[h]; !ok {
		return errors.Wrapf(ErrUnknownHandle, "playlist %d", h)
	}
	delete(s.subscribed, h)
	for i, p := range s.pending {
		if p == h {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			break
		}
	}
	return nil
}

// Track returns the metadata behind t.
func (s *Session) Track(t track.Handle) (track.Track, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.tracks[t]
	if !ok {
		return track.Track{}, false
	}
	return ts.track, true
}

// Subscribed reports whether h has sync callbacks registered.
func (s *Session) Subscribed(h playlist.Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribed[h]
}

// lookup returns the handle carrying link.
func (s *Session) lookup(link string) (playlist.Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.byLink[link]
	return h, ok
}

// attach creates or revives the playlist for link. It starts unloaded.
func (s *Session) attach(link, name string) playlist.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.byLink[link]; ok {
		p := s.playlists[h]
		p.name = name
		p.attached = true
		return h
	}
	s.nextPlaylist++
	h := s.nextPlaylist
	s.playlists[h] = &playlistState{link: link, name: name, attached: true}
	s.byLink[link] = h
	return h
}

// load replaces the tracks of h and marks it loaded. It returns the number of
// tracks h held before and the new track handles.
func (s *Session) load(h playlist.Handle, name, snapshot string, tracks []track.Track) (int, []track.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.playlists[h]
	if !ok {
		return 0, nil
	}
	handles := make([]track.Handle, len(tracks))
	for i, t := range tracks {
		handles[i] = s.internTrackLocked(t)
	}
	old := len(p.tracks)
	s.disownLocked(p)

	p.name = name
	p.snapshot = snapshot
	p.tracks = handles
	p.loaded = true
	return old, append([]track.Handle(nil), handles...)
}

// detach marks h as gone from the library and drops the tracks it owns.
func (s *Session) detach(h playlist.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.playlists[h]
	if !ok {
		return
	}
	s.disownLocked(p)
	p.tracks = nil
	p.loaded = false
	p.attached = false
}

func (s *Session) snapshot(h playlist.Handle) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.playlists[h]
	if !ok {
		return "", false
	}
	return p.snapshot, p.loaded
}

// drainPending returns and clears the queued sync notifications.
// pendingReady is signalled after a sync subscription queues a notification.
func (s *Session) pendingReady() <-chan struct{} {
	return s.notify
}

func (s *Session) drainPending() []playlist.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := s.pending
	s.pending = nil
	return pending
}

func (s *Session) internTrackLocked(t track.Track) track.Handle {
	key := t.URI
	if key == "" {
		key = t.ID
	}
	if h, ok := s.trackByURI[key]; ok {
		ts := s.tracks[h]
		ts.track = t
		ts.owned++
		return h
	}
	s.nextTrack++
	h := s.nextTrack
	s.tracks[h] = &trackState{track: t, owned: 1}
	s.trackByURI[key] = h
	return h
}

func (s *Session) disownLocked(p *playlistState) {
	for _, t := range p.tracks {
		ts, ok := s.tracks[t]
		if !ok {
			continue
		}
		if ts.owned > 0 {
			ts.owned--
		}
		s.collectTrackLocked(t, ts)
	}
}

func (s *Session) collectTrackLocked(h track.Handle, ts *trackState) {
	if ts.owned > 0 || ts.refs > 0 {
		return
	}
	delete(s.tracks, h)
	key := ts.track.URI
	if key == "" {
		key = ts.track.ID
	}
	if s.trackByURI[key] == h {
		delete(s.trackByURI, key)
	}
}
