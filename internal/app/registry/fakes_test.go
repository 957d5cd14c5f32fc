package registry

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/plsync/internal/domain/playlist"
	"github.com/osa030/plsync/internal/domain/track"
)

var errFake = errors.New("fake failure")

type fakePlaylist struct {
	link   string
	name   string
	loaded bool
	tracks []track.Handle
}

// fakeSession is an in-memory Session with reference accounting.
type fakeSession struct {
	playlists map[playlist.Handle]*fakePlaylist
	refs      map[track.Handle]int

	released         map[playlist.Handle]int
	syncRegistered   map[playlist.Handle]int
	callbacksRemoved map[playlist.Handle]int

	failReleases bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		playlists:        make(map[playlist.Handle]*fakePlaylist),
		refs:             make(map[track.Handle]int),
		released:         make(map[playlist.Handle]int),
		syncRegistered:   make(map[playlist.Handle]int),
		callbacksRemoved: make(map[playlist.Handle]int),
	}
}

func (s *fakeSession) add(h playlist.Handle, link, name string, tracks ...track.Handle) *fakePlaylist {
	p := &fakePlaylist{link: link, name: name, loaded: true, tracks: tracks}
	s.playlists[h] = p
	return p
}

func (s *fakeSession) IsPlaylistLoaded(h playlist.Handle) bool {
	p, ok := s.playlists[h]
	return ok && p.loaded
}

func (s *fakeSession) PlaylistName(h playlist.Handle) string {
	if p, ok := s.playlists[h]; ok {
		return p.name
	}
	return ""
}

func (s *fakeSession) PlaylistTrackCount(h playlist.Handle) int {
	if p, ok := s.playlists[h]; ok {
		return len(p.tracks)
	}
	return 0
}

func (s *fakeSession) PlaylistTrackAt(h playlist.Handle, i int) track.Handle {
	p, ok := s.playlists[h]
	if !ok || i < 0 || i >= len(p.tracks) {
		return 0
	}
	return p.tracks[i]
}

func (s *fakeSession) LinkString(h playlist.Handle) string {
	if p, ok := s.playlists[h]; ok {
		return p.link
	}
	return ""
}

func (s *fakeSession) AcquireTrack(t track.Handle) {
	s.refs[t]++
}

func (s *fakeSession) ReleaseTrack(t track.Handle) error {
	if s.failReleases {
		return errFake
	}
	if s.refs[t] == 0 {
		return errors.Newf("track %d not referenced", t)
	}
	s.refs[t]--
	return nil
}

func (s *fakeSession) ReleasePlaylist(h playlist.Handle) error {
	s.released[h]++
	if s.failReleases {
		return errFake
	}
	return nil
}

func (s *fakeSession) RegisterSyncCallbacks(h playlist.Handle) {
	s.syncRegistered[h]++
}

func (s *fakeSession) RemoveCallbacks(h playlist.Handle) error {
	s.callbacksRemoved[h]++
	if s.failReleases {
		return errFake
	}
	return nil
}

// outstanding returns the total number of track references still held.
func (s *fakeSession) outstanding() int {
	total := 0
	for _, n := range s.refs {
		total += n
	}
	return total
}

// fakeStore is a Store backed by a map.
type fakeStore struct {
	sections map[string][]playlist.SyncPreference
	writes   int
	readErr  error
	writeErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{sections: make(map[string][]playlist.SyncPreference)}
}

func (s *fakeStore) ReadArray(section string) ([]playlist.SyncPreference, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	prefs := s.sections[section]
	result := make([]playlist.SyncPreference, len(prefs))
	copy(result, prefs)
	return result, nil
}

func (s *fakeStore) WriteArray(section string, prefs []playlist.SyncPreference) error {
	s.writes++
	if s.writeErr != nil {
		return s.writeErr
	}
	stored := make([]playlist.SyncPreference, len(prefs))
	copy(stored, prefs)
	s.sections[section] = stored
	return nil
}

// fakeExporter records exported snapshots.
type fakeExporter struct {
	exported []playlist.Playlist
}

func (e *fakeExporter) Export(p playlist.Playlist) {
	e.exported = append(e.exported, p)
}

func (e *fakeExporter) ids() []string {
	ids := make([]string, len(e.exported))
	for i, p := range e.exported {
		ids[i] = p.ID
	}
	return ids
}

type fixture struct {
	session  *fakeSession
	store    *fakeStore
	exporter *fakeExporter
	registry *Registry
}

func newFixture() *fixture {
	f := &fixture{
		session:  newFakeSession(),
		store:    newFakeStore(),
		exporter: &fakeExporter{},
	}
	f.registry = New(Config{}, f.session, f.store, f.exporter)
	return f
}

func (f *fixture) tracksOf(id string) []track.Handle {
	p, ok := f.registry.Playlist(id)
	if !ok {
		return nil
	}
	return p.Tracks
}
