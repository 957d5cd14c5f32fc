package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/plsync/internal/domain/playlist"
	"github.com/osa030/plsync/internal/domain/track"
)

const (
	linkA = "spotify:user:alice:playlist:aaaaaaaaaaaaaaaaaaaaaa"
	linkB = "spotify:user:alice:playlist:bbbbbbbbbbbbbbbbbbbbbb"
)

type fakeRegistry struct {
	playlists []playlist.Playlist
	prefs     []playlist.SyncPreference
}

func (r *fakeRegistry) Playlists() []playlist.Playlist {
	return r.playlists
}

func (r *fakeRegistry) Playlist(id string) (playlist.Playlist, bool) {
	for _, p := range r.playlists {
		if p.ID == id {
			return p, true
		}
	}
	return playlist.Playlist{}, false
}

func (r *fakeRegistry) Preferences() []playlist.SyncPreference {
	return r.prefs
}

func (r *fakeRegistry) SetSyncEnabled(id string) {
	for i := range r.playlists {
		if r.playlists[i].ID == id {
			r.playlists[i].IsSynced = true
			r.prefs = append(r.prefs, playlist.SyncPreference{ID: id, Enabled: true})
		}
	}
}

type fakeTracks map[track.Handle]track.Track

func (f fakeTracks) Track(h track.Handle) (track.Track, bool) {
	t, ok := f[h]
	return t, ok
}

func newTestHandler() (*Handler, *fakeRegistry) {
	reg := &fakeRegistry{
		playlists: []playlist.Playlist{
			{ID: linkA, Name: "Road Trip", IsLoaded: true, IsSynced: true, Tracks: []track.Handle{1, 2, 3}},
			{ID: linkB, Name: "Focus", IsLoaded: true},
		},
		prefs: []playlist.SyncPreference{{ID: linkA, Enabled: true}},
	}
	tracks := fakeTracks{
		1: {URI: "spotify:track:1", Name: "One", Artists: []string{"A"}},
		3: {URI: "spotify:track:3", Name: "Three", Artists: []string{"C"}},
	}
	return NewHandler(reg, tracks, "secret"), reg
}

func do(t *testing.T, h http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_ListPlaylists(t *testing.T) {
	h, _ := newTestHandler()

	rec := do(t, h, http.MethodGet, "/playlists", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var views []PlaylistView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 2)
	assert.Equal(t, PlaylistView{ID: linkA, Name: "Road Trip", Synced: true, Loaded: true, TrackCount: 3}, views[0])
	assert.Equal(t, linkB, views[1].ID)
}

func TestHandler_GetPlaylist(t *testing.T) {
	h, _ := newTestHandler()

	rec := do(t, h, http.MethodGet, "/playlists/"+url.PathEscape(linkA), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view PlaylistView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, 3, view.TrackCount)
	assert.Equal(t, []TrackView{
		{URI: "spotify:track:1", Name: "One", Artists: []string{"A"}},
		{URI: "spotify:track:3", Name: "Three", Artists: []string{"C"}},
	}, view.Tracks)

	rec = do(t, h, http.MethodGet, "/playlists/spotify:user:alice:playlist:missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "playlist not found"))
}

func TestHandler_EnableSync(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		token    string
		wantCode int
	}{
		{name: "missing token", id: linkB, token: "", wantCode: http.StatusUnauthorized},
		{name: "wrong token", id: linkB, token: "guess", wantCode: http.StatusUnauthorized},
		{name: "unknown playlist", id: "spotify:user:alice:playlist:x", token: "secret", wantCode: http.StatusNotFound},
		{name: "enabled", id: linkB, token: "secret", wantCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, reg := newTestHandler()
			rec := do(t, h, http.MethodPost, "/playlists/"+tt.id+"/sync", map[string]string{AdminTokenHeader: tt.token})
			assert.Equal(t, tt.wantCode, rec.Code)

			p, _ := reg.Playlist(linkB)
			assert.Equal(t, tt.wantCode == http.StatusOK, p.IsSynced)
		})
	}
}

func TestHandler_EnableSyncWithoutConfiguredToken(t *testing.T) {
	reg := &fakeRegistry{playlists: []playlist.Playlist{{ID: linkB}}}
	h := NewHandler(reg, nil, "")

	rec := do(t, h, http.MethodPost, "/playlists/"+linkB+"/sync", map[string]string{AdminTokenHeader: "anything"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_ListPreferences(t *testing.T) {
	h, _ := newTestHandler()

	rec := do(t, h, http.MethodGet, "/preferences", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":"`+linkA+`","sync":true}]`, rec.Body.String())
}

func TestHandler_HealthAndMetrics(t *testing.T) {
	h, _ := newTestHandler()

	rec := do(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	rec = do(t, h, http.MethodDelete, "/playlists", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
