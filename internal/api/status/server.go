// Package status exposes the registry over HTTP as read-mostly JSON
// endpoints, plus Prometheus metrics.
package status

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/osa030/plsync/internal/domain/playlist"
	"github.com/osa030/plsync/internal/domain/track"
)

// AdminTokenHeader is the header name for admin authentication token.
const AdminTokenHeader = "X-Admin-Token"

// Registry is the view of the playlist registry served by the handler.
type Registry interface {
	Playlists() []playlist.Playlist
	Playlist(id string) (playlist.Playlist, bool)
	Preferences() []playlist.SyncPreference
	SetSyncEnabled(id string)
}

// TrackResolver looks up track metadata for playlist details.
type TrackResolver interface {
	Track(h track.Handle) (track.Track, bool)
}

// Config represents status server configuration.
type Config struct {
	Addr  string
	Token string // Required for mutating requests; empty disables them
}

// PlaylistView is the JSON form of a playlist.
type PlaylistView struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Starred    bool        `json:"starred"`
	Synced     bool        `json:"synced"`
	Loaded     bool        `json:"loaded"`
	TrackCount int         `json:"track_count"`
	Tracks     []TrackView `json:"tracks,omitempty"`
}

// TrackView is the JSON form of a track.
type TrackView struct {
	URI     string   `json:"uri"`
	Name    string   `json:"name"`
	Artists []string `json:"artists"`
}

// PreferenceView is the JSON form of a sync preference.
type PreferenceView struct {
	ID   string `json:"id"`
	Sync bool   `json:"sync"`
}

type errorView struct {
	Error string `json:"error"`
}

// Handler serves the status endpoints.
type Handler struct {
	registry Registry
	tracks   TrackResolver
	token    string
	mux      *http.ServeMux
}

// NewHandler creates the status handler. tracks may be nil, in which case
// playlist details carry no track list.
func NewHandler(registry Registry, tracks TrackResolver, token string) *Handler {
	h := &Handler{
		registry: registry,
		tracks:   tracks,
		token:    token,
		mux:      http.NewServeMux(),
	}
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /playlists", h.listPlaylists)
	h.mux.HandleFunc("GET /playlists/{id}", h.getPlaylist)
	h.mux.HandleFunc("POST /playlists/{id}/sync", h.requireToken(h.enableSync))
	h.mux.HandleFunc("GET /preferences", h.listPreferences)
	h.mux.Handle("GET /metrics", promhttp.Handler())
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists := h.registry.Playlists()
	views := make([]PlaylistView, 0, len(playlists))
	for _, p := range playlists {
		views = append(views, toView(p))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) getPlaylist(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p, ok := h.registry.Playlist(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorView{Error: "playlist not found: " + id})
		return
	}
	view := toView(p)
	if h.tracks != nil {
		view.Tracks = make([]TrackView, 0, len(p.Tracks))
		for _, th := range p.Tracks {
			t, ok := h.tracks.Track(th)
			if !ok {
				continue
			}
			view.Tracks = append(view.Tracks, TrackView{URI: t.URI, Name: t.Name, Artists: t.Artists})
		}
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) enableSync(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := h.registry.Playlist(id); !ok {
		writeJSON(w, http.StatusNotFound, errorView{Error: "playlist not found: " + id})
		return
	}
	h.registry.SetSyncEnabled(id)
	zlog.Info().Msgf("sync enabled over http: id=%s", id)

	p, _ := h.registry.Playlist(id)
	writeJSON(w, http.StatusOK, toView(p))
}

func (h *Handler) listPreferences(w http.ResponseWriter, r *http.Request) {
	prefs := h.registry.Preferences()
	views := make([]PreferenceView, 0, len(prefs))
	for _, p := range prefs {
		views = append(views, PreferenceView{ID: p.ID, Sync: p.Enabled})
	}
	writeJSON(w, http.StatusOK, views)
}

// requireToken rejects requests without the admin token.
func (h *Handler) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(AdminTokenHeader)
		if h.token == "" || token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) != 1 {
			writeJSON(w, http.StatusUnauthorized, errorView{Error: "unauthenticated"})
			return
		}
		next(w, r)
	}
}

func toView(p playlist.Playlist) PlaylistView {
	return PlaylistView{
		ID:         p.ID,
		Name:       p.Name,
		Starred:    p.IsStarredContainer,
		Synced:     p.IsSynced,
		Loaded:     p.IsLoaded,
		TrackCount: p.TrackCount(),
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Warn().Err(err).Msg("failed to write response")
	}
}

// Server is the status HTTP server.
type Server struct {
	server *http.Server
}

// NewServer creates a server with h2c (HTTP/2 cleartext) support.
func NewServer(cfg Config, handler http.Handler) *Server {
	return &Server{
		server: &http.Server{
			Addr:              cfg.Addr,
			Handler:           h2c.NewHandler(handler, &http2.Server{}),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Run serves until ctx is done and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("starting status server: addr=%s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "status server failed")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "failed to shutdown status server")
	}
	zlog.Info().Msg("status server stopped")
	return nil
}
