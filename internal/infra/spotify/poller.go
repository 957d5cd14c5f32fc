package spotify

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/plsync/internal/app/registry"
	"github.com/osa030/plsync/internal/domain/playlist"
	"github.com/osa030/plsync/internal/domain/track"
)

// DefaultPollInterval is used when no interval is configured.
const DefaultPollInterval = 30 * time.Second

// Fetcher is the subset of the Spotify API the poller needs.
type Fetcher interface {
	CurrentUserID(ctx context.Context) (string, error)
	ListPlaylists(ctx context.Context) ([]PlaylistSummary, error)
	GetPlaylistTracks(ctx context.Context, playlistURL string) ([]track.Track, error)
	GetSavedTracks(ctx context.Context) ([]track.Track, error)
}

// Poller periodically compares the user's library with the session and
// emits registry events for every difference.
//
// The poller keeps a mirror of the registry's playlist order: loaded
// playlists in the order the registry appends them. Move events carry
// positions in that order.
type Poller struct {
	fetcher  Fetcher
	session  *Session
	events   chan<- registry.Event
	interval time.Duration

	user    string
	starred playlist.Handle
	mirror  []playlist.Handle
	library []playlist.Handle // Attached playlists in library order
}

// NewPoller creates a poller that sends events on events.
func NewPoller(fetcher Fetcher, session *Session, events chan<- registry.Event, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		fetcher:  fetcher,
		session:  session,
		events:   events,
		interval: interval,
	}
}

// Run loads the library and then polls until ctx is done. A failed cycle is
// logged and retried on the next tick. Sync notifications queued by the
// registry between cycles are sent as soon as they are queued.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.Load(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.session.pendingReady():
			if err := p.flushPending(ctx); err != nil {
				return err
			}
		case <-ticker.C:
			if err := p.Poll(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				zlog.Warn().Err(err).Msg("poll cycle failed")
			}
		}
	}
}

// Load fetches the whole library and emits a container-loaded event.
func (p *Poller) Load(ctx context.Context) error {
	user, err := p.fetcher.CurrentUserID(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to resolve user")
	}
	p.user = user

	summaries, err := p.fetcher.ListPlaylists(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to load playlists")
	}

	handles := make([]playlist.Handle, 0, len(summaries))
	for _, s := range summaries {
		h := p.session.attach(s.Link(), s.Name)
		p.library = append(p.library, h)
		if p.loadPlaylist(ctx, h, s) {
			handles = append(handles, h)
			p.mirror = append(p.mirror, h)
		}
	}

	p.starred = p.session.attach(playlist.StarredID(user), playlist.StarredName)
	if tracks, err := p.fetcher.GetSavedTracks(ctx); err != nil {
		zlog.Warn().Err(err).Msg("failed to load saved tracks")
	} else {
		p.session.load(p.starred, playlist.StarredName, fingerprint(tracks), tracks)
		p.mirror = append(p.mirror, p.starred)
	}

	zlog.Info().Msgf("library loaded: user=%s playlists=%d loaded=%d", user, len(summaries), len(handles))
	if err := p.send(ctx, registry.ContainerLoaded(handles, p.starred)); err != nil {
		return err
	}
	return p.flushPending(ctx)
}

// Poll runs one comparison cycle.
func (p *Poller) Poll(ctx context.Context) error {
	summaries, err := p.fetcher.ListPlaylists(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to list playlists")
	}

	current := make(map[string]PlaylistSummary, len(summaries))
	for _, s := range summaries {
		current[s.Link()] = s
	}

	var events []registry.Event

	// Removals
	library := p.library[:0]
	for _, h := range p.library {
		if _, ok := current[p.session.LinkString(h)]; ok {
			library = append(library, h)
			continue
		}
		if i := indexOf(p.mirror, h); i >= 0 {
			p.mirror = append(p.mirror[:i], p.mirror[i+1:]...)
			events = append(events, registry.PlaylistRemoved(h, i))
		}
		p.session.detach(h)
	}
	p.library = library

	// Additions, reloads and late first loads
	order := make([]playlist.Handle, 0, len(summaries))
	for i, s := range summaries {
		h, known := p.session.lookup(s.Link())
		if !known || indexOf(p.library, h) < 0 {
			h = p.session.attach(s.Link(), s.Name)
			p.library = append(p.library, h)
			if p.loadPlaylist(ctx, h, s) {
				p.mirror = append(p.mirror, h)
			}
			events = append(events, registry.PlaylistAdded(h, i))
			order = append(order, h)
			continue
		}
		order = append(order, h)

		snapshot, loaded := p.session.snapshot(h)
		switch {
		case !loaded:
			if p.loadPlaylist(ctx, h, s) {
				p.mirror = append(p.mirror, h)
				events = append(events, registry.PlaylistStateChanged(h))
			}
		case snapshot != s.SnapshotID:
			events = append(events, p.reload(h, s.Name, s.SnapshotID, func() ([]track.Track, error) {
				return p.fetcher.GetPlaylistTracks(ctx, s.ID)
			})...)
		}
	}
	p.library = order

	events = append(events, p.reorder(order)...)
	events = append(events, p.pollStarred(ctx)...)

	for _, ev := range events {
		if err := p.send(ctx, ev); err != nil {
			return err
		}
	}
	return p.flushPending(ctx)
}

// loadPlaylist fetches the tracks of s into h and reports success.
func (p *Poller) loadPlaylist(ctx context.Context, h playlist.Handle, s PlaylistSummary) bool {
	tracks, err := p.fetcher.GetPlaylistTracks(ctx, s.ID)
	if err != nil {
		zlog.Warn().Err(err).Msgf("failed to load playlist, will retry: id=%s", s.ID)
		return false
	}
	p.session.load(h, s.Name, s.SnapshotID, tracks)
	zlog.Debug().Msgf("loaded playlist: id=%s name=%q tracks=%d", s.ID, s.Name, len(tracks))
	return true
}

// reload refetches a changed playlist and describes the change as a full
// replacement bracketed by load progress events.
func (p *Poller) reload(h playlist.Handle, name, snapshot string, fetch func() ([]track.Track, error)) []registry.Event {
	tracks, err := fetch()
	if err != nil {
		zlog.Warn().Err(err).Msgf("failed to reload playlist: handle=%d", h)
		return nil
	}
	if snapshot == "" {
		snapshot = fingerprint(tracks)
	}
	old, handles := p.session.load(h, name, snapshot, tracks)
	zlog.Debug().Msgf("playlist changed: handle=%d old=%d new=%d", h, old, len(handles))

	events := []registry.Event{registry.LoadProgress(h, false)}
	if old > 0 {
		events = append(events, registry.TracksRemoved(h, make([]int, old), old))
	}
	if len(handles) > 0 {
		events = append(events, registry.TracksAdded(h, handles, 0))
	}
	return append(events, registry.LoadProgress(h, true))
}

// reorder brings the mirror in line with the library order. The starred
// playlist and playlists not yet loaded keep no library position, so only
// the relative order of the remaining entries is reconciled.
func (p *Poller) reorder(library []playlist.Handle) []registry.Event {
	desired := make([]playlist.Handle, 0, len(p.mirror))
	for _, h := range library {
		if indexOf(p.mirror, h) >= 0 {
			desired = append(desired, h)
		}
	}
	if i := indexOf(p.mirror, p.starred); i >= 0 {
		if i > len(desired) {
			i = len(desired)
		}
		desired = append(desired[:i], append([]playlist.Handle{p.starred}, desired[i:]...)...)
	}

	var events []registry.Event
	for i, h := range desired {
		if p.mirror[i] == h {
			continue
		}
		from := indexOf(p.mirror, h)
		v := p.mirror[from]
		p.mirror = append(p.mirror[:from], p.mirror[from+1:]...)
		p.mirror = append(p.mirror[:i], append([]playlist.Handle{v}, p.mirror[i:]...)...)
		events = append(events, registry.PlaylistMoved(h, from, i))
	}
	return events
}

func (p *Poller) pollStarred(ctx context.Context) []registry.Event {
	if p.starred == 0 {
		return nil
	}
	tracks, err := p.fetcher.GetSavedTracks(ctx)
	if err != nil {
		zlog.Warn().Err(err).Msg("failed to poll saved tracks")
		return nil
	}
	snapshot, loaded := p.session.snapshot(p.starred)
	if !loaded {
		p.session.load(p.starred, playlist.StarredName, fingerprint(tracks), tracks)
		p.mirror = append(p.mirror, p.starred)
		return []registry.Event{registry.PlaylistStateChanged(p.starred)}
	}
	if snapshot == fingerprint(tracks) {
		return nil
	}
	return p.reload(p.starred, playlist.StarredName, "", func() ([]track.Track, error) {
		return tracks, nil
	})
}

func (p *Poller) flushPending(ctx context.Context) error {
	for _, h := range p.session.drainPending() {
		if err := p.send(ctx, registry.SyncStateChanged(h)); err != nil {
			return err
		}
	}
	return nil
}

func (p *Poller) send(ctx context.Context, ev registry.Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.events <- ev:
		return nil
	}
}

// fingerprint identifies a track list that carries no snapshot id.
func fingerprint(tracks []track.Track) string {
	uris := make([]string, len(tracks))
	for i, t := range tracks {
		uris[i] = t.URI
	}
	return strings.Join(uris, ",")
}

func indexOf(handles []playlist.Handle, h playlist.Handle) int {
	for i, v := range handles {
		if v == h {
			return i
		}
	}
	return -1
}
