package registry

import (
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/plsync/internal/domain/playlist"
	"github.com/osa030/plsync/internal/domain/track"
	"github.com/osa030/plsync/internal/infra/metrics"
)

// AddTracks inserts tracks, in order, starting at position. The whole event
// is dropped if h is unknown or position lies outside [0, len].
func (r *Registry) AddTracks(h playlist.Handle, tracks []track.Handle, position int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(h)
	if idx < 0 {
		return
	}
	p := r.playlists[idx]
	if position < 0 || position > len(p.Tracks) {
		zlog.Debug().Msgf("insert position out of range: id=%s position=%d len=%d", p.ID, position, len(p.Tracks))
		return
	}

	for _, t := range tracks {
		r.session.AcquireTrack(t)
		p.Tracks = insert(p.Tracks, position, t)
		position++
	}
}

// RemoveTracks removes count tracks. Each position is read against the
// sequence as it stands after the previous removal. When count equals the
// current length the sequence is cleared regardless of positions.
func (r *Registry) RemoveTracks(h playlist.Handle, positions []int, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(h)
	if idx < 0 {
		return
	}
	p := r.playlists[idx]

	if count == len(p.Tracks) {
		r.releaseTracksLocked(p, p.Tracks)
		p.Tracks = p.Tracks[:0]
		return
	}

	for i := 0; i < count && i < len(positions); i++ {
		pos := positions[i]
		if pos < 0 || pos >= len(p.Tracks) {
			zlog.Debug().Msgf("remove position out of range: id=%s position=%d len=%d", p.ID, pos, len(p.Tracks))
			continue
		}
		r.releaseTracksLocked(p, p.Tracks[pos:pos+1])
		p.Tracks = remove(p.Tracks, pos)
	}
}

// MoveTracks moves the track at positions[i] to destination+i for each i
// below count, so the moved block lands contiguously at destination.
func (r *Registry) MoveTracks(h playlist.Handle, positions []int, count, destination int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(h)
	if idx < 0 {
		return
	}
	p := r.playlists[idx]

	for i := 0; i < count && i < len(positions); i++ {
		from, to := positions[i], destination+i
		n := len(p.Tracks)
		if from < 0 || from >= n || to < 0 || to >= n {
			zlog.Debug().Msgf("move out of range: id=%s from=%d to=%d len=%d", p.ID, from, to, n)
			continue
		}
		p.Tracks = move(p.Tracks, from, to)
	}
}

func (r *Registry) releaseTracksLocked(p *playlist.Playlist, tracks []track.Handle) {
	for _, t := range tracks {
		if err := r.session.ReleaseTrack(t); err != nil {
			metrics.ReleaseFailures.Inc()
			zlog.Warn().Err(err).Msgf("failed to release track: playlist=%s track=%d", p.ID, t)
		}
	}
}

func insert[T any](s []T, i int, v T) []T {
	var zero T
	s = append(s, zero)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func remove[T any](s []T, i int) []T {
	copy(s[i:], s[i+1:])
	var zero T
	s[len(s)-1] = zero
	return s[:len(s)-1]
}

// move takes the element at from out of s and reinserts it so that it ends
// up at index to.
func move[T any](s []T, from, to int) []T {
	if from == to {
		return s
	}
	v := s[from]
	s = remove(s, from)
	return insert(s, to, v)
}
