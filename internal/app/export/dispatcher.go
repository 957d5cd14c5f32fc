package export

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/plsync/internal/app/filter"
	"github.com/osa030/plsync/internal/domain/playlist"
	"github.com/osa030/plsync/internal/domain/track"
	"github.com/osa030/plsync/internal/infra/metrics"
)

// ErrClosed is returned when exporting through a closed dispatcher.
var ErrClosed = errors.New("export dispatcher is closed")

// DefaultBuffer is the queue size used when none is configured.
const DefaultBuffer = 16

// Dispatcher turns playlist snapshots into documents and writes them on a
// worker goroutine. Track handles are resolved when the snapshot is queued,
// while the caller still holds its claims. Export never blocks.
type Dispatcher struct {
	resolver TrackResolver
	writer   Writer
	filters  *filter.Chain
	now      func() time.Time

	mu     sync.RWMutex
	queue  chan Document
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher with room for buffer pending snapshots.
// A nil chain exports every resolved track.
func NewDispatcher(buffer int, resolver TrackResolver, writer Writer, filters *filter.Chain) *Dispatcher {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if filters == nil {
		filters = filter.NewChain()
	}
	return &Dispatcher{
		resolver: resolver,
		writer:   writer,
		filters:  filters,
		now:      time.Now,
		queue:    make(chan Document, buffer),
	}
}

// Start runs the worker until ctx is done or Close drains the queue.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(ctx)
	}()
}

// Export queues p for writing. A full queue drops the snapshot.
func (d *Dispatcher) Export(p playlist.Playlist) {
	if err := d.TryExport(p); err != nil {
		metrics.Exports.WithLabelValues("dropped").Inc()
		zlog.Warn().Err(err).Msgf("dropping export: id=%s", p.ID)
	}
}

// TryExport queues p and reports why it could not.
func (d *Dispatcher) TryExport(p playlist.Playlist) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}
	doc := d.Document(p)
	select {
	case d.queue <- doc:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting snapshots and waits for the queued ones to be written.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case doc, ok := <-d.queue:
			if !ok {
				return
			}
			d.write(doc)
		}
	}
}

func (d *Dispatcher) write(doc Document) {
	path, err := d.writer.Write(doc)
	if err != nil {
		metrics.Exports.WithLabelValues("failed").Inc()
		zlog.Error().Err(err).Msgf("failed to export playlist: id=%s writer=%s", doc.PlaylistID, d.writer.Name())
		return
	}
	metrics.Exports.WithLabelValues("written").Inc()
	zlog.Info().Msgf("exported playlist: id=%s tracks=%d path=%s", doc.PlaylistID, len(doc.Tracks), path)
}

// Document resolves the tracks of p and runs them through the filter chain.
// Handles the resolver does not know are left out.
func (d *Dispatcher) Document(p playlist.Playlist) Document {
	doc := Document{
		ExportID:   uuid.NewString(),
		ExportedAt: d.now().UTC(),
		PlaylistID: p.ID,
		Name:       p.Name,
		Starred:    p.IsStarredContainer,
		Tracks:     make([]track.Track, 0, len(p.Tracks)),
	}
	missing := 0
	for _, h := range p.Tracks {
		t, ok := d.resolver.Track(h)
		if !ok {
			missing++
			continue
		}
		doc.Tracks = append(doc.Tracks, t)
	}
	if missing > 0 {
		zlog.Debug().Msgf("skipped unresolved tracks: id=%s count=%d", p.ID, missing)
	}

	var rejected map[string]int
	doc.Tracks, rejected = d.filters.Apply(doc.Tracks)
	for code, n := range rejected {
		metrics.FilteredTracks.WithLabelValues(code).Add(float64(n))
		zlog.Debug().Msgf("filtered tracks: id=%s code=%s count=%d", p.ID, code, n)
	}
	return doc
}
