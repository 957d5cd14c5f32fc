// Package export writes snapshots of synced playlists to disk.
package export

import (
	"strings"
	"time"
	"unicode"

	"github.com/cockroachdb/errors"
	"github.com/gosimple/unidecode"

	"github.com/osa030/plsync/internal/domain/track"
)

// ErrQueueFull is reported when a snapshot is dropped because the dispatcher
// queue has no room left.
var ErrQueueFull = errors.New("export queue is full")

// TrackResolver looks up the metadata behind a track handle.
type TrackResolver interface {
	Track(h track.Handle) (track.Track, bool)
}

// Document is one exported playlist.
type Document struct {
	ExportID   string        `yaml:"export_id"`
	ExportedAt time.Time     `yaml:"exported_at"`
	PlaylistID string        `yaml:"playlist_id"`
	Name       string        `yaml:"name"`
	Starred    bool          `yaml:"starred"`
	Tracks     []track.Track `yaml:"-"`
}

// Writer persists a document.
type Writer interface {
	Write(doc Document) (string, error)
	Name() string
}

// Slug returns a file name stem for the document: the playlist name
// transliterated to lowercase ASCII, followed by the last segment of the
// playlist id.
func (d Document) Slug() string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(unidecode.Unidecode(d.Name)) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	name := strings.TrimSuffix(b.String(), "-")

	tail := d.PlaylistID
	if i := strings.LastIndex(tail, ":"); i >= 0 {
		tail = tail[i+1:]
	}
	switch {
	case name == "" && tail == "":
		return "playlist"
	case name == "":
		return tail
	case tail == "":
		return name
	}
	return name + "-" + tail
}
