package export

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"
)

// Path styles for M3U entries.
const (
	PathStyleURI = "uri"
	PathStyleURL = "url"
)

// M3UWriterConfig holds settings for the M3U writer.
type M3UWriterConfig struct {
	PathStyle string `yaml:"path_style" mapstructure:"path_style" default:"uri" validate:"oneof=uri url"`
}

// M3UWriter writes extended M3U playlists whose entries point at Spotify.
type M3UWriter struct {
	dir    string
	config *M3UWriterConfig
}

// NewM3UWriter creates an M3U writer that writes into dir.
func NewM3UWriter(dir string, settings map[string]any) (*M3UWriter, error) {
	var config M3UWriterConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	zlog.Debug().Msgf("m3u writer config: %+v", config)
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	return &M3UWriter{dir: dir, config: &config}, nil
}

// Write stores doc as <dir>/<slug>.m3u and returns the path.
func (w *M3UWriter) Write(doc Document) (string, error) {
	path := filepath.Join(w.dir, doc.Slug()+".m3u")
	if err := writeFile(path, []byte(w.Generate(doc))); err != nil {
		return "", err
	}
	return path, nil
}

// Generate renders doc as extended M3U. Tracks without a usable location are
// skipped.
func (w *M3UWriter) Generate(doc Document) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	fmt.Fprintf(&b, "#PLAYLIST:%s\n", doc.Name)

	for _, t := range doc.Tracks {
		location := t.URI
		if w.config.PathStyle == PathStyleURL {
			location = t.URL
		}
		if location == "" {
			continue
		}
		seconds := int(t.Duration.Seconds())
		if seconds == 0 {
			seconds = -1
		}
		fmt.Fprintf(&b, "#EXTINF:%d,%s\n", seconds, t.Title())
		if t.Album != "" {
			fmt.Fprintf(&b, "#EXTALB:%s\n", t.Album)
		}
		b.WriteString(location)
		b.WriteString("\n")
	}
	return b.String()
}

// Name returns the writer name.
func (w *M3UWriter) Name() string {
	return "m3u"
}
