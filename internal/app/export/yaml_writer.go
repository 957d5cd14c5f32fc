package export

import (
	"bytes"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// YAMLWriterConfig holds settings for the YAML writer.
type YAMLWriterConfig struct {
	Indent int `yaml:"indent" mapstructure:"indent" default:"2" validate:"gte=1,lte=8"`
}

// YAMLWriter writes one YAML document per playlist.
type YAMLWriter struct {
	dir    string
	config *YAMLWriterConfig
}

type yamlTrack struct {
	ID       string   `yaml:"id"`
	URI      string   `yaml:"uri"`
	Name     string   `yaml:"name"`
	Artists  []string `yaml:"artists,flow"`
	Album    string   `yaml:"album,omitempty"`
	Duration string   `yaml:"duration"`
	URL      string   `yaml:"url,omitempty"`
}

type yamlDocument struct {
	Document `yaml:",inline"`
	Count    int         `yaml:"track_count"`
	Tracks   []yamlTrack `yaml:"tracks"`
}

// NewYAMLWriter creates a YAML writer that writes into dir.
func NewYAMLWriter(dir string, settings map[string]any) (*YAMLWriter, error) {
	var config YAMLWriterConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	zlog.Debug().Msgf("yaml writer config: %+v", config)
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	return &YAMLWriter{dir: dir, config: &config}, nil
}

// Write stores doc as <dir>/<slug>.yaml and returns the path.
func (w *YAMLWriter) Write(doc Document) (string, error) {
	out := yamlDocument{
		Document: doc,
		Count:    len(doc.Tracks),
		Tracks:   make([]yamlTrack, 0, len(doc.Tracks)),
	}
	for _, t := range doc.Tracks {
		out.Tracks = append(out.Tracks, yamlTrack{
			ID:       t.ID,
			URI:      t.URI,
			Name:     t.Name,
			Artists:  t.Artists,
			Album:    t.Album,
			Duration: t.Duration.Round(time.Second).String(),
			URL:      t.URL,
		})
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(w.config.Indent)
	if err := enc.Encode(out); err != nil {
		return "", errors.Wrap(err, "failed to encode playlist")
	}
	if err := enc.Close(); err != nil {
		return "", errors.Wrap(err, "failed to encode playlist")
	}

	path := filepath.Join(w.dir, doc.Slug()+".yaml")
	if err := writeFile(path, buf.Bytes()); err != nil {
		return "", err
	}
	return path, nil
}

// Name returns the writer name.
func (w *YAMLWriter) Name() string {
	return "yaml"
}

// writeFile replaces path atomically.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create export dir")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "failed to rename %s", tmp)
	}
	return nil
}
