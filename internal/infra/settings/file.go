package settings

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/osa030/plsync/internal/domain/playlist"
)

// document is the whole settings file: sections of preference arrays.
type document map[string][]entry

type codec struct {
	marshal   func(v any) ([]byte, error)
	unmarshal func(data []byte, v any) error
}

var codecs = map[string]codec{
	".yaml": {marshal: yaml.Marshal, unmarshal: yaml.Unmarshal},
	".yml":  {marshal: yaml.Marshal, unmarshal: yaml.Unmarshal},
	".toml": {marshal: toml.Marshal, unmarshal: toml.Unmarshal},
}

// FileStore keeps all sections in a single YAML or TOML file, selected by
// extension. Writes replace the file atomically and keep other sections.
type FileStore struct {
	mu    sync.Mutex
	path  string
	codec codec
}

// NewFileStore creates a store for path. The file need not exist yet.
func NewFileStore(path string) (*FileStore, error) {
	c, ok := codecs[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "settings file %s", path)
	}
	return &FileStore{path: path, codec: c}, nil
}

// ReadArray returns the preferences of section. A missing file or section
// yields an empty result.
func (s *FileStore) ReadArray(section string) ([]playlist.SyncPreference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	return fromEntries(doc[section]), nil
}

// WriteArray replaces section with prefs.
func (s *FileStore) WriteArray(section string, prefs []playlist.SyncPreference) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	doc[section] = toEntries(prefs)

	data, err := s.codec.marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to encode settings")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create settings dir")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write settings")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "failed to replace settings file")
	}
	return nil
}

// Close is a no-op for file stores.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) load() (document, error) {
	doc := make(document)
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return doc, nil
		}
		return nil, errors.Wrap(err, "failed to read settings file")
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := s.codec.unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to parse settings file")
	}
	if doc == nil {
		doc = make(document)
	}
	return doc, nil
}
