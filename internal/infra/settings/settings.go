// Package settings persists sync preferences as ordered arrays of
// {id, sync} records grouped by section.
package settings

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/osa030/plsync/internal/domain/playlist"
)

// ErrUnsupportedFormat is returned for a settings file with an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported settings format")

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config represents settings store configuration.
type Config struct {
	Backend string // "file" or "sqlite"
	Path    string // File or database path; "~" is expanded
}

// Store is the settings store consumed by the registry.
type Store interface {
	ReadArray(section string) ([]playlist.SyncPreference, error)
	WriteArray(section string, prefs []playlist.SyncPreference) error
	Close() error
}

// entry is the persisted layout of one preference.
type entry struct {
	ID   string `yaml:"id" toml:"id"`
	Sync bool   `yaml:"sync" toml:"sync"`
}

// Open opens the configured store.
func Open(cfg Config) (Store, error) {
	path := cfg.Path
	if path != ":memory:" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return nil, err
		}
		path = expanded
	}

	switch strings.ToLower(cfg.Backend) {
	case BackendFile, "":
		return NewFileStore(path)
	case BackendSQLite:
		return NewSQLiteStore(path)
	default:
		return nil, errors.Newf("unsupported settings backend: %s", cfg.Backend)
	}
}

// ExpandPath resolves a leading "~" and makes path absolute.
func ExpandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", errors.New("settings path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "failed to resolve home dir")
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve settings path")
	}
	return abs, nil
}

func toEntries(prefs []playlist.SyncPreference) []entry {
	entries := make([]entry, len(prefs))
	for i, p := range prefs {
		entries[i] = entry{ID: p.ID, Sync: p.Enabled}
	}
	return entries
}

func fromEntries(entries []entry) []playlist.SyncPreference {
	prefs := make([]playlist.SyncPreference, 0, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			continue
		}
		prefs = append(prefs, playlist.SyncPreference{ID: e.ID, Enabled: e.Sync})
	}
	return prefs
}
