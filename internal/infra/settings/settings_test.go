package settings

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/plsync/internal/domain/playlist"
)

const section = "syncPlaylists"

var samplePrefs = []playlist.SyncPreference{
	{ID: "spotify:user:alice:playlist:0000000000000000000000", Enabled: true},
	{ID: "spotify:user:alice:playlist:bbbbbbbbbbbbbbbbbbbbbb", Enabled: false},
	{ID: "spotify:user:alice:playlist:aaaaaaaaaaaaaaaaaaaaaa", Enabled: true},
}

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	for _, ext := range []string{".yaml", ".yml", ".toml"} {
		t.Run(ext, func(t *testing.T) {
			s, err := NewFileStore(filepath.Join(t.TempDir(), "settings"+ext))
			require.NoError(t, err)

			prefs, err := s.ReadArray(section)
			require.NoError(t, err)
			assert.Empty(t, prefs)
		})
	}
}

func TestFileStore_WriteKeepsOrderAndOtherSections(t *testing.T) {
	for _, ext := range []string{".yaml", ".toml"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", "settings"+ext)
			s, err := NewFileStore(path)
			require.NoError(t, err)

			require.NoError(t, s.WriteArray("other", []playlist.SyncPreference{{ID: "x", Enabled: true}}))
			require.NoError(t, s.WriteArray(section, samplePrefs))

			// A fresh store sees what the first one wrote.
			reopened, err := NewFileStore(path)
			require.NoError(t, err)

			prefs, err := reopened.ReadArray(section)
			require.NoError(t, err)
			assert.Equal(t, samplePrefs, prefs)

			other, err := reopened.ReadArray("other")
			require.NoError(t, err)
			assert.Equal(t, []playlist.SyncPreference{{ID: "x", Enabled: true}}, other)

			// Full rewrite replaces the section.
			require.NoError(t, reopened.WriteArray(section, samplePrefs[:1]))
			prefs, err = s.ReadArray(section)
			require.NoError(t, err)
			assert.Equal(t, samplePrefs[:1], prefs)

			_, err = os.Stat(path + ".tmp")
			assert.True(t, os.IsNotExist(err), "temporary file must be renamed away")
		})
	}
}

func TestFileStore_ReadsHandWrittenYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	content := `syncPlaylists:
  - id: spotify:user:alice:playlist:aaaaaaaaaaaaaaaaaaaaaa
    sync: true
  - id: ""
    sync: true
  - id: spotify:user:alice:playlist:bbbbbbbbbbbbbbbbbbbbbb
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := NewFileStore(path)
	require.NoError(t, err)
	prefs, err := s.ReadArray(section)
	require.NoError(t, err)

	assert.Equal(t, []playlist.SyncPreference{
		{ID: "spotify:user:alice:playlist:aaaaaaaaaaaaaaaaaaaaaa", Enabled: true},
		{ID: "spotify:user:alice:playlist:bbbbbbbbbbbbbbbbbbbbbb", Enabled: false},
	}, prefs)
}

func TestFileStore_InvalidContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	require.NoError(t, os.WriteFile(path, []byte("not valid toml {{{\n"), 0o644))

	s, err := NewFileStore(path)
	require.NoError(t, err)

	_, err = s.ReadArray(section)
	assert.Error(t, err)
	assert.Error(t, s.WriteArray(section, samplePrefs), "a corrupt file is not overwritten")
}

func TestNewFileStore_UnsupportedExtension(t *testing.T) {
	_, err := NewFileStore(filepath.Join(t.TempDir(), "settings.ini"))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)

	prefs, err := s.ReadArray(section)
	require.NoError(t, err)
	assert.Empty(t, prefs)

	require.NoError(t, s.WriteArray(section, samplePrefs))
	require.NoError(t, s.WriteArray("other", samplePrefs[:1]))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	prefs, err = reopened.ReadArray(section)
	require.NoError(t, err)
	assert.Equal(t, samplePrefs, prefs)

	require.NoError(t, reopened.WriteArray(section, samplePrefs[2:]))
	prefs, err = reopened.ReadArray(section)
	require.NoError(t, err)
	assert.Equal(t, samplePrefs[2:], prefs)

	other, err := reopened.ReadArray("other")
	require.NoError(t, err)
	assert.Equal(t, samplePrefs[:1], other)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "default backend is file", cfg: Config{Path: filepath.Join(dir, "a.yaml")}},
		{name: "file backend toml", cfg: Config{Backend: BackendFile, Path: filepath.Join(dir, "a.toml")}},
		{name: "sqlite backend", cfg: Config{Backend: BackendSQLite, Path: filepath.Join(dir, "a.db")}},
		{name: "sqlite in memory", cfg: Config{Backend: BackendSQLite, Path: ":memory:"}},
		{name: "unknown backend", cfg: Config{Backend: "redis", Path: filepath.Join(dir, "a")}, wantErr: true},
		{name: "empty path", cfg: Config{Backend: BackendFile}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer s.Close()

			require.NoError(t, s.WriteArray(section, samplePrefs))
			prefs, err := s.ReadArray(section)
			require.NoError(t, err)
			assert.Equal(t, samplePrefs, prefs)
		})
	}
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	p, err := ExpandPath("~/.config/plsync/settings.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "plsync", "settings.yaml"), p)

	_, err = ExpandPath("   ")
	assert.Error(t, err)
}

func TestWatcher_ReportsExternalWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	var changes atomic.Int32

	w, err := NewWatcher(path, 20*time.Millisecond, func() { changes.Add(1) })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// Unrelated files in the same directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "other.yaml"), []byte("x: 1\n"), 0o644))

	s, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.WriteArray(section, samplePrefs))

	require.Eventually(t, func() bool { return changes.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}
