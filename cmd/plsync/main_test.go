package main

import (
	"os"
	"path/filepath"
	"testing"

	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/plsync/internal/domain/playlist"
	"github.com/osa030/plsync/internal/infra/config"
	"github.com/osa030/plsync/internal/infra/settings"
)

func TestEnableSync(t *testing.T) {
	cfg := &config.Config{Settings: config.SettingsConfig{Section: "syncPlaylists"}}
	store, err := settings.NewFileStore(filepath.Join(t.TempDir(), "settings.yaml"))
	require.NoError(t, err)

	const id = "spotify:user:alice:playlist:aaaaaaaaaaaaaaaaaaaaaa"
	require.NoError(t, store.WriteArray("syncPlaylists", []playlist.SyncPreference{{ID: id, Enabled: false}}))

	require.NoError(t, enableSync(cfg, store, id))
	require.NoError(t, enableSync(cfg, store, id))
	require.NoError(t, enableSync(cfg, store, playlist.StarredID("alice")))

	prefs, err := store.ReadArray("syncPlaylists")
	require.NoError(t, err)
	assert.Equal(t, []playlist.SyncPreference{
		{ID: id, Enabled: true},
		{ID: playlist.StarredID("alice"), Enabled: true},
	}, prefs)

	assert.Error(t, enableSync(cfg, store, "spotify:track:4uLU6hMCjMI75M1A2tKUQC"))
	require.NoError(t, listSync(cfg, store))
}

func TestNewFilterChain(t *testing.T) {
	chain, err := newFilterChain(map[string]config.FilterConfig{
		"duplicate_track_filter": {Enabled: true},
		"duration_limit_filter":  {Enabled: false},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, chain.Len())

	_, err = newFilterChain(map[string]config.FilterConfig{
		"explicit_content_filter": {Enabled: true},
	})
	assert.Error(t, err)
}

func TestInitLogger_ClosesLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "plsync.log")

	initLogger(config.LogConfig{Output: path, Level: "info"})
	f, ok := logCloser.(*os.File)
	require.True(t, ok)
	zlog.Info().Msg("first run")

	closeLogger()
	assert.Nil(t, logCloser)
	_, err := f.Write([]byte("late\n"))
	assert.ErrorIs(t, err, os.ErrClosed)
	closeLogger()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "first run")

	initLogger(config.LogConfig{Output: "stderr"})
	closeLogger()
}
