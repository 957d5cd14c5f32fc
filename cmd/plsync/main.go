// Package main provides the plsync entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/plsync/internal/api/status"
	"github.com/osa030/plsync/internal/app/export"
	"github.com/osa030/plsync/internal/app/filter"
	"github.com/osa030/plsync/internal/app/registry"
	"github.com/osa030/plsync/internal/domain/playlist"
	"github.com/osa030/plsync/internal/infra/config"
	"github.com/osa030/plsync/internal/infra/logger"
	"github.com/osa030/plsync/internal/infra/settings"
	"github.com/osa030/plsync/internal/infra/spotify"
)

var (
	app        = kingpin.New("plsync", "Mirror Spotify playlists and export the synced ones")
	configPath = app.Flag("config", "Path to config file").Default("config/plsync.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: from config)").String()

	runCmd = app.Command("run", "Mirror playlists until interrupted (default)").Default()

	syncCmd       = app.Command("sync", "Manage sync preferences")
	syncEnableCmd = syncCmd.Command("enable", "Enable sync for a playlist id")
	syncEnableID  = syncEnableCmd.Arg("id", "Playlist id (spotify:user:<owner>:playlist:<id>)").Required().String()
	syncListCmd   = syncCmd.Command("list", "List sync preferences")

	filtersCmd = app.Command("filters", "List available export filters")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	var err error
	switch command {
	case syncEnableCmd.FullCommand():
		err = withLocalConfig(func(cfg *config.Config, store settings.Store) error {
			return enableSync(cfg, store, *syncEnableID)
		})
	case syncListCmd.FullCommand():
		err = withLocalConfig(listSync)
	case filtersCmd.FullCommand():
		printFilters()
	case runCmd.FullCommand():
		err = start()
	}
	if err != nil {
		zlog.Error().Msgf("%v", err)
		closeLogger()
		os.Exit(1)
	}
	closeLogger()
}

// logCloser releases the log file opened by initLogger, if any.
var logCloser io.Closer

func initLogger(cfg config.LogConfig) {
	loggerConfig := logger.Config{Output: cfg.Output, Level: cfg.Level}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	closer, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	closeLogger()
	logCloser = closer
}

func closeLogger() {
	if logCloser == nil {
		return
	}
	if err := logCloser.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to close log output: %v\n", err)
	}
	logCloser = nil
}

func start() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		initLogger(config.LogConfig{})
		return errors.Wrapf(err, "failed to load config %s", *configPath)
	}
	initLogger(cfg.Log)
	zlog.Info().Msgf("loaded config from %s", *configPath)
	return run(cfg)
}

// run wires the components and blocks until a signal arrives or the poller
// fails to load the library.
func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := settings.Open(settings.Config{Backend: cfg.Settings.Backend, Path: cfg.Settings.Path})
	if err != nil {
		return errors.Wrap(err, "failed to open settings store")
	}
	defer store.Close()

	client, err := spotify.New(ctx, spotify.Config{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		RefreshToken: cfg.Spotify.RefreshToken,
		Market:       cfg.Spotify.Market,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create Spotify client")
	}
	session := spotify.NewSession()

	writer, err := export.NewWriterFromConfig(cfg.Export.Type, cfg.Export.Dir, cfg.Export.Settings)
	if err != nil {
		return errors.Wrap(err, "failed to create export writer")
	}
	filters, err := newFilterChain(cfg.Export.Filters)
	if err != nil {
		return errors.Wrap(err, "invalid filter config")
	}
	// The dispatcher outlives ctx so that Close can drain queued exports.
	dispatcher := export.NewDispatcher(cfg.Export.Buffer, session, writer, filters)
	dispatcher.Start(context.Background())
	defer dispatcher.Close()

	reg := registry.New(registry.Config{
		Section:     cfg.Settings.Section,
		SyncStarred: !cfg.Sync.DisableStarred,
	}, session, store, dispatcher)
	reg.Initialize()
	defer reg.Teardown()

	events := make(chan registry.Event, cfg.Sync.EventBuffer)
	poller := spotify.NewPoller(client, session, events, cfg.Sync.PollInterval())

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = reg.Run(ctx, events)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := poller.Run(ctx); err != nil && ctx.Err() == nil {
			errCh <- errors.Wrap(err, "poller stopped")
		}
	}()

	if cfg.Settings.Watch {
		if err := startWatcher(ctx, &wg, cfg.Settings, events); err != nil {
			zlog.Warn().Err(err).Msg("settings watcher disabled")
		}
	}

	if cfg.Status.Addr != "" {
		server := status.NewServer(
			status.Config{Addr: cfg.Status.Addr, Token: cfg.Status.Token},
			status.NewHandler(reg, session, cfg.Status.Token),
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.Run(ctx); err != nil {
				zlog.Error().Err(err).Msg("status server error")
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		zlog.Info().Msg("received shutdown signal...")
	case runErr = <-errCh:
		stop()
	}
	wg.Wait()

	zlog.Info().Msgf("stopped: playlists=%d", reg.Len())
	return runErr
}

// newFilterChain builds the export filter chain from config.
func newFilterChain(cfgs map[string]config.FilterConfig) (*filter.Chain, error) {
	configs := make(map[string]filter.Config, len(cfgs))
	for name, fc := range cfgs {
		configs[name] = filter.Config{Enabled: fc.Enabled, Settings: fc.Settings}
	}
	return filter.NewChainFromConfig(configs)
}

// printFilters prints available filters.
func printFilters() {
	registered := filter.GetRegistered()
	names := make([]string, 0, len(registered))
	for name := range registered {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("Available Filters:")
	for _, name := range names {
		f := registered[name]()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}

func startWatcher(ctx context.Context, wg *sync.WaitGroup, cfg config.SettingsConfig, events chan<- registry.Event) error {
	if cfg.Backend != settings.BackendFile {
		return errors.Newf("watch is only supported for the file backend (backend=%s)", cfg.Backend)
	}
	path, err := settings.ExpandPath(cfg.Path)
	if err != nil {
		return err
	}
	watcher, err := settings.NewWatcher(path, settings.DefaultDebounce, func() {
		select {
		case events <- registry.PreferencesChanged():
		case <-ctx.Done():
		default:
			zlog.Warn().Msg("event queue full, settings change not delivered")
		}
	})
	if err != nil {
		return err
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		watcher.Run(ctx)
	}()
	return nil
}

func withLocalConfig(fn func(cfg *config.Config, store settings.Store) error) error {
	cfg, err := config.LoadLocal(*configPath)
	if err != nil {
		initLogger(config.LogConfig{})
		return errors.Wrapf(err, "failed to load config %s", *configPath)
	}
	initLogger(config.LogConfig{Output: "stderr", Level: cfg.Log.Level})

	store, err := settings.Open(settings.Config{Backend: cfg.Settings.Backend, Path: cfg.Settings.Path})
	if err != nil {
		return errors.Wrap(err, "failed to open settings store")
	}
	defer store.Close()
	return fn(cfg, store)
}

// enableSync records id as sync-enabled. A running instance picks the change
// up through its settings watcher, or on the next start.
func enableSync(cfg *config.Config, store settings.Store, id string) error {
	if !strings.HasPrefix(id, "spotify:") || !strings.Contains(id, ":playlist:") {
		return errors.Newf("not a playlist id: %s", id)
	}
	prefs, err := store.ReadArray(cfg.Settings.Section)
	if err != nil {
		return errors.Wrap(err, "failed to read sync preferences")
	}
	prefs, changed := playlist.EnablePreference(prefs, id)
	if !changed {
		fmt.Printf("sync already enabled: %s\n", id)
		return nil
	}
	if err := store.WriteArray(cfg.Settings.Section, prefs); err != nil {
		return errors.Wrap(err, "failed to write sync preferences")
	}
	fmt.Printf("sync enabled: %s\n", id)
	return nil
}

func listSync(cfg *config.Config, store settings.Store) error {
	prefs, err := store.ReadArray(cfg.Settings.Section)
	if err != nil {
		return errors.Wrap(err, "failed to read sync preferences")
	}
	if len(prefs) == 0 {
		fmt.Println("no sync preferences")
		return nil
	}
	for _, p := range prefs {
		state := "off"
		if p.Enabled {
			state = "on"
		}
		fmt.Printf("  %-3s %s\n", state, p.ID)
	}
	return nil
}
