package settings

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	zlog "github.com/rs/zerolog/log"
)

// DefaultDebounce is the quiet period before a change is reported.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reports changes to a settings file made by other processes.
// The directory is watched rather than the file because atomic writes
// replace the file's inode.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
	onChange func()

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher creates a watcher for path. onChange runs on a timer goroutine
// after writes settle.
func NewWatcher(path string, debounce time.Duration, onChange func()) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file watcher")
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return nil, errors.Wrapf(err, "failed to watch %s", filepath.Dir(path))
	}
	return &Watcher{
		watcher:  w,
		path:     filepath.Clean(path),
		debounce: debounce,
		onChange: onChange,
	}, nil
}

// Run processes file system events until ctx is done or the watcher closes.
func (w *Watcher) Run(ctx context.Context) {
	zlog.Info().Msgf("watching settings file: path=%s", w.path)
	defer w.stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			zlog.Warn().Err(err).Msg("settings watcher error")
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if filepath.Clean(ev.Name) != w.path {
		return
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		zlog.Debug().Msgf("settings file changed: path=%s", w.path)
		w.onChange()
	})
}

func (w *Watcher) stop() {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()
	_ = w.watcher.Close()
}
