package registry

import (
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/plsync/internal/domain/playlist"
	"github.com/osa030/plsync/internal/infra/metrics"
)

// SetSyncEnabled enables sync for the playlist with the given id, recording
// and persisting the preference if needed. Unknown ids are ignored; sync is
// restored when the playlist is added.
func (r *Registry) SetSyncEnabled(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setSyncEnabledLocked(id)
}

func (r *Registry) setSyncEnabledLocked(id string) {
	if r.indexOfID(id) < 0 {
		return
	}
	r.recordPreferenceLocked(id)
	r.activateLocked(id)
}

// activateLocked marks a known playlist synced and subscribes to its sync
// notifications.
func (r *Registry) activateLocked(id string) {
	idx := r.indexOfID(id)
	if idx < 0 {
		return
	}
	p := r.playlists[idx]
	p.IsSynced = true
	r.session.RegisterSyncCallbacks(p.Handle)
	zlog.Debug().Msgf("sync enabled: id=%s", id)
}

// recordPreferenceLocked stores id as enabled, rewriting the store only when
// the preference set changes.
func (r *Registry) recordPreferenceLocked(id string) {
	var changed bool
	r.prefs, changed = playlist.EnablePreference(r.prefs, id)
	if changed {
		r.persistLocked()
	}
}

// ReloadPreferences re-reads the store and activates preferences added by
// another writer. Known preferences are left untouched.
func (r *Registry) ReloadPreferences() {
	r.mu.Lock()
	defer r.mu.Unlock()

	prefs, err := r.store.ReadArray(r.config.Section)
	if err != nil {
		metrics.SettingsErrors.WithLabelValues("read").Inc()
		zlog.Warn().Err(err).Msgf("failed to reload sync preferences: section=%s", r.config.Section)
		return
	}
	for _, id := range r.mergeLocked(prefs) {
		r.activateLocked(id)
	}
}

// mergeLocked folds stored preferences into the in-memory set: unseen ids are
// appended in stored order and a stored enabled flag wins over a disabled one.
// It returns the ids that became enabled.
func (r *Registry) mergeLocked(stored []playlist.SyncPreference) []string {
	var enabled []string
	for _, p := range stored {
		i := playlist.IndexPreference(r.prefs, p.ID)
		switch {
		case i < 0:
			r.prefs = append(r.prefs, p)
		case p.Enabled && !r.prefs[i].Enabled:
			r.prefs[i].Enabled = true
		default:
			continue
		}
		if p.Enabled {
			zlog.Info().Msgf("sync preference picked up from store: id=%s", p.ID)
			enabled = append(enabled, p.ID)
		}
	}
	return enabled
}

// Preferences returns a copy of the sync preferences in insertion order.
func (r *Registry) Preferences() []playlist.SyncPreference {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]playlist.SyncPreference, len(r.prefs))
	copy(result, r.prefs)
	return result
}

// persistLocked rewrites the preference array. Entries another writer added
// since the last read are merged in first so the rewrite does not drop them.
func (r *Registry) persistLocked() {
	var merged []string
	if stored, err := r.store.ReadArray(r.config.Section); err != nil {
		metrics.SettingsErrors.WithLabelValues("read").Inc()
		zlog.Warn().Err(err).Msgf("failed to re-read sync preferences before write: section=%s", r.config.Section)
	} else {
		merged = r.mergeLocked(stored)
	}

	if err := r.store.WriteArray(r.config.Section, r.prefs); err != nil {
		metrics.SettingsErrors.WithLabelValues("write").Inc()
		zlog.Error().Err(err).Msgf("failed to persist sync preferences: section=%s", r.config.Section)
	}
	for _, id := range merged {
		r.activateLocked(id)
	}
}
