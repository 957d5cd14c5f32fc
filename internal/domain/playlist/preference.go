package playlist

// SyncPreference is the persisted projection of Playlist.IsSynced.
// Two preferences are equal when their IDs match.
type SyncPreference struct {
	ID      string
	Enabled bool
}

// IndexPreference returns the position of id in prefs, or -1.
func IndexPreference(prefs []SyncPreference, id string) int {
	for i, p := range prefs {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// EnablePreference records id as enabled. It reports whether prefs changed;
// an existing disabled entry is flipped in place, a missing one is appended.
func EnablePreference(prefs []SyncPreference, id string) ([]SyncPreference, bool) {
	if i := IndexPreference(prefs, id); i >= 0 {
		if prefs[i].Enabled {
			return prefs, false
		}
		prefs[i].Enabled = true
		return prefs, true
	}
	return append(prefs, SyncPreference{ID: id, Enabled: true}), true
}
