package settings

import (
	"database/sql"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"

	"github.com/osa030/plsync/internal/domain/playlist"
)

const schema = `
CREATE TABLE IF NOT EXISTS sync_preferences (
	section  TEXT    NOT NULL,
	position INTEGER NOT NULL,
	id       TEXT    NOT NULL,
	sync     INTEGER NOT NULL,
	PRIMARY KEY (section, position)
)`

// SQLiteStore keeps preferences in a SQLite table ordered by position.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the database at path.
// The path can be ":memory:" for an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to create schema")
	}
	return &SQLiteStore{db: db}, nil
}

// ReadArray returns the preferences of section in stored order.
func (s *SQLiteStore) ReadArray(section string) ([]playlist.SyncPreference, error) {
	rows, err := s.db.Query(
		`SELECT id, sync FROM sync_preferences WHERE section = ? ORDER BY position`,
		section,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query preferences")
	}
	defer rows.Close()

	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.ID, &e.Sync); err != nil {
			return nil, errors.Wrap(err, "failed to scan preference")
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate preferences")
	}
	return fromEntries(entries), nil
}

// WriteArray replaces section with prefs in one transaction.
func (s *SQLiteStore) WriteArray(section string, prefs []playlist.SyncPreference) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM sync_preferences WHERE section = ?`, section); err != nil {
		return errors.Wrap(err, "failed to clear section")
	}
	for i, e := range toEntries(prefs) {
		if _, err := tx.Exec(
			`INSERT INTO sync_preferences (section, position, id, sync) VALUES (?, ?, ?, ?)`,
			section, i, e.ID, e.Sync,
		); err != nil {
			return errors.Wrapf(err, "failed to insert preference %s", e.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit preferences")
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
