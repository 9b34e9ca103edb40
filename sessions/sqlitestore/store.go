// Package sqlitestore persists the session record in a SQLite key/value table.
package sqlitestore

import (
	"database/sql"
	"os"
	"path/filepath"

	"github.com/HARD953/distribut-sub001/sessions"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

var _ sessions.Repo = (*Store)(nil)

const schema = `CREATE TABLE IF NOT EXISTS session_slots (slot TEXT PRIMARY KEY, value TEXT NOT NULL);`

const upsertSlot = `INSERT INTO session_slots (slot, value) VALUES (?, ?)
	ON CONFLICT(slot) DO UPDATE SET value = excluded.value`

type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the database at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("[sqlitestore.Open] path is required")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, errors.Wrap(err, "[sqlitestore.Open] mkdir")
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "[sqlitestore.Open] sql.Open")
	}
	// A single connection serialises writers, SQLite locks the file anyway.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.Init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Init() error {
	if _, err := s.db.Exec(schema); err != nil {
		return errors.Wrap(err, "[sqlitestore.Init] schema")
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Load() (*sessions.Record, error) {
	rows, err := s.db.Query(`SELECT slot, value FROM session_slots`)
	if err != nil {
		return nil, errors.Wrap(err, "[sqlitestore.Load] query")
	}
	defer rows.Close()

	rec := &sessions.Record{}
	for rows.Next() {
		var slot, value string
		if err := rows.Scan(&slot, &value); err != nil {
			return nil, errors.Wrap(err, "[sqlitestore.Load] scan")
		}
		switch sessions.Slot(slot) {
		case sessions.SlotAccess:
			rec.Access = value
		case sessions.SlotRefresh:
			rec.Refresh = value
		case sessions.SlotUser:
			rec.User = sessions.DecodeUser(value)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "[sqlitestore.Load] rows")
	}
	return rec, nil
}

func (s *Store) Save(rec *sessions.Record) error {
	user := ""
	if rec != nil {
		var err error
		if user, err = sessions.EncodeUser(rec.User); err != nil {
			return errors.Wrap(err, "[sqlitestore.Save] encode user")
		}
	} else {
		rec = &sessions.Record{}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "[sqlitestore.Save] begin")
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(`DELETE FROM session_slots`); err != nil {
		return errors.Wrap(err, "[sqlitestore.Save] reset")
	}
	for slot, value := range map[sessions.Slot]string{
		sessions.SlotAccess:  rec.Access,
		sessions.SlotRefresh: rec.Refresh,
		sessions.SlotUser:    user,
	} {
		if value == "" {
			continue
		}
		if _, err := tx.Exec(upsertSlot, string(slot), value); err != nil {
			return errors.Wrapf(err, "[sqlitestore.Save] slot %s", slot)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "[sqlitestore.Save] commit")
	}
	return nil
}

func (s *Store) SaveAccess(access string) error {
	if access == "" {
		_, err := s.db.Exec(`DELETE FROM session_slots WHERE slot = ?`, string(sessions.SlotAccess))
		return errors.Wrap(err, "[sqlitestore.SaveAccess] delete")
	}
	if _, err := s.db.Exec(upsertSlot, string(sessions.SlotAccess), access); err != nil {
		return errors.Wrap(err, "[sqlitestore.SaveAccess] upsert")
	}
	return nil
}

func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM session_slots`); err != nil {
		return errors.Wrap(err, "[sqlitestore.Clear] delete")
	}
	return nil
}
