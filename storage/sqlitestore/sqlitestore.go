package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/storage"
)

const schema = `CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

var _ storage.KV = (*SQLiteStore)(nil)

// SQLiteStore persists keys in a single sqlite table.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (or creates) the database at path. Use ":memory:" for a throwaway store.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("[sqlitestore.Open] path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "[sqlitestore.Open] sql.Open %s", path)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "[sqlitestore.Open] create schema")
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Read(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Join(errors.ErrStorageRead, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Write(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return errors.Join(errors.ErrStorageWrite, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return errors.Join(errors.ErrStorageDelete, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
