package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/glebarez/go-sqlite"
)

// ErrStorage marks every failure raised by this package. Callers branch
// with errors.Is; a storage failure is always recoverable (reads default
// to absent, writes roll back).
var ErrStorage = errors.New("storage failure")

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrStorage, err))
}

// Store is the durable key-value home of everything this app persists:
// the display order, per-asset meta records, and the action journal.
// Backed by SQLite in WAL mode; keys are exclusively owned by this
// process (the bootstrap lock file enforces single-instance access).
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the store at dbPath with WAL mode enabled.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, storageErr("open sqlite", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-2000;", // 2MB cache
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, storageErr("set pragma "+pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, storageErr("create metadata table", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS journal (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			ts INTEGER NOT NULL,
			detail TEXT NOT NULL DEFAULT ''
		);
	`)
	if err != nil {
		db.Close()
		return nil, storageErr("create journal table", err)
	}

	return &Store{db: db}, nil
}

// Put upserts a key-value pair into the metadata table.
func (s *Store) Put(ctx context.Context, key, value string, ts int64) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at",
		key, value, ts,
	)
	if err != nil {
		return storageErr("put "+key, err)
	}
	return nil
}

// Get retrieves a value from the metadata table. An absent key returns
// "" with no error.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", storageErr("get "+key, err)
	}
	return value, nil
}

// GetPrefix returns every key-value pair whose key starts with prefix.
func (s *Store) GetPrefix(ctx context.Context, prefix string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key, value FROM metadata WHERE key LIKE ? || '%'", prefix)
	if err != nil {
		return nil, storageErr("scan prefix "+prefix, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, storageErr("scan prefix row", err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate prefix rows", err)
	}
	return out, nil
}

// ReadStringList reads a JSON string list stored under key.
// Absent means nil with no error.
func (s *Store) ReadStringList(ctx context.Context, key string) ([]string, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}

	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, storageErr("decode list "+key, err)
	}
	return list, nil
}

// WriteStringList stores values under key as a JSON string list.
func (s *Store) WriteStringList(ctx context.Context, key string, values []string, ts int64) error {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return storageErr("encode list "+key, err)
	}
	return s.Put(ctx, key, string(raw), ts)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
