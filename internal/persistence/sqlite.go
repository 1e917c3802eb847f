package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const kvSchema = `CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at TEXT NOT NULL DEFAULT (datetime('now'))
)`

// SQLiteSlot stores the snapshot as one row of a key/value table
type SQLiteSlot struct {
	db  *sql.DB
	key string
}

// NewSQLiteSlot opens (or creates) the database at path. Use ":memory:" for
// a throwaway database.
func NewSQLiteSlot(ctx context.Context, path, key string) (*SQLiteSlot, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create cart db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cart db: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serialises writes
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA busy_timeout = 10000",
		"PRAGMA journal_mode = WAL",
		kvSchema,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to prepare cart db: %w", err)
		}
	}

	return &SQLiteSlot{db: db, key: key}, nil
}

func (s *SQLiteSlot) Load(ctx context.Context) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", s.key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return data, nil
}

func (s *SQLiteSlot) Save(ctx context.Context, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, datetime('now'))
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.key, data)
	if err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

func (s *SQLiteSlot) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteSlot) Close() error {
	return s.db.Close()
}
