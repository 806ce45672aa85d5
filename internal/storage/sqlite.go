package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pauljones0/gapfinder/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	namespace TEXT NOT NULL,
	key       TEXT NOT NULL,
	payload   BLOB NOT NULL,
	stored_at INTEGER NOT NULL,
	PRIMARY KEY (namespace, key)
);`

// SQLite is the default durable backend, one row per namespaced key.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the cache database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite mkdir: %w", err)
		}
	}
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(ctx context.Context, namespace models.Namespace, key string) (models.CacheEntry, bool, error) {
	var payload []byte
	var storedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, stored_at FROM cache_entries WHERE namespace = ? AND key = ?`,
		string(namespace), key).Scan(&payload, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CacheEntry{}, false, nil
	}
	if err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("sqlite get %s/%s: %w", namespace, key, err)
	}
	return models.CacheEntry{
		Namespace: namespace,
		Key:       key,
		Payload:   payload,
		StoredAt:  time.UnixMilli(storedAt).UTC(),
	}, true, nil
}

func (s *SQLite) Put(ctx context.Context, entry models.CacheEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (namespace, key, payload, stored_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET payload = excluded.payload, stored_at = excluded.stored_at`,
		string(entry.Namespace), entry.Key, []byte(entry.Payload), entry.StoredAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("sqlite put %s/%s: %w", entry.Namespace, entry.Key, err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, namespace models.Namespace, key string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE namespace = ? AND key = ?`, string(namespace), key); err != nil {
		return fmt.Errorf("sqlite delete %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *SQLite) List(ctx context.Context, namespace models.Namespace) ([]models.CacheEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, payload, stored_at FROM cache_entries WHERE namespace = ? ORDER BY key`, string(namespace))
	if err != nil {
		return nil, fmt.Errorf("sqlite list %s: %w", namespace, err)
	}
	defer rows.Close()

	out := []models.CacheEntry{}
	for rows.Next() {
		e := models.CacheEntry{Namespace: namespace}
		var storedAt int64
		var payload []byte
		if err := rows.Scan(&e.Key, &payload, &storedAt); err != nil {
			return nil, fmt.Errorf("sqlite scan %s: %w", namespace, err)
		}
		e.Payload = payload
		e.StoredAt = time.UnixMilli(storedAt).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLite) Count(ctx context.Context, namespace models.Namespace) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cache_entries WHERE namespace = ?`, string(namespace)).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite count %s: %w", namespace, err)
	}
	return n, nil
}

func (s *SQLite) Clear(ctx context.Context, namespace models.Namespace) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE namespace = ?`, string(namespace)); err != nil {
		return fmt.Errorf("sqlite clear %s: %w", namespace, err)
	}
	return nil
}

// Usage reports the database size in bytes.
func (s *SQLite) Usage(ctx context.Context) (int64, error) {
	var pages, size int64
	if err := s.db.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&pages); err != nil {
		return 0, fmt.Errorf("sqlite page_count: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `PRAGMA page_size`).Scan(&size); err != nil {
		return 0, fmt.Errorf("sqlite page_size: %w", err)
	}
	return pages * size, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
