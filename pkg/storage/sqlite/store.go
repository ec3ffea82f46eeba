// Package sqlite provides a SQLite-backed persist.Storage. Every slot is one
// row of a key/value table, so a write-back is a single upsert.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	persist "github.com/goliatone/go-persist"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// DefaultTable is the table used when no table name is configured.
const DefaultTable = "persist_items"

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Store persists slots in SQLite.
type Store struct {
	sqlDB *sql.DB
	table string
	owned bool
}

// Option configures a Store.
type Option func(*Store)

// WithTable overrides the table name. Names that are not plain identifiers
// are rejected by Open.
func WithTable(name string) Option {
	return func(s *Store) {
		s.table = strings.TrimSpace(name)
	}
}

// Open opens the database at path and creates the table if needed.
func Open(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite: storage path is required")
	}
	dsn := MemoryPath
	if path != MemoryPath {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open db: %w", err)
	}
	if path == MemoryPath {
		// Each pooled connection would otherwise see its own empty database.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlite: ping db: %w", err)
	}
	store, err := New(sqlDB, opts...)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	store.owned = true
	return store, nil
}

// New wraps an existing handle. The caller keeps ownership of sqlDB and Close
// leaves it open.
func New(sqlDB *sql.DB, opts ...Option) (*Store, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("sqlite: db is required")
	}
	s := &Store{sqlDB: sqlDB, table: DefaultTable}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if !validTable(s.table) {
		return nil, fmt.Errorf("sqlite: invalid table name %q", s.table)
	}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.sqlDB.Exec(fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`, s.table))
	if err != nil {
		return fmt.Errorf("sqlite: create table %s: %w", s.table, err)
	}
	return nil
}

// Close closes the handle when the store opened it.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil || !s.owned {
		return nil
	}
	return s.sqlDB.Close()
}

// GetItem implements persist.Storage.
func (s *Store) GetItem(key string) (string, bool, error) {
	var value string
	err := s.sqlDB.QueryRow(fmt.Sprintf("SELECT value FROM %s WHERE key = ?", s.table), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlite: get %q: %w", key, err)
	}
	return value, true, nil
}

// SetItem implements persist.Storage.
func (s *Store) SetItem(key, value string) error {
	_, err := s.sqlDB.Exec(
		fmt.Sprintf(`INSERT INTO %s (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`, s.table),
		key, value, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: set %q: %w", key, classify(err))
	}
	return nil
}

// RemoveItem implements persist.Remover.
func (s *Store) RemoveItem(key string) error {
	if _, err := s.sqlDB.Exec(fmt.Sprintf("DELETE FROM %s WHERE key = ?", s.table), key); err != nil {
		return fmt.Errorf("sqlite: remove %q: %w", key, err)
	}
	return nil
}

// Keys implements persist.Lister. Keys are returned sorted.
func (s *Store) Keys() ([]string, error) {
	rows, err := s.sqlDB.Query(fmt.Sprintf("SELECT key FROM %s ORDER BY key", s.table))
	if err != nil {
		return nil, fmt.Errorf("sqlite: list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("sqlite: scan key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list keys: %w", err)
	}
	return keys, nil
}

// UpdatedAt reports when key was last written.
func (s *Store) UpdatedAt(key string) (time.Time, bool, error) {
	var millis int64
	err := s.sqlDB.QueryRow(fmt.Sprintf("SELECT updated_at FROM %s WHERE key = ?", s.table), key).Scan(&millis)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("sqlite: updated_at %q: %w", key, err)
	}
	return time.UnixMilli(millis).UTC(), true, nil
}

// classify maps a full database onto persist.ErrQuotaExceeded.
func classify(err error) error {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code()&0xff == sqlite3lib.SQLITE_FULL {
		return errors.Join(persist.ErrQuotaExceeded, err)
	}
	return err
}

func validTable(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
