package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/yegors/flightrec/pkg/logger"
	_ "modernc.org/sqlite"
)

// CacheStorage is a SQLite-backed cache.Store
type CacheStorage struct {
	db     *sql.DB
	logger *logger.Logger
	now    func() time.Time
}

// NewCacheStorage opens (or creates) the cache database at dbPath
func NewCacheStorage(dbPath string, log *logger.Logger) (*CacheStorage, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite cache",
		logger.String("path", dbPath))

	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if err := initDatabase(db, storageLogger); err != nil {
		db.Close()
		return nil, err
	}

	return &CacheStorage{
		db:     db,
		logger: storageLogger,
		now:    time.Now,
	}, nil
}

// initDatabase initializes the database schema
func initDatabase(db *sql.DB, log *logger.Logger) error {
	log.Debug("Initializing database schema")

	// expires_at is a unix timestamp, NULL for entries that never expire
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS cache_entries (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value BLOB NOT NULL,
			expires_at INTEGER,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (namespace, key)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create cache_entries table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_cache_entries_expires_at ON cache_entries(expires_at)`)
	if err != nil {
		return fmt.Errorf("failed to create index on cache_entries.expires_at: %w", err)
	}

	return nil
}

// SetClock replaces the time source used for expiry
func (s *CacheStorage) SetClock(now func() time.Time) {
	s.now = now
}

// Get returns the value stored under (namespace, key) if it has not expired
func (s *CacheStorage) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	var value []byte
	var expiresAt sql.NullInt64

	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM cache_entries WHERE namespace = ? AND key = ?`,
		namespace, key,
	).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query cache entry: %w", err)
	}

	if expiresAt.Valid && s.now().Unix() >= expiresAt.Int64 {
		return nil, false, nil
	}
	return value, true, nil
}

// Put stores value under (namespace, key), replacing any previous entry
func (s *CacheStorage) Put(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	var expiresAt sql.NullInt64
	if ttl > 0 {
		expiresAt = sql.NullInt64{Int64: s.now().Add(ttl).Unix(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (namespace, key, value, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at,
			created_at = CURRENT_TIMESTAMP
	`, namespace, key, value, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}

	s.logger.Debug("Cache entry stored",
		logger.String("namespace", namespace),
		logger.String("key", key),
		logger.Int("bytes", len(value)))
	return nil
}

// Purge deletes expired entries and returns how many were removed
func (s *CacheStorage) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at IS NOT NULL AND expires_at <= ?`,
		s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged entries: %w", err)
	}
	if n > 0 {
		s.logger.Info("Purged expired cache entries", logger.Int64("count", n))
	}
	return n, nil
}

// Count returns the number of stored entries in a namespace
func (s *CacheStorage) Count(ctx context.Context, namespace string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cache_entries WHERE namespace = ?`, namespace,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return n, nil
}

// Close closes the database connection
func (s *CacheStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
