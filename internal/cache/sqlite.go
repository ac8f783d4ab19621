package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"thumbcache/internal/logging"
	"thumbcache/internal/metrics"
)

const defaultTimeout = 5 * time.Second

// SQLite stores encoded thumbnails as blobs in a single SQLite database file.
// It suits deployments where many small files are expensive, such as NFS.
type SQLite struct {
	db   *sql.DB
	path string
}

// NewSQLite opens (creating if needed) the database at path.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL lets stage workers read while a write is in progress.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLite{db: db, path: path}
	if err := s.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	logging.Info("SQLite thumbnail cache initialized at %s", path)
	return s, nil
}

func (s *SQLite) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS thumbnails (
		cache_key TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		size INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		accessed_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_thumbnails_accessed_at ON thumbnails(accessed_at);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Get returns the blob stored under key.
func (s *SQLite) Get(key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM thumbnails WHERE cache_key = ?`, key).Scan(&data)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logging.Warn("SQLite cache read failed for %q: %v", key, err)
		}
		recordLookup(tierDisk, false)
		return nil, false
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE thumbnails SET accessed_at = ? WHERE cache_key = ?`, time.Now().UnixNano(), key); err != nil {
		logging.Debug("SQLite cache access time update failed for %q: %v", key, err)
	}

	recordLookup(tierDisk, true)
	return data, true
}

// Insert stores data under key, replacing any existing blob.
func (s *SQLite) Insert(key string, data []byte) error {
	if len(data) == 0 {
		return errors.New("refusing to cache empty data")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	now := time.Now().UnixNano()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO thumbnails (cache_key, data, size, created_at, accessed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			data = excluded.data,
			size = excluded.size,
			accessed_at = excluded.accessed_at`,
		key, data, len(data), now, now)
	recordWrite(tierDisk, err)
	if err != nil {
		return fmt.Errorf("insert cache entry: %w", err)
	}
	return nil
}

// Remove deletes the blob for key.
func (s *SQLite) Remove(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM thumbnails WHERE cache_key = ?`, key); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// Stats reports row count and total payload size.
func (s *SQLite) Stats() (Stats, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(size), 0) FROM thumbnails`).Scan(&st.Entries, &st.Bytes)
	if err != nil {
		return Stats{}, fmt.Errorf("query cache stats: %w", err)
	}
	return st, nil
}

// Trim deletes least recently accessed rows until the total payload is at
// most maxBytes.
func (s *SQLite) Trim(maxBytes int64) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 4*defaultTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin trim: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var total int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(SUM(size), 0) FROM thumbnails`).Scan(&total); err != nil {
		return 0, fmt.Errorf("query cache size: %w", err)
	}
	if total <= maxBytes {
		return 0, nil
	}

	rows, err := tx.QueryContext(ctx, `SELECT cache_key, size FROM thumbnails ORDER BY accessed_at ASC`)
	if err != nil {
		return 0, fmt.Errorf("list cache entries: %w", err)
	}

	var victims []string
	for rows.Next() && total > maxBytes {
		var key string
		var size int64
		if err := rows.Scan(&key, &size); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("scan cache entry: %w", err)
		}
		victims = append(victims, key)
		total -= size
	}
	if err := rows.Close(); err != nil {
		return 0, fmt.Errorf("close cache rows: %w", err)
	}

	for _, key := range victims {
		if _, err := tx.ExecContext(ctx, `DELETE FROM thumbnails WHERE cache_key = ?`, key); err != nil {
			return 0, fmt.Errorf("delete cache entry: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit trim: %w", err)
	}

	metrics.CacheEvictionsTotal.WithLabelValues(tierDisk).Add(float64(len(victims)))
	logging.Info("Trimmed %d SQLite cache entries, %d bytes remain", len(victims), total)
	return len(victims), nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	logging.Info("Closing SQLite thumbnail cache")
	return s.db.Close()
}
