// Package store persists the aggregate snapshot, notification settings, and
// notification state in SQLite. It is a small key-value layer: each
// well-known key maps to one JSON document.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"canvasflow/internal/canvas"
)

// Well-known keys.
const (
	KeyAggregate         = "aggregate"
	KeySettings          = "notification_settings"
	KeyNotificationState = "notification_state"
	KeyDetectedURLs      = "detected_canvas_urls"
)

// ErrNotFound is returned when a key has never been written.
var ErrNotFound = errors.New("store: key not found")

// Store is the durable cache backing the sync coordinator and the
// notification engine.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	logger *zap.Logger
}

// Open initializes the SQLite database at path, creating the schema and
// parent directory if needed.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logger.Debug("failed to set busy_timeout", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logger.Debug("failed to set journal_mode=WAL", zap.Error(err))
	}

	s := &Store{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Get unmarshals the JSON document at key into out.
func (s *Store) Get(key string, out any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw string
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %q: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decode %q: %w", key, err)
	}
	return nil
}

// Set marshals value to JSON and upserts it at key.
func (s *Store) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, string(raw), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// LoadAggregate returns the cached aggregate, or an empty one if none has
// been persisted yet.
func (s *Store) LoadAggregate() (*canvas.Aggregate, error) {
	ag := canvas.NewAggregate()
	err := s.Get(KeyAggregate, ag)
	if errors.Is(err, ErrNotFound) {
		return canvas.NewAggregate(), nil
	}
	if err != nil {
		return nil, err
	}
	if ag.Assignments == nil {
		ag.Assignments = map[string][]canvas.Assignment{}
	}
	return ag, nil
}

// SaveAggregate persists the aggregate snapshot.
func (s *Store) SaveAggregate(ag *canvas.Aggregate) error {
	return s.Set(KeyAggregate, ag)
}
