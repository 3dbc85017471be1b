// Package state persists analysis runs and cached results in SQLite.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
	_ "modernc.org/sqlite"
)

// ErrNotOpen is returned by operations on a store without a connection.
var ErrNotOpen = errors.New("state store not opened")

// DefaultTTL is the cache lifetime used when Put is given none.
const DefaultTTL = 24 * time.Hour

// Store is a SQLite-backed state store.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a store. A nil logger discards output.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{logger: logger, now: time.Now}
}

// NewStoreWithDB wraps an existing connection.
func NewStoreWithDB(db *sql.DB, logger *slog.Logger) *Store {
	s := NewStore(logger)
	s.db = db
	return s
}

// Open connects to the database at path. Use ":memory:" for an in-memory
// database.
func (s *Store) Open(ctx context.Context, path string) error {
	dsn := "file::memory:?_pragma=foreign_keys(1)"
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	s.logger.Debug("state store opened", "path", path)
	return nil
}

// Close closes the connection. Closing an unopened store is a no-op.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Path returns the path given to Open.
func (s *Store) Path() string {
	return s.path
}

// ContentHash fingerprints a file set: xxh3 over every path and text in
// path order.
func ContentHash(files map[string]string) string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	h := xxh3.New()
	for _, p := range paths {
		_, _ = h.WriteString(p)
		_, _ = h.Write([]byte{0})
		_, _ = h.WriteString(files[p])
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

func generateID() string {
	return uuid.New().String()
}
