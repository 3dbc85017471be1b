package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Put stores payload as JSON under key, tagged with the content hash it was
// computed from. A ttl <= 0 uses DefaultTTL.
func (s *Store) Put(ctx context.Context, key, hash string, payload any, ttl time.Duration) error {
	if s.db == nil {
		return ErrNotOpen
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", key, err)
	}
	now := s.now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO cache (key, content_hash, payload, created_at, expires_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET
		   content_hash = excluded.content_hash,
		   payload = excluded.payload,
		   created_at = excluded.created_at,
		   expires_at = excluded.expires_at`,
		key, hash, string(data), now.UnixNano(), now.Add(ttl).UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to store cache entry %s: %w", key, err)
	}
	return nil
}

// Get decodes the entry under key into dst. It reports false, leaving dst
// untouched, when the entry is missing, expired, or was computed from a
// different content hash.
func (s *Store) Get(ctx context.Context, key, hash string, dst any) (bool, error) {
	if s.db == nil {
		return false, ErrNotOpen
	}
	var (
		storedHash string
		payload    string
		expires    int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT content_hash, payload, expires_at FROM cache WHERE key = ?`, key,
	).Scan(&storedHash, &payload, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cache entry %s: %w", key, err)
	}
	if storedHash != hash {
		s.logger.Debug("cache entry stale", "key", key)
		return false, nil
	}
	if s.now().UnixNano() >= expires {
		s.logger.Debug("cache entry expired", "key", key)
		return false, nil
	}
	if err := json.Unmarshal([]byte(payload), dst); err != nil {
		return false, fmt.Errorf("failed to decode cache entry %s: %w", key, err)
	}
	return true, nil
}

// Purge deletes expired entries and returns how many were removed.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, ErrNotOpen
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache WHERE expires_at <= ?`, s.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	n, _ := res.RowsAffected()
	s.logger.Debug("cache purged", "removed", n)
	return n, nil
}

// Clear deletes every cache entry.
func (s *Store) Clear(ctx context.Context) error {
	if s.db == nil {
		return ErrNotOpen
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache`); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}
