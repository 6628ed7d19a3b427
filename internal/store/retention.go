package store

import (
	"fmt"
	"time"
)

// Policy bounds how many memories are kept and how stale they may grow.
// Both rules apply on every sweep: the count cap evicts oldest-by-recency
// entries beyond MaxEntries, and MaxAge evicts anything not seen since.
type Policy struct {
	MaxEntries int
	MaxAge     time.Duration
}

// DefaultPolicy mirrors the extension defaults: 1000 pages, 30 days.
var DefaultPolicy = Policy{
	MaxEntries: 1000,
	MaxAge:     30 * 24 * time.Hour,
}

// Sweep applies the retention policy as of the given time. Upsert triggers it
// asynchronously after every write; it is also safe to call directly.
func (s *SQLiteStore) Sweep(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer tx.Rollback()

	if s.retention.MaxEntries > 0 {
		// Keep the MaxEntries most recent, drop the rest.
		_, err = tx.Exec(`DELETE FROM memories WHERE id NOT IN (
			SELECT id FROM memories
			ORDER BY MAX(last_visit, timestamp) DESC
			LIMIT ?)`, s.retention.MaxEntries)
		if err != nil {
			return fmt.Errorf("%w: sweep cap: %v", ErrUnavailable, err)
		}
	}

	if s.retention.MaxAge > 0 {
		cutoff := now.Add(-s.retention.MaxAge).UnixMilli()
		_, err = tx.Exec(`DELETE FROM memories WHERE MAX(last_visit, timestamp) < ?`, cutoff)
		if err != nil {
			return fmt.Errorf("%w: sweep age: %v", ErrUnavailable, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
