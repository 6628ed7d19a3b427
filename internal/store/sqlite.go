package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists memories and unlock events in a single SQLite file.
// Writes are serialized so that merge-upserts stay atomic per URL.
type SQLiteStore struct {
	db        *sql.DB
	retention Policy

	mu      sync.Mutex // serializes read-modify-write transactions
	sweepWG sync.WaitGroup
}

func NewSQLiteStore(dbPath string, retention Policy) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s := &SQLiteStore{
		db:        db,
		retention: retention,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// migrations is additive: each entry is applied once, gated on user_version,
// so new optional columns never touch existing rows.
var migrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL DEFAULT '',
			domain TEXT NOT NULL DEFAULT '',
			html TEXT NOT NULL DEFAULT '',
			text_content TEXT NOT NULL DEFAULT '',
			timestamp INTEGER NOT NULL,
			last_visit INTEGER NOT NULL,
			time_spent INTEGER NOT NULL DEFAULT 0,
			visit_count INTEGER NOT NULL DEFAULT 1,
			viewport_width INTEGER NOT NULL DEFAULT 0,
			viewport_height INTEGER NOT NULL DEFAULT 0,
			viewport_scroll_y INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_domain ON memories(domain)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_last_visit ON memories(last_visit)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_timestamp ON memories(timestamp)`,
		`CREATE TABLE IF NOT EXISTS unlock_events (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			query TEXT NOT NULL DEFAULT '',
			timestamp INTEGER NOT NULL,
			success INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE INDEX IF NOT EXISTS idx_unlock_events_url ON unlock_events(url)`,
		`CREATE INDEX IF NOT EXISTS idx_unlock_events_timestamp ON unlock_events(timestamp)`,
		`CREATE TABLE IF NOT EXISTS configuration (
			key TEXT PRIMARY KEY,
			value TEXT
		)`,
	},
	{
		// Enrichment fields produced after capture.
		`ALTER TABLE memories ADD COLUMN css TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE memories ADD COLUMN summary TEXT NOT NULL DEFAULT ''`,
	},
}

func (s *SQLiteStore) migrate() error {
	var version int
	if err := s.db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("%w: read schema version: %v", ErrUnavailable, err)
	}

	for v := version; v < len(migrations); v++ {
		for _, stmt := range migrations[v] {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("%w: migration %d: %v", ErrUnavailable, v+1, err)
			}
		}
		if _, err := s.db.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, v+1)); err != nil {
			return fmt.Errorf("%w: bump schema version: %v", ErrUnavailable, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	s.sweepWG.Wait()
	return s.db.Close()
}

const memoryColumns = `id, url, title, domain, html, text_content, css, summary,
	timestamp, last_visit, time_spent, visit_count,
	viewport_width, viewport_height, viewport_scroll_y`

func scanMemory(row interface{ Scan(...any) error }) (*Memory, error) {
	var m Memory
	err := row.Scan(&m.ID, &m.URL, &m.Title, &m.Domain, &m.HTML, &m.TextContent,
		&m.CSS, &m.Summary, &m.Timestamp, &m.LastVisit, &m.TimeSpent,
		&m.VisitCount, &m.Viewport.Width, &m.Viewport.Height, &m.Viewport.ScrollY)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Upsert merges a snapshot into the Memory for its URL. Content fields are
// overwritten, time spent is summed and the visit count incremented; a first
// capture inserts with visit_count 1. The retention sweep runs afterwards on
// its own goroutine so the triggering write never waits for it.
func (s *SQLiteStore) Upsert(snap *Snapshot) (*Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`SELECT `+memoryColumns+` FROM memories WHERE url = ?`, snap.URL)
	existing, err := scanMemory(row)

	var m *Memory
	switch {
	case err == sql.ErrNoRows:
		m = &Memory{
			ID:          uuid.NewString(),
			URL:         snap.URL,
			Title:       snap.Title,
			Domain:      snap.Domain,
			HTML:        snap.HTML,
			TextContent: snap.TextContent,
			CSS:         snap.CSS,
			Timestamp:   snap.Timestamp,
			LastVisit:   snap.Timestamp,
			TimeSpent:   snap.TimeSpent,
			VisitCount:  1,
			Viewport:    snap.Viewport,
		}
		_, err = tx.Exec(`INSERT INTO memories (`+memoryColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.URL, m.Title, m.Domain, m.HTML, m.TextContent, m.CSS, m.Summary,
			m.Timestamp, m.LastVisit, m.TimeSpent, m.VisitCount,
			m.Viewport.Width, m.Viewport.Height, m.Viewport.ScrollY)
		if err != nil {
			return nil, fmt.Errorf("%w: insert memory: %v", ErrUnavailable, err)
		}

	case err != nil:
		return nil, fmt.Errorf("%w: lookup memory: %v", ErrUnavailable, err)

	default:
		existing.Title = snap.Title
		existing.HTML = snap.HTML
		existing.TextContent = snap.TextContent
		if snap.CSS != "" {
			existing.CSS = snap.CSS
		}
		existing.LastVisit = snap.Timestamp
		existing.TimeSpent += snap.TimeSpent
		existing.VisitCount++
		existing.Viewport = snap.Viewport
		m = existing

		_, err = tx.Exec(`UPDATE memories SET title = ?, html = ?, text_content = ?,
			css = ?, last_visit = ?, time_spent = ?, visit_count = ?,
			viewport_width = ?, viewport_height = ?, viewport_scroll_y = ?
			WHERE id = ?`,
			m.Title, m.HTML, m.TextContent, m.CSS, m.LastVisit, m.TimeSpent,
			m.VisitCount, m.Viewport.Width, m.Viewport.Height, m.Viewport.ScrollY, m.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: update memory: %v", ErrUnavailable, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.sweepWG.Add(1)
	go func() {
		defer s.sweepWG.Done()
		_ = s.Sweep(time.Now())
	}()

	return m, nil
}

// GetAll returns every memory ordered by recency, newest first.
func (s *SQLiteStore) GetAll() ([]*Memory, error) {
	rows, err := s.db.Query(`SELECT ` + memoryColumns + ` FROM memories
		ORDER BY MAX(last_visit, timestamp) DESC`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var memories []*Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		memories = append(memories, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return memories, nil
}

// SetDigest writes enrichment output back to a memory. Empty arguments leave
// the stored value untouched, so a failed summarizer never erases a digest.
func (s *SQLiteStore) SetDigest(id, summary, css string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE memories SET
		summary = CASE WHEN ? != '' THEN ? ELSE summary END,
		css = CASE WHEN ? != '' THEN ? ELSE css END
		WHERE id = ?`, summary, summary, css, css, id)
	if err != nil {
		return fmt.Errorf("%w: set digest: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM memories`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n, nil
}

// Clear wipes memories and the unlock audit trail together.
func (s *SQLiteStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM memories`); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if _, err := tx.Exec(`DELETE FROM unlock_events`); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) TrackUnlock(url, query string) error {
	_, err := s.db.Exec(`INSERT INTO unlock_events (id, url, query, timestamp, success)
		VALUES (?, ?, ?, ?, 1)`,
		uuid.NewString(), url, query, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("%w: track unlock: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) UnlockedCount() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM unlock_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n, nil
}

// Configuration Implementation

func (s *SQLiteStore) SetConfig(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO configuration (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) GetConfig(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM configuration WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return value, nil
}
