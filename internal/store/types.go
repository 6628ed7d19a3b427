package store

import "errors"

// ErrUnavailable is wrapped by every store operation that cannot reach the
// database. Callers treat it as "no memories", never as a crash.
var ErrUnavailable = errors.New("storage unavailable")

// Viewport records the window geometry at capture time.
type Viewport struct {
	Width   int `json:"width"`
	Height  int `json:"height"`
	ScrollY int `json:"scrollY"`
}

// Snapshot is the raw capture payload sent by the content script for one
// page visit, before it is merged into a Memory.
type Snapshot struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Domain      string   `json:"domain"`
	HTML        string   `json:"html"`
	TextContent string   `json:"textContent"`
	CSS         string   `json:"css,omitempty"`
	Timestamp   int64    `json:"timestamp"` // unix millis
	TimeSpent   int64    `json:"timeSpent"` // seconds on page for this visit
	Viewport    Viewport `json:"viewport"`
}

// Memory is the stored record of a visited page plus visit metadata.
// There is at most one Memory per URL; re-captures merge into it.
type Memory struct {
	ID          string   `json:"id"`
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Domain      string   `json:"domain"`
	HTML        string   `json:"html,omitempty"` // raw markup, empty after eviction
	TextContent string   `json:"textContent"`
	CSS         string   `json:"css,omitempty"`     // color/style digest
	Summary     string   `json:"summary,omitempty"` // model-produced digest
	Timestamp   int64    `json:"timestamp"`         // first seen, unix millis
	LastVisit   int64    `json:"lastVisit"`         // unix millis
	TimeSpent   int64    `json:"timeSpent"`         // cumulative seconds
	VisitCount  int      `json:"visitCount"`
	Viewport    Viewport `json:"viewport"`
}

// Recency is the time used for ordering and retention: the most recent of
// last visit and first capture.
func (m *Memory) Recency() int64 {
	if m.LastVisit > m.Timestamp {
		return m.LastVisit
	}
	return m.Timestamp
}

// UnlockEvent is an append-only audit record of a user opening a memory from
// a search result. It is analytics-only; the pipeline never reads it.
type UnlockEvent struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Query     string `json:"query"`
	Timestamp int64  `json:"timestamp"` // unix millis
	Success   bool   `json:"success"`
}

// Storage defines the interface for memory persistence.
type Storage interface {
	// Upsert merges a snapshot into the Memory for its URL, inserting a new
	// record on first capture. Triggers an asynchronous retention sweep.
	Upsert(snap *Snapshot) (*Memory, error)

	// GetAll returns every Memory ordered by recency, newest first.
	GetAll() ([]*Memory, error)

	// SetDigest writes enrichment output (summary, css theme) back to a Memory.
	SetDigest(id, summary, css string) error

	Count() (int, error)
	Clear() error

	// Unlock audit trail
	TrackUnlock(url, query string) error
	UnlockedCount() (int, error)

	// Configuration key/value storage
	SetConfig(key, value string) error
	GetConfig(key string) (string, error)

	Close() error
}
