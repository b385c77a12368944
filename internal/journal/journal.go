// Package journal keeps a local SQLite record of every highlight and note
// paperclip tried to file, with the outcome of the remote write. It is a
// log for the user, never a queue: nothing in it is replayed.
package journal

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Kind string

const (
	KindHighlight Kind = "highlight"
	KindNote      Kind = "note"
)

type Status string

const (
	StatusSynced  Status = "synced"
	StatusFailed  Status = "failed"
	StatusDropped Status = "dropped"
)

// Entry is one recorded item.
type Entry struct {
	ID         string
	Kind       Kind
	Paper      string
	PageID     string
	Body       string
	Status     Status
	Error      string
	CapturedAt time.Time
	RecordedAt time.Time
}

// PaperSummary aggregates the entries of one paper.
type PaperSummary struct {
	Paper      string
	Highlights int
	Notes      int
	Failed     int
	LastAt     time.Time
}

// Store is the SQLite-backed journal.
type Store struct {
	db  *sql.DB
	now func() time.Time

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// Open opens (or creates) the journal at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// One writer at a time; the recorder is the only one anyway.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &Store{
		db:      db,
		now:     time.Now,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate runs the embedded SQL files that have not been applied yet.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		var count int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}
		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) newULID(at time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), s.entropy).String()
}

// Record inserts e, filling ID and RecordedAt.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	if e.Kind != KindHighlight && e.Kind != KindNote {
		return fmt.Errorf("unknown entry kind %q", e.Kind)
	}
	e.RecordedAt = s.now().UTC()
	if e.CapturedAt.IsZero() {
		e.CapturedAt = e.RecordedAt
	}
	if e.ID == "" {
		e.ID = s.newULID(e.RecordedAt)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (id, kind, paper, page_id, body, status, error, captured_at, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Kind), e.Paper, e.PageID, e.Body, string(e.Status), e.Error,
		formatTime(e.CapturedAt), formatTime(e.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("record %s: %w", e.Kind, err)
	}
	return nil
}

// Filter narrows Recent.
type Filter struct {
	Paper  string
	Status Status
	Limit  int
}

// Recent returns the newest entries first.
func (s *Store) Recent(ctx context.Context, f Filter) ([]Entry, error) {
	var where []string
	var args []any
	if f.Paper != "" {
		where = append(where, "paper = ?")
		args = append(args, f.Paper)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	query := `SELECT id, kind, paper, page_id, body, status, error, captured_at, recorded_at FROM entries`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY recorded_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var kind, status, captured, recorded string
		if err := rows.Scan(&e.ID, &kind, &e.Paper, &e.PageID, &e.Body, &status, &e.Error, &captured, &recorded); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Kind, e.Status = Kind(kind), Status(status)
		e.CapturedAt = parseTime(captured)
		e.RecordedAt = parseTime(recorded)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Papers summarises entries per paper, most recently active first.
func (s *Store) Papers(ctx context.Context) ([]PaperSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT paper,
			SUM(CASE WHEN kind = 'highlight' AND status = 'synced' THEN 1 ELSE 0 END),
			SUM(CASE WHEN kind = 'note' AND status = 'synced' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status != 'synced' THEN 1 ELSE 0 END),
			MAX(recorded_at)
		FROM entries GROUP BY paper ORDER BY MAX(recorded_at) DESC`)
	if err != nil {
		return nil, fmt.Errorf("summarise papers: %w", err)
	}
	defer rows.Close()

	var out []PaperSummary
	for rows.Next() {
		var p PaperSummary
		var last string
		if err := rows.Scan(&p.Paper, &p.Highlights, &p.Notes, &p.Failed, &last); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		p.LastAt = parseTime(last)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
