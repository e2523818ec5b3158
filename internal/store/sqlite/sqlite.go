/*
Package sqlite persists named bookmarks of the date slicer in SQLite.

A bookmark is a captured snapshot blob under a name. Only the preset and the
clear flag are stored: absolute dates would go stale the day after they were
captured, so they are stripped on save.

USAGE:

	store, err := sqlite.New("./data/slicer.db")
	if err != nil {
		return err
	}
	defer store.Close()

	err = store.Save(ctx, "last week", widget.CaptureState())

Use ":memory:" for an in-memory database.
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sweeney/date-slicer/internal/daterange"
	"github.com/sweeney/date-slicer/internal/reconcile"
)

var (
	// ErrBookmarkNotFound is returned when no bookmark has the given name.
	ErrBookmarkNotFound = errors.New("bookmark not found")

	// ErrInvalidName is returned for empty bookmark names.
	ErrInvalidName = errors.New("invalid bookmark name")
)

// Bookmark is a named snapshot.
type Bookmark struct {
	Name      string             `json:"name"`
	Snapshot  reconcile.Snapshot `json:"snapshot"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// Store keeps bookmarks in a SQLite database.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

// New opens (and creates if needed) the database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A second connection to ":memory:" would see an empty database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, now: time.Now}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS bookmarks (
		name TEXT PRIMARY KEY,
		preset_id TEXT NOT NULL,
		is_clear_selection INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save creates or replaces the bookmark called name.
func (s *Store) Save(ctx context.Context, name string, snap reconcile.Snapshot) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO bookmarks (name, preset_id, is_clear_selection, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			preset_id = excluded.preset_id,
			is_clear_selection = excluded.is_clear_selection,
			updated_at = excluded.updated_at
	`

	now := s.now().UTC().Format(time.RFC3339Nano)
	preset := daterange.ParsePreset(string(snap.PresetID))
	if _, err := s.db.ExecContext(ctx, query, name, string(preset), snap.IsClearSelection, now, now); err != nil {
		return fmt.Errorf("save bookmark %q: %w", name, err)
	}
	return nil
}

// Get returns the bookmark called name.
func (s *Store) Get(ctx context.Context, name string) (Bookmark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT name, preset_id, is_clear_selection, created_at, updated_at FROM bookmarks WHERE name = ?",
		name,
	)
	b, err := scanBookmark(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Bookmark{}, fmt.Errorf("%w: %q", ErrBookmarkNotFound, name)
	}
	if err != nil {
		return Bookmark{}, fmt.Errorf("get bookmark %q: %w", name, err)
	}
	return b, nil
}

// List returns all bookmarks ordered by name.
func (s *Store) List(ctx context.Context) ([]Bookmark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT name, preset_id, is_clear_selection, created_at, updated_at FROM bookmarks ORDER BY name",
	)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	defer rows.Close()

	var bookmarks []Bookmark
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, fmt.Errorf("list bookmarks: %w", err)
		}
		bookmarks = append(bookmarks, b)
	}
	return bookmarks, rows.Err()
}

// Delete removes the bookmark called name.
func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM bookmarks WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("delete bookmark %q: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %q", ErrBookmarkNotFound, name)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBookmark(row scanner) (Bookmark, error) {
	var (
		b                    Bookmark
		preset               string
		createdAt, updatedAt string
	)
	if err := row.Scan(&b.Name, &preset, &b.Snapshot.IsClearSelection, &createdAt, &updatedAt); err != nil {
		return Bookmark{}, err
	}
	b.Snapshot.PresetID = daterange.PresetID(preset)
	b.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	b.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return b, nil
}
