// Package catalog keeps a SQLite index of captures: which device took
// each photo, when, and its content hash. The photo files themselves stay
// in the photo store; the catalog only describes them.
package catalog

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when no entry matches.
var ErrNotFound = errors.New("catalog: entry not found")

// Entry describes one captured photo.
type Entry struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	DeviceID   string    `json:"device_id"`
	Size       int64     `json:"size"`
	SHA256     string    `json:"sha256"`
	CapturedAt time.Time `json:"captured_at"`
}

// Catalog wraps the SQLite database.
type Catalog struct {
	db *sql.DB
}

// Open opens (and creates if needed) the catalog at path.
func Open(path string) (*Catalog, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create catalog directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	// SQLite allows a single writer; one connection avoids "database is locked".
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Catalog{db: db}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS captures (
		id TEXT PRIMARY KEY,
		name TEXT UNIQUE NOT NULL,
		device_id TEXT NOT NULL,
		size INTEGER NOT NULL,
		sha256 TEXT NOT NULL,
		captured_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_captures_captured_at ON captures(captured_at);
	CREATE INDEX IF NOT EXISTS idx_captures_sha256 ON captures(sha256);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create catalog tables: %w", err)
	}
	return nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// HashBytes returns the hex SHA-256 of data.
func HashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Record stores an entry for a saved photo. A photo overwritten under the
// same name replaces its previous entry.
func (c *Catalog) Record(ctx context.Context, name, deviceID string, data []byte, capturedAt time.Time) (*Entry, error) {
	e := &Entry{
		ID:         uuid.NewString(),
		Name:       name,
		DeviceID:   deviceID,
		Size:       int64(len(data)),
		SHA256:     HashBytes(data),
		CapturedAt: capturedAt.UTC(),
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO captures (id, name, device_id, size, sha256, captured_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			id = excluded.id,
			device_id = excluded.device_id,
			size = excluded.size,
			sha256 = excluded.sha256,
			captured_at = excluded.captured_at`,
		e.ID, e.Name, e.DeviceID, e.Size, e.SHA256, e.CapturedAt)
	if err != nil {
		return nil, fmt.Errorf("record capture %s: %w", name, err)
	}
	return e, nil
}

// Get returns the entry for a photo name.
func (c *Catalog) Get(ctx context.Context, name string) (*Entry, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, name, device_id, size, sha256, captured_at
		FROM captures WHERE name = ?`, name)
	var e Entry
	if err := row.Scan(&e.ID, &e.Name, &e.DeviceID, &e.Size, &e.SHA256, &e.CapturedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("get capture %s: %w", name, err)
	}
	return &e, nil
}

// List returns entries, most recent first. limit <= 0 means no limit.
func (c *Catalog) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, name, device_id, size, sha256, captured_at
		FROM captures ORDER BY captured_at DESC, name DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list captures: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Name, &e.DeviceID, &e.Size, &e.SHA256, &e.CapturedAt); err != nil {
			return nil, fmt.Errorf("scan capture: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Remove deletes the entry for a photo name. Missing entries are not an error.
func (c *Catalog) Remove(ctx context.Context, name string) error {
	if _, err := c.db.ExecContext(ctx, "DELETE FROM captures WHERE name = ?", name); err != nil {
		return fmt.Errorf("remove capture %s: %w", name, err)
	}
	return nil
}

// FindByHash returns the names of photos with the given content hash.
func (c *Catalog) FindByHash(ctx context.Context, sum string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT name FROM captures WHERE sha256 = ? ORDER BY name", sum)
	if err != nil {
		return nil, fmt.Errorf("find by hash: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}
