package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hazz-dev/cratecheck/internal/checker"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS checks (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    name         TEXT    NOT NULL,
    availability TEXT    NOT NULL CHECK(availability IN ('Available', 'Unavailable', 'Unknown')),
    status_code  INTEGER NOT NULL DEFAULT 0,
    response_ms  INTEGER NOT NULL,
    error        TEXT    NOT NULL DEFAULT '',
    checked_at   TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_checks_name ON checks(name);
CREATE INDEX IF NOT EXISTS idx_checks_checked_at ON checks(checked_at DESC);
CREATE INDEX IF NOT EXISTS idx_checks_name_checked ON checks(name, checked_at DESC);
`

// Check is a stored lookup result.
type Check struct {
	ID           int64                `json:"id"`
	Name         string               `json:"name"`
	Availability checker.Availability `json:"availability"`
	StatusCode   int                  `json:"status_code"`
	ResponseMs   int64                `json:"response_ms"`
	Error        string               `json:"error"`
	CheckedAt    time.Time            `json:"checked_at"`
}

// DB wraps a SQLite database.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and applies the schema.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite at %q: %w", path, err)
	}
	// A single connection keeps ":memory:" databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=5000",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// timeLayout is fixed width so that checked_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// InsertCheck persists a lookup result.
func (d *DB) InsertCheck(ctx context.Context, r checker.Result) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO checks (name, availability, status_code, response_ms, error, checked_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.Name,
		r.Availability.String(),
		r.StatusCode,
		r.ResponseTime.Milliseconds(),
		r.Error,
		r.CheckedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting check for %q: %w", r.Name, err)
	}
	return nil
}

// LatestCheck returns the most recent check for the given name, or nil if none.
func (d *DB) LatestCheck(ctx context.Context, name string) (*Check, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, name, availability, status_code, response_ms, error, checked_at FROM checks WHERE name = ? ORDER BY checked_at DESC, id DESC LIMIT 1`,
		name,
	)
	c, err := scanCheck(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest check for %q: %w", name, err)
	}
	return c, nil
}

// NameHistory returns paginated check history for a name plus the total count.
func (d *DB) NameHistory(ctx context.Context, name string, limit, offset int) ([]Check, int, error) {
	var total int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM checks WHERE name = ?`, name,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting checks for %q: %w", name, err)
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT id, name, availability, status_code, response_ms, error, checked_at FROM checks WHERE name = ? ORDER BY checked_at DESC, id DESC LIMIT ? OFFSET ?`,
		name, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("querying history for %q: %w", name, err)
	}
	defer rows.Close()

	checks, err := scanChecks(rows)
	if err != nil {
		return nil, 0, err
	}
	return checks, total, nil
}

// AllLatest returns the most recent check for each name.
func (d *DB) AllLatest(ctx context.Context) ([]Check, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, name, availability, status_code, response_ms, error, checked_at
		FROM checks
		WHERE id IN (
			SELECT MAX(id) FROM checks GROUP BY name
		)
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("querying all latest: %w", err)
	}
	defer rows.Close()
	return scanChecks(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCheck(row scanner) (*Check, error) {
	var c Check
	var availability, checkedAt string
	err := row.Scan(&c.ID, &c.Name, &availability, &c.StatusCode, &c.ResponseMs, &c.Error, &checkedAt)
	if err != nil {
		return nil, err
	}
	c.Availability, err = checker.ParseAvailability(availability)
	if err != nil {
		return nil, fmt.Errorf("parsing availability: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, checkedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing checked_at %q: %w", checkedAt, err)
	}
	c.CheckedAt = t
	return &c, nil
}

func scanChecks(rows *sql.Rows) ([]Check, error) {
	var checks []Check
	for rows.Next() {
		c, err := scanCheck(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning check row: %w", err)
		}
		checks = append(checks, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating check rows: %w", err)
	}
	return checks, nil
}
