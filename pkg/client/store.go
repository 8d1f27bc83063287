package client

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// queuedRow is one buffered row: its local rowid (for ordering and
// deletion) and the gob-encoded domain.Record.
type queuedRow struct {
	rowid int64
	blob  []byte
}

// store wraps the embedded sqlite database backing one QueuedClient. Two
// ordered, autoincrement-rowid tables (inserts, updates) hold buffered
// records in the compact binary form (pkg/domain's gob codec).
type store struct {
	db *sql.DB
}

// openStore opens (creating if necessary) the sqlite file at path, applies
// WAL journaling, and brings its schema up to date via the embedded
// migrations.
func openStore(path string) (*store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("client: open store: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers anyway; avoid lock contention.

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("client: enable WAL journaling: %w", err)
	}

	if err := migrateStore(db); err != nil {
		db.Close()
		return nil, err
	}

	return &store{db: db}, nil
}

func migrateStore(db *sql.DB) error {
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("client: migration driver: %w", err)
	}

	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("client: migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("client: migration init: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("client: migration up: %w", err)
	}
	return nil
}

func (s *store) close() error {
	return s.db.Close()
}

func (s *store) enqueueInsert(blob []byte) error {
	_, err := s.db.Exec("INSERT INTO inserts (blob) VALUES (?)", blob)
	return err
}

func (s *store) enqueueUpdate(blob []byte) error {
	_, err := s.db.Exec("INSERT INTO updates (blob) VALUES (?)", blob)
	return err
}

// maxUpdateRowID returns the greatest rowid currently in updates, or 0 if
// the table is empty. The drainer snapshots this once per pass so an
// update enqueued mid-drain is not picked up until the next tick.
func (s *store) maxUpdateRowID() (int64, error) {
	var max sql.NullInt64
	if err := s.db.QueryRow("SELECT MAX(rowid) FROM updates").Scan(&max); err != nil {
		return 0, err
	}
	return max.Int64, nil
}

func (s *store) listInserts() ([]queuedRow, error) {
	return s.listRows("SELECT rowid, blob FROM inserts ORDER BY rowid ASC")
}

func (s *store) listUpdatesUpTo(maxRowID int64) ([]queuedRow, error) {
	return s.listRows("SELECT rowid, blob FROM updates WHERE rowid <= ? ORDER BY rowid ASC", maxRowID)
}

func (s *store) listRows(query string, args ...any) ([]queuedRow, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []queuedRow
	for rows.Next() {
		var r queuedRow
		if err := rows.Scan(&r.rowid, &r.blob); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *store) deleteInsert(rowid int64) error {
	_, err := s.db.Exec("DELETE FROM inserts WHERE rowid = ?", rowid)
	return err
}

func (s *store) deleteUpdate(rowid int64) error {
	_, err := s.db.Exec("DELETE FROM updates WHERE rowid = ?", rowid)
	return err
}

func (s *store) countInserts() (int64, error) {
	return s.count("SELECT COUNT(*) FROM inserts")
}

func (s *store) countUpdates() (int64, error) {
	return s.count("SELECT COUNT(*) FROM updates")
}

func (s *store) count(query string) (int64, error) {
	var n int64
	if err := s.db.QueryRow(query).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
