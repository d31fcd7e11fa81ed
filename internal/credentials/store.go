// Package credentials persists per-profile passwords in a local SQLite
// database. Passwords are only ever handed to sshpass through its environment.
package credentials

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite" // migrate driver on modernc
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite" // register sqlite driver
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Store is a password table keyed by profile id.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies pending
// migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create credential dir: %w", err)
	}
	if err := runMigrations(path); err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return nil, fmt.Errorf("restrict credential db: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	return &Store{db: db}, nil
}

// runMigrations uses its own connection; migrate closes it when done.
func runMigrations(path string) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, "sqlite://"+path)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the stored password for id, or "" when none is stored.
func (s *Store) Get(id string) (string, error) {
	var pw string
	err := s.db.QueryRow(`SELECT password FROM passwords WHERE host = ?`, id).Scan(&pw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read password for %s: %w", id, err)
	}
	return pw, nil
}

func (s *Store) Set(id, password string) error {
	_, err := s.db.Exec(
		`INSERT INTO passwords (host, password, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(host) DO UPDATE SET password = excluded.password, updated_at = excluded.updated_at`,
		id, password, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("write password for %s: %w", id, err)
	}
	return nil
}

// Delete removes the password for id. Deleting a missing entry is not an
// error.
func (s *Store) Delete(id string) error {
	if _, err := s.db.Exec(`DELETE FROM passwords WHERE host = ?`, id); err != nil {
		return fmt.Errorf("delete password for %s: %w", id, err)
	}
	return nil
}

// IDs lists every profile id with a stored password.
func (s *Store) IDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT host FROM passwords ORDER BY host`)
	if err != nil {
		return nil, fmt.Errorf("list passwords: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
