package store

import (
	"database/sql"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/mvalim/textsync/internal/store/migrations"
)

// migrateDB applies all pending schema migrations. Called on every 0->1
// Acquire transition so a fresh or stale database is always usable.
func migrateDB(db *sql.DB) error {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("migration instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration up: %w", err)
	}
	return nil
}

// SchemaVersion reports the current migration version, for diagnostics.
func (s *Store) SchemaVersion() (uint, error) {
	row, err := s.QueryRow(`SELECT version FROM schema_migrations LIMIT 1`)
	if err != nil {
		return 0, err
	}
	var v uint
	if err := row.Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}
