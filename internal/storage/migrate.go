package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunMigrations brings the ledger schema up to date from the embedded
// migration files. It uses its own connection so the repository pool never
// observes a half-migrated schema.
func RunMigrations(dbPath string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open database for migration: %w", err)
	}
	defer db.Close()

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("sqlite migration driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("embedded migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("ledger-migrations", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Debug("Ledger schema already current", "path", dbPath)
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}

	if version, dirty, verr := m.Version(); verr == nil {
		slog.Info("Ledger schema migrated", "path", dbPath, "version", version, "dirty", dirty)
	}
	return nil
}
