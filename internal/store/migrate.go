// ABOUTME: Embedded schema migrations applied with golang-migrate
// ABOUTME: Selects the sqlite or postgres migration set and database driver

package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/2389/notebox/internal/config"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrate applies all pending migrations for dialect on the database at dsn.
// It uses its own connection, closed before returning.
func Migrate(driverName, dsn string, dialect Dialect) error {
	src, err := iofs.New(migrationsFS, "migrations/"+dialect.String())
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return fmt.Errorf("opening migration connection: %w", err)
	}

	var drv database.Driver
	switch dialect {
	case DialectPostgres:
		drv, err = postgres.WithInstance(db, &postgres.Config{})
	default:
		drv, err = sqlite.WithInstance(db, &sqlite.Config{})
	}
	if err != nil {
		db.Close()
		return fmt.Errorf("creating migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, dialect.String(), drv)
	if err != nil {
		db.Close()
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// MigrateConfig applies pending migrations for a database config without
// keeping the store open.
func MigrateConfig(cfg config.DatabaseConfig) error {
	driverName, dsn, dialect, err := connectionString(cfg)
	if err != nil {
		return err
	}
	if dialect == DialectSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return fmt.Errorf("creating database directory: %w", err)
		}
	}
	return Migrate(driverName, dsn, dialect)
}
