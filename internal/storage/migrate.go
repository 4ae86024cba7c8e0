package storage

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationManager applies the embedded schema migrations.
type MigrationManager struct {
	migrate *migrate.Migrate
}

// NewMigrationManager creates a migration manager for the SQLite database
// at dbPath.
func NewMigrationManager(dbPath string) (*MigrationManager, error) {
	migrationsDir, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to access migrations directory: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsDir, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	// Windows paths need forward slashes and a leading slash in the URL.
	normalizedPath := filepath.ToSlash(dbPath)
	if filepath.IsAbs(dbPath) && normalizedPath[0] != '/' {
		normalizedPath = "/" + normalizedPath
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, "sqlite://"+normalizedPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}

	return &MigrationManager{migrate: m}, nil
}

// Up applies all pending migrations.
func (mm *MigrationManager) Up() error {
	err := mm.migrate.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// Down rolls back every migration.
func (mm *MigrationManager) Down() error {
	err := mm.migrate.Down()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to rollback migrations: %w", err)
	}
	return nil
}

// Version returns the current migration version and dirty state. A fresh
// database reports version 0.
func (mm *MigrationManager) Version() (version uint, dirty bool, err error) {
	version, dirty, err = mm.migrate.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

// Close closes the migration manager and releases resources.
func (mm *MigrationManager) Close() error {
	srcErr, dbErr := mm.migrate.Close()
	if srcErr != nil {
		return fmt.Errorf("failed to close source: %w", srcErr)
	}
	if dbErr != nil {
		return fmt.Errorf("failed to close database: %w", dbErr)
	}
	return nil
}
