package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // "pgx" driver for database/sql (migrations)
	"go.uber.org/zap"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFS embed.FS

// MigrateSQLite applies the cache schema to the SQLite file at path. It uses
// its own connection, closed before returning.
func MigrateSQLite(path string, logger *zap.Logger) error {
	db, err := OpenSQLite(path)
	if err != nil {
		return err
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create sqlite migration driver: %w", err)
	}
	return runMigrations(driver, "sqlite", "migrations/sqlite", logger)
}

// MigratePostgres applies the cache schema to the PostgreSQL database at url.
// It uses its own connection, closed before returning.
func MigratePostgres(url string, logger *zap.Logger) error {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return fmt.Errorf("failed to open sql connection: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create postgres migration driver: %w", err)
	}
	return runMigrations(driver, "postgres", "migrations/postgres", logger)
}

// runMigrations is idempotent: only pending migrations are executed. The
// driver (and its database) is closed on return.
func runMigrations(driver migratedb.Driver, name, dir string, logger *zap.Logger) error {
	src, err := iofs.New(migrationFS, dir)
	if err != nil {
		_ = driver.Close()
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, name, driver)
	if err != nil {
		_ = src.Close()
		_ = driver.Close()
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			logger.Warn("Failed to close migration source", zap.Error(srcErr))
		}
		if dbErr != nil {
			logger.Warn("Failed to close migration database", zap.Error(dbErr))
		}
	}()

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Debug("No migrations to apply (database up-to-date)", zap.String("driver", name))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, _, _ := m.Version()
	logger.Info("Applied migrations successfully",
		zap.String("driver", name),
		zap.Uint("version", version))
	return nil
}
