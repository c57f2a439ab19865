package db

import (
	"fmt"

	"tracker/internal/domain/errors"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migration applies every pending up migration found in migratePath.
func Migration(dbDSN, migratePath string) error {
	if dbDSN == "" || migratePath == "" {
		return fmt.Errorf("%w: dsn and migrations path are required", errors.ErrBadRequest)
	}

	m, err := migrate.New("file://"+migratePath, dbDSN)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// MigrationVersion reports the schema version currently applied.
func MigrationVersion(dbDSN, migratePath string) (uint, bool, error) {
	m, err := migrate.New("file://"+migratePath, dbDSN)
	if err != nil {
		return 0, false, fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}
