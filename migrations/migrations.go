// Package migrations holds the embedded schema migrations for every
// supported database driver.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed postgres/*.sql sqlite/*.sql
var migrations embed.FS

// Migrate applies every pending up migration. The database handle is shared
// with the caller and stays open.
func Migrate(ctx context.Context, db *sql.DB, driver string) (uint, error) {
	src, err := iofs.New(migrations, driver)
	if err != nil {
		return 0, fmt.Errorf("open %s migrations: %w", driver, err)
	}

	var (
		dbDriver database.Driver
		release  func()
	)
	switch driver {
	case "postgres":
		// A dedicated connection keeps the migration lock; closing it leaves db open
		conn, err := db.Conn(ctx)
		if err != nil {
			return 0, fmt.Errorf("acquire connection: %w", err)
		}
		release = func() { conn.Close() }
		dbDriver, err = postgres.WithConnection(ctx, conn, &postgres.Config{})
		if err != nil {
			release()
			return 0, fmt.Errorf("create driver: %w", err)
		}
	case "sqlite":
		release = func() {}
		dbDriver, err = sqlite.WithInstance(db, &sqlite.Config{})
		if err != nil {
			return 0, fmt.Errorf("create driver: %w", err)
		}
	default:
		return 0, fmt.Errorf("no migrations for driver %q", driver)
	}
	defer release()

	m, err := migrate.NewWithInstance("iofs", src, driver, dbDriver)
	if err != nil {
		return 0, fmt.Errorf("create migrator: %w", err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migrate: %w", err)
	}

	version, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("read version: %w", err)
	}
	return version, nil
}
