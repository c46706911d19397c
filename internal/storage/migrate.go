package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"payrollforms/internal/core"
	"payrollforms/internal/log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const backendName = "sqlite"

// migrateUp brings the kv schema on db up to date and returns the schema version.
// The migrate instance is not closed: its database driver would close db with it.
func migrateUp(db *sql.DB, logger *log.Logger) (uint, error) {
	fail := func(step string, err error) (uint, error) {
		return 0, &core.PersistenceError{Backend: backendName, Op: log.OpMigrate, Err: fmt.Errorf("%s: %w", step, err)}
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fail("sqlite driver", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fail("migration source", err)
	}
	defer src.Close()

	m, err := migrate.NewWithInstance("iofs", src, backendName, driver)
	if err != nil {
		return fail("migrate instance", err)
	}

	before, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fail("read version", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fail("apply", err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return fail("read version", err)
	}
	if dirty {
		return fail("apply", fmt.Errorf("schema version %d is dirty", version))
	}

	if version != before {
		logger.Info("Schema migrated", log.FieldOperation, log.OpMigrate, "from_version", before, "version", version)
	} else {
		logger.Debug("Schema up to date", log.FieldOperation, log.OpMigrate, "version", version)
	}
	return version, nil
}
