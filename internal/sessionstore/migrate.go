package sessionstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sleepdata/cpapinsight/schema"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// LatestVersion is the schema version NewSessionStore migrates to.
const LatestVersion = 4

// MigrateStore moves the session store schema to targetVersion.
// A negative target means LatestVersion and 0 drops every table.
func MigrateStore(backend schema.DatabaseBackend, connStr string, targetVersion int) error {
	if targetVersion > LatestVersion {
		return fmt.Errorf("target version %d is newer than the latest schema version %d", targetVersion, LatestVersion)
	}
	return runMigrations(backend, connStr, targetVersion, os.Stdout)
}

// migrationDriver wraps an open database in the golang-migrate driver of its backend.
func migrationDriver(backend schema.DatabaseBackend, db *sql.DB) (database.Driver, error) {
	switch backend {
	case schema.SQLiteBackend:
		return sqlite.WithInstance(db, &sqlite.Config{})
	case schema.MySQLBackend:
		return mysql.WithInstance(db, &mysql.Config{})
	case schema.PostgreSQLBackend:
		return migratepgx.WithInstance(db, &migratepgx.Config{})
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", backend)
	}
}

// schemaVersion reports the applied version, 0 when nothing has been applied.
func schemaVersion(m *migrate.Migrate) (uint, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read session store schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("session store schema is dirty at version %d; repair it and force the version before migrating", version)
	}
	return version, nil
}

func runMigrations(backend schema.DatabaseBackend, connStr string, targetVersion int, out io.Writer) error {
	if backend == schema.NoneBackend {
		return fmt.Errorf("migrations are not supported for NoneBackend")
	}

	driverName, dsn, err := driverFor(backend, connStr)
	if err != nil {
		return err
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return fmt.Errorf("failed to open %s database: %w", backend, err)
	}
	defer func() { _ = db.Close() }()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to reach %s database: %w", backend, err)
	}

	driver, err := migrationDriver(backend, db)
	if err != nil {
		return fmt.Errorf("failed to create %s migrate driver: %w", backend, err)
	}
	files, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to access embedded migrations: %w", err)
	}
	source, err := iofs.New(files, ".")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "cpapinsight", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	from, err := schemaVersion(m)
	if err != nil {
		return err
	}

	target := uint(LatestVersion)
	switch {
	case targetVersion == 0:
		err = m.Down()
		target = 0
	case targetVersion > 0:
		target = uint(targetVersion)
		err = m.Migrate(target)
	default:
		err = m.Up()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		_, _ = fmt.Fprintf(out, "Session store schema already at version %d.\n", from)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to migrate %s session store from version %d to %d: %w", backend, from, target, err)
	}

	_, _ = fmt.Fprintf(out, "Session store schema migrated from version %d to %d.\n", from, target)
	return nil
}
