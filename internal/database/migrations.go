package database

import (
	"embed"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
)

//go:embed migrations/sqlite/*.sql
var sqliteMigrations embed.FS

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

//go:embed migrations/mysql/*.sql
var mysqlMigrations embed.FS

// The schema is maintained per dialect: the three SQL flavours disagree
// on autoincrement columns and timestamp defaults, so each gets its own
// set of migration files.
var migrationFS = map[Dialect]struct {
	files embed.FS
	dir   string
}{
	DialectSQLite:   {sqliteMigrations, "migrations/sqlite"},
	DialectPostgres: {postgresMigrations, "migrations/postgres"},
	DialectMySQL:    {mysqlMigrations, "migrations/mysql"},
}

// RunMigrations brings the schema up to date. Already-applied migrations
// are a no-op, so this runs unconditionally at startup.
func RunMigrations(db *sqlx.DB, dialect Dialect) error {
	src, ok := migrationFS[dialect]
	if !ok {
		return fmt.Errorf("no migrations for dialect %s", dialect)
	}
	slog.Info("running migrations", "dialect", dialect)

	source, err := iofs.New(src.files, src.dir)
	if err != nil {
		return fmt.Errorf("opening migration source: %w", err)
	}

	driver, err := migrationDriver(db, dialect)
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", source, string(dialect), driver)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("applying migrations: %w", err)
	}

	slog.Info("migrations complete")
	return nil
}

func migrationDriver(db *sqlx.DB, dialect Dialect) (migratedb.Driver, error) {
	var (
		driver migratedb.Driver
		err    error
	)
	switch dialect {
	case DialectSQLite:
		driver, err = migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
	case DialectPostgres:
		driver, err = migratepostgres.WithInstance(db.DB, &migratepostgres.Config{})
	case DialectMySQL:
		driver, err = migratemysql.WithInstance(db.DB, &migratemysql.Config{})
	default:
		return nil, fmt.Errorf("no migration driver for dialect %s", dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s migration driver: %w", dialect, err)
	}
	return driver, nil
}
