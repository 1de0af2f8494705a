package internal

import (
	"database/sql"
	"log"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/mattn/go-sqlite3"
)

// Migrate brings the station-cache schema up to date. Running against an
// already-current database is a no-op.
func Migrate(migrationsPath, dbPath string) error {
	m, err := migrate.New("file://"+migrationsPath, "sqlite3://"+dbPath)
	if err != nil {
		return errors.Wrap(err, "failed to initialise migrations")
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return errors.Wrap(err, "failed to apply migrations")
	}
	return nil
}

// Connect opens the sqlite station cache. Times are stored as RFC3339 UTC so
// cursors survive restarts without timezone drift, and WAL keeps the single
// writer from blocking the HTTP readers.
func Connect(dbPath string) (*sql.DB, error) {
	dsn := dbPath
	if strings.Contains(dsn, "?") {
		dsn += "&"
	} else {
		dsn += "?"
	}
	dsn += strings.Join([]string{
		"_busy_timeout=5000",
		"_journal_mode=WAL",
		"_loc=UTC",
		"_datetime_format=rfc3339",
	}, "&")

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	log.Printf("connected to station cache: %s", dsn)
	return db, nil
}
