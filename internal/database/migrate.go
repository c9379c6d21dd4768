package database

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// migrationFS holds one directory of numbered SQL files per dialect.
//
//go:embed migrations/mysql/*.sql migrations/postgres/*.sql
var migrationFS embed.FS

// ErrNoChange is golang-migrate's "already at target version".  Migrate
// treats it as success.
var ErrNoChange = migrate.ErrNoChange

// Migrate applies the embedded migrations for driver.  direction must be
// "up" or "down".
func Migrate(driver, dsn, direction string) error {
	if strings.TrimSpace(dsn) == "" {
		return errors.New("database: dsn is not set; configure database.dsn or INTAKE_DATABASE__DSN")
	}
	if direction != "up" && direction != "down" {
		return fmt.Errorf("database: direction must be up or down, got %q", direction)
	}

	dir, url, err := migrationTarget(driver, dsn)
	if err != nil {
		return err
	}

	src, err := iofs.New(migrationFS, dir)
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// migrationTarget maps a database/sql driver and DSN onto the embedded
// directory and the golang-migrate database URL.
//
//	mysql: user:pw@tcp(host:3306)/db   → mysql://user:pw@tcp(host:3306)/db?multiStatements=true
//	pgx:   postgres://user:pw@host/db  → pgx5://user:pw@host/db
func migrationTarget(driver, dsn string) (dir, url string, err error) {
	switch driver {
	case DriverMySQL:
		if !strings.HasPrefix(dsn, "mysql://") {
			dsn = "mysql://" + dsn
		}
		// Each migration file holds several statements.
		if !strings.Contains(dsn, "multiStatements=") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "multiStatements=true"
		}
		return "migrations/mysql", dsn, nil
	case DriverPgx:
		for _, p := range []string{"postgresql://", "postgres://"} {
			if strings.HasPrefix(dsn, p) {
				return "migrations/postgres", "pgx5://" + strings.TrimPrefix(dsn, p), nil
			}
		}
		if strings.HasPrefix(dsn, "pgx5://") {
			return "migrations/postgres", dsn, nil
		}
		return "", "", fmt.Errorf("database: pgx migrations need a postgres:// URL")
	default:
		return "", "", fmt.Errorf("database: unsupported driver %q", driver)
	}
}
