// Package database centralises sqlx connection helpers and the embedded
// schema migrations.  Two drivers are registered: go-sql-driver/mysql
// (also MariaDB) and pgx through its database/sql shim.
//
// Public entry points:
//
//	Open(driver, dsn)                          – conservative pool sizes.
//	OpenWithOptions(ctx, driver, dsn, maxOpen, maxIdle) – fine-grained control.
//	Migrate(driver, dsn, direction)            – apply embedded migrations.
//
// Open helpers Ping the database before returning so callers can fail fast
// during bootstrap.  Callers should Close() the returned *sqlx.DB when no
// longer needed.
package database

import (
	"context"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

// Supported database/sql driver names.
const (
	DriverMySQL = "mysql"
	DriverPgx   = "pgx"
)

// Open returns a *sqlx.DB with sane defaults: 15 max open, 5 idle, and a
// 30-minute connection lifetime.
func Open(driver, dsn string) (*sqlx.DB, error) {
	return OpenWithOptions(context.Background(), driver, dsn, 15, 5)
}

// OpenWithOptions lets callers tune maxOpen and maxIdle.  Zero keeps the
// Open defaults.
func OpenWithOptions(ctx context.Context, driver, dsn string, maxOpen, maxIdle int) (*sqlx.DB, error) {
	if driver != DriverMySQL && driver != DriverPgx {
		return nil, fmt.Errorf("database: unsupported driver %q", driver)
	}
	if maxOpen <= 0 {
		maxOpen = 15
	}
	if maxIdle <= 0 {
		maxIdle = 5
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
