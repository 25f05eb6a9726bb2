// Package db opens the SQL database that backs the users directory and the
// stored trade history.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Drivers lists the supported database/sql driver names.
var Drivers = []string{"sqlite3", "mysql"}

func Supported(driver string) bool {
	_, ok := schemas[driver]
	return ok
}

// Open connects, pings and creates the tables if they do not exist yet.
// MySQL DSNs need parseTime=true so trade times scan into time.Time.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	if !Supported(driver) {
		return nil, fmt.Errorf("unsupported database driver %q (want one of %v)", driver, Drivers)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == "sqlite3" {
		// sqlite serialises writers anyway; one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if err := Migrate(ctx, db, driver); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate applies the schema for driver.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	stmts, ok := schemas[driver]
	if !ok {
		return fmt.Errorf("unsupported database driver %q", driver)
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
