package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/digkill/StageRank/internal/config"
)

// DB is the process-scoped connection pool together with its SQL dialect.
type DB struct {
	*sqlx.DB
	Dialect Dialect
}

// Connect opens the pool for the configured driver and verifies it answers.
func Connect(cfg config.Config) (*DB, error) {
	dialect, err := DialectFor(cfg.DBDriver)
	if err != nil {
		return nil, err
	}

	dsn, err := normalizeDSN(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(cfg.DBDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBDriver, err)
	}

	if dialect.SingleWriter {
		// SQLite only supports one writer at a time. The connection is never
		// recycled because the setup pragmas are per connection.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.DBDriver, err)
	}

	for _, stmt := range dialect.Setup {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", stmt, err)
		}
	}

	return &DB{DB: db, Dialect: dialect}, nil
}

// normalizeDSN makes MySQL return DATETIME columns as time.Time in UTC so
// they scan the same way on every driver.
func normalizeDSN(driver, dsn string) (string, error) {
	if driver != config.DriverMySQL {
		return dsn, nil
	}
	c, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	c.ParseTime = true
	c.Loc = time.UTC
	return c.FormatDSN(), nil
}

// Migrate runs the bootstrap schema to ensure required tables exist.
func Migrate(ctx context.Context, db *DB) error {
	for _, stmt := range db.Dialect.Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
