package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/digkill/StageRank/internal/config"
)

// Dialect captures the handful of places where MySQL, Postgres and SQLite
// disagree. Queries are written with '?' placeholders and rebound by sqlx.
type Dialect struct {
	Name string
	// Setup runs once per pool right after the ping.
	Setup  []string
	Schema []string
	// Returning is true when generated keys must be read with RETURNING
	// instead of LastInsertId.
	Returning bool
	// SingleWriter limits the pool to one connection.
	SingleWriter bool
	Isolation    sql.IsolationLevel
}

// DialectFor returns the dialect of a DB_DRIVER value.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case config.DriverMySQL:
		return Dialect{
			Name:      config.DriverMySQL,
			Schema:    mysqlSchema,
			Isolation: sql.LevelReadCommitted,
		}, nil
	case config.DriverPostgres:
		return Dialect{
			Name:      config.DriverPostgres,
			Schema:    postgresSchema,
			Returning: true,
			Isolation: sql.LevelReadCommitted,
		}, nil
	case config.DriverSQLite:
		return Dialect{
			Name: config.DriverSQLite,
			Setup: []string{
				"PRAGMA journal_mode = WAL",
				"PRAGMA busy_timeout = 5000",
				"PRAGMA foreign_keys = ON",
			},
			Schema:       sqliteSchema,
			SingleWriter: true,
			Isolation:    sql.LevelDefault,
		}, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported driver %q", driver)
	}
}

// TxOptions is the isolation every submission transaction runs with.
func (d Dialect) TxOptions() *sql.TxOptions {
	return &sql.TxOptions{Isolation: d.Isolation}
}

// InsertIgnore builds an insert that silently skips rows whose key already
// exists. It never masks other constraint failures.
func (d Dialect) InsertIgnore(table string, columns []string, key []string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), placeholders)
	if d.Name == config.DriverMySQL {
		return fmt.Sprintf("%s ON DUPLICATE KEY UPDATE %s = %s", insert, key[0], key[0])
	}
	return fmt.Sprintf("%s ON CONFLICT (%s) DO NOTHING", insert, strings.Join(key, ", "))
}
