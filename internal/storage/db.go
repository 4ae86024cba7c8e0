// Package storage provides the SQLite database behind deckforge: the
// collection, price history, price cache, saved decks and play statistics.
package storage

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// DB wraps the database connection.
type DB struct {
	conn *sql.DB
	path string
}

// Config holds database configuration settings.
type Config struct {
	// Path is the file path to the SQLite database.
	Path string

	// MaxOpenConns sets the maximum number of open connections to the database.
	// Default: 25
	MaxOpenConns int

	// MaxIdleConns sets the maximum number of idle connections in the pool.
	// Default: 5
	MaxIdleConns int

	// ConnMaxLifetime sets the maximum amount of time a connection may be reused.
	// Default: 5 minutes
	ConnMaxLifetime time.Duration

	// BusyTimeout sets how long to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// JournalMode sets the SQLite journal mode.
	// Default: WAL
	JournalMode string

	// Synchronous sets the SQLite synchronous mode.
	// Default: NORMAL
	Synchronous string

	// AutoMigrate runs pending migrations on Open.
	AutoMigrate bool
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig(path string) *Config {
	return &Config{
		Path:            path,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		BusyTimeout:     5 * time.Second,
		JournalMode:     "WAL",
		Synchronous:     "NORMAL",
		AutoMigrate:     true,
	}
}

// dsn builds a modernc.org/sqlite data source name. Pragmas are applied to
// every pooled connection.
func (c *Config) dsn() string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeout.Milliseconds()))
	q.Add("_pragma", fmt.Sprintf("journal_mode(%s)", c.JournalMode))
	q.Add("_pragma", fmt.Sprintf("synchronous(%s)", c.Synchronous))
	q.Add("_pragma", "foreign_keys(1)")
	return "file:" + c.Path + "?" + q.Encode()
}

// Open creates the database file if needed, applies migrations when
// AutoMigrate is set and returns a pooled connection.
func Open(config *Config) (*DB, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.Path == "" || config.Path == ":memory:" {
		// Each pooled connection would get its own private in-memory database.
		return nil, fmt.Errorf("database path must be a file")
	}

	if err := os.MkdirAll(filepath.Dir(config.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Migrations run on their own connection before the pool is opened.
	if config.AutoMigrate {
		if err := migrateUp(config.Path); err != nil {
			return nil, err
		}
	}

	conn, err := sql.Open("sqlite", config.dsn())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(config.MaxOpenConns)
	conn.SetMaxIdleConns(config.MaxIdleConns)
	conn.SetConnMaxLifetime(config.ConnMaxLifetime)

	if err := conn.Ping(); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to close database after ping error: %w (original error: %v)", closeErr, err)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{conn: conn, path: config.Path}, nil
}

func migrateUp(path string) (err error) {
	mgr, err := NewMigrationManager(path)
	if err != nil {
		return fmt.Errorf("failed to create migration manager: %w", err)
	}
	defer func() {
		if closeErr := mgr.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close migration manager: %w", closeErr)
		}
	}()

	if err := mgr.Up(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// Conn returns the underlying sql.DB connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Ping verifies the database connection is alive.
func (db *DB) Ping() error {
	return db.conn.Ping()
}
