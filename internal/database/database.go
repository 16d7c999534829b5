// Package database provides the SQLite backed account store for go-redsocial
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver
	"go.uber.org/zap"
)

// Database wraps the main SQLite connection pool
type Database struct {
	mainDB   *sql.DB
	dbconfig *DBConfig
	log      *zap.Logger
}

// DBConfig represents database configuration
type DBConfig struct {
	// Path of the main database file
	Path string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// Performance settings
	WALMode   bool   // Write-Ahead Logging
	SyncMode  string // OFF, NORMAL, FULL
	CacheSize int    // KB
	TempStore string // MEMORY, FILE
}

// DefaultDBConfig returns default database configuration
func DefaultDBConfig(path string) *DBConfig {
	return &DBConfig{
		Path:            path,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 0, // Unlimited for SQLite - connections don't need to be recycled
		WALMode:         true,
		SyncMode:        "NORMAL",
		CacheSize:       -4096, // -4096 == 1024 KB * 4096 = 4MB cache
		TempStore:       "MEMORY",
	}
}

// OpenDatabase opens the main database, applies pragmas and runs migrations.
// A nil logger discards database logs.
func OpenDatabase(ctx context.Context, dbconfig *DBConfig, logger *zap.Logger) (*Database, error) {
	if dbconfig == nil || dbconfig.Path == "" {
		return nil, fmt.Errorf("database path is not set")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("database")

	if dir := filepath.Dir(dbconfig.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	logger.Info("initializing main database", zap.String("path", dbconfig.Path))
	mainDB, err := sql.Open("sqlite3", dbconfig.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open main database: %w", err)
	}

	// Configure connection pool
	mainDB.SetMaxOpenConns(dbconfig.MaxOpenConns)
	mainDB.SetMaxIdleConns(dbconfig.MaxIdleConns)
	mainDB.SetConnMaxLifetime(dbconfig.ConnMaxLifetime)

	if err := mainDB.PingContext(ctx); err != nil {
		if cerr := mainDB.Close(); cerr != nil {
			return nil, fmt.Errorf("failed to ping main database: %w; also failed to close mainDB: %v", err, cerr)
		}
		return nil, fmt.Errorf("failed to ping main database: %w", err)
	}

	db := &Database{mainDB: mainDB, dbconfig: dbconfig, log: logger}

	if err := db.applySQLitePragmas(ctx); err != nil {
		if cerr := mainDB.Close(); cerr != nil {
			return nil, fmt.Errorf("failed to apply SQLite pragmas: %w; also failed to close mainDB: %v", err, cerr)
		}
		return nil, fmt.Errorf("failed to apply SQLite pragmas: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		if cerr := mainDB.Close(); cerr != nil {
			return nil, fmt.Errorf("failed to run database migrations: %w; also failed to close mainDB: %v", err, cerr)
		}
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	return db, nil
}

// NewFromDB wraps an already opened connection. Pragmas and migrations are
// not applied.
func NewFromDB(conn *sql.DB, logger *zap.Logger) *Database {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Database{mainDB: conn, log: logger.Named("database")}
}

// GetMainDB returns the main database connection for direct access
func (db *Database) GetMainDB() *sql.DB {
	return db.mainDB
}

// Close closes the main database
func (db *Database) Close() error {
	if db == nil || db.mainDB == nil {
		return nil
	}
	return db.mainDB.Close()
}

// applySQLitePragmas applies performance and configuration pragmas to the SQLite connection
func (db *Database) applySQLitePragmas(ctx context.Context) error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA cache_size = %d", db.dbconfig.CacheSize),
		fmt.Sprintf("PRAGMA synchronous = %s", db.dbconfig.SyncMode),
		fmt.Sprintf("PRAGMA temp_store = %s", db.dbconfig.TempStore),
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 30000", // 30 seconds
	}

	if db.dbconfig.WALMode {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
		pragmas = append(pragmas, "PRAGMA wal_autocheckpoint = 1000")
	}

	for _, pragma := range pragmas {
		if _, err := db.mainDB.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute pragma '%s': %w", pragma, err)
		}
	}

	return nil
}
