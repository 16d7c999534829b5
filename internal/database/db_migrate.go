package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"go.uber.org/zap"
)

const query_CreateSchemaMigrations = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	file_name TEXT NOT NULL,
	applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// Migrate applies all pending embedded migrations to the main database
func (db *Database) Migrate(ctx context.Context) error {
	return db.migrateFS(ctx, EmbeddedMigrationsFS)
}

func (db *Database) migrateFS(ctx context.Context, fsys fs.FS) error {
	if _, err := db.retryableExec(ctx, query_CreateSchemaMigrations); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return err
	}

	migrations, err := getEmbeddedMigrationFiles(fsys)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Type != MigrationTypeMain || applied[migration.Version] {
			continue
		}
		content, err := readMigrationContent(fsys, migration)
		if err != nil {
			return err
		}
		err = db.retryableTransactionExec(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, content); err != nil {
				return fmt.Errorf("failed to apply migration %s: %w", migration.FileName, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, file_name) VALUES (?, ?)`,
				migration.Version, migration.FileName); err != nil {
				return fmt.Errorf("failed to record migration %s: %w", migration.FileName, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		db.log.Info("applied migration", zap.String("file", migration.FileName))
	}
	return nil
}

func (db *Database) appliedMigrations(ctx context.Context) (map[int]bool, error) {
	rows, err := db.retryableQuery(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}
