package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// Migration filename parsing constants.
const (
	// migrationFilenameParts is the expected number of parts when splitting
	// a migration filename like "20260301_000000_initial_schema.up.sql".
	migrationFilenameParts = 3

	// minVersionParts is the minimum number of underscore-separated parts
	// in a migration version prefix (date_time).
	minVersionParts = 2
)

// MigrationsFS is set by the migrations package at init time.
// It contains the embedded SQL migration files.
var MigrationsFS embed.FS

// MigrationsDir is the directory within MigrationsFS containing migrations.
var MigrationsDir = "."

// Migration represents a single database migration.
type Migration struct {
	Version string
	Name    string
	UpSQL   string
	DownSQL string
}

// Migrate applies all pending migrations to the database.
//
// Migrations are applied in version order, each within its own
// transaction. Applied versions are recorded in schema_migrations
// so reruns are no-ops.
func (db *DB) Migrate(ctx context.Context) error {
	if err := db.createMigrationsTable(ctx); err != nil {
		return err
	}

	migrations, err := loadMigrations()
	if err != nil {
		return err
	}

	applied, err := db.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if err := db.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("applying migration %s: %w", m.Version, err)
		}
	}

	return nil
}

// MigrateDown rolls back the most recently applied migration.
// Returns an error if no migrations have been applied or the
// migration has no down SQL.
func (db *DB) MigrateDown(ctx context.Context) error {
	if err := db.createMigrationsTable(ctx); err != nil {
		return err
	}

	var version string
	err := db.QueryRowContext(ctx,
		"SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1",
	).Scan(&version)
	if err != nil {
		return fmt.Errorf("finding last applied migration: %w", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return err
	}

	var target *Migration
	for i := range migrations {
		if migrations[i].Version == version {
			target = &migrations[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("migration %s applied but not found in embedded files", version)
	}
	if target.DownSQL == "" {
		return fmt.Errorf("migration %s has no down migration", version)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	if _, err := tx.ExecContext(ctx, target.DownSQL); err != nil {
		return fmt.Errorf("executing down migration %s: %w", version, err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM schema_migrations WHERE version = ?", version,
	); err != nil {
		return fmt.Errorf("removing migration record %s: %w", version, err)
	}

	return tx.Commit()
}

// GetMigrationStatus returns the list of applied migration versions
// in the order they were applied.
func (db *DB) GetMigrationStatus(ctx context.Context) ([]string, error) {
	if err := db.createMigrationsTable(ctx); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		"SELECT version FROM schema_migrations ORDER BY version",
	)
	if err != nil {
		return nil, fmt.Errorf("querying migration status: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only rows

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning migration version: %w", err)
		}
		versions = append(versions, v)
	}

	return versions, rows.Err()
}

func (db *DB) createMigrationsTable(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}
	return nil
}

func (db *DB) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("querying applied migrations: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only rows

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning applied version: %w", err)
		}
		applied[v] = true
	}

	return applied, rows.Err()
}

func (db *DB) applyMigration(ctx context.Context, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
		return fmt.Errorf("executing migration SQL: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		m.Version, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}

	return tx.Commit()
}

// loadMigrations reads all migration files from the embedded filesystem
// and returns them sorted by version.
func loadMigrations() ([]Migration, error) {
	entries, err := MigrationsFS.ReadDir(MigrationsDir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	upFiles, downFiles := categoriseMigrationFiles(entries)

	migrations, err := buildMigrations(upFiles, downFiles)
	if err != nil {
		return nil, err
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// categoriseMigrationFiles splits directory entries into up and down
// migration files, keyed by version.
func categoriseMigrationFiles(entries []fs.DirEntry) (upFiles, downFiles map[string]string) {
	upFiles = make(map[string]string)
	downFiles = make(map[string]string)

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			continue
		}

		switch {
		case strings.HasSuffix(name, ".up.sql"):
			version, ok := parseMigrationFilename(name, ".up.sql")
			if ok {
				upFiles[version] = name
			}
		case strings.HasSuffix(name, ".down.sql"):
			version, ok := parseMigrationFilename(name, ".down.sql")
			if ok {
				downFiles[version] = name
			}
		}
	}

	return upFiles, downFiles
}

// parseMigrationFilename extracts the version prefix from a migration
// filename like "20260301_000000_initial_schema.up.sql".
func parseMigrationFilename(name, suffix string) (string, bool) {
	base := strings.TrimSuffix(name, suffix)
	parts := strings.SplitN(base, "_", migrationFilenameParts)
	if len(parts) < minVersionParts {
		return "", false
	}
	return parts[0] + "_" + parts[1], true
}

// extractMigrationName returns the human-readable portion of a
// migration filename (everything after the version prefix).
func extractMigrationName(filename, suffix string) string {
	base := strings.TrimSuffix(filename, suffix)
	parts := strings.SplitN(base, "_", migrationFilenameParts)
	if len(parts) < migrationFilenameParts {
		return base
	}
	return parts[2]
}

// buildMigrations assembles Migration structs from categorised files,
// reading their SQL content from the embedded filesystem.
func buildMigrations(upFiles, downFiles map[string]string) ([]Migration, error) {
	migrations := make([]Migration, 0, len(upFiles))

	for version, upFile := range upFiles {
		upSQL, err := MigrationsFS.ReadFile(path.Join(MigrationsDir, upFile))
		if err != nil {
			return nil, fmt.Errorf("reading migration %s: %w", upFile, err)
		}

		m := Migration{
			Version: version,
			Name:    extractMigrationName(upFile, ".up.sql"),
			UpSQL:   string(upSQL),
		}

		if downFile, ok := downFiles[version]; ok {
			downSQL, err := MigrationsFS.ReadFile(path.Join(MigrationsDir, downFile))
			if err != nil {
				return nil, fmt.Errorf("reading migration %s: %w", downFile, err)
			}
			m.DownSQL = string(downSQL)
		}

		migrations = append(migrations, m)
	}

	return migrations, nil
}
