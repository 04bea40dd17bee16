package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const migrationsLogPrefix = "db:migrations"

const downSuffix = ".down.sql"

// Migration is one forward SQL file. Version is the file name without ".sql".
type Migration struct {
	Version string
	SQL     string
}

// LoadMigrationFiles reads the forward .sql files in dir, sorted by name.
// Files ending in .down.sql are rollbacks and are skipped.
func LoadMigrationFiles(dir string) ([]Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to read migration dir %s: %w", migrationsLogPrefix, dir, err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".sql" || strings.HasSuffix(name, downSuffix) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Migration, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s - failed to read %s: %w", migrationsLogPrefix, path, err)
		}
		out = append(out, Migration{Version: strings.TrimSuffix(name, ".sql"), SQL: string(data)})
	}
	slog.Info(fmt.Sprintf("%s - Loaded %d migration files from %s", migrationsLogPrefix, len(out), dir))
	return out, nil
}

const createMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version TEXT PRIMARY KEY,
    applied TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// RunMigrations applies each migration not yet recorded in schema_migrations,
// in order, each in its own transaction.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, migrations []Migration) error {
	if _, err := pool.Exec(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("%s - create schema_migrations: %w", migrationsLogPrefix, err)
	}
	applied, err := appliedVersions(ctx, pool)
	if err != nil {
		return err
	}

	ran := 0
	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version)
			return err
		})
		if err != nil {
			return fmt.Errorf("%s - migration %s failed: %w", migrationsLogPrefix, m.Version, err)
		}
		slog.Info(fmt.Sprintf("%s - Applied %s", migrationsLogPrefix, m.Version))
		ran++
	}

	slog.Info(fmt.Sprintf("%s - Migrations complete (%d applied, %d already present)", migrationsLogPrefix, ran, len(migrations)-ran))
	return nil
}

func appliedVersions(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("%s - read schema_migrations: %w", migrationsLogPrefix, err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%s - scan schema_migrations: %w", migrationsLogPrefix, err)
	}
	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

// MigrationStatus prints each migration file in migrationPath as applied or pending.
func MigrationStatus(ctx context.Context, pool *pgxpool.Pool, migrationPath string) error {
	const statusLogPrefix = "db:MigrationStatus"

	files, err := LoadMigrationFiles(migrationPath)
	if err != nil {
		return fmt.Errorf("%s - load migration list: %w", statusLogPrefix, err)
	}
	if _, err := pool.Exec(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("%s - create schema_migrations: %w", statusLogPrefix, err)
	}
	applied, err := appliedVersions(ctx, pool)
	if err != nil {
		return fmt.Errorf("%s - %w", statusLogPrefix, err)
	}

	pending := 0
	for _, m := range files {
		state := "applied"
		if !applied[m.Version] {
			state = "pending"
			pending++
		}
		fmt.Printf("  %-40s %s\n", m.Version, state)
	}
	if pending > 0 {
		fmt.Printf("Migration status: %d pending (run 'native-share migrate up'). %d migration files in %s\n", pending, len(files), migrationPath)
	} else {
		fmt.Printf("Migration status: up to date (%d migration files in %s)\n", len(files), migrationPath)
	}
	return nil
}

// MigrationDown rolls back the most recently applied migration using its
// <version>.down.sql file. Without one it prints a notice and changes nothing.
func MigrationDown(ctx context.Context, pool *pgxpool.Pool, migrationPath string) error {
	var version string
	err := pool.QueryRow(ctx, `SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		fmt.Println("Migration down: nothing to roll back.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s - read last migration: %w", migrationsLogPrefix, err)
	}

	data, err := os.ReadFile(filepath.Join(migrationPath, version+downSuffix))
	if errors.Is(err, os.ErrNotExist) {
		fmt.Printf("Migration down: %s has no %s file; use a database backup to roll back.\n", version, downSuffix)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s - read rollback for %s: %w", migrationsLogPrefix, version, err)
	}

	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, string(data)); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, version)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s - roll back %s: %w", migrationsLogPrefix, version, err)
	}
	fmt.Printf("Migration down: rolled back %s.\n", version)
	return nil
}
