package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
)

const ensureLogPrefix = "db:ensure"

// safeDBName matches allowed database names (alphanumeric and underscore only).
var safeDBName = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// requiredExtensions back gen_random_uuid() in the gallery schema.
var requiredExtensions = []string{"pgcrypto"}

// ensureTarget is a database to create, plus where to connect to create it.
type ensureTarget struct {
	Name           string
	URL            string
	MaintenanceURL string
}

// parseEnsureTarget validates the database name in databaseURL and derives
// the maintenance ("postgres") database URL on the same server.
func parseEnsureTarget(databaseURL string) (*ensureTarget, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s - invalid database URL: %w", ensureLogPrefix, err)
	}
	name := strings.TrimSpace(strings.TrimPrefix(u.Path, "/"))
	if name == "" {
		return nil, fmt.Errorf("%s - database name empty in URL", ensureLogPrefix)
	}
	if !safeDBName.MatchString(name) {
		return nil, fmt.Errorf("%s - database name %q contains invalid characters", ensureLogPrefix, name)
	}
	return &ensureTarget{Name: name, URL: databaseURL, MaintenanceURL: maintenanceURL(u)}, nil
}

// EnsureDatabase creates the database named in databaseURL if it does not
// exist and enables the extensions the gallery schema needs. Call before
// NewPool when the service should create its own database (e.g.
// native_share, native_share_test).
func EnsureDatabase(ctx context.Context, databaseURL string) error {
	target, err := parseEnsureTarget(databaseURL)
	if err != nil {
		return err
	}
	if err := createIfMissing(ctx, target); err != nil {
		return err
	}
	return enableExtensions(ctx, target)
}

func createIfMissing(ctx context.Context, target *ensureTarget) error {
	config, err := pgx.ParseConfig(target.MaintenanceURL)
	if err != nil {
		return fmt.Errorf("%s - failed to parse maintenance URL: %w", ensureLogPrefix, err)
	}
	// CREATE DATABASE cannot run inside the implicit transaction of the extended protocol.
	config.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	conn, err := pgx.ConnectConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("%s - failed to connect to postgres: %w", ensureLogPrefix, err)
	}
	defer conn.Close(ctx)

	var exists bool
	err = conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, target.Name).Scan(&exists)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s - failed to check database: %w", ensureLogPrefix, err)
	}
	if exists {
		slog.Debug(fmt.Sprintf("%s - Database %q exists", ensureLogPrefix, target.Name))
		return nil
	}

	slog.Info(fmt.Sprintf("%s - Creating database %q", ensureLogPrefix, target.Name))
	if _, err := conn.Exec(ctx, "CREATE DATABASE "+quoteIdent(target.Name)); err != nil {
		return fmt.Errorf("%s - CREATE DATABASE failed: %w", ensureLogPrefix, err)
	}
	return nil
}

func enableExtensions(ctx context.Context, target *ensureTarget) error {
	conn, err := pgx.Connect(ctx, target.URL)
	if err != nil {
		return fmt.Errorf("%s - failed to connect to %q: %w", ensureLogPrefix, target.Name, err)
	}
	defer conn.Close(ctx)

	for _, ext := range requiredExtensions {
		if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS "+quoteIdent(ext)); err != nil {
			return fmt.Errorf("%s - CREATE EXTENSION %s: %w", ensureLogPrefix, ext, err)
		}
	}
	return nil
}

func maintenanceURL(u *url.URL) string {
	m := *u
	m.Path = "/postgres"
	return m.String()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
