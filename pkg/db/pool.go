// Package db stores gallery assets and photo library authorization in
// Postgres via pgx.
package db

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const logPrefix = "db:pool"

// applicationName is reported to Postgres for every pooled connection.
const applicationName = "native-share"

// NewPool creates a pgx pool from databaseURL and verifies connectivity.
// Pool sizing in the URL (pool_max_conns, pool_min_conns) overrides the defaults.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	slog.Info(fmt.Sprintf("%s - Connecting to database", logPrefix))

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to parse database URL: %w", logPrefix, err)
	}
	applyPoolDefaults(config, databaseURL)

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create pool: %w", logPrefix, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s - failed to ping database: %w", logPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Database connection established (max_conns=%d)", logPrefix, config.MaxConns))
	return pool, nil
}

// applyPoolDefaults sizes the pool for a single writer per call. Gallery
// rows carry image bytes, so connections are few and recycled.
func applyPoolDefaults(config *pgxpool.Config, databaseURL string) {
	if !hasParam(databaseURL, "pool_max_conns") {
		config.MaxConns = 10
	}
	if !hasParam(databaseURL, "pool_min_conns") {
		config.MinConns = 1
	}
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 30 * time.Second
	if _, ok := config.ConnConfig.RuntimeParams["application_name"]; !ok {
		config.ConnConfig.RuntimeParams["application_name"] = applicationName
	}
}

func hasParam(databaseURL, name string) bool {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return false
	}
	return u.Query().Has(name)
}
