// Package db provides gallery data clearing.
package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const clearLogPrefix = "db:clear"

// ClearGallery truncates gallery_assets and photo_authorization.
// Schema is preserved; only data is removed.
func ClearGallery(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info(fmt.Sprintf("%s - Clearing gallery tables", clearLogPrefix))

	_, err := pool.Exec(ctx, `TRUNCATE TABLE gallery_assets, photo_authorization`)
	if err != nil {
		return fmt.Errorf("%s - truncate failed: %w", clearLogPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Gallery cleared", clearLogPrefix))
	return nil
}
