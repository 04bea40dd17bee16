package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoLogPrefix = "db:repository"

// Repository provides database access for gallery assets and authorization state.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// =========================================================================
// AUTHORIZATION OPERATIONS
// =========================================================================

// GetAuthorization returns the stored state for scope, or nil if none was recorded.
func (r *Repository) GetAuthorization(ctx context.Context, scope string) (*AuthorizationRecord, error) {
	slog.Debug(fmt.Sprintf("%s - GetAuthorization scope=%s", repoLogPrefix, scope))

	var rec AuthorizationRecord
	err := r.pool.QueryRow(ctx,
		`SELECT scope, state, modified FROM photo_authorization WHERE scope = $1`, scope).
		Scan(&rec.Scope, &rec.State, &rec.Modified)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s - GetAuthorization failed: %w", repoLogPrefix, err)
	}
	return &rec, nil
}

// SetAuthorization records state for scope, replacing any previous value.
func (r *Repository) SetAuthorization(ctx context.Context, scope, state string) (*AuthorizationRecord, error) {
	slog.Info(fmt.Sprintf("%s - SetAuthorization scope=%s state=%s", repoLogPrefix, scope, state))

	var rec AuthorizationRecord
	err := r.pool.QueryRow(ctx,
		`INSERT INTO photo_authorization (scope, state, modified)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (scope) DO UPDATE SET state = $2, modified = $3
		 RETURNING scope, state, modified`,
		scope, state, time.Now().UTC()).
		Scan(&rec.Scope, &rec.State, &rec.Modified)
	if err != nil {
		return nil, fmt.Errorf("%s - SetAuthorization failed: %w", repoLogPrefix, err)
	}
	return &rec, nil
}

// =========================================================================
// ASSET OPERATIONS
// =========================================================================

// InsertAssetParams holds parameters for InsertAsset.
type InsertAssetParams struct {
	SourcePath string
	Format     string
	Width      int
	Height     int
	SHA256     string
	Data       []byte
}

// InsertAsset stores a new gallery asset.
func (r *Repository) InsertAsset(ctx context.Context, params InsertAssetParams) (*Asset, error) {
	slog.Info(fmt.Sprintf("%s - InsertAsset source=%s format=%s bytes=%d", repoLogPrefix, params.SourcePath, params.Format, len(params.Data)))

	row := r.pool.QueryRow(ctx,
		`INSERT INTO gallery_assets (source_path, format, width, height, byte_size, sha256, data, created)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id::text, source_path, format, width, height, byte_size, sha256, created`,
		params.SourcePath, params.Format, params.Width, params.Height, int64(len(params.Data)),
		params.SHA256, params.Data, time.Now().UTC())

	a, err := scanAsset(row)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("%s - InsertAsset returned no row", repoLogPrefix)
	}
	return a, nil
}

// GetAsset finds an asset by ID, including its image bytes.
func (r *Repository) GetAsset(ctx context.Context, id string) (*Asset, error) {
	var a Asset
	err := r.pool.QueryRow(ctx,
		`SELECT id::text, source_path, format, width, height, byte_size, sha256, created, data
		 FROM gallery_assets WHERE id = $1`, id).
		Scan(&a.ID, &a.SourcePath, &a.Format, &a.Width, &a.Height, &a.ByteSize, &a.SHA256, &a.Created, &a.Data)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s - GetAsset failed: %w", repoLogPrefix, err)
	}
	return &a, nil
}

// ListAssetsParams holds parameters for ListAssets.
type ListAssetsParams struct {
	Format string
	Page   int
	Limit  int
}

// ListAssets lists assets newest first without their image bytes, plus the total count.
func (r *Repository) ListAssets(ctx context.Context, params ListAssetsParams) ([]Asset, int, error) {
	page := params.Page
	if page < 1 {
		page = 1
	}
	limit := params.Limit
	if limit < 1 {
		limit = 20
	}
	offset := (page - 1) * limit

	query := `SELECT id::text, source_path, format, width, height, byte_size, sha256, created
	          FROM gallery_assets WHERE 1=1`
	countQuery := `SELECT COUNT(*)::int FROM gallery_assets WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if params.Format != "" {
		clause := fmt.Sprintf(` AND format = $%d`, argIdx)
		query += clause
		countQuery += clause
		args = append(args, params.Format)
		argIdx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s - ListAssets count failed: %w", repoLogPrefix, err)
	}

	query += fmt.Sprintf(` ORDER BY created DESC LIMIT $%d OFFSET $%d`, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%s - ListAssets failed: %w", repoLogPrefix, err)
	}
	defer rows.Close()

	var assets []Asset
	for rows.Next() {
		var a Asset
		if err := rows.Scan(&a.ID, &a.SourcePath, &a.Format, &a.Width, &a.Height, &a.ByteSize, &a.SHA256, &a.Created); err != nil {
			return nil, 0, fmt.Errorf("%s - scan asset from rows failed: %w", repoLogPrefix, err)
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s - ListAssets rows failed: %w", repoLogPrefix, err)
	}
	return assets, total, nil
}

func scanAsset(row pgx.Row) (*Asset, error) {
	var a Asset
	err := row.Scan(&a.ID, &a.SourcePath, &a.Format, &a.Width, &a.Height, &a.ByteSize, &a.SHA256, &a.Created)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s - scan asset failed: %w", repoLogPrefix, err)
	}
	return &a, nil
}
