package gallery

import (
	"context"

	"github.com/morezero/native-share/pkg/capability"
	"github.com/morezero/native-share/pkg/db"
)

// PostgresStore adapts db.Repository to AssetStore and StateStore.
type PostgresStore struct {
	repo *db.Repository
}

// NewPostgresStore wraps repo.
func NewPostgresStore(repo *db.Repository) *PostgresStore {
	return &PostgresStore{repo: repo}
}

// Backend implements AssetStore.
func (s *PostgresStore) Backend() string { return "postgres" }

// Put implements AssetStore.
func (s *PostgresStore) Put(ctx context.Context, rec AssetRecord, data []byte) (AssetRecord, error) {
	a, err := s.repo.InsertAsset(ctx, db.InsertAssetParams{
		SourcePath: rec.SourcePath,
		Format:     rec.Format,
		Width:      rec.Width,
		Height:     rec.Height,
		SHA256:     rec.SHA256,
		Data:       data,
	})
	if err != nil {
		return AssetRecord{}, err
	}
	return fromAsset(*a), nil
}

// List implements AssetStore.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]AssetRecord, int, error) {
	assets, total, err := s.repo.ListAssets(ctx, db.ListAssetsParams{Page: 1, Limit: limit})
	if err != nil {
		return nil, 0, err
	}
	recs := make([]AssetRecord, 0, len(assets))
	for _, a := range assets {
		recs = append(recs, fromAsset(a))
	}
	return recs, total, nil
}

// LoadState implements StateStore.
func (s *PostgresStore) LoadState(ctx context.Context, scope string) (capability.AuthorizationState, bool, error) {
	rec, err := s.repo.GetAuthorization(ctx, scope)
	if err != nil || rec == nil {
		return capability.Undetermined, false, err
	}
	state, err := capability.ParseAuthorizationState(rec.State)
	if err != nil {
		return capability.Undetermined, false, err
	}
	return state, true, nil
}

// SaveState implements StateStore.
func (s *PostgresStore) SaveState(ctx context.Context, scope string, state capability.AuthorizationState) error {
	_, err := s.repo.SetAuthorization(ctx, scope, state.String())
	return err
}

func fromAsset(a db.Asset) AssetRecord {
	return AssetRecord{
		ID:         a.ID,
		SourcePath: a.SourcePath,
		Format:     a.Format,
		Width:      a.Width,
		Height:     a.Height,
		ByteSize:   a.ByteSize,
		SHA256:     a.SHA256,
		Created:    a.Created,
	}
}
