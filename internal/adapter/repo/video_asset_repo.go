package repo

import (
	"context"
	"fmt"

	"learnapp/internal/domain"
	"learnapp/internal/infra"
	"learnapp/internal/sqlinline"
)

// VideoAssetRepositoryPG implements domain.VideoAssetRepository.
type VideoAssetRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewVideoAssetRepository creates a video asset repository backed by PostgreSQL.
func NewVideoAssetRepository(sql infra.SQLExecutor) *VideoAssetRepositoryPG {
	return &VideoAssetRepositoryPG{sql: sql}
}

// RecordVideoAsset persists the (document, user, public id, url) tuple.
func (r *VideoAssetRepositoryPG) RecordVideoAsset(ctx context.Context, asset *domain.VideoAsset) error {
	row := r.sql.QueryRow(ctx, sqlinline.QInsertVideoAsset,
		asset.DocumentID,
		asset.UserID,
		asset.PublicID,
		asset.SecureURL,
	)
	if err := row.Scan(&asset.ID, &asset.CreatedAt); err != nil {
		return fmt.Errorf("insert video asset: %w", err)
	}
	return nil
}

// LatestForDocument returns the most recent video for the document.
func (r *VideoAssetRepositoryPG) LatestForDocument(ctx context.Context, documentID, userID string) (*domain.VideoAsset, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectLatestVideoAsset, documentID, userID)
	var asset domain.VideoAsset
	if err := row.Scan(&asset.ID, &asset.DocumentID, &asset.UserID, &asset.PublicID, &asset.SecureURL, &asset.CreatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &asset, nil
}

// ListForDocument returns every video recorded for the document, newest
// first.
func (r *VideoAssetRepositoryPG) ListForDocument(ctx context.Context, documentID, userID string) ([]domain.VideoAsset, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListVideoAssetsForDocument, documentID, userID)
	if err != nil {
		return nil, fmt.Errorf("list video assets: %w", err)
	}
	defer rows.Close()

	var assets []domain.VideoAsset
	for rows.Next() {
		var asset domain.VideoAsset
		if err := rows.Scan(&asset.ID, &asset.DocumentID, &asset.UserID, &asset.PublicID, &asset.SecureURL, &asset.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan video asset: %w", err)
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list video assets: %w", err)
	}
	return assets, nil
}

var _ domain.VideoAssetRepository = (*VideoAssetRepositoryPG)(nil)
