package domain

import "context"

// DocumentRepository persists uploaded documents and their extraction state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *Document) error
	GetForUser(ctx context.Context, id, userID string) (*Document, error)
	ListForUser(ctx context.Context, userID string, limit int) ([]Document, error)
	Delete(ctx context.Context, id, userID string) error
	GetReadyDocument(ctx context.Context, id, userID string) (*Document, error)
	MarkReady(ctx context.Context, id, extractedText string) error
	MarkFailed(ctx context.Context, id string) error
}

// VideoAssetRepository stores uploaded video overviews.
type VideoAssetRepository interface {
	RecordVideoAsset(ctx context.Context, asset *VideoAsset) error
	LatestForDocument(ctx context.Context, documentID, userID string) (*VideoAsset, error)
	ListForDocument(ctx context.Context, documentID, userID string) ([]VideoAsset, error)
}

// VideoJobRepository is the queue of pipeline runs.
type VideoJobRepository interface {
	Enqueue(ctx context.Context, documentID, userID string) (*VideoJob, error)
	Claim(ctx context.Context) (*VideoJob, error)
	MarkSucceeded(ctx context.Context, jobID, videoURL string) error
	MarkFailed(ctx context.Context, jobID, stage, message string) error
	GetForUser(ctx context.Context, jobID, userID string) (*VideoJob, error)
}
