package repo

import (
	"context"
	"fmt"

	"learnapp/internal/domain"
	"learnapp/internal/infra"
	"learnapp/internal/sqlinline"
)

// DocumentRepositoryPG implements domain.DocumentRepository.
type DocumentRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewDocumentRepository creates a document repository backed by PostgreSQL.
func NewDocumentRepository(sql infra.SQLExecutor) *DocumentRepositoryPG {
	return &DocumentRepositoryPG{sql: sql}
}

// Create inserts doc with status processing and fills the generated fields.
func (r *DocumentRepositoryPG) Create(ctx context.Context, doc *domain.Document) error {
	row := r.sql.QueryRow(ctx, sqlinline.QInsertDocument,
		doc.UserID,
		doc.Title,
		doc.FileName,
		doc.FileURL,
		doc.FilePublicID,
		doc.FileSize,
	)
	if err := row.Scan(&doc.ID, &doc.Status, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// GetForUser loads a document owned by userID regardless of status.
func (r *DocumentRepositoryPG) GetForUser(ctx context.Context, id, userID string) (*domain.Document, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectDocumentForUser, id, userID)
	var doc domain.Document
	if err := row.Scan(
		&doc.ID,
		&doc.UserID,
		&doc.Title,
		&doc.FileName,
		&doc.FileURL,
		&doc.FilePublicID,
		&doc.FileSize,
		&doc.Status,
		&doc.ExtractedText,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	doc.HasText = doc.ExtractedText != ""
	return &doc, nil
}

// ListForUser returns the newest documents of userID without their text.
func (r *DocumentRepositoryPG) ListForUser(ctx context.Context, userID string, limit int) ([]domain.Document, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListDocumentsForUser, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var doc domain.Document
		if err := rows.Scan(
			&doc.ID,
			&doc.UserID,
			&doc.Title,
			&doc.FileName,
			&doc.FileURL,
			&doc.FilePublicID,
			&doc.FileSize,
			&doc.Status,
			&doc.HasText,
			&doc.CreatedAt,
			&doc.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// Delete removes a document owned by userID together with its jobs and
// video asset rows. Stored files are the caller's responsibility.
func (r *DocumentRepositoryPG) Delete(ctx context.Context, id, userID string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteDocumentForUser, id, userID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetReadyDocument loads a document whose extraction finished.
func (r *DocumentRepositoryPG) GetReadyDocument(ctx context.Context, id, userID string) (*domain.Document, error) {
	doc, err := r.GetForUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if doc.Status != domain.DocumentStatusReady {
		return nil, fmt.Errorf("%w: status is %s", domain.ErrDocumentNotReady, doc.Status)
	}
	return doc, nil
}

// MarkReady stores the extracted text and moves processing -> ready.
func (r *DocumentRepositoryPG) MarkReady(ctx context.Context, id, extractedText string) error {
	_, err := r.sql.Exec(ctx, sqlinline.QMarkDocumentReady, id, extractedText)
	return err
}

// MarkFailed moves processing -> failed. Documents in any other state are
// left untouched.
func (r *DocumentRepositoryPG) MarkFailed(ctx context.Context, id string) error {
	_, err := r.sql.Exec(ctx, sqlinline.QMarkDocumentFailed, id)
	return err
}

var _ domain.DocumentRepository = (*DocumentRepositoryPG)(nil)
