package repo

import (
	"context"
	"errors"
	"fmt"

	"learnapp/internal/domain"
	"learnapp/internal/infra"
	"learnapp/internal/sqlinline"
)

// ErrNoJobAvailable is returned by Claim when the queue is empty.
var ErrNoJobAvailable = errors.New("no job available")

// JobRepositoryPG implements domain.VideoJobRepository.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewJobRepository creates a video job repository backed by PostgreSQL.
func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

// Enqueue inserts a queued job. A second active job for the same document is
// rejected by the partial unique index and reported as ErrDuplicateOperation.
func (r *JobRepositoryPG) Enqueue(ctx context.Context, documentID, userID string) (*domain.VideoJob, error) {
	job := domain.VideoJob{DocumentID: documentID, UserID: userID}
	row := r.sql.QueryRow(ctx, sqlinline.QEnqueueVideoJob, documentID, userID)
	if err := row.Scan(&job.ID, &job.Status, &job.CreatedAt, &job.UpdatedAt); err != nil {
		if infra.IsUniqueViolation(err) {
			return nil, domain.ErrDuplicateOperation
		}
		return nil, fmt.Errorf("enqueue video job: %w", err)
	}
	return &job, nil
}

// Claim moves the oldest queued job to running.
func (r *JobRepositoryPG) Claim(ctx context.Context) (*domain.VideoJob, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QClaimVideoJob)
	var job domain.VideoJob
	if err := row.Scan(&job.ID, &job.DocumentID, &job.UserID, &job.Status, &job.CreatedAt, &job.UpdatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, ErrNoJobAvailable
		}
		return nil, fmt.Errorf("claim video job: %w", err)
	}
	return &job, nil
}

// MarkSucceeded stores the uploaded video url on the job.
func (r *JobRepositoryPG) MarkSucceeded(ctx context.Context, jobID, videoURL string) error {
	_, err := r.sql.Exec(ctx, sqlinline.QMarkVideoJobSucceeded, jobID, videoURL)
	return err
}

// MarkFailed records the failed stage and a user-facing message.
func (r *JobRepositoryPG) MarkFailed(ctx context.Context, jobID, stage, message string) error {
	_, err := r.sql.Exec(ctx, sqlinline.QMarkVideoJobFailed, jobID, stage, message)
	return err
}

// FailAbandoned fails running jobs untouched for longer than olderThanSeconds.
func (r *JobRepositoryPG) FailAbandoned(ctx context.Context, olderThanSeconds int) (int64, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QFailAbandonedVideoJobs, olderThanSeconds)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// GetForUser returns the job when it belongs to userID.
func (r *JobRepositoryPG) GetForUser(ctx context.Context, jobID, userID string) (*domain.VideoJob, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectVideoJobForUser, jobID, userID)
	var job domain.VideoJob
	if err := row.Scan(
		&job.ID,
		&job.DocumentID,
		&job.UserID,
		&job.Status,
		&job.VideoURL,
		&job.FailedStage,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

var _ domain.VideoJobRepository = (*JobRepositoryPG)(nil)
