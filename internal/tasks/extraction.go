package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"learnapp/internal/infra"
)

// DocumentStatusStore moves a document out of processing.
type DocumentStatusStore interface {
	MarkReady(ctx context.Context, id, extractedText string) error
	MarkFailed(ctx context.Context, id string) error
}

// TextExtractor reads the text of a PDF.
type TextExtractor interface {
	ExtractText(ctx context.Context, pdf []byte) (string, error)
}

// ExtractionOptions configures NewExtractionTask.
type ExtractionOptions struct {
	Documents DocumentStatusStore
	Extractor TextExtractor
	Timeout   time.Duration
	Logger    *infra.Logger
}

// NewExtractionTask extracts the text of pdf and marks the document ready.
// Any failure, including a panic in the extractor, marks it failed.
func NewExtractionTask(opts ExtractionOptions, documentID string, pdf []byte) Task {
	logger := infra.LoggerOrNop(opts.Logger).With().Str("document_id", documentID).Logger()
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return Task{
		Name: "extract-document:" + documentID,
		Run: func(ctx context.Context) error {
			if opts.Documents == nil || opts.Extractor == nil {
				return errors.New("extraction task is not configured")
			}
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			logger.Info().Int("bytes", len(pdf)).Msg("tasks: extraction started")
			text, err := opts.Extractor.ExtractText(ctx, pdf)
			if err != nil {
				return fmt.Errorf("extract text: %w", err)
			}
			if err := opts.Documents.MarkReady(ctx, documentID, text); err != nil {
				return fmt.Errorf("mark ready: %w", err)
			}
			logger.Info().Int("chars", len(text)).Msg("tasks: document ready")
			return nil
		},
		OnFailure: func(ctx context.Context, cause error) {
			if opts.Documents == nil {
				return
			}
			if err := opts.Documents.MarkFailed(ctx, documentID); err != nil {
				logger.Error().Err(err).AnErr("cause", cause).Msg("tasks: mark document failed")
				return
			}
			logger.Warn().Err(cause).Msg("tasks: document marked failed")
		},
	}
}
