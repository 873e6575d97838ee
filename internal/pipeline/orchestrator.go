// Package pipeline turns a ready document into an uploaded narrated video.
// One Generate call runs the outline, deck, narration, recording, stitch and
// upload stages in order and owns every temporary file it creates.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"learnapp/internal/domain"
	"learnapp/internal/infra"
	"learnapp/internal/media/stitch"
	"learnapp/internal/storage"
)

// DocumentStore loads documents that finished extraction.
type DocumentStore interface {
	GetReadyDocument(ctx context.Context, id, userID string) (*domain.Document, error)
}

// AssetRecorder persists the uploaded video.
type AssetRecorder interface {
	RecordVideoAsset(ctx context.Context, asset *domain.VideoAsset) error
}

// OutlineGenerator drafts a slide outline from document text.
type OutlineGenerator interface {
	GenerateOutline(ctx context.Context, documentText string) (domain.SlideOutline, error)
}

// DeckBuilder renders an outline into a viewable presentation.
type DeckBuilder interface {
	Submit(ctx context.Context, outline domain.SlideOutline) (string, error)
	AwaitResult(ctx context.Context, jobID string) (string, error)
}

// Synthesizer speaks one script into a file and returns its duration.
type Synthesizer interface {
	Synthesize(ctx context.Context, script, destinationPath string) (float64, error)
}

// Recorder captures the presentation paced to the narrations.
type Recorder interface {
	Record(ctx context.Context, presentationURL string, narrations []domain.NarrationAsset, outputDir string) (string, error)
}

// Stitcher muxes narration onto the silent recording.
type Stitcher interface {
	Stitch(ctx context.Context, req stitch.Request) (string, error)
}

// Uploader stores the final video.
type Uploader interface {
	UploadFile(ctx context.Context, localPath, folder string) (storage.UploadResult, error)
	Delete(ctx context.Context, publicID string) error
}

// Options wires the orchestrator's collaborators.
type Options struct {
	Documents    DocumentStore
	Assets       AssetRecorder
	Outlines     OutlineGenerator
	Decks        DeckBuilder
	Narrator     Synthesizer
	Recorder     Recorder
	Stitcher     Stitcher
	Uploader     Uploader
	Guard        RunGuard
	WorkRoot     string
	UploadFolder string
	Logger       *infra.Logger
	NewRunID     func() string
}

// Request names the document to render.
type Request struct {
	DocumentID string
	UserID     string
}

// Result is the uploaded video.
type Result struct {
	VideoURL string
	PublicID string
}

// Orchestrator runs the video pipeline.
type Orchestrator struct {
	documents    DocumentStore
	assets       AssetRecorder
	outlines     OutlineGenerator
	decks        DeckBuilder
	narrator     Synthesizer
	recorder     Recorder
	stitcher     Stitcher
	uploader     Uploader
	guard        RunGuard
	workRoot     string
	uploadFolder string
	logger       *infra.Logger
	newRunID     func() string
}

// New validates opts.
func New(opts Options) (*Orchestrator, error) {
	switch {
	case opts.Documents == nil:
		return nil, errors.New("pipeline: document store is required")
	case opts.Assets == nil:
		return nil, errors.New("pipeline: asset recorder is required")
	case opts.Outlines == nil:
		return nil, errors.New("pipeline: outline generator is required")
	case opts.Decks == nil:
		return nil, errors.New("pipeline: deck builder is required")
	case opts.Narrator == nil:
		return nil, errors.New("pipeline: synthesizer is required")
	case opts.Recorder == nil:
		return nil, errors.New("pipeline: recorder is required")
	case opts.Stitcher == nil:
		return nil, errors.New("pipeline: stitcher is required")
	case opts.Uploader == nil:
		return nil, errors.New("pipeline: uploader is required")
	case strings.TrimSpace(opts.WorkRoot) == "":
		return nil, errors.New("pipeline: work root is required")
	}
	o := &Orchestrator{
		documents:    opts.Documents,
		assets:       opts.Assets,
		outlines:     opts.Outlines,
		decks:        opts.Decks,
		narrator:     opts.Narrator,
		recorder:     opts.Recorder,
		stitcher:     opts.Stitcher,
		uploader:     opts.Uploader,
		guard:        opts.Guard,
		workRoot:     opts.WorkRoot,
		uploadFolder: strings.Trim(opts.UploadFolder, "/"),
		logger:       infra.LoggerOrNop(opts.Logger),
		newRunID:     opts.NewRunID,
	}
	if o.guard == nil {
		o.guard = NewMemoryGuard()
	}
	if o.newRunID == nil {
		o.newRunID = uuid.NewString
	}
	return o, nil
}

// Generate renders, uploads and records a video overview for a ready
// document. Every failure is a *domain.PipelineError naming the stage. The
// document record itself is never modified.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.DocumentID) == "" || strings.TrimSpace(req.UserID) == "" {
		return Result{}, stageErr(domain.StageDocument, errors.New("document id and user id are required"))
	}
	release, err := o.guard.Acquire(ctx, req.DocumentID)
	if err != nil {
		return Result{}, stageErr(domain.StageGuard, err)
	}
	defer release()

	runID := o.newRunID()
	logger := o.logger.With().Str("document_id", req.DocumentID).Str("run_id", runID).Logger()
	started := time.Now()

	doc, err := o.documents.GetReadyDocument(ctx, req.DocumentID, req.UserID)
	if err != nil {
		return Result{}, stageErr(domain.StageDocument, err)
	}

	docDir := filepath.Join(o.workRoot, safeSegment(req.DocumentID))
	workDir := filepath.Join(docDir, runID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return Result{}, stageErr(domain.StageDocument, fmt.Errorf("create work dir: %w", err))
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logger.Warn().Err(err).Str("work_dir", workDir).Msg("pipeline: remove work dir")
			return
		}
		// Fails while another run of the same document still owns it.
		_ = os.Remove(docDir)
	}()

	outline, err := o.outlines.GenerateOutline(ctx, doc.ExtractedText)
	if err != nil {
		return Result{}, stageErr(domain.StageOutline, err)
	}
	if err := outline.Validate(); err != nil {
		return Result{}, stageErr(domain.StageOutline, &domain.ContentGenerationError{Reason: "outline failed validation", Err: err})
	}
	logger.Info().Str("title", outline.Title).Int("slides", len(outline.Slides)).Msg("pipeline: outline ready")

	jobID, err := o.decks.Submit(ctx, outline)
	if err != nil {
		return Result{}, stageErr(domain.StageDeck, err)
	}
	deckURL, err := o.decks.AwaitResult(ctx, jobID)
	if err != nil {
		return Result{}, stageErr(domain.StageDeck, err)
	}
	logger.Info().Str("deck_url", deckURL).Msg("pipeline: deck ready")

	narrations, err := o.narrate(ctx, outline, filepath.Join(workDir, "audio"))
	if err != nil {
		return Result{}, stageErr(domain.StageNarration, err)
	}

	silent, err := o.recorder.Record(ctx, deckURL, narrations, filepath.Join(workDir, "video"))
	if err != nil {
		return Result{}, stageErr(domain.StageRecording, err)
	}

	final, err := o.stitcher.Stitch(ctx, stitch.Request{
		DocumentID:      req.DocumentID,
		WorkDir:         workDir,
		SilentVideoPath: silent,
		Narrations:      narrations,
	})
	if err != nil {
		return Result{}, stageErr(domain.StageStitch, err)
	}
	defer func() {
		if err := os.Remove(final); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn().Err(err).Str("path", final).Msg("pipeline: remove final video")
		}
	}()

	uploaded, err := o.uploader.UploadFile(ctx, final, path.Join(o.uploadFolder, "videos"))
	if err != nil {
		var ue *domain.UploadError
		if !errors.As(err, &ue) {
			err = &domain.UploadError{Path: final, Err: err}
		}
		return Result{}, stageErr(domain.StageUpload, err)
	}

	asset := &domain.VideoAsset{
		DocumentID: req.DocumentID,
		UserID:     req.UserID,
		PublicID:   uploaded.PublicID,
		SecureURL:  uploaded.SecureURL,
	}
	if err := o.assets.RecordVideoAsset(ctx, asset); err != nil {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		if derr := o.uploader.Delete(cleanupCtx, uploaded.PublicID); derr != nil {
			logger.Warn().Err(derr).Str("public_id", uploaded.PublicID).Msg("pipeline: delete orphaned upload")
		}
		cancel()
		return Result{}, stageErr(domain.StagePersist, err)
	}

	logger.Info().
		Str("video_url", uploaded.SecureURL).
		Dur("elapsed", time.Since(started)).
		Msg("pipeline: video overview ready")
	return Result{VideoURL: uploaded.SecureURL, PublicID: uploaded.PublicID}, nil
}

// narrate synthesizes slides one after another to keep a single request
// in flight against the speech quota.
func (o *Orchestrator) narrate(ctx context.Context, outline domain.SlideOutline, audioDir string) ([]domain.NarrationAsset, error) {
	if err := os.MkdirAll(audioDir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}
	assets := make([]domain.NarrationAsset, 0, len(outline.Slides))
	for _, slide := range outline.Slides {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dest := filepath.Join(audioDir, "slide_"+strconv.Itoa(slide.Index)+".mp3")
		duration, err := o.narrator.Synthesize(ctx, slide.NarrationScript, dest)
		if err != nil {
			return nil, fmt.Errorf("slide %d: %w", slide.Index, err)
		}
		assets = append(assets, domain.NarrationAsset{SlideIndex: slide.Index, FilePath: dest, DurationSeconds: duration})
		o.logger.Debug().Int("slide", slide.Index).Float64("duration_seconds", duration).Msg("pipeline: narration ready")
	}
	return assets, nil
}

func stageErr(stage string, err error) error {
	return &domain.PipelineError{Stage: stage, Err: err}
}

// safeSegment keeps a document id usable as a single path element.
func safeSegment(id string) string {
	id = strings.TrimSpace(id)
	id = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
	if id == "" {
		return "_"
	}
	return id
}
