package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"learnapp/internal/adapter/repo"
	"learnapp/internal/domain"
	"learnapp/internal/infra"
	"learnapp/internal/pipeline"
	"learnapp/internal/tasks"
)

const (
	jobPollInterval   = 2 * time.Second
	stageUnknown      = "unknown"
	statusWriteBudget = 10 * time.Second
)

type jobQueue interface {
	Claim(ctx context.Context) (*domain.VideoJob, error)
	MarkSucceeded(ctx context.Context, jobID, videoURL string) error
	MarkFailed(ctx context.Context, jobID, stage, message string) error
}

type videoGenerator interface {
	Generate(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

type taskRunner interface {
	Submit(task tasks.Task) error
	InFlight() int
	Capacity() int
}

type videoWorker struct {
	jobs       jobQueue
	generator  videoGenerator
	runner     taskRunner
	logger     *infra.Logger
	jobTimeout time.Duration
	poll       time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// Run claims queued jobs while the runner has free slots and returns when
// ctx is cancelled.
func (w *videoWorker) Run(ctx context.Context) error {
	w.logger.Info().Int("concurrency", w.runner.Capacity()).Msg("worker: started")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if w.runner.InFlight() >= w.runner.Capacity() {
			if err := w.sleep(ctx, w.poll); err != nil {
				return err
			}
			continue
		}

		job, err := w.jobs.Claim(ctx)
		if err != nil {
			if !errors.Is(err, repo.ErrNoJobAvailable) && ctx.Err() == nil {
				w.logger.Error().Err(err).Msg("worker: failed to claim job")
			}
			if err := w.sleep(ctx, w.poll); err != nil {
				return err
			}
			continue
		}

		w.logger.Info().Str("job_id", job.ID).Str("document_id", job.DocumentID).Msg("worker: picked job")
		if err := w.runner.Submit(w.task(job)); err != nil {
			w.logger.Error().Err(err).Str("job_id", job.ID).Msg("worker: job not scheduled")
			w.markFailed(ctx, job, stageUnknown)
		}
	}
}

func (w *videoWorker) task(job *domain.VideoJob) tasks.Task {
	return tasks.Task{
		Name: "video-job:" + job.ID,
		Run: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, w.jobTimeout)
			defer cancel()

			started := time.Now()
			res, err := w.generator.Generate(ctx, pipeline.Request{DocumentID: job.DocumentID, UserID: job.UserID})
			if err != nil {
				return err
			}
			statusCtx, cancelStatus := context.WithTimeout(context.WithoutCancel(ctx), statusWriteBudget)
			defer cancelStatus()
			if err := w.jobs.MarkSucceeded(statusCtx, job.ID, res.VideoURL); err != nil {
				return fmt.Errorf("mark job succeeded: %w", err)
			}
			w.logger.Info().
				Str("job_id", job.ID).
				Str("video_url", res.VideoURL).
				Dur("elapsed", time.Since(started)).
				Msg("worker: job succeeded")
			return nil
		},
		OnFailure: func(ctx context.Context, err error) {
			stage := domain.StageOf(err)
			if stage == "" {
				stage = stageUnknown
			}
			w.logger.Error().Err(err).Str("job_id", job.ID).Str("stage", stage).Msg("worker: job failed")
			w.markFailed(ctx, job, stage)
		},
	}
}

func (w *videoWorker) markFailed(ctx context.Context, job *domain.VideoJob, stage string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteBudget)
	defer cancel()
	if err := w.jobs.MarkFailed(ctx, job.ID, stage, failureMessage(stage)); err != nil {
		w.logger.Error().Err(err).Str("job_id", job.ID).Msg("worker: update status failed")
	}
}

// failureMessage is the user-facing text stored on a failed job. Provider
// error details stay in the logs.
func failureMessage(stage string) string {
	switch stage {
	case domain.StageGuard:
		return "a video is already being generated for this document"
	case domain.StageDocument:
		return "the document is not ready for video generation"
	case domain.StageOutline:
		return "could not draft the presentation outline"
	case domain.StageDeck:
		return "the presentation service did not produce a deck"
	case domain.StageNarration:
		return "could not synthesize the narration"
	case domain.StageRecording, domain.StageStitch:
		return "could not render the video"
	case domain.StageUpload, domain.StagePersist:
		return "could not save the video"
	default:
		return "video generation failed"
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
