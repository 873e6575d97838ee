package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnapp/internal/adapter/repo"
	"learnapp/internal/domain"
	"learnapp/internal/infra"
	"learnapp/internal/pipeline"
	"learnapp/internal/tasks"
)

type statusUpdate struct {
	jobID   string
	stage   string
	message string
	url     string
}

type fakeQueue struct {
	mu        sync.Mutex
	pending   []*domain.VideoJob
	succeeded []statusUpdate
	failed    []statusUpdate
	done      chan struct{}
}

func (q *fakeQueue) Claim(context.Context) (*domain.VideoJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil, repo.ErrNoJobAvailable
	}
	job := q.pending[0]
	q.pending = q.pending[1:]
	return job, nil
}

func (q *fakeQueue) MarkSucceeded(_ context.Context, jobID, url string) error {
	q.mu.Lock()
	q.succeeded = append(q.succeeded, statusUpdate{jobID: jobID, url: url})
	q.mu.Unlock()
	q.done <- struct{}{}
	return nil
}

func (q *fakeQueue) MarkFailed(_ context.Context, jobID, stage, message string) error {
	q.mu.Lock()
	q.failed = append(q.failed, statusUpdate{jobID: jobID, stage: stage, message: message})
	q.mu.Unlock()
	q.done <- struct{}{}
	return nil
}

type generatorFunc func(ctx context.Context, req pipeline.Request) (pipeline.Result, error)

func (f generatorFunc) Generate(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
	return f(ctx, req)
}

func runWorker(t *testing.T, q *fakeQueue, gen videoGenerator, jobs int) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	runner := tasks.NewRunner(ctx, tasks.Options{Concurrency: 2, QueueSize: 2})
	w := &videoWorker{
		jobs:       q,
		generator:  gen,
		runner:     runner,
		logger:     infra.NopLogger(),
		jobTimeout: time.Minute,
		poll:       time.Millisecond,
		sleep:      sleepContext,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	for i := 0; i < jobs; i++ {
		select {
		case <-q.done:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for job %d", i)
		}
	}
	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
	shutdownCtx, stop := context.WithTimeout(context.Background(), time.Second)
	defer stop()
	_ = runner.Shutdown(shutdownCtx)
}

func TestWorkerMarksSuccessAndStageFailures(t *testing.T) {
	q := &fakeQueue{
		done: make(chan struct{}, 4),
		pending: []*domain.VideoJob{
			{ID: "job-ok", DocumentID: "doc-1", UserID: "user-1"},
			{ID: "job-deck", DocumentID: "doc-2", UserID: "user-1"},
			{ID: "job-panic", DocumentID: "doc-3", UserID: "user-1"},
		},
	}
	gen := generatorFunc(func(_ context.Context, req pipeline.Request) (pipeline.Result, error) {
		switch req.DocumentID {
		case "doc-1":
			return pipeline.Result{VideoURL: "https://cdn.example.com/v.mp4"}, nil
		case "doc-2":
			return pipeline.Result{}, &domain.PipelineError{Stage: domain.StageDeck, Err: &domain.UpstreamTimeoutError{JobID: "g1", Attempts: 60}}
		default:
			panic("boom")
		}
	})

	runWorker(t, q, gen, 3)

	require.Len(t, q.succeeded, 1)
	assert.Equal(t, statusUpdate{jobID: "job-ok", url: "https://cdn.example.com/v.mp4"}, q.succeeded[0])

	require.Len(t, q.failed, 2)
	byID := map[string]statusUpdate{}
	for _, f := range q.failed {
		byID[f.jobID] = f
	}
	assert.Equal(t, domain.StageDeck, byID["job-deck"].stage)
	assert.Equal(t, "the presentation service did not produce a deck", byID["job-deck"].message)
	assert.NotContains(t, byID["job-deck"].message, "g1")
	assert.Equal(t, stageUnknown, byID["job-panic"].stage)
}

func TestWorkerAppliesJobTimeout(t *testing.T) {
	q := &fakeQueue{
		done:    make(chan struct{}, 1),
		pending: []*domain.VideoJob{{ID: "job-slow", DocumentID: "doc-1", UserID: "user-1"}},
	}
	gen := generatorFunc(func(ctx context.Context, _ pipeline.Request) (pipeline.Result, error) {
		deadline, ok := ctx.Deadline()
		if !ok || time.Until(deadline) > time.Minute {
			return pipeline.Result{}, errors.New("missing job deadline")
		}
		return pipeline.Result{}, &domain.PipelineError{Stage: domain.StageRecording, Err: context.DeadlineExceeded}
	})

	runWorker(t, q, gen, 1)

	require.Len(t, q.failed, 1)
	assert.Equal(t, domain.StageRecording, q.failed[0].stage)
}

func TestFailureMessageNeverEmpty(t *testing.T) {
	for _, stage := range []string{
		domain.StageGuard, domain.StageDocument, domain.StageOutline, domain.StageDeck,
		domain.StageNarration, domain.StageRecording, domain.StageStitch, domain.StageUpload,
		domain.StagePersist, stageUnknown, "abandoned",
	} {
		assert.NotEmpty(t, failureMessage(stage), stage)
	}
}
