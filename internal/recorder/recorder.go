// Package recorder captures a narrated walk through a rendered presentation.
// It drives a browser session, advances slides in step with narration
// lengths and writes a silent mp4.
//
// Slide transitions on the remote renderer are not observable, so pacing
// relies on fixed delays and alignment is best effort.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"learnapp/internal/domain"
	"learnapp/internal/infra"
)

// Recording phases reported in domain.RecordingError.
const (
	PhaseLaunch   = "launch"
	PhaseNavigate = "navigate"
	PhasePresent  = "present"
	PhaseCapture  = "capture"
	PhasePace     = "pace"
	PhaseStop     = "stop"
)

const challengePollInterval = time.Second

// Launcher opens browser sessions.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// Session is one browser tab showing a presentation.
type Session interface {
	Navigate(ctx context.Context, url string) error
	// ChallengePresent reports whether a bot-check interstitial is showing.
	ChallengePresent(ctx context.Context) (bool, error)
	EnterPresentation(ctx context.Context) error
	Advance(ctx context.Context) error
	StartCapture(ctx context.Context, path string, fps int) (Capture, error)
	Close() error
}

// Capture is a running screen recording.
type Capture interface {
	// Stop flushes and finalizes the output file.
	Stop() error
	// Abort kills the encoder without finalizing.
	Abort()
}

// Options configures a Recorder. A nil Tuning uses
// infra.DefaultPipelineTuning; a non-nil Tuning is used as given, so a zero
// delay means no delay.
type Options struct {
	Launcher Launcher
	Tuning   *infra.PipelineTuning
	Logger   *infra.Logger
	Sleep    func(ctx context.Context, d time.Duration) error
	Now      func() time.Time
}

// Recorder produces silent presentation videos.
type Recorder struct {
	launcher         Launcher
	challengeTimeout time.Duration
	settleDelay      time.Duration
	interSlidePause  time.Duration
	transitionDelay  time.Duration
	endBuffer        time.Duration
	fps              int
	logger           *infra.Logger
	sleep            func(ctx context.Context, d time.Duration) error
	now              func() time.Time
}

// New builds a Recorder.
func New(opts Options) (*Recorder, error) {
	if opts.Launcher == nil {
		return nil, errors.New("recorder: launcher is required")
	}
	tuning := infra.DefaultPipelineTuning()
	if opts.Tuning != nil {
		tuning = *opts.Tuning
		if err := tuning.Validate(); err != nil {
			return nil, fmt.Errorf("recorder: %w", err)
		}
	}
	r := &Recorder{
		launcher:         opts.Launcher,
		challengeTimeout: tuning.ChallengeTimeout,
		settleDelay:      tuning.SettleDelay,
		interSlidePause:  tuning.InterSlidePause,
		transitionDelay:  tuning.TransitionDelay,
		endBuffer:        tuning.EndBuffer,
		fps:              tuning.CaptureFPS,
		logger:           infra.LoggerOrNop(opts.Logger),
		sleep:            opts.Sleep,
		now:              opts.Now,
	}
	if r.sleep == nil {
		r.sleep = sleepContext
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

// ExpectedDuration is the wall-clock length the pacing loop aims for once
// capture has started.
func (r *Recorder) ExpectedDuration(narrations []domain.NarrationAsset) time.Duration {
	var total time.Duration
	for i, n := range narrations {
		total += seconds(n.DurationSeconds) + r.interSlidePause
		if i < len(narrations)-1 {
			total += r.transitionDelay
		}
	}
	return total + r.endBuffer
}

// Record opens presentationURL, enters presentation mode and records every
// slide for its narration length into outputDir. The browser session is
// closed on every return path.
func (r *Recorder) Record(ctx context.Context, presentationURL string, narrations []domain.NarrationAsset, outputDir string) (string, error) {
	presentationURL = strings.TrimSpace(presentationURL)
	if presentationURL == "" {
		return "", &domain.RecordingError{Phase: PhaseNavigate, Err: errors.New("presentation url is empty")}
	}
	if len(narrations) == 0 {
		return "", &domain.RecordingError{Phase: PhasePace, Err: errors.New("no narrations to pace")}
	}
	for _, n := range narrations {
		if !(n.DurationSeconds > 0) {
			return "", &domain.RecordingError{Phase: PhasePace, Err: fmt.Errorf("slide %d has invalid duration %v", n.SlideIndex, n.DurationSeconds)}
		}
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", &domain.RecordingError{Phase: PhaseCapture, Err: fmt.Errorf("ensure output dir: %w", err)}
	}
	logger := r.logger.With().Str("presentation_url", presentationURL).Int("slides", len(narrations)).Logger()

	session, err := r.launcher.Launch(ctx)
	if err != nil {
		return "", r.fail(ctx, PhaseLaunch, err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			logger.Warn().Err(cerr).Msg("recorder: close session")
		}
	}()

	if err := session.Navigate(ctx, presentationURL); err != nil {
		return "", r.fail(ctx, PhaseNavigate, err)
	}
	if err := r.waitForChallenge(ctx, session, &logger); err != nil {
		return "", err
	}
	if err := session.EnterPresentation(ctx); err != nil {
		return "", r.fail(ctx, PhasePresent, err)
	}
	if err := r.sleep(ctx, r.settleDelay); err != nil {
		return "", fmt.Errorf("recorder: settle: %w", err)
	}

	outPath := filepath.Join(outputDir, fmt.Sprintf("silent_%d.mp4", r.now().UnixNano()))
	capture, err := session.StartCapture(ctx, outPath, r.fps)
	if err != nil {
		return "", r.fail(ctx, PhaseCapture, err)
	}
	logger.Info().Int("fps", r.fps).Str("path", outPath).Msg("recorder: capture started")
	started := r.now()

	if err := r.pace(ctx, session, narrations, &logger); err != nil {
		capture.Abort()
		_ = os.Remove(outPath)
		return "", err
	}
	if err := capture.Stop(); err != nil {
		_ = os.Remove(outPath)
		return "", r.fail(ctx, PhaseStop, err)
	}

	expected := r.ExpectedDuration(narrations)
	actual := r.now().Sub(started)
	logger.Info().
		Dur("expected", expected).
		Dur("actual", actual).
		Dur("drift", actual-expected).
		Msg("recorder: capture finished")
	return outPath, nil
}

func (r *Recorder) pace(ctx context.Context, session Session, narrations []domain.NarrationAsset, logger *infra.Logger) error {
	last := len(narrations) - 1
	for i, n := range narrations {
		logger.Debug().Int("slide", n.SlideIndex).Float64("duration_seconds", n.DurationSeconds).Msg("recorder: hold slide")
		if err := r.sleep(ctx, seconds(n.DurationSeconds)); err != nil {
			return fmt.Errorf("recorder: pace slide %d: %w", n.SlideIndex, err)
		}
		if err := r.sleep(ctx, r.interSlidePause); err != nil {
			return fmt.Errorf("recorder: pace slide %d: %w", n.SlideIndex, err)
		}
		if i == last {
			break
		}
		if err := session.Advance(ctx); err != nil {
			return r.fail(ctx, PhasePace, fmt.Errorf("advance from slide %d: %w", n.SlideIndex, err))
		}
		logger.Debug().Int("slide", n.SlideIndex).Msg("recorder: advance slide")
		if err := r.sleep(ctx, r.transitionDelay); err != nil {
			return fmt.Errorf("recorder: transition after slide %d: %w", n.SlideIndex, err)
		}
	}
	if err := r.sleep(ctx, r.endBuffer); err != nil {
		return fmt.Errorf("recorder: end buffer: %w", err)
	}
	return nil
}

// waitForChallenge polls until no interstitial is showing. Timing out is
// logged and recording proceeds.
func (r *Recorder) waitForChallenge(ctx context.Context, session Session, logger *infra.Logger) error {
	deadline := r.now().Add(r.challengeTimeout)
	for {
		present, err := session.ChallengePresent(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("recorder: challenge wait: %w", ctxErr)
			}
			logger.Warn().Err(err).Msg("recorder: challenge probe failed")
			return nil
		}
		if !present {
			return nil
		}
		if !r.now().Before(deadline) {
			logger.Warn().Dur("waited", r.challengeTimeout).Msg("recorder: challenge still present, continuing")
			return nil
		}
		if err := r.sleep(ctx, challengePollInterval); err != nil {
			return fmt.Errorf("recorder: challenge wait: %w", err)
		}
	}
}

// fail wraps err as a RecordingError unless the run was cancelled.
func (r *Recorder) fail(ctx context.Context, phase string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("recorder: %s: %w", phase, ctxErr)
	}
	return &domain.RecordingError{Phase: phase, Err: err}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
