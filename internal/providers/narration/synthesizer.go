// Package narration turns slide scripts into narration clips with a measured
// duration.
package narration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"learnapp/internal/domain"
	"learnapp/internal/infra"
)

// Prober measures the duration of an audio file in seconds.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// SynthesizerOptions configures a Synthesizer.
type SynthesizerOptions struct {
	VoiceID string
	// Probers are tried in order until one reports a duration.
	Probers []Prober
	Logger  *infra.Logger
}

// Synthesizer writes narration audio to disk and measures it. It keeps no
// per-call state, so concurrent calls are safe as long as each uses its own
// destination path.
type Synthesizer struct {
	service Service
	voiceID string
	probers []Prober
	logger  *infra.Logger
}

// NewSynthesizer wires a speech service and duration probers.
func NewSynthesizer(service Service, opts SynthesizerOptions) (*Synthesizer, error) {
	if service == nil {
		return nil, errors.New("narration: service is required")
	}
	if len(opts.Probers) == 0 {
		return nil, errors.New("narration: at least one prober is required")
	}
	return &Synthesizer{
		service: service,
		voiceID: strings.TrimSpace(opts.VoiceID),
		probers: opts.Probers,
		logger:  infra.LoggerOrNop(opts.Logger),
	}, nil
}

// Synthesize speaks script into destinationPath and returns its duration.
// Upstream failures yield a NarrationServiceError and leave no file behind.
// A written file whose duration cannot be measured yields an AudioProbeError
// and stays on disk for the caller to clean up.
func (s *Synthesizer) Synthesize(ctx context.Context, script, destinationPath string) (float64, error) {
	if err := os.MkdirAll(filepath.Dir(destinationPath), 0o755); err != nil {
		return 0, fmt.Errorf("narration: ensure directory: %w", err)
	}

	stream, err := s.service.Speak(ctx, SpeechRequest{Text: script, VoiceID: s.voiceID})
	if err != nil {
		return 0, asServiceError(err)
	}
	if err := writeStream(destinationPath, stream); err != nil {
		_ = os.Remove(destinationPath)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, &domain.NarrationServiceError{Err: fmt.Errorf("read audio stream: %w", err)}
	}

	duration, err := s.probe(ctx, destinationPath)
	if err != nil {
		return 0, &domain.AudioProbeError{Path: destinationPath, Err: err}
	}
	s.logger.Debug().Str("path", destinationPath).Float64("duration_seconds", duration).Msg("narration: clip ready")
	return duration, nil
}

func (s *Synthesizer) probe(ctx context.Context, path string) (float64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.Size() == 0 {
		return 0, errors.New("audio file is empty")
	}
	var errs []error
	for _, p := range s.probers {
		d, err := p.Duration(ctx, path)
		if err == nil && d > 0 {
			return d, nil
		}
		if err == nil {
			err = fmt.Errorf("non-positive duration %v", d)
		}
		errs = append(errs, err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
	}
	return 0, errors.Join(errs...)
}

func writeStream(path string, stream io.ReadCloser) error {
	defer stream.Close()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, stream); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func asServiceError(err error) error {
	var nse *domain.NarrationServiceError
	if errors.As(err, &nse) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &domain.NarrationServiceError{Err: err}
}
