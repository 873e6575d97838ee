package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrDocumentNotReady   = errors.New("document not ready")
	ErrInvalidOutline     = errors.New("invalid slide outline")
	ErrProviderFailure    = errors.New("provider failure")
	ErrDuplicateOperation = errors.New("duplicate operation")
	ErrMissingCredentials = errors.New("missing provider credentials")
)

// Pipeline stages reported by PipelineError.
const (
	StageGuard     = "guard"
	StageDocument  = "document"
	StageOutline   = "outline"
	StageDeck      = "deck"
	StageNarration = "narration"
	StageRecording = "recording"
	StageStitch    = "stitch"
	StageUpload    = "upload"
	StagePersist   = "persist"
)

// Stitch stages reported by StitchError.
const (
	StitchStageSilence = "silence-generation"
	StitchStageConcat  = "concat"
	StitchStageMux     = "mux"
)

// PipelineError is the single failure surfaced by a video pipeline run.
type PipelineError struct {
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("video pipeline: %s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// StageOf returns the pipeline stage carried by err, or "" when err did not
// come out of a pipeline run.
func StageOf(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Stage
	}
	return ""
}

// ContentGenerationError means the text-generation service returned an
// outline that could not be decoded or failed validation.
type ContentGenerationError struct {
	Reason string
	Err    error
}

func (e *ContentGenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("content generation: %s: %v", e.Reason, e.Err)
	}
	return "content generation: " + e.Reason
}

func (e *ContentGenerationError) Unwrap() error { return e.Err }

// UpstreamSubmissionError is returned when the deck service rejects a job.
type UpstreamSubmissionError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamSubmissionError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("deck submission: %v", e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("deck submission: status %d: %s", e.StatusCode, e.Message)
	default:
		return "deck submission: " + e.Message
	}
}

func (e *UpstreamSubmissionError) Unwrap() error { return e.Err }

// UpstreamGenerationFailedError is returned when the deck service reports a
// failed job.
type UpstreamGenerationFailedError struct {
	JobID  string
	Reason string
}

func (e *UpstreamGenerationFailedError) Error() string {
	return fmt.Sprintf("deck generation %s failed: %s", e.JobID, e.Reason)
}

// UpstreamTimeoutError is returned when a deck job is still pending after the
// last allowed poll.
type UpstreamTimeoutError struct {
	JobID    string
	Attempts int
	Waited   time.Duration
}

func (e *UpstreamTimeoutError) Error() string {
	return fmt.Sprintf("deck generation %s not ready after %d polls (%s)", e.JobID, e.Attempts, e.Waited)
}

// NarrationServiceError wraps a text-to-speech failure.
type NarrationServiceError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *NarrationServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("narration service: status %d: %s", e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("narration service: %v", e.Err)
	}
	return "narration service: " + e.Message
}

func (e *NarrationServiceError) Unwrap() error { return e.Err }

// AudioProbeError means a written audio file has no measurable duration.
// The file is left on disk.
type AudioProbeError struct {
	Path string
	Err  error
}

func (e *AudioProbeError) Error() string {
	return fmt.Sprintf("probe audio %s: %v", e.Path, e.Err)
}

func (e *AudioProbeError) Unwrap() error { return e.Err }

// RecordingError is a fatal browser capture failure. Phase names the step
// that failed (launch, navigate, present, capture, pace, stop).
type RecordingError struct {
	Phase string
	Err   error
}

func (e *RecordingError) Error() string {
	return fmt.Sprintf("recording %s: %v", e.Phase, e.Err)
}

func (e *RecordingError) Unwrap() error { return e.Err }

// StitchError is an ffmpeg failure tagged with the stitch stage.
type StitchError struct {
	Stage string
	Err   error
}

func (e *StitchError) Error() string {
	return fmt.Sprintf("stitch %s: %v", e.Stage, e.Err)
}

func (e *StitchError) Unwrap() error { return e.Err }

// UploadError wraps a storage upload failure.
type UploadError struct {
	Path string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Path, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }
