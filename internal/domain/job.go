package domain

import "time"

// GenerationStatus is the state of a remote deck rendering job.
type GenerationStatus string

const (
	GenerationProcessing GenerationStatus = "processing"
	GenerationCompleted  GenerationStatus = "completed"
	GenerationFailed     GenerationStatus = "failed"
)

// GenerationJob is one poll result of a deck rendering request. ResultURL is
// set only when Status is completed.
type GenerationJob struct {
	JobID     string
	Status    GenerationStatus
	ResultURL string
}

// Terminal reports whether polling can stop.
func (j GenerationJob) Terminal() bool {
	return j.Status == GenerationCompleted || j.Status == GenerationFailed
}

// NarrationAsset is the synthesized audio for one slide.
type NarrationAsset struct {
	SlideIndex      int
	FilePath        string
	DurationSeconds float64
}

// VideoAsset is the durable record of an uploaded video overview.
type VideoAsset struct {
	ID         string
	DocumentID string
	UserID     string
	PublicID   string
	SecureURL  string
	CreatedAt  time.Time
}

// VideoJobStatus enumerates queued pipeline run states.
type VideoJobStatus string

const (
	VideoJobQueued    VideoJobStatus = "queued"
	VideoJobRunning   VideoJobStatus = "running"
	VideoJobSucceeded VideoJobStatus = "succeeded"
	VideoJobFailed    VideoJobStatus = "failed"
)

// VideoJob is a queued request to produce a video for a document.
type VideoJob struct {
	ID           string
	DocumentID   string
	UserID       string
	Status       VideoJobStatus
	VideoURL     string
	FailedStage  string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
