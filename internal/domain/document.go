package domain

import "time"

// DocumentStatus tracks background text extraction.
type DocumentStatus string

const (
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusReady      DocumentStatus = "ready"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// Document is an uploaded study document. HasText reports whether
// extraction produced text; listings fill it without loading ExtractedText.
type Document struct {
	ID            string
	UserID        string
	Title         string
	FileName      string
	FileURL       string
	FilePublicID  string
	FileSize      int64
	Status        DocumentStatus
	ExtractedText string
	HasText       bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
