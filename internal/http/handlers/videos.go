package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"learnapp/internal/domain"
)

type videoGenerateRequest struct {
	DocumentID string `json:"documentId"`
}

type jobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type videoJobResponse struct {
	ID          string    `json:"id"`
	DocumentID  string    `json:"document_id"`
	Status      string    `json:"status"`
	VideoURL    string    `json:"video_url,omitempty"`
	FailedStage string    `json:"failed_stage,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// VideosGenerate queues a video overview run for a ready document.
func (a *App) VideosGenerate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req videoGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	req.DocumentID = strings.TrimSpace(req.DocumentID)
	if req.DocumentID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "documentId required")
		return
	}
	if !validID(req.DocumentID) {
		a.error(w, http.StatusNotFound, "not_found", "document not found")
		return
	}

	if _, err := a.Documents.GetReadyDocument(r.Context(), req.DocumentID, userID); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			a.error(w, http.StatusNotFound, "not_found", "document not found")
		case errors.Is(err, domain.ErrDocumentNotReady):
			a.error(w, http.StatusConflict, "document_not_ready", "document is still processing or failed")
		default:
			a.Logger.Error().Err(err).Str("document_id", req.DocumentID).Msg("videos: load document failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to load document")
		}
		return
	}

	job, err := a.Jobs.Enqueue(r.Context(), req.DocumentID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateOperation) {
			a.error(w, http.StatusConflict, "duplicate", "a video is already being generated for this document")
			return
		}
		a.Logger.Error().Err(err).Str("document_id", req.DocumentID).Msg("videos: enqueue failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to queue video job")
		return
	}
	a.Logger.Info().Str("job_id", job.ID).Str("document_id", req.DocumentID).Msg("videos: queued")
	a.json(w, http.StatusAccepted, jobResponse{JobID: job.ID, Status: string(job.Status)})
}

func (a *App) VideoJobStatus(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "id")
	if !validID(jobID) {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	job, err := a.Jobs.GetForUser(r.Context(), jobID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("videos: load job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	a.json(w, http.StatusOK, videoJobResponse{
		ID:          job.ID,
		DocumentID:  job.DocumentID,
		Status:      string(job.Status),
		VideoURL:    job.VideoURL,
		FailedStage: job.FailedStage,
		Error:       job.ErrorMessage,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
	})
}

// VideoOverviewURL returns the most recent video generated for a document.
func (a *App) VideoOverviewURL(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	documentID := chi.URLParam(r, "documentId")
	if !validID(documentID) {
		a.error(w, http.StatusNotFound, "not_found", "video overview not found")
		return
	}
	asset, err := a.Videos.LatestForDocument(r.Context(), documentID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "video overview not found")
			return
		}
		a.Logger.Error().Err(err).Str("document_id", documentID).Msg("videos: load asset failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load video overview")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"video_url":  asset.SecureURL,
		"created_at": asset.CreatedAt,
	})
}
