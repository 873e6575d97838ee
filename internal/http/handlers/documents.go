package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"learnapp/internal/convert"
	"learnapp/internal/domain"
	"learnapp/internal/tasks"
)

const (
	defaultMaxUploadBytes = 25 << 20
	multipartMemory       = 8 << 20
	documentListLimit     = 100
)

type documentResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	FileName  string    `json:"file_name"`
	FileURL   string    `json:"file_url"`
	FileSize  int64     `json:"file_size"`
	Status    string    `json:"status"`
	HasText   bool      `json:"has_text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toDocumentResponse(doc *domain.Document) documentResponse {
	return documentResponse{
		ID:        doc.ID,
		Title:     doc.Title,
		FileName:  doc.FileName,
		FileURL:   doc.FileURL,
		FileSize:  doc.FileSize,
		Status:    string(doc.Status),
		HasText:   doc.HasText || doc.ExtractedText != "",
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

// DocumentsUpload stores an uploaded document as PDF and schedules its text
// extraction. The response is sent while the document is still processing.
func (a *App) DocumentsUpload(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	limit := a.MaxUploadBytes
	if limit <= 0 {
		limit = defaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "too_large", "file exceeds upload limit")
			return
		}
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart payload")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "title required")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "file required")
		return
	}
	defer file.Close()

	fileName := filepath.Base(strings.ReplaceAll(header.Filename, "\\", "/"))
	if !convert.Supported(fileName) {
		a.error(w, http.StatusUnsupportedMediaType, "unsupported_type", convert.ErrUnsupportedType.Error())
		return
	}

	pdf, err := a.pdfBytes(r.Context(), file, fileName)
	if err != nil {
		a.Logger.Error().Err(err).Str("file", fileName).Msg("documents: conversion failed")
		a.error(w, http.StatusUnprocessableEntity, "conversion_failed", "file conversion failed")
		return
	}

	pdfName := strings.TrimSuffix(fileName, filepath.Ext(fileName)) + ".pdf"
	uploaded, err := a.Storage.UploadReader(r.Context(), bytes.NewReader(pdf), a.folder("documents"), pdfName)
	if err != nil {
		a.Logger.Error().Err(err).Msg("documents: upload failed")
		a.error(w, http.StatusBadGateway, "upload_failed", "failed to store document")
		return
	}

	doc := &domain.Document{
		UserID:       userID,
		Title:        title,
		FileName:     fileName,
		FileURL:      uploaded.SecureURL,
		FilePublicID: uploaded.PublicID,
		FileSize:     int64(len(pdf)),
	}
	if err := a.Documents.Create(r.Context(), doc); err != nil {
		a.Logger.Error().Err(err).Msg("documents: insert failed")
		if derr := a.Storage.Delete(context.WithoutCancel(r.Context()), uploaded.PublicID); derr != nil {
			a.Logger.Warn().Err(derr).Str("public_id", uploaded.PublicID).Msg("documents: orphaned upload")
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to save document")
		return
	}

	if err := a.Tasks.Submit(tasks.NewExtractionTask(a.Extraction, doc.ID, pdf)); err != nil {
		a.Logger.Error().Err(err).Str("document_id", doc.ID).Msg("documents: extraction not scheduled")
		if merr := a.Documents.MarkFailed(context.WithoutCancel(r.Context()), doc.ID); merr != nil {
			a.Logger.Error().Err(merr).Str("document_id", doc.ID).Msg("documents: mark failed")
		}
		a.error(w, http.StatusServiceUnavailable, "busy", "document processing is unavailable, try again later")
		return
	}

	a.Logger.Info().Str("document_id", doc.ID).Str("user_id", userID).Int64("bytes", doc.FileSize).Msg("documents: uploaded")
	a.json(w, http.StatusCreated, map[string]string{"id": doc.ID, "status": string(doc.Status)})
}

// pdfBytes returns the upload as PDF, converting office formats first.
func (a *App) pdfBytes(ctx context.Context, src io.Reader, fileName string) ([]byte, error) {
	if !convert.NeedsConversion(fileName) {
		return io.ReadAll(src)
	}
	if a.Converter == nil {
		return nil, convert.ErrUnsupportedType
	}
	dir, err := os.MkdirTemp("", "learnapp-upload-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, fileName)
	f, err := os.Create(input)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(f, src); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	out, err := a.Converter.ToPDF(ctx, input)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(out)
}

func (a *App) folder(kind string) string {
	base := strings.Trim(a.UploadFolder, "/")
	if base == "" {
		return kind
	}
	return base + "/" + kind
}

func (a *App) DocumentGet(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	id := chi.URLParam(r, "id")
	if !validID(id) {
		a.error(w, http.StatusNotFound, "not_found", "document not found")
		return
	}
	doc, err := a.Documents.GetForUser(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "document not found")
			return
		}
		a.Logger.Error().Err(err).Str("document_id", id).Msg("documents: load failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load document")
		return
	}
	a.json(w, http.StatusOK, toDocumentResponse(doc))
}

// DocumentsList returns the caller's documents, newest first.
func (a *App) DocumentsList(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	docs, err := a.Documents.ListForUser(r.Context(), userID, documentListLimit)
	if err != nil {
		a.Logger.Error().Err(err).Msg("documents: list failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list documents")
		return
	}
	items := make([]documentResponse, 0, len(docs))
	for i := range docs {
		items = append(items, toDocumentResponse(&docs[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"documents": items})
}

// DocumentDelete removes the stored PDF and every video of the document,
// then the document row. Rows stay in place when storage cleanup fails so
// the request can be retried.
func (a *App) DocumentDelete(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	id := chi.URLParam(r, "id")
	if !validID(id) {
		a.error(w, http.StatusNotFound, "not_found", "document not found")
		return
	}
	ctx := r.Context()
	doc, err := a.Documents.GetForUser(ctx, id, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "document not found")
			return
		}
		a.Logger.Error().Err(err).Str("document_id", id).Msg("documents: load failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load document")
		return
	}
	assets, err := a.Videos.ListForDocument(ctx, id, userID)
	if err != nil {
		a.Logger.Error().Err(err).Str("document_id", id).Msg("documents: list videos failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load document videos")
		return
	}

	objects := make([]string, 0, len(assets)+1)
	if doc.FilePublicID != "" {
		objects = append(objects, doc.FilePublicID)
	}
	for _, asset := range assets {
		if asset.PublicID != "" {
			objects = append(objects, asset.PublicID)
		}
	}
	for _, publicID := range objects {
		if err := a.Storage.Delete(ctx, publicID); err != nil {
			a.Logger.Error().Err(err).Str("document_id", id).Str("public_id", publicID).Msg("documents: storage delete failed")
			a.error(w, http.StatusBadGateway, "storage_error", "failed to delete stored files")
			return
		}
	}

	if err := a.Documents.Delete(ctx, id, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "document not found")
			return
		}
		a.Logger.Error().Err(err).Str("document_id", id).Msg("documents: delete failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to delete document")
		return
	}
	a.Logger.Info().Str("document_id", id).Int("videos", len(assets)).Msg("documents: deleted")
	a.json(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

// validID rejects ids Postgres would fail to cast to uuid.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
