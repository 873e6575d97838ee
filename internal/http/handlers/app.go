package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"learnapp/internal/domain"
	"learnapp/internal/middleware"
	"learnapp/internal/storage"
	"learnapp/internal/tasks"
)

// PDFConverter turns an office document on disk into a PDF next to it.
type PDFConverter interface {
	ToPDF(ctx context.Context, inputPath string) (string, error)
}

// TaskSubmitter accepts background work.
type TaskSubmitter interface {
	Submit(task tasks.Task) error
}

// Pinger reports database reachability for the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// App holds the collaborators shared by every handler.
type App struct {
	Documents  domain.DocumentRepository
	Jobs       domain.VideoJobRepository
	Videos     domain.VideoAssetRepository
	Storage    storage.Uploader
	Converter  PDFConverter
	Tasks      TaskSubmitter
	Extraction tasks.ExtractionOptions
	DB         Pinger
	Logger     zerolog.Logger

	UploadFolder   string
	MaxUploadBytes int64
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, errorBody{Error: errorDetail{Code: errCode, Message: message}})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}
