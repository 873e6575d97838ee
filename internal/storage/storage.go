// Package storage uploads documents and rendered videos to durable storage
// and returns their public URLs.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"learnapp/internal/domain"
	"learnapp/internal/infra"
)

// UploadResult identifies a stored object. PublicID is the storage key and is
// what Delete expects.
type UploadResult struct {
	SecureURL string
	PublicID  string
}

// Uploader is the storage collaborator used by handlers and the video
// pipeline.
type Uploader interface {
	UploadFile(ctx context.Context, localPath, folder string) (UploadResult, error)
	UploadReader(ctx context.Context, r io.Reader, folder, filename string) (UploadResult, error)
	Delete(ctx context.Context, publicID string) error
}

// New selects the backend named by cfg.StorageBackend.
func New(ctx context.Context, cfg *infra.Config) (Uploader, error) {
	switch cfg.StorageBackend {
	case "", "filesystem":
		return NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	case "gcs":
		return NewGCSStore(ctx, GCSOptions{
			Bucket:          cfg.GCSBucket,
			CredentialsFile: cfg.GCSCredentialsFile,
		})
	default:
		return nil, fmt.Errorf("storage: unsupported backend %q", cfg.StorageBackend)
	}
}

// objectKey builds "<folder>/<uuid><ext>" for an upload.
func objectKey(folder, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))
	key := path.Join(strings.Trim(strings.ReplaceAll(folder, "\\", "/"), "/"), uuid.NewString()+ext)
	return sanitizeKey(key)
}

// uploadLocal opens localPath and hands it to put, wrapping failures as
// domain.UploadError.
func uploadLocal(ctx context.Context, localPath, folder string, put func(context.Context, io.Reader, string, string) (UploadResult, error)) (UploadResult, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return UploadResult{}, &domain.UploadError{Path: localPath, Err: err}
	}
	defer f.Close()
	res, err := put(ctx, f, folder, filepath.Base(localPath))
	if err != nil {
		return UploadResult{}, &domain.UploadError{Path: localPath, Err: err}
	}
	return res, nil
}

func contentTypeForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".mp4":
		return "video/mp4"
	case ".pdf":
		return "application/pdf"
	case ".mp3":
		return "audio/mpeg"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
