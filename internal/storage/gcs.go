package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSOptions configures the Cloud Storage backend.
type GCSOptions struct {
	Bucket          string
	CredentialsFile string
	// PublicBaseURL overrides https://storage.googleapis.com/<bucket>, for
	// example with a CDN domain.
	PublicBaseURL string
}

// bucket is the part of a Cloud Storage bucket the store touches.
type bucket interface {
	NewWriter(ctx context.Context, key, contentType string) io.WriteCloser
	Delete(ctx context.Context, key string) error
}

type gcsBucket struct {
	handle *storage.BucketHandle
}

func (b gcsBucket) NewWriter(ctx context.Context, key, contentType string) io.WriteCloser {
	w := b.handle.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	return w
}

func (b gcsBucket) Delete(ctx context.Context, key string) error {
	return b.handle.Object(key).Delete(ctx)
}

// GCSStore uploads objects to a Cloud Storage bucket.
type GCSStore struct {
	bucket  bucket
	baseURL string
}

// NewGCSStore creates a storage client using the credentials file when set
// and application default credentials otherwise.
func NewGCSStore(ctx context.Context, opts GCSOptions) (*GCSStore, error) {
	name := strings.TrimSpace(opts.Bucket)
	if name == "" {
		return nil, errors.New("storage: gcs bucket is required")
	}
	clientOpts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if file := strings.TrimSpace(opts.CredentialsFile); file != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(file))
	}
	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("storage: create gcs client: %w", err)
	}
	return newGCSStore(gcsBucket{handle: client.Bucket(name)}, name, opts.PublicBaseURL), nil
}

func newGCSStore(b bucket, name, publicBaseURL string) *GCSStore {
	baseURL := strings.TrimRight(strings.TrimSpace(publicBaseURL), "/")
	if baseURL == "" {
		baseURL = "https://storage.googleapis.com/" + name
	}
	return &GCSStore{bucket: b, baseURL: baseURL}
}

// UploadFile copies localPath under folder.
func (s *GCSStore) UploadFile(ctx context.Context, localPath, folder string) (UploadResult, error) {
	return uploadLocal(ctx, localPath, folder, s.UploadReader)
}

// UploadReader streams r into a new object under folder.
func (s *GCSStore) UploadReader(ctx context.Context, r io.Reader, folder, filename string) (UploadResult, error) {
	key, err := objectKey(folder, filename)
	if err != nil {
		return UploadResult{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	w := s.bucket.NewWriter(ctx, key, contentTypeForKey(key))
	if _, err := io.Copy(w, r); err != nil {
		// Cancelling before Close discards the partial object.
		cancel()
		_ = w.Close()
		return UploadResult{}, fmt.Errorf("storage: write gcs object: %w", err)
	}
	if err := w.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("storage: close gcs writer: %w", err)
	}
	return UploadResult{SecureURL: s.baseURL + "/" + key, PublicID: key}, nil
}

// Delete removes the object. Missing objects are not an error.
func (s *GCSStore) Delete(ctx context.Context, publicID string) error {
	key, err := sanitizeKey(publicID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := s.bucket.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("storage: delete gcs object %s: %w", key, err)
	}
	return nil
}

var _ Uploader = (*GCSStore)(nil)
