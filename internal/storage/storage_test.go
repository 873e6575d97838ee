package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cloud.google.com/go/storage"

	"learnapp/internal/domain"
)

func TestFileStoreUploadFile(t *testing.T) {
	root := t.TempDir()
	store, err := NewFileStore(root, "http://localhost:8080/static/")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	src := filepath.Join(t.TempDir(), "course_doc.mp4")
	if err := os.WriteFile(src, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := store.UploadFile(context.Background(), src, "ai-learning-app/videos")
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if !strings.HasPrefix(res.PublicID, "ai-learning-app/videos/") || !strings.HasSuffix(res.PublicID, ".mp4") {
		t.Fatalf("unexpected public id %q", res.PublicID)
	}
	if res.SecureURL != "http://localhost:8080/static/"+res.PublicID {
		t.Fatalf("unexpected url %q", res.SecureURL)
	}
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(res.PublicID)))
	if err != nil || string(data) != "video" {
		t.Fatalf("stored data = %q, %v", data, err)
	}

	if err := store.Delete(context.Background(), res.PublicID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(context.Background(), res.PublicID); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
}

func TestFileStoreUploadMissingFile(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	_, err = store.UploadFile(context.Background(), filepath.Join(t.TempDir(), "nope.mp4"), "videos")
	var ue *domain.UploadError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UploadError, got %v", err)
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(context.Background(), "../../etc/passwd"); err == nil {
		t.Fatal("expected traversal to be rejected")
	}
	if _, err := store.UploadReader(context.Background(), strings.NewReader("x"), "../..", "a.pdf"); err == nil {
		t.Fatal("expected traversal folder to be rejected")
	}
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		in, want string
		ok       bool
	}{
		{in: "a/b.mp4", want: "a/b.mp4", ok: true},
		{in: "/a//b.mp4", want: "a/b.mp4", ok: true},
		{in: `a\b.pdf`, want: "a/b.pdf", ok: true},
		{in: "../x", ok: false},
		{in: "..", ok: false},
		{in: " ", ok: false},
	}
	for _, tc := range tests {
		got, err := sanitizeKey(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("sanitizeKey(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
		if !tc.ok && err == nil {
			t.Fatalf("sanitizeKey(%q) expected error", tc.in)
		}
	}
}

type memWriter struct {
	bucket *memBucket
	key    string
	buf    bytes.Buffer
}

func (w *memWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }
func (w *memWriter) Close() error {
	if w.bucket.closeErr != nil {
		return w.bucket.closeErr
	}
	w.bucket.objects[w.key] = w.buf.String()
	return nil
}

type memBucket struct {
	objects      map[string]string
	contentTypes map[string]string
	closeErr     error
	deleteErr    error
}

func (b *memBucket) NewWriter(_ context.Context, key, contentType string) io.WriteCloser {
	b.contentTypes[key] = contentType
	return &memWriter{bucket: b, key: key}
}

func (b *memBucket) Delete(_ context.Context, key string) error {
	if b.deleteErr != nil {
		return b.deleteErr
	}
	delete(b.objects, key)
	return nil
}

func newMemBucket() *memBucket {
	return &memBucket{objects: map[string]string{}, contentTypes: map[string]string{}}
}

func TestGCSStoreUpload(t *testing.T) {
	b := newMemBucket()
	store := newGCSStore(b, "learn-bucket", "")

	res, err := store.UploadReader(context.Background(), strings.NewReader("pdf"), "ai-learning-app/documents", "Notes.PDF")
	if err != nil {
		t.Fatalf("UploadReader: %v", err)
	}
	if b.objects[res.PublicID] != "pdf" {
		t.Fatalf("object not stored: %+v", b.objects)
	}
	if b.contentTypes[res.PublicID] != "application/pdf" {
		t.Fatalf("content type = %q", b.contentTypes[res.PublicID])
	}
	if res.SecureURL != "https://storage.googleapis.com/learn-bucket/"+res.PublicID {
		t.Fatalf("url = %q", res.SecureURL)
	}
}

func TestGCSStoreUploadCloseError(t *testing.T) {
	b := newMemBucket()
	b.closeErr = errors.New("permission denied")
	store := newGCSStore(b, "bucket", "https://cdn.example.com/")

	src := filepath.Join(t.TempDir(), "v.mp4")
	if err := os.WriteFile(src, []byte("v"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := store.UploadFile(context.Background(), src, "videos")
	var ue *domain.UploadError
	if !errors.As(err, &ue) || ue.Path != src {
		t.Fatalf("expected UploadError for %s, got %v", src, err)
	}
}

func TestGCSStoreDeleteIgnoresMissing(t *testing.T) {
	b := newMemBucket()
	b.deleteErr = storage.ErrObjectNotExist
	store := newGCSStore(b, "bucket", "")
	if err := store.Delete(context.Background(), "videos/x.mp4"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	b.deleteErr = errors.New("boom")
	if err := store.Delete(context.Background(), "videos/x.mp4"); err == nil {
		t.Fatal("expected delete error")
	}
}
