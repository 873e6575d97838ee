package httpapi

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"learnapp/internal/http/handlers"
	"learnapp/internal/middleware"
)

func TestRouterAuthAndStatic(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "videos"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "videos", "a.mp4"), []byte("mp4"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := NewRouter(&handlers.App{Logger: zerolog.Nop()}, RouterOptions{
		JWTSecret:       "secret",
		AllowedOrigins:  []string{"http://localhost:5173"},
		RateLimit:       100,
		RateLimitWindow: time.Minute,
		StaticDir:       dir,
		Logger:          zerolog.Nop(),
	})

	tests := []struct {
		name   string
		method string
		path   string
		auth   bool
		status int
	}{
		{name: "health is public", method: http.MethodGet, path: "/v1/healthz", status: http.StatusOK},
		{name: "documents need token", method: http.MethodGet, path: "/v1/documents/abc", status: http.StatusUnauthorized},
		{name: "document delete needs token", method: http.MethodDelete, path: "/v1/documents/abc", status: http.StatusUnauthorized},
		{name: "authed delete malformed id", method: http.MethodDelete, path: "/v1/documents/abc", auth: true, status: http.StatusNotFound},
		{name: "video jobs need token", method: http.MethodGet, path: "/v1/ai/video-jobs/abc", status: http.StatusUnauthorized},
		{name: "authed malformed id", method: http.MethodGet, path: "/v1/ai/video-overview-url/abc", auth: true, status: http.StatusNotFound},
		{name: "static file", method: http.MethodGet, path: "/static/videos/a.mp4", status: http.StatusOK},
		{name: "unknown route", method: http.MethodGet, path: "/v1/nope", status: http.StatusNotFound},
	}
	token, err := middleware.SignJWT("secret", "6f1c2b8e-2a4d-4c1e-9f0a-1b2c3d4e5f60", time.Hour)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.auth {
				req.Header.Set("Authorization", "Bearer "+token)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tc.status {
				t.Fatalf("%s %s status = %d, want %d", tc.method, tc.path, rr.Code, tc.status)
			}
			if rr.Header().Get("X-Request-ID") == "" {
				t.Fatalf("missing X-Request-ID header")
			}
		})
	}
}
