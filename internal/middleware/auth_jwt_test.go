package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestAuthJWT(t *testing.T) {
	const secret = "test-secret"
	valid, err := SignJWT(secret, "user-42", time.Hour)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	expired, err := SignJWT(secret, "user-42", -time.Minute)
	if err != nil {
		t.Fatalf("SignJWT expired: %v", err)
	}
	otherKey, err := SignJWT("other", "user-42", time.Hour)
	if err != nil {
		t.Fatalf("SignJWT other: %v", err)
	}
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign without subject: %v", err)
	}

	tests := []struct {
		name   string
		header string
		status int
		user   string
	}{
		{name: "valid", header: "Bearer " + valid, status: http.StatusOK, user: "user-42"},
		{name: "lowercase scheme", header: "bearer " + valid, status: http.StatusOK, user: "user-42"},
		{name: "missing", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + valid, status: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, status: http.StatusUnauthorized},
		{name: "bad signature", header: "Bearer " + otherKey, status: http.StatusUnauthorized},
		{name: "no subject", header: "Bearer " + noSubject, status: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer abc.def", status: http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var gotUser string
			h := AuthJWT(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser = UserIDFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(http.MethodGet, "/v1/documents/x", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tc.status {
				t.Fatalf("status = %d, want %d", rr.Code, tc.status)
			}
			if gotUser != tc.user {
				t.Fatalf("user = %q, want %q", gotUser, tc.user)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	h := CORS(SplitOrigins("http://localhost:5173, https://app.example.com/"))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/v1/documents", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/healthz", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}
