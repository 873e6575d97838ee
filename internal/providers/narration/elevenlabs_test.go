package narration

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"learnapp/internal/domain"
)

func TestElevenLabsSpeak(t *testing.T) {
	var gotBody speechPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/text-to-speech/voice-1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("output_format"); got != "mp3_44100_128" {
			t.Errorf("output_format = %q", got)
		}
		if got := r.Header.Get("xi-api-key"); got != "key" {
			t.Errorf("xi-api-key = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3fake"))
	}))
	defer server.Close()

	client := NewElevenLabs(ElevenLabsOptions{APIKey: "key", BaseURL: server.URL + "/"})
	stream, err := client.Speak(context.Background(), SpeechRequest{Text: " Hello there ", VoiceID: "voice-1"})
	if err != nil {
		t.Fatalf("Speak error: %v", err)
	}
	defer stream.Close()
	data, _ := io.ReadAll(stream)
	if string(data) != "ID3fake" {
		t.Fatalf("audio = %q, want ID3fake", data)
	}
	if gotBody.Text != "Hello there" || gotBody.ModelID != "eleven_multilingual_v2" {
		t.Fatalf("unexpected payload: %+v", gotBody)
	}
}

func TestElevenLabsSpeakErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":{"status":"invalid_api_key","message":"Invalid API key"}}`))
	}))
	defer server.Close()

	client := NewElevenLabs(ElevenLabsOptions{APIKey: "bad", BaseURL: server.URL})
	_, err := client.Speak(context.Background(), SpeechRequest{Text: "hi", VoiceID: "v"})
	var nse *domain.NarrationServiceError
	if !errors.As(err, &nse) {
		t.Fatalf("expected NarrationServiceError, got %v", err)
	}
	if nse.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", nse.StatusCode)
	}
	if nse.Message != "Invalid API key (invalid_api_key)" {
		t.Fatalf("message = %q", nse.Message)
	}
}

func TestElevenLabsSpeakWithoutKey(t *testing.T) {
	_, err := NewElevenLabs(ElevenLabsOptions{}).Speak(context.Background(), SpeechRequest{Text: "hi", VoiceID: "v"})
	if !errors.Is(err, domain.ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestErrorMessage(t *testing.T) {
	tests := map[string]string{
		`{"detail":"quota exceeded"}`: "quota exceeded",
		`upstream exploded`:           "upstream exploded",
		`{"detail":{"message":"x"}}`:  "x",
	}
	for raw, want := range tests {
		if got := errorMessage([]byte(raw)); got != want {
			t.Fatalf("errorMessage(%s) = %q, want %q", raw, got, want)
		}
	}
}
