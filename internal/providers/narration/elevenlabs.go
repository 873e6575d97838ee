package narration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"learnapp/internal/domain"
	"learnapp/internal/infra"
)

// SpeechRequest is one text-to-speech call.
type SpeechRequest struct {
	Text    string
	VoiceID string
}

// Service is the text-to-speech collaborator. The caller closes the stream.
type Service interface {
	Speak(ctx context.Context, req SpeechRequest) (io.ReadCloser, error)
}

// ElevenLabsOptions configures the ElevenLabs client.
type ElevenLabsOptions struct {
	APIKey       string
	BaseURL      string
	Model        string
	OutputFormat string
	HTTPClient   *http.Client
	Logger       *infra.Logger
}

// ElevenLabs calls the ElevenLabs text-to-speech REST API.
type ElevenLabs struct {
	apiKey       string
	baseURL      string
	model        string
	outputFormat string
	httpClient   *http.Client
	logger       *infra.Logger
}

type speechPayload struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

type errorPayload struct {
	Detail json.RawMessage `json:"detail"`
}

// NewElevenLabs constructs a client with defaults for the v2 multilingual
// model and 44.1kHz/128kbps MP3 output.
func NewElevenLabs(opts ElevenLabsOptions) *ElevenLabs {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.elevenlabs.io"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "eleven_multilingual_v2"
	}
	format := strings.TrimSpace(opts.OutputFormat)
	if format == "" {
		format = "mp3_44100_128"
	}
	return &ElevenLabs{
		apiKey:       strings.TrimSpace(opts.APIKey),
		baseURL:      baseURL,
		model:        model,
		outputFormat: format,
		httpClient:   httpClient,
		logger:       infra.LoggerOrNop(opts.Logger),
	}
}

// Speak requests audio for req.Text and returns the response body stream.
func (c *ElevenLabs) Speak(ctx context.Context, req SpeechRequest) (io.ReadCloser, error) {
	if c.apiKey == "" {
		return nil, &domain.NarrationServiceError{Message: "api key not configured", Err: domain.ErrMissingCredentials}
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, &domain.NarrationServiceError{Message: "text is required"}
	}
	voice := strings.TrimSpace(req.VoiceID)
	if voice == "" {
		return nil, &domain.NarrationServiceError{Message: "voice id is required"}
	}

	body, err := json.Marshal(speechPayload{Text: text, ModelID: c.model})
	if err != nil {
		return nil, &domain.NarrationServiceError{Err: fmt.Errorf("encode request: %w", err)}
	}
	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s", c.baseURL, url.PathEscape(voice), url.QueryEscape(c.outputFormat))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &domain.NarrationServiceError{Err: fmt.Errorf("build request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("xi-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.NarrationServiceError{Err: fmt.Errorf("http request: %w", err)}
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, &domain.NarrationServiceError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}
	c.logger.Debug().
		Str("voice", voice).
		Int("chars", len(text)).
		Dur("latency", time.Since(start)).
		Msg("narration: speech stream opened")
	return resp.Body, nil
}

// errorMessage extracts detail.message, a plain detail string, or the raw body.
func errorMessage(raw []byte) string {
	var payload errorPayload
	if err := json.Unmarshal(raw, &payload); err == nil && len(payload.Detail) > 0 {
		var detail struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(payload.Detail, &detail); err == nil && detail.Message != "" {
			if detail.Status != "" {
				return detail.Message + " (" + detail.Status + ")"
			}
			return detail.Message
		}
		var text string
		if err := json.Unmarshal(payload.Detail, &text); err == nil && text != "" {
			return text
		}
	}
	return strings.TrimSpace(string(raw))
}

var _ Service = (*ElevenLabs)(nil)
