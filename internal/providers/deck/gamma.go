// Package deck submits slide outlines to the Gamma generation API and waits
// for the rendered presentation.
package deck

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"learnapp/internal/domain"
	"learnapp/internal/infra"
)

const (
	defaultBaseURL      = "https://public-api.gamma.app/v1.0"
	defaultPollInterval = 5 * time.Second
	defaultMaxAttempts  = 60
)

// Options configures the Gamma client.
type Options struct {
	APIKey       string
	BaseURL      string
	PollInterval time.Duration
	MaxAttempts  int
	HTTPClient   *http.Client
	Logger       *infra.Logger
	// Wait blocks for d or until ctx is done. Tests replace it to avoid real
	// sleeps.
	Wait func(ctx context.Context, d time.Duration) error
}

// Client talks to the Gamma generations endpoint.
type Client struct {
	apiKey       string
	baseURL      string
	pollInterval time.Duration
	maxAttempts  int
	httpClient   *http.Client
	logger       *infra.Logger
	wait         func(ctx context.Context, d time.Duration) error
}

type cardOptions struct {
	Dimensions string `json:"dimensions"`
}

type sharingOptions struct {
	WorkspaceAccess string `json:"workspaceAccess"`
	ExternalAccess  string `json:"externalAccess"`
}

type generationRequest struct {
	InputText      string         `json:"inputText"`
	TextMode       string         `json:"textMode"`
	Format         string         `json:"format"`
	CardSplit      string         `json:"cardSplit"`
	NumCards       int            `json:"numCards"`
	CardOptions    cardOptions    `json:"cardOptions"`
	SharingOptions sharingOptions `json:"sharingOptions"`
}

type generationResponse struct {
	GenerationID string `json:"generationId"`
	Status       string `json:"status"`
	GammaURL     string `json:"gammaUrl"`
	Message      string `json:"message"`
	Error        string `json:"error"`
}

// NewClient constructs a client with the 5s / 60 attempt polling defaults.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	wait := opts.Wait
	if wait == nil {
		wait = sleepContext
	}
	return &Client{
		apiKey:       strings.TrimSpace(opts.APIKey),
		baseURL:      baseURL,
		pollInterval: interval,
		maxAttempts:  attempts,
		httpClient:   httpClient,
		logger:       infra.LoggerOrNop(opts.Logger),
		wait:         wait,
	}
}

// Submit starts a generation job for outline and returns its id. It does not
// retry.
func (c *Client) Submit(ctx context.Context, outline domain.SlideOutline) (string, error) {
	if c.apiKey == "" {
		return "", &domain.UpstreamSubmissionError{Message: "api key not configured", Err: domain.ErrMissingCredentials}
	}
	if len(outline.Slides) == 0 {
		return "", &domain.UpstreamSubmissionError{Message: "outline has no slides"}
	}
	payload := generationRequest{
		InputText:      BuildPrompt(outline),
		TextMode:       "generate",
		Format:         "presentation",
		CardSplit:      "auto",
		NumCards:       len(outline.Slides),
		CardOptions:    cardOptions{Dimensions: "16x9"},
		SharingOptions: sharingOptions{WorkspaceAccess: "view", ExternalAccess: "view"},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &domain.UpstreamSubmissionError{Err: fmt.Errorf("encode request: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generations", bytes.NewReader(body))
	if err != nil {
		return "", &domain.UpstreamSubmissionError{Err: fmt.Errorf("build request: %w", err)}
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &domain.UpstreamSubmissionError{Err: fmt.Errorf("http request: %w", err)}
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		return "", &domain.UpstreamSubmissionError{StatusCode: resp.StatusCode, Message: responseMessage(raw)}
	}
	var parsed generationResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &domain.UpstreamSubmissionError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	id := strings.TrimSpace(parsed.GenerationID)
	if id == "" {
		return "", &domain.UpstreamSubmissionError{StatusCode: resp.StatusCode, Message: "response missing generationId"}
	}
	c.logger.Info().Str("generation_id", id).Int("cards", payload.NumCards).Msg("deck: generation submitted")
	return id, nil
}

// Status fetches the current state of jobID once.
func (c *Client) Status(ctx context.Context, jobID string) (domain.GenerationJob, error) {
	endpoint := c.baseURL + "/generations/" + url.PathEscape(jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.GenerationJob{}, fmt.Errorf("deck: build status request: %w", err)
	}
	c.setHeaders(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.GenerationJob{}, fmt.Errorf("deck: status request: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		return domain.GenerationJob{}, &statusError{code: resp.StatusCode, message: responseMessage(raw)}
	}
	var parsed generationResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return domain.GenerationJob{}, fmt.Errorf("deck: decode status: %w", err)
	}
	job := domain.GenerationJob{JobID: jobID, Status: domain.GenerationStatus(strings.ToLower(strings.TrimSpace(parsed.Status)))}
	if job.Status == domain.GenerationCompleted {
		job.ResultURL = strings.TrimSpace(parsed.GammaURL)
	}
	return job, nil
}

// AwaitResult polls jobID until it completes, fails or the attempt budget
// runs out. Each attempt waits one poll interval first. Network errors and
// 5xx responses use up an attempt; a 4xx response is final.
func (c *Client) AwaitResult(ctx context.Context, jobID string) (string, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return "", &domain.UpstreamGenerationFailedError{Reason: "empty job id"}
	}
	logger := c.logger.With().Str("generation_id", jobID).Logger()
	start := time.Now()

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.wait(ctx, c.pollInterval); err != nil {
			return "", fmt.Errorf("deck: await %s: %w", jobID, err)
		}
		job, err := c.Status(ctx, jobID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", fmt.Errorf("deck: await %s: %w", jobID, ctxErr)
			}
			var se *statusError
			if errors.As(err, &se) && se.code < 500 {
				return "", &domain.UpstreamGenerationFailedError{JobID: jobID, Reason: se.Error()}
			}
			logger.Warn().Err(err).Int("attempt", attempt).Msg("deck: poll failed")
			continue
		}
		switch job.Status {
		case domain.GenerationCompleted:
			if job.ResultURL == "" {
				return "", &domain.UpstreamGenerationFailedError{JobID: jobID, Reason: "completed without a presentation url"}
			}
			logger.Info().Int("attempt", attempt).Dur("elapsed", time.Since(start)).Msg("deck: generation complete")
			return job.ResultURL, nil
		case domain.GenerationFailed:
			return "", &domain.UpstreamGenerationFailedError{JobID: jobID, Reason: "generation failed on server side"}
		}
		logger.Debug().Str("status", string(job.Status)).Int("attempt", attempt).Msg("deck: poll")
	}
	return "", &domain.UpstreamTimeoutError{
		JobID:    jobID,
		Attempts: c.maxAttempts,
		Waited:   time.Duration(c.maxAttempts) * c.pollInterval,
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)
}

type statusError struct {
	code    int
	message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.code, e.message)
}

func responseMessage(raw []byte) string {
	var parsed generationResponse
	if err := json.Unmarshal(raw, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	return strings.TrimSpace(string(raw))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
