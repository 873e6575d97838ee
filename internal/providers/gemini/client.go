// Package gemini wraps the Google GenAI SDK for the two text tasks the
// service needs: reading uploaded PDFs and drafting slide outlines.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"learnapp/internal/domain"
	"learnapp/internal/infra"
)

const defaultModel = "gemini-2.5-flash"

// Models is the subset of genai.Models the client calls.
type Models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Options configures the Gemini client. Models overrides the SDK client and
// is meant for tests.
type Options struct {
	APIKey string
	Model  string
	Logger *infra.Logger
	Models Models
}

// Client issues prompts to Gemini.
type Client struct {
	models Models
	model  string
	logger *infra.Logger
}

// NewClient builds an SDK-backed client unless opts.Models is supplied.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}
	models := opts.Models
	if models == nil {
		key := strings.TrimSpace(opts.APIKey)
		if key == "" {
			return nil, fmt.Errorf("gemini: %w", domain.ErrMissingCredentials)
		}
		sdk, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  key,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini: create client: %w", err)
		}
		models = sdk.Models
	}
	return &Client{models: models, model: model, logger: infra.LoggerOrNop(opts.Logger)}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

func (c *Client) generate(ctx context.Context, intent string, parts []*genai.Part, config *genai.GenerateContentConfig) (string, error) {
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		c.logger.Warn().Err(err).Str("intent", intent).Msg("gemini: generate failed")
		return "", err
	}
	text, err := responseText(resp)
	if err != nil {
		return "", err
	}
	c.logger.Debug().
		Str("intent", intent).
		Str("model", c.model).
		Int("chars", len(text)).
		Dur("latency", time.Since(start)).
		Msg("gemini: response received")
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("no candidates returned")
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return "", errors.New("candidate has no content")
	}
	var sb strings.Builder
	for _, part := range content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}

// cleanJSONBlock strips a surrounding markdown code fence.
func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimSuffix(text, "```")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
	}
	return strings.TrimSpace(text)
}
