package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const extractPrompt = `Extract the complete text content of the attached PDF.
Preserve the reading order, headings and lists. Describe tables row by row.
Output only the extracted text with no commentary.`

// ErrEmptyExtraction means the model returned no text for a document.
var ErrEmptyExtraction = errors.New("gemini: extraction returned no text")

// ExtractText returns the full text of a PDF document.
func (c *Client) ExtractText(ctx context.Context, pdf []byte) (string, error) {
	if len(pdf) == 0 {
		return "", errors.New("gemini: pdf is empty")
	}
	parts := []*genai.Part{
		genai.NewPartFromText(extractPrompt),
		genai.NewPartFromBytes(pdf, "application/pdf"),
	}
	text, err := c.generate(ctx, "extract", parts, &genai.GenerateContentConfig{})
	if err != nil {
		return "", fmt.Errorf("gemini: extract text: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyExtraction
	}
	return text, nil
}
