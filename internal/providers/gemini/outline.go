package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"learnapp/internal/domain"
)

const outlinePrompt = `You are an expert educator preparing a narrated video lesson for a premium AI learning app.

Read the study material below and design a slide presentation of between 3 and %d slides that teaches it.

Return ONLY a JSON object with this exact shape:
{
  "presentation_title": string,
  "global_style": string,
  "slide_count": number,
  "slides": [
    {
      "index": number,
      "type": "title" | "content" | "summary",
      "visual_directive": string,
      "narration_script": string
    }
  ]
}

RULES:
- "index" starts at 1 and increases by one per slide.
- "slide_count" equals the number of slides.
- The first slide has type "title" and the last has type "summary".
- "global_style" describes the visual theme for the whole deck in one sentence.
- "visual_directive" tells a slide designer what to show on that card: headline, key points, imagery.
- "narration_script" is spoken aloud exactly as written while the slide is on screen. Use a friendly teaching tone, short sentences, no headings, no brackets, no stage directions.
- Do not mention the document, PDF, or source.
`

// GenerateOutline asks Gemini for a slide outline of documentText. Decode
// and validation failures are reported as ContentGenerationError.
func (c *Client) GenerateOutline(ctx context.Context, documentText string) (domain.SlideOutline, error) {
	text := strings.TrimSpace(documentText)
	if text == "" {
		return domain.SlideOutline{}, &domain.ContentGenerationError{Reason: "document has no extracted text"}
	}
	parts := []*genai.Part{
		genai.NewPartFromText(fmt.Sprintf(outlinePrompt, domain.MaxOutlineSlides)),
		genai.NewPartFromText("<study material>\n" + text + "\n</study material>"),
	}
	temperature := float32(0.4)
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      &temperature,
	}

	raw, err := c.generate(ctx, "outline", parts, config)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.SlideOutline{}, ctxErr
		}
		return domain.SlideOutline{}, &domain.ContentGenerationError{Reason: "text generation failed", Err: err}
	}
	outline, err := ParseOutline(raw)
	if err != nil {
		return domain.SlideOutline{}, err
	}
	c.logger.Info().
		Str("title", outline.Title).
		Int("slides", len(outline.Slides)).
		Msg("gemini: outline generated")
	return outline, nil
}

// ParseOutline decodes and validates a JSON slide outline, tolerating a
// markdown code fence around it.
func ParseOutline(raw string) (domain.SlideOutline, error) {
	var outline domain.SlideOutline
	if err := json.Unmarshal([]byte(cleanJSONBlock(raw)), &outline); err != nil {
		return domain.SlideOutline{}, &domain.ContentGenerationError{Reason: "malformed outline json", Err: err}
	}
	for i := range outline.Slides {
		outline.Slides[i].Type = domain.SlideType(strings.ToLower(strings.TrimSpace(string(outline.Slides[i].Type))))
	}
	if err := outline.Validate(); err != nil {
		return domain.SlideOutline{}, &domain.ContentGenerationError{Reason: "outline failed validation", Err: err}
	}
	return outline, nil
}
