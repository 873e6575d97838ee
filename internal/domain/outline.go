package domain

import (
	"fmt"
	"strings"
)

// SlideType classifies a slide in an outline.
type SlideType string

const (
	SlideTypeTitle   SlideType = "title"
	SlideTypeContent SlideType = "content"
	SlideTypeSummary SlideType = "summary"
)

// MaxOutlineSlides caps the deck size requested from the renderer.
const MaxOutlineSlides = 8

// Slide is one card of the presentation together with its spoken script.
type Slide struct {
	Index           int       `json:"index"`
	Type            SlideType `json:"type"`
	VisualDirective string    `json:"visual_directive"`
	NarrationScript string    `json:"narration_script"`
}

// SlideOutline is the structured presentation produced by the text
// generation service.
type SlideOutline struct {
	Title       string  `json:"presentation_title"`
	GlobalStyle string  `json:"global_style"`
	SlideCount  int     `json:"slide_count"`
	Slides      []Slide `json:"slides"`
}

// Validate enforces slides[i].Index == i+1, a non-empty deck and a declared
// count that matches the slide array.
func (o SlideOutline) Validate() error {
	if strings.TrimSpace(o.Title) == "" {
		return fmt.Errorf("%w: presentation title is empty", ErrInvalidOutline)
	}
	if len(o.Slides) == 0 {
		return fmt.Errorf("%w: no slides", ErrInvalidOutline)
	}
	if len(o.Slides) > MaxOutlineSlides {
		return fmt.Errorf("%w: %d slides exceeds limit of %d", ErrInvalidOutline, len(o.Slides), MaxOutlineSlides)
	}
	if o.SlideCount != len(o.Slides) {
		return fmt.Errorf("%w: slide_count %d does not match %d slides", ErrInvalidOutline, o.SlideCount, len(o.Slides))
	}
	for i, s := range o.Slides {
		if s.Index != i+1 {
			return fmt.Errorf("%w: slide at position %d has index %d", ErrInvalidOutline, i+1, s.Index)
		}
		switch s.Type {
		case SlideTypeTitle, SlideTypeContent, SlideTypeSummary:
		default:
			return fmt.Errorf("%w: slide %d has unknown type %q", ErrInvalidOutline, s.Index, s.Type)
		}
		if strings.TrimSpace(s.NarrationScript) == "" {
			return fmt.Errorf("%w: slide %d has no narration script", ErrInvalidOutline, s.Index)
		}
	}
	return nil
}
