package deck

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"learnapp/internal/domain"
)

// titleCaser upper-cases word starts and leaves acronyms alone.
var titleCaser = cases.Title(language.English, cases.NoLower)

// BuildPrompt renders the outline as the plain-text brief sent to the deck
// renderer: title, style, then one "- Card N:" line per slide.
func BuildPrompt(outline domain.SlideOutline) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a presentation about %s. \n", titleCaser.String(strings.TrimSpace(outline.Title)))
	fmt.Fprintf(&b, "Style: %s \n\n", strings.TrimSpace(outline.GlobalStyle))
	b.WriteString("Here is the detailed outline to follow strictly:\n")
	for _, slide := range outline.Slides {
		fmt.Fprintf(&b, "- Card %d: %s\n", slide.Index, strings.TrimSpace(slide.VisualDirective))
	}
	return b.String()
}
