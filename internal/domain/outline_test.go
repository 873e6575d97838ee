package domain

import (
	"errors"
	"testing"
)

func validOutline() SlideOutline {
	return SlideOutline{
		Title:       "Cell Biology",
		GlobalStyle: "clean, academic",
		SlideCount:  3,
		Slides: []Slide{
			{Index: 1, Type: SlideTypeTitle, VisualDirective: "Title card", NarrationScript: "Welcome."},
			{Index: 2, Type: SlideTypeContent, VisualDirective: "Diagram of a cell", NarrationScript: "Cells are..."},
			{Index: 3, Type: SlideTypeSummary, VisualDirective: "Recap bullets", NarrationScript: "To recap..."},
		},
	}
}

func resize(o *SlideOutline, n int) {
	o.Slides = o.Slides[:0]
	for i := 1; i <= n; i++ {
		o.Slides = append(o.Slides, Slide{Index: i, Type: SlideTypeContent, VisualDirective: "Card", NarrationScript: "Line."})
	}
	o.SlideCount = n
}

func TestSlideOutlineValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *SlideOutline)
		ok     bool
	}{
		{name: "valid", mutate: func(*SlideOutline) {}, ok: true},
		{name: "empty title", mutate: func(o *SlideOutline) { o.Title = " " }},
		{name: "no slides", mutate: func(o *SlideOutline) { o.Slides = nil; o.SlideCount = 0 }},
		{name: "count mismatch", mutate: func(o *SlideOutline) { o.SlideCount = 4 }},
		{name: "index gap", mutate: func(o *SlideOutline) { o.Slides[2].Index = 4 }},
		{name: "zero based", mutate: func(o *SlideOutline) {
			for i := range o.Slides {
				o.Slides[i].Index = i
			}
		}},
		{name: "unknown type", mutate: func(o *SlideOutline) { o.Slides[1].Type = "chart" }},
		{name: "empty narration", mutate: func(o *SlideOutline) { o.Slides[0].NarrationScript = "" }},
		{name: "single slide", mutate: func(o *SlideOutline) { o.Slides = o.Slides[:1]; o.SlideCount = 1 }, ok: true},
		{name: "eight slides", mutate: func(o *SlideOutline) { resize(o, 8) }, ok: true},
		{name: "nine slides", mutate: func(o *SlideOutline) { resize(o, 9) }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			o := validOutline()
			tc.mutate(&o)
			err := o.Validate()
			if tc.ok {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidOutline) {
				t.Fatalf("Validate() error = %v, want ErrInvalidOutline", err)
			}
		})
	}
}

func TestStageOf(t *testing.T) {
	inner := &StitchError{Stage: StitchStageConcat, Err: errors.New("exit status 1")}
	err := &PipelineError{Stage: StageStitch, Err: inner}

	if got := StageOf(err); got != StageStitch {
		t.Fatalf("StageOf() = %q, want %q", got, StageStitch)
	}
	var se *StitchError
	if !errors.As(err, &se) || se.Stage != StitchStageConcat {
		t.Fatalf("expected wrapped StitchError with concat stage, got %v", err)
	}
	if got := StageOf(errors.New("plain")); got != "" {
		t.Fatalf("StageOf(plain) = %q, want empty", got)
	}
}
