// Package ffprobe reads media metadata through the ffprobe binary.
package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// OutputFunc runs a command and returns its stdout. Stderr belongs in the
// returned error.
type OutputFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%w: %s", err, msg)
		}
		return out, err
	}
	return out, nil
}

// ErrNoDuration is returned when ffprobe reports no usable duration.
var ErrNoDuration = errors.New("ffprobe: no usable duration")

// Result is the subset of ffprobe JSON the service reads.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the container.
type Stream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Duration  string `json:"duration"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// Format captures container-level metadata.
type Format struct {
	Filename   string `json:"filename"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	FormatName string `json:"format_name"`
}

// Prober runs ffprobe against local files.
type Prober struct {
	binary string
	output OutputFunc
}

// Option customizes a Prober.
type Option func(*Prober)

// WithOutputFunc replaces the command runner, mainly for tests.
func WithOutputFunc(fn OutputFunc) Option {
	return func(p *Prober) {
		if fn != nil {
			p.output = fn
		}
	}
}

// New returns a Prober for binary ("ffprobe" when empty).
func New(binary string, opts ...Option) *Prober {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	p := &Prober{binary: binary, output: execOutput}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Inspect executes ffprobe and decodes its JSON report.
func (p *Prober) Inspect(ctx context.Context, path string) (Result, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}
	output, err := p.output(ctx, p.binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w", err)
	}
	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// Duration returns the media duration in seconds. It never returns zero, a
// negative value or NaN without an error.
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	result, err := p.Inspect(ctx, path)
	if err != nil {
		return 0, err
	}
	d := result.DurationSeconds()
	if !usable(d) {
		return 0, fmt.Errorf("%w: %q", ErrNoDuration, result.Format.Duration)
	}
	return d, nil
}

// DurationSeconds prefers the container duration and falls back to the
// longest stream duration.
func (r Result) DurationSeconds() float64 {
	if d := parseFloat(r.Format.Duration); usable(d) {
		return d
	}
	best := math.NaN()
	for _, s := range r.Streams {
		d := parseFloat(s.Duration)
		if usable(d) && (math.IsNaN(best) || d > best) {
			best = d
		}
	}
	return best
}

// AudioStreamCount returns the number of audio streams discovered.
func (r Result) AudioStreamCount() int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			count++
		}
	}
	return count
}

func usable(d float64) bool {
	return !math.IsNaN(d) && !math.IsInf(d, 0) && d > 0
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" || cleaned == "N/A" {
		return math.NaN()
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
