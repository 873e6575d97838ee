// Package convert turns office documents into PDFs with LibreOffice.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"learnapp/internal/infra"
)

// ErrUnsupportedType is returned for files that are neither PDF nor a
// convertible office format.
var ErrUnsupportedType = errors.New("convert: unsupported file type; allowed: PDF, DOC, DOCX, PPT, PPTX, TXT, ODT")

var convertible = map[string]bool{
	".doc":  true,
	".docx": true,
	".ppt":  true,
	".pptx": true,
	".txt":  true,
	".odt":  true,
}

// Supported reports whether filename can be accepted for upload.
func Supported(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".pdf" || convertible[ext]
}

// NeedsConversion reports whether filename must go through LibreOffice.
func NeedsConversion(filename string) bool {
	return convertible[strings.ToLower(filepath.Ext(filename))]
}

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Options configures a Converter.
type Options struct {
	Binary  string
	Timeout time.Duration
	Runner  Runner
	Logger  *infra.Logger
}

// Converter shells out to a headless LibreOffice.
type Converter struct {
	binary  string
	timeout time.Duration
	run     Runner
	logger  *infra.Logger
}

// New builds a Converter defaulting to the "libreoffice" binary.
func New(opts Options) *Converter {
	binary := strings.TrimSpace(opts.Binary)
	if binary == "" {
		binary = "libreoffice"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	run := opts.Runner
	if run == nil {
		run = combinedOutput
	}
	return &Converter{binary: binary, timeout: timeout, run: run, logger: infra.LoggerOrNop(opts.Logger)}
}

// ToPDF converts inputPath into a PDF next to it and returns the new path.
func (c *Converter) ToPDF(ctx context.Context, inputPath string) (string, error) {
	if !NeedsConversion(inputPath) {
		return "", ErrUnsupportedType
	}
	if _, err := os.Stat(inputPath); err != nil {
		return "", fmt.Errorf("convert: input: %w", err)
	}
	outDir := filepath.Dir(inputPath)
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	outPath := filepath.Join(outDir, base+".pdf")

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	out, err := c.run(ctx, c.binary, "--headless", "--convert-to", "pdf", "--outdir", outDir, inputPath)
	if err != nil {
		return "", fmt.Errorf("convert: libreoffice: %w: %s", err, strings.TrimSpace(string(out)))
	}
	if _, err := os.Stat(outPath); err != nil {
		return "", fmt.Errorf("convert: output not created: %w", err)
	}
	c.logger.Debug().Str("input", inputPath).Str("output", outPath).Msg("convert: pdf ready")
	return outPath, nil
}

func combinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = 5 * time.Second
	return cmd.CombinedOutput()
}
