// Package stitch joins per-slide narration clips into one audio track and
// muxes it onto the silent screen capture.
package stitch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"learnapp/internal/domain"
	"learnapp/internal/infra"
)

// CommandRunner executes an external command to completion.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Options configures a Stitcher.
type Options struct {
	FFmpegPath      string
	CacheDir        string
	OutputDir       string
	SilenceDuration time.Duration
	Logger          *infra.Logger
	Runner          CommandRunner
	Now             func() time.Time
}

// Request describes one stitch. Narrations must be in slide order.
type Request struct {
	DocumentID      string
	WorkDir         string
	SilentVideoPath string
	Narrations      []domain.NarrationAsset
}

// Stitcher owns the ffmpeg concat and mux steps.
type Stitcher struct {
	ffmpeg    string
	cacheDir  string
	outputDir string
	silence   time.Duration
	logger    *infra.Logger
	run       CommandRunner
	now       func() time.Time
}

// New validates opts and prepares the cache and output directories.
func New(opts Options) (*Stitcher, error) {
	ffmpeg := strings.TrimSpace(opts.FFmpegPath)
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	if strings.TrimSpace(opts.CacheDir) == "" {
		return nil, errors.New("stitch: cache dir is required")
	}
	if strings.TrimSpace(opts.OutputDir) == "" {
		return nil, errors.New("stitch: output dir is required")
	}
	silence := opts.SilenceDuration
	if silence <= 0 {
		silence = 2 * time.Second
	}
	for _, dir := range []string{opts.CacheDir, opts.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("stitch: ensure %s: %w", dir, err)
		}
	}
	s := &Stitcher{
		ffmpeg:    ffmpeg,
		cacheDir:  opts.CacheDir,
		outputDir: opts.OutputDir,
		silence:   silence,
		logger:    infra.LoggerOrNop(opts.Logger),
		run:       opts.Runner,
		now:       opts.Now,
	}
	if s.run == nil {
		s.run = runCommand
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Stitch produces the final video in the output directory and returns its
// path. Every input file plus the manifest and the intermediate audio track
// are removed whether or not the stitch succeeds; the cached silence clip is
// kept for later runs.
func (s *Stitcher) Stitch(ctx context.Context, req Request) (final string, err error) {
	if len(req.Narrations) == 0 {
		return "", &domain.StitchError{Stage: domain.StitchStageConcat, Err: errors.New("no narration clips")}
	}
	workDir := req.WorkDir
	if workDir == "" {
		workDir = filepath.Dir(req.SilentVideoPath)
	}

	produced := make([]string, 0, len(req.Narrations)+3)
	produced = append(produced, req.SilentVideoPath)
	for _, n := range req.Narrations {
		produced = append(produced, n.FilePath)
	}
	defer func() {
		s.cleanup(produced)
	}()

	silence, err := s.ensureSilence(ctx)
	if err != nil {
		return "", &domain.StitchError{Stage: domain.StitchStageSilence, Err: err}
	}

	manifest := filepath.Join(workDir, "concat_list.txt")
	produced = append(produced, manifest)
	if err := writeManifest(manifest, req.Narrations, silence); err != nil {
		return "", &domain.StitchError{Stage: domain.StitchStageConcat, Err: err}
	}

	fullAudio := filepath.Join(workDir, "full_audio.mp3")
	produced = append(produced, fullAudio)
	s.logger.Debug().Str("manifest", manifest).Int("clips", len(req.Narrations)).Msg("stitch: concat narration")
	if err := s.run(ctx, s.ffmpeg, concatArgs(manifest, fullAudio)...); err != nil {
		return "", &domain.StitchError{Stage: domain.StitchStageConcat, Err: err}
	}

	final = filepath.Join(s.outputDir, fmt.Sprintf("course_%s_%d.mp4", safeName(req.DocumentID), s.now().Unix()))
	s.logger.Debug().Str("video", req.SilentVideoPath).Str("output", final).Msg("stitch: mux")
	if err := s.run(ctx, s.ffmpeg, muxArgs(req.SilentVideoPath, fullAudio, final)...); err != nil {
		removeQuietly(final)
		return "", &domain.StitchError{Stage: domain.StitchStageMux, Err: err}
	}

	s.logger.Info().Str("document_id", req.DocumentID).Str("output", final).Msg("stitch: final video ready")
	return final, nil
}

func (s *Stitcher) cleanup(paths []string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Err(err).Str("path", p).Msg("stitch: cleanup failed")
		}
	}
}

func writeManifest(path string, narrations []domain.NarrationAsset, silence string) error {
	var b strings.Builder
	for _, n := range narrations {
		clip, err := filepath.Abs(n.FilePath)
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, "file '%s'\n", escapeConcatPath(clip))
		fmt.Fprintf(&b, "file '%s'\n", escapeConcatPath(silence))
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// escapeConcatPath quotes p for the concat demuxer, which closes a quoted
// string at every single quote.
func escapeConcatPath(p string) string {
	return strings.ReplaceAll(p, "'", `'\''`)
}

func concatArgs(manifest, out string) []string {
	return []string{"-y", "-hide_banner", "-loglevel", "error", "-f", "concat", "-safe", "0", "-i", manifest, "-c", "copy", out}
}

func muxArgs(video, audio, out string) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", video,
		"-i", audio,
		"-c:v", "copy",
		"-c:a", "aac",
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-shortest",
		out,
	}
}

func safeName(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return "video"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}

func removeQuietly(path string) {
	_ = os.Remove(path)
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.WaitDelay = 5 * time.Second
	if output, err := cmd.CombinedOutput(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", name, ctxErr)
		}
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
