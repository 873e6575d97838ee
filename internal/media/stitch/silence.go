package stitch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// SilencePath returns the cache location of the silence clip.
func (s *Stitcher) SilencePath() string {
	return filepath.Join(s.cacheDir, fmt.Sprintf("silence_%dms.mp3", s.silence.Milliseconds()))
}

// ensureSilence returns the cached silence clip, generating it on first use.
// A file lock keeps concurrent workers from encoding it twice; the clip is
// written under a temporary name and renamed so readers never see a partial
// file.
func (s *Stitcher) ensureSilence(ctx context.Context) (string, error) {
	target := s.SilencePath()
	if cached(target) {
		return target, nil
	}

	lock := flock.New(target + ".lock")
	locked, err := lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return "", fmt.Errorf("lock silence clip: %w", err)
	}
	if !locked {
		return "", fmt.Errorf("lock silence clip: not acquired")
	}
	defer func() {
		_ = lock.Unlock()
	}()

	if cached(target) {
		return target, nil
	}

	tmp := filepath.Join(s.cacheDir, "silence_"+uuid.NewString()+".tmp")
	s.logger.Info().Str("path", target).Dur("duration", s.silence).Msg("stitch: generating silence clip")
	if err := s.run(ctx, s.ffmpeg, silenceArgs(s.silence, tmp)...); err != nil {
		removeQuietly(tmp)
		return "", err
	}
	if !cached(tmp) {
		removeQuietly(tmp)
		return "", fmt.Errorf("silence clip %s was not written", tmp)
	}
	if err := os.Rename(tmp, target); err != nil {
		removeQuietly(tmp)
		return "", fmt.Errorf("install silence clip: %w", err)
	}
	return target, nil
}

func silenceArgs(d time.Duration, out string) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "lavfi",
		"-i", "anullsrc=r=44100:cl=mono",
		"-t", strconv.FormatFloat(d.Seconds(), 'f', 3, 64),
		"-c:a", "libmp3lame",
		"-b:a", "128k",
		"-f", "mp3",
		out,
	}
}

func cached(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}
