package stitch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnapp/internal/domain"
)

type fakeFFmpeg struct {
	calls    [][]string
	failWhen func(args []string) error
	manifest string
}

func (f *fakeFFmpeg) run(_ context.Context, _ string, args ...string) error {
	f.calls = append(f.calls, args)
	if slices.Contains(args, "concat") {
		raw, err := os.ReadFile(args[slices.Index(args, "-i")+1])
		if err != nil {
			return err
		}
		f.manifest = string(raw)
	}
	if f.failWhen != nil {
		if err := f.failWhen(args); err != nil {
			return err
		}
	}
	out := args[len(args)-1]
	return os.WriteFile(out, []byte("media"), 0o644)
}

func isStage(stage string) func(args []string) bool {
	return func(args []string) bool {
		switch stage {
		case domain.StitchStageSilence:
			return slices.Contains(args, "lavfi")
		case domain.StitchStageConcat:
			return slices.Contains(args, "concat")
		case domain.StitchStageMux:
			return slices.Contains(args, "-shortest")
		}
		return false
	}
}

type fixture struct {
	runDir    string
	cacheDir  string
	outputDir string
	req       Request
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	fx := fixture{
		runDir:    filepath.Join(root, "work", "doc-1", "run"),
		cacheDir:  filepath.Join(root, "cache"),
		outputDir: filepath.Join(root, "out"),
	}
	require.NoError(t, os.MkdirAll(filepath.Join(fx.runDir, "audio"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(fx.runDir, "video"), 0o755))

	video := filepath.Join(fx.runDir, "video", "silent.mp4")
	require.NoError(t, os.WriteFile(video, []byte("video"), 0o644))
	var narrations []domain.NarrationAsset
	for i := 1; i <= 2; i++ {
		p := filepath.Join(fx.runDir, "audio", "slide_"+string(rune('0'+i))+".mp3")
		require.NoError(t, os.WriteFile(p, []byte("audio"), 0o644))
		narrations = append(narrations, domain.NarrationAsset{SlideIndex: i, FilePath: p, DurationSeconds: 2})
	}
	fx.req = Request{DocumentID: "doc-1", WorkDir: fx.runDir, SilentVideoPath: video, Narrations: narrations}
	return fx
}

func (fx fixture) stitcher(t *testing.T, ff *fakeFFmpeg) *Stitcher {
	t.Helper()
	s, err := New(Options{
		CacheDir:        fx.cacheDir,
		OutputDir:       fx.outputDir,
		SilenceDuration: 2 * time.Second,
		Runner:          ff.run,
		Now:             func() time.Time { return time.Unix(1700000000, 0) },
	})
	require.NoError(t, err)
	return s
}

func filesUnder(t *testing.T, dir string) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	require.NoError(t, err)
	return files
}

func TestStitchSuccessCleansRunDirectory(t *testing.T) {
	fx := newFixture(t)
	ff := &fakeFFmpeg{}
	s := fx.stitcher(t, ff)

	final, err := s.Stitch(context.Background(), fx.req)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(fx.outputDir, "course_doc-1_1700000000.mp4"), final)
	assert.FileExists(t, final)
	assert.FileExists(t, s.SilencePath())
	assert.Empty(t, filesUnder(t, fx.runDir))
	require.Len(t, ff.calls, 3)
	assert.True(t, isStage(domain.StitchStageSilence)(ff.calls[0]))
	assert.True(t, isStage(domain.StitchStageConcat)(ff.calls[1]))
	assert.True(t, isStage(domain.StitchStageMux)(ff.calls[2]))

	lines := strings.Split(strings.TrimSpace(ff.manifest), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "slide_1.mp3")
	assert.Contains(t, lines[1], "silence_2000ms.mp3")
	assert.Contains(t, lines[2], "slide_2.mp3")
	assert.Contains(t, lines[3], "silence_2000ms.mp3")
}

func TestStitchReusesCachedSilence(t *testing.T) {
	ff := &fakeFFmpeg{}
	fx := newFixture(t)
	s := fx.stitcher(t, ff)
	_, err := s.Stitch(context.Background(), fx.req)
	require.NoError(t, err)

	fx2 := newFixture(t)
	fx2.cacheDir = fx.cacheDir
	ff2 := &fakeFFmpeg{}
	s2 := fx2.stitcher(t, ff2)
	_, err = s2.Stitch(context.Background(), fx2.req)
	require.NoError(t, err)

	require.Len(t, ff2.calls, 2)
	for _, call := range ff2.calls {
		assert.False(t, isStage(domain.StitchStageSilence)(call), "silence must not be regenerated")
	}
}

func TestStitchFailureStages(t *testing.T) {
	for _, stage := range []string{domain.StitchStageSilence, domain.StitchStageConcat, domain.StitchStageMux} {
		t.Run(stage, func(t *testing.T) {
			fx := newFixture(t)
			match := isStage(stage)
			ff := &fakeFFmpeg{failWhen: func(args []string) error {
				if match(args) {
					return errors.New("exit status 1")
				}
				return nil
			}}
			s := fx.stitcher(t, ff)

			final, err := s.Stitch(context.Background(), fx.req)
			require.Error(t, err)
			assert.Empty(t, final)

			var se *domain.StitchError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, stage, se.Stage)

			assert.Empty(t, filesUnder(t, fx.runDir), "run directory must be empty after %s failure", stage)
			assert.Empty(t, filesUnder(t, fx.outputDir))
			if stage != domain.StitchStageSilence {
				assert.FileExists(t, s.SilencePath())
			} else {
				assert.NoFileExists(t, s.SilencePath())
			}
		})
	}
}

func TestStitchRequiresNarrations(t *testing.T) {
	fx := newFixture(t)
	s := fx.stitcher(t, &fakeFFmpeg{})
	fx.req.Narrations = nil
	_, err := s.Stitch(context.Background(), fx.req)
	var se *domain.StitchError
	require.ErrorAs(t, err, &se)
}

func TestEscapeConcatPath(t *testing.T) {
	assert.Equal(t, `/tmp/it'\''s/a.mp3`, escapeConcatPath("/tmp/it's/a.mp3"))
	assert.Equal(t, "/tmp/plain.mp3", escapeConcatPath("/tmp/plain.mp3"))
}

func TestMuxArgsKeepVideoAndTruncate(t *testing.T) {
	args := muxArgs("in.mp4", "in.mp3", "out.mp4")
	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-c:v copy")
	assert.Contains(t, joined, "-c:a aac")
	assert.Contains(t, joined, "-map 0:v:0 -map 1:a:0")
	assert.Contains(t, joined, "-shortest")
	assert.Equal(t, "out.mp4", args[len(args)-1])
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "a_b-c", safeName("a/b-c"))
	assert.Equal(t, "video", safeName(""))
}
