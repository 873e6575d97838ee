package narration

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnapp/internal/domain"
)

type fakeService struct {
	mu    sync.Mutex
	audio string
	err   error
	calls []SpeechRequest
}

func (f *fakeService) Speak(_ context.Context, req SpeechRequest) (io.ReadCloser, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.audio)), nil
}

type fakeProber struct {
	duration float64
	err      error
	calls    int
}

func (f *fakeProber) Duration(context.Context, string) (float64, error) {
	f.calls++
	return f.duration, f.err
}

func TestSynthesizeWritesFileAndProbes(t *testing.T) {
	svc := &fakeService{audio: "mp3-bytes"}
	prober := &fakeProber{duration: 4.2}
	s, err := NewSynthesizer(svc, SynthesizerOptions{VoiceID: "voice-1", Probers: []Prober{prober}})
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "audio", "slide_1.mp3")
	d, err := s.Synthesize(context.Background(), "Welcome to the course.", dest)
	require.NoError(t, err)
	assert.InDelta(t, 4.2, d, 1e-9)

	raw, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "mp3-bytes", string(raw))
	require.Len(t, svc.calls, 1)
	assert.Equal(t, "voice-1", svc.calls[0].VoiceID)
}

func TestSynthesizeFallsBackToSecondProber(t *testing.T) {
	first := &fakeProber{err: errors.New("ffprobe missing")}
	second := &fakeProber{duration: 2.5}
	s, err := NewSynthesizer(&fakeService{audio: "x"}, SynthesizerOptions{Probers: []Prober{first, second}})
	require.NoError(t, err)

	d, err := s.Synthesize(context.Background(), "text", filepath.Join(t.TempDir(), "a.mp3"))
	require.NoError(t, err)
	assert.Equal(t, 2.5, d)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestSynthesizeZeroByteAudioIsProbeError(t *testing.T) {
	prober := &fakeProber{duration: 3}
	s, err := NewSynthesizer(&fakeService{audio: ""}, SynthesizerOptions{Probers: []Prober{prober}})
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "empty.mp3")
	d, err := s.Synthesize(context.Background(), "text", dest)
	var pe *domain.AudioProbeError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, dest, pe.Path)
	assert.Zero(t, d)
	assert.FileExists(t, dest, "probe failures leave the file for the caller")
	assert.Zero(t, prober.calls)
}

func TestSynthesizeRejectsNonPositiveDuration(t *testing.T) {
	s, err := NewSynthesizer(&fakeService{audio: "x"}, SynthesizerOptions{Probers: []Prober{&fakeProber{duration: 0}}})
	require.NoError(t, err)

	_, err = s.Synthesize(context.Background(), "text", filepath.Join(t.TempDir(), "a.mp3"))
	var pe *domain.AudioProbeError
	require.ErrorAs(t, err, &pe)
}

func TestSynthesizeServiceFailure(t *testing.T) {
	s, err := NewSynthesizer(&fakeService{err: errors.New("connection reset")}, SynthesizerOptions{Probers: []Prober{&fakeProber{duration: 1}}})
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "a.mp3")
	_, err = s.Synthesize(context.Background(), "text", dest)
	var nse *domain.NarrationServiceError
	require.ErrorAs(t, err, &nse)
	assert.NoFileExists(t, dest)
}

func TestSynthesizeConcurrentDistinctPaths(t *testing.T) {
	s, err := NewSynthesizer(&fakeService{audio: "x"}, SynthesizerOptions{Probers: []Prober{&constProber{d: 1}}})
	require.NoError(t, err)

	dir := t.TempDir()
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Synthesize(context.Background(), "text", filepath.Join(dir, "slide_"+string(rune('a'+i))+".mp3"))
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 8)
}

type constProber struct{ d float64 }

func (c *constProber) Duration(context.Context, string) (float64, error) { return c.d, nil }
