package audio

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/stretchr/testify/require"
)

func TestDurationZeroByteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.mp3")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	d, err := NewDecoder().Duration(context.Background(), path)
	require.ErrorIs(t, err, ErrEmptyClip)
	require.Zero(t, d)
}

func TestDurationGarbageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noise.mp3")
	require.NoError(t, os.WriteFile(path, []byte("definitely not audio"), 0o644))

	_, err := NewDecoder().Duration(context.Background(), path)
	require.Error(t, err)
}

func TestDurationWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "silence.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	format := beep.Format{SampleRate: 44100, NumChannels: 1, Precision: 2}
	require.NoError(t, wav.Encode(f, beep.Silence(44100*3/2), format))
	require.NoError(t, f.Close())

	d, err := NewDecoder().Duration(context.Background(), path)
	require.NoError(t, err)
	require.False(t, math.IsNaN(d))
	require.InDelta(t, 1.5, d, 0.001)
}

func TestDurationCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDecoder().Duration(ctx, "/does/not/matter.mp3")
	require.True(t, errors.Is(err, context.Canceled))
}
