// Package audio measures clip durations by decoding them in-process. It backs
// up ffprobe when the binary is missing or cannot read a file.
package audio

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

// ErrEmptyClip is returned for files with no decodable samples.
var ErrEmptyClip = errors.New("audio: clip has no samples")

// Decoder decodes MP3 and WAV files with beep.
type Decoder struct{}

// NewDecoder returns a Decoder.
func NewDecoder() *Decoder { return &Decoder{} }

// Duration returns the clip length in seconds.
func (d *Decoder) Duration(ctx context.Context, path string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("audio: stat: %w", err)
	}
	if info.Size() == 0 {
		return 0, ErrEmptyClip
	}

	streamer, format, err := decode(path)
	if err != nil {
		return 0, err
	}
	defer streamer.Close()

	samples := streamer.Len()
	if samples <= 0 || format.SampleRate <= 0 {
		return 0, ErrEmptyClip
	}
	return format.SampleRate.D(samples).Seconds(), nil
}

func decode(path string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("audio: open: %w", err)
	}
	streamer, format, mp3Err := mp3.Decode(f)
	if mp3Err == nil {
		return streamer, format, nil
	}
	f.Close()

	// mp3.Decode may have consumed the reader; start over for WAV.
	f, err = os.Open(path)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("audio: open: %w", err)
	}
	streamer, format, wavErr := wav.Decode(f)
	if wavErr != nil {
		f.Close()
		return nil, beep.Format{}, fmt.Errorf("audio: decode: mp3: %v; wav: %w", mp3Err, wavErr)
	}
	return streamer, format, nil
}
