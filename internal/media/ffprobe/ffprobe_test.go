package ffprobe

import (
	"context"
	"errors"
	"math"
	"os/exec"
	"strings"
	"testing"
)

func stubOutput(out string, err error) OutputFunc {
	return func(context.Context, string, ...string) ([]byte, error) {
		return []byte(out), err
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    float64
		wantErr bool
	}{
		{
			name:   "format duration",
			output: `{"format":{"duration":"4.200000"},"streams":[{"codec_type":"audio","duration":"4.18"}]}`,
			want:   4.2,
		},
		{
			name:   "stream fallback",
			output: `{"format":{"duration":"N/A"},"streams":[{"codec_type":"audio","duration":"3.5"},{"codec_type":"audio","duration":"3.7"}]}`,
			want:   3.7,
		},
		{
			name:    "zero duration",
			output:  `{"format":{"duration":"0.000000"},"streams":[]}`,
			wantErr: true,
		},
		{
			name:    "missing duration",
			output:  `{"format":{},"streams":[]}`,
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := New("", WithOutputFunc(stubOutput(tc.output, nil)))
			got, err := p.Duration(context.Background(), "/tmp/a.mp3")
			if tc.wantErr {
				if !errors.Is(err, ErrNoDuration) {
					t.Fatalf("Duration error = %v, want ErrNoDuration", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Duration error: %v", err)
			}
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("Duration = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestInspectCommandFailure(t *testing.T) {
	p := New("ffprobe", WithOutputFunc(stubOutput("Invalid data found when processing input", errors.New("exit status 1"))))
	if _, err := p.Inspect(context.Background(), "/tmp/empty.mp3"); err == nil {
		t.Fatalf("expected error from failing ffprobe")
	}
}

func TestInspectPassesPathAfterSeparator(t *testing.T) {
	var gotArgs []string
	p := New("probe-bin", WithOutputFunc(func(_ context.Context, name string, args ...string) ([]byte, error) {
		if name != "probe-bin" {
			t.Fatalf("binary = %q, want probe-bin", name)
		}
		gotArgs = args
		return []byte(`{"format":{"duration":"1.0"}}`), nil
	}))
	if _, err := p.Inspect(context.Background(), "-weird.mp3"); err != nil {
		t.Fatalf("Inspect error: %v", err)
	}
	if n := len(gotArgs); n < 2 || gotArgs[n-2] != "--" || gotArgs[n-1] != "-weird.mp3" {
		t.Fatalf("path must follow --, got %v", gotArgs)
	}
}

func TestExecOutputKeepsStderrOutOfJSON(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	script := `echo '[mp3 @ 0x1] Estimating duration from bitrate' >&2; echo '{"format":{"duration":"2.5"}}'`
	p := New(sh, WithOutputFunc(func(ctx context.Context, name string, _ ...string) ([]byte, error) {
		return execOutput(ctx, name, "-c", script)
	}))
	d, err := p.Duration(context.Background(), "/tmp/a.mp3")
	if err != nil {
		t.Fatalf("Duration error: %v", err)
	}
	if d != 2.5 {
		t.Fatalf("Duration = %v, want 2.5", d)
	}
}

func TestExecOutputReportsStderrOnFailure(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	_, err = execOutput(context.Background(), sh, "-c", "echo 'Invalid data found' >&2; exit 1")
	if err == nil || !strings.Contains(err.Error(), "Invalid data found") {
		t.Fatalf("error = %v, want stderr text", err)
	}
}
