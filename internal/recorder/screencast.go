package recorder

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// frameSink consumes JPEG frames at a fixed rate.
type frameSink interface {
	io.WriteCloser
	Wait() error
	Kill()
}

// ffmpegArgs encodes an MJPEG stream on stdin to H.264 at fps.
func ffmpegArgs(path string, fps int) []string {
	rate := strconv.Itoa(fps)
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "image2pipe", "-c:v", "mjpeg", "-framerate", rate, "-i", "-",
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
		"-c:v", "libx264", "-preset", "veryfast", "-crf", "18",
		"-pix_fmt", "yuv420p", "-r", rate,
		"-movflags", "+faststart",
		path,
	}
}

type ffmpegSink struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *bytes.Buffer
	cancel context.CancelFunc
}

func startFFmpegSink(ctx context.Context, binary, path string, fps int) (*ffmpegSink, error) {
	procCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(procCtx, binary, ffmpegArgs(path, fps)...)
	cmd.WaitDelay = 5 * time.Second
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	return &ffmpegSink{cmd: cmd, stdin: stdin, stderr: stderr, cancel: cancel}, nil
}

func (s *ffmpegSink) Write(p []byte) (int, error) { return s.stdin.Write(p) }
func (s *ffmpegSink) Close() error                { return s.stdin.Close() }

func (s *ffmpegSink) Wait() error {
	defer s.cancel()
	if err := s.cmd.Wait(); err != nil {
		if msg := strings.TrimSpace(s.stderr.String()); msg != "" {
			return fmt.Errorf("ffmpeg: %w: %s", err, msg)
		}
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}

func (s *ffmpegSink) Kill() {
	s.cancel()
	_ = s.stdin.Close()
	_ = s.cmd.Wait()
}

// frameLoop repeats the most recent frame into a sink at a constant rate.
// The frame count follows the time elapsed since the loop started, so a slow
// sink delays frames but never drops them from the output timeline.
type frameLoop struct {
	sink     frameSink
	interval time.Duration
	now      func() time.Time

	mu     sync.Mutex
	start  time.Time
	latest []byte
	frames int
	err    error
	flush  bool

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func newFrameLoop(sink frameSink, fps int) *frameLoop {
	return &frameLoop{
		sink:     sink,
		interval: time.Second / time.Duration(fps),
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (l *frameLoop) offer(frame []byte) {
	l.mu.Lock()
	l.latest = frame
	l.mu.Unlock()
}

func (l *frameLoop) begin() {
	l.mu.Lock()
	if l.start.IsZero() {
		l.start = l.now()
	}
	l.mu.Unlock()
}

func (l *frameLoop) run() {
	defer close(l.done)
	l.begin()
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			l.mu.Lock()
			flush := l.flush
			l.mu.Unlock()
			if flush {
				_ = l.tick()
			}
			return
		case <-ticker.C:
			if err := l.tick(); err != nil {
				return
			}
		}
	}
}

// tick writes copies of the latest frame until the number written matches
// the time elapsed since start. Ticks the ticker dropped are made up here.
func (l *frameLoop) tick() error {
	l.mu.Lock()
	if l.err != nil {
		err := l.err
		l.mu.Unlock()
		return err
	}
	frame := l.latest
	missing := int(l.now().Sub(l.start)/l.interval) - l.frames
	l.mu.Unlock()
	if frame == nil {
		return nil
	}
	for ; missing > 0; missing-- {
		if _, err := l.sink.Write(frame); err != nil {
			l.mu.Lock()
			l.err = err
			l.mu.Unlock()
			return err
		}
		l.mu.Lock()
		l.frames++
		l.mu.Unlock()
	}
	return nil
}

// halt stops the ticker goroutine and reports frames written and the first
// write error. With flush set the timeline is first filled up to now.
func (l *frameLoop) halt(flush bool) (int, error) {
	l.once.Do(func() {
		l.mu.Lock()
		l.flush = flush
		l.mu.Unlock()
		close(l.stop)
	})
	<-l.done
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frames, l.err
}

// screencast streams DevTools screencast frames into ffmpeg.
type screencast struct {
	session *chromeSession
	loop    *frameLoop
	sink    frameSink
	active  atomic.Bool
}

func startScreencast(ctx context.Context, s *chromeSession, path string, fps int) (*screencast, error) {
	sink, err := startFFmpegSink(ctx, s.opts.FFmpegPath, path, fps)
	if err != nil {
		return nil, err
	}
	sc := &screencast{session: s, sink: sink, loop: newFrameLoop(sink, fps)}
	sc.active.Store(true)

	chromedp.ListenTarget(s.ctx, func(ev interface{}) {
		frame, ok := ev.(*page.EventScreencastFrame)
		if !ok || !sc.active.Load() {
			return
		}
		data, err := base64.StdEncoding.DecodeString(frame.Data)
		if err == nil {
			sc.loop.offer(data)
		}
		id := frame.SessionID
		go func() {
			_ = chromedp.Run(s.ctx, page.ScreencastFrameAck(id))
		}()
	})

	start := page.StartScreencast().
		WithQuality(int64(s.opts.JPEGQuality)).
		WithMaxWidth(int64(s.opts.Width)).
		WithMaxHeight(int64(s.opts.Height)).
		WithEveryNthFrame(1)
	if err := chromedp.Run(s.ctx, start); err != nil {
		sc.active.Store(false)
		sink.Kill()
		return nil, fmt.Errorf("start screencast: %w", err)
	}
	go sc.loop.run()
	return sc, nil
}

func (c *screencast) Stop() error {
	c.active.Store(false)
	if err := chromedp.Run(c.session.ctx, page.StopScreencast()); err != nil {
		c.session.logger.Warn().Err(err).Msg("recorder: stop screencast")
	}
	frames, writeErr := c.loop.halt(true)
	closeErr := c.sink.Close()
	waitErr := c.sink.Wait()
	if err := errors.Join(writeErr, closeErr, waitErr); err != nil {
		return err
	}
	if frames == 0 {
		return errors.New("no frames captured")
	}
	c.session.logger.Debug().Int("frames", frames).Msg("recorder: encoder finished")
	return nil
}

func (c *screencast) Abort() {
	c.active.Store(false)
	c.sink.Kill()
	c.loop.halt(false)
}
