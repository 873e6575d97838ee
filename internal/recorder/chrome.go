package recorder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"learnapp/internal/infra"
)

const (
	defaultWidth     = 1920
	defaultHeight    = 1080
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// challengeScript is true while a Cloudflare style interstitial is shown.
const challengeScript = `(() => {
  const title = (document.title || '').toLowerCase();
  if (title.includes('just a moment') || title.includes('attention required') || title.includes('checking your browser')) {
    return true;
  }
  return !!document.querySelector('#challenge-running, #challenge-form, #cf-challenge-running, iframe[src*="challenges.cloudflare.com"]');
})()`

// ChromeOptions configures the headless Chrome launcher.
type ChromeOptions struct {
	ExecPath          string
	UserAgent         string
	Width             int
	Height            int
	NavigationTimeout time.Duration
	FFmpegPath        string
	JPEGQuality       int
	Logger            *infra.Logger
}

// ChromeLauncher starts headless Chrome through the DevTools protocol.
type ChromeLauncher struct {
	opts   ChromeOptions
	logger *infra.Logger
}

// NewChromeLauncher fills in the 1920x1080 desktop defaults.
func NewChromeLauncher(opts ChromeOptions) *ChromeLauncher {
	if opts.Width <= 0 {
		opts.Width = defaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = defaultHeight
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = infra.DefaultPipelineTuning().NavigationTimeout
	}
	if strings.TrimSpace(opts.FFmpegPath) == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = 90
	}
	return &ChromeLauncher{opts: opts, logger: infra.LoggerOrNop(opts.Logger)}
}

func (l *ChromeLauncher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.WindowSize(l.opts.Width, l.opts.Height),
		chromedp.UserAgent(l.opts.UserAgent),
		chromedp.Flag("use-gl", "swiftshader"),
		chromedp.Flag("enable-webgl", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if path := strings.TrimSpace(l.opts.ExecPath); path != "" {
		opts = append(opts, chromedp.ExecPath(path))
	}
	return opts
}

// Launch starts a browser bound to ctx, sizes the viewport and turns off
// the reduced motion preference so slide animations play.
func (l *ChromeLauncher) Launch(ctx context.Context) (Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, l.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	err := chromedp.Run(browserCtx,
		chromedp.EmulateViewport(int64(l.opts.Width), int64(l.opts.Height)),
		emulation.SetEmulatedMedia().WithFeatures([]*emulation.MediaFeature{
			{Name: "prefers-reduced-motion", Value: "no-preference"},
		}),
	)
	if err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	l.logger.Debug().Int("width", l.opts.Width).Int("height", l.opts.Height).Msg("recorder: browser launched")
	return &chromeSession{
		ctx:    browserCtx,
		cancel: func() { browserCancel(); allocCancel() },
		opts:   l.opts,
		logger: l.logger,
	}, nil
}

type chromeSession struct {
	ctx    context.Context
	cancel func()
	opts   ChromeOptions
	logger *infra.Logger
}

func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(s.ctx, actions...)
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	navCtx, cancel := context.WithTimeout(s.ctx, s.opts.NavigationTimeout)
	defer cancel()
	if err := chromedp.Run(navCtx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (s *chromeSession) ChallengePresent(ctx context.Context) (bool, error) {
	var present bool
	if err := s.run(ctx, chromedp.Evaluate(challengeScript, &present)); err != nil {
		return false, err
	}
	return present, nil
}

// EnterPresentation focuses the page and sends Ctrl+Shift+Enter.
func (s *chromeSession) EnterPresentation(ctx context.Context) error {
	return s.run(ctx,
		chromedp.Click("body", chromedp.ByQuery),
		chromedp.Sleep(time.Second),
		chromedp.KeyEvent(kb.Enter, chromedp.KeyModifiers(input.ModifierCtrl, input.ModifierShift)),
	)
}

func (s *chromeSession) Advance(ctx context.Context) error {
	return s.run(ctx, chromedp.KeyEvent(kb.ArrowRight))
}

func (s *chromeSession) StartCapture(ctx context.Context, path string, fps int) (Capture, error) {
	if fps <= 0 {
		return nil, errors.New("fps must be positive")
	}
	return startScreencast(ctx, s, path, fps)
}

func (s *chromeSession) Close() error {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return nil
}

var _ Launcher = (*ChromeLauncher)(nil)
