package browser

import (
	"context"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"

	"snatcher/internal/config"
)

// consentScript clicks the first matching cookie-consent control, trying
// reject patterns before accept patterns. Returns true if anything was
// clicked. Failures are best-effort and ignored by the caller.
const consentScript = `(() => {
	const byText = (words) => {
		for (const b of document.querySelectorAll('button')) {
			const t = (b.textContent || '').toLowerCase();
			if (words.some(w => t.includes(w))) return b;
		}
		return null;
	};
	const candidates = [
		byText(['reject', 'decline']),
		document.querySelector('#onetrust-reject-all-handler'),
		document.querySelector('[data-testid="reject-all"]'),
		byText(['accept', 'agree']),
		document.querySelector('#onetrust-accept-btn-handler'),
		document.querySelector('[data-testid="accept-all"]'),
	];
	for (const c of candidates) {
		if (c) { c.click(); return true; }
	}
	return false;
})()`

// ChromeFactory opens headless-Chrome sessions via the DevTools protocol.
type ChromeFactory struct {
	cfg    config.BrowserConfig
	logger *slog.Logger
}

// NewChromeFactory creates a ChromeFactory.
func NewChromeFactory(cfg config.BrowserConfig, logger *slog.Logger) *ChromeFactory {
	return &ChromeFactory{cfg: cfg, logger: logger}
}

// Open starts a fresh browser context. The browser process is launched
// eagerly so backend failures surface here as SessionError rather than on
// the first fetch.
func (f *ChromeFactory) Open(ctx context.Context) (Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", f.cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(f.cfg.UserAgent),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, &SessionError{Err: err}
	}

	return &chromeSession{
		ctx:    browserCtx,
		cancel: func() { browserCancel(); allocCancel() },
		cfg:    f.cfg,
		logger: f.logger,
	}, nil
}

type chromeSession struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    config.BrowserConfig
	logger *slog.Logger
}

// Fetch navigates, pauses like a human, dismisses cookie banners
// best-effort, waits for basic readiness and returns the rendered HTML.
func (s *chromeSession) Fetch(ctx context.Context, url string) (*RenderedPage, error) {
	fetchCtx, cancel := mergeDeadline(s.ctx, ctx)
	defer cancel()

	var html string
	err := chromedp.Run(fetchCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(humanDelay(s.cfg)),
		s.dismissConsent(),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	return &RenderedPage{URL: url, HTML: html}, nil
}

func (s *chromeSession) dismissConsent() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var clicked bool
		if err := chromedp.Evaluate(consentScript, &clicked).Do(ctx); err != nil {
			s.logger.Debug("cookie consent handling failed", "error", err)
			return nil
		}
		if clicked {
			return chromedp.Sleep(time.Second).Do(ctx)
		}
		return nil
	})
}

func (s *chromeSession) Close() {
	s.cancel()
}

// mergeDeadline derives a child of the session context that is also
// cancelled when the caller's context is. chromedp actions must run on the
// browser context, so the caller's ctx cannot be used directly.
func mergeDeadline(sessionCtx, callerCtx context.Context) (context.Context, context.CancelFunc) {
	var ctx context.Context
	var cancel context.CancelFunc
	if dl, ok := callerCtx.Deadline(); ok {
		ctx, cancel = context.WithDeadline(sessionCtx, dl)
	} else {
		ctx, cancel = context.WithCancel(sessionCtx)
	}
	stop := context.AfterFunc(callerCtx, cancel)
	return ctx, func() { stop(); cancel() }
}
