package browser

import (
	"context"
	"log/slog"
	"time"

	"github.com/gocolly/colly/v2"

	"snatcher/internal/config"
)

// StaticFactory fetches pages over plain HTTP without rendering. Suitable
// for providers that serve prices in the initial HTML.
type StaticFactory struct {
	cfg     config.BrowserConfig
	timeout time.Duration
	logger  *slog.Logger
}

// NewStaticFactory creates a StaticFactory.
func NewStaticFactory(cfg config.BrowserConfig, logger *slog.Logger) *StaticFactory {
	return &StaticFactory{cfg: cfg, timeout: 30 * time.Second, logger: logger}
}

func (f *StaticFactory) Open(ctx context.Context) (Session, error) {
	return &staticSession{cfg: f.cfg, timeout: f.timeout, logger: f.logger}, nil
}

type staticSession struct {
	cfg     config.BrowserConfig
	timeout time.Duration
	logger  *slog.Logger
}

func (s *staticSession) Fetch(ctx context.Context, url string) (*RenderedPage, error) {
	select {
	case <-ctx.Done():
		return nil, &NetworkError{URL: url, Err: ctx.Err()}
	case <-time.After(humanDelay(s.cfg)):
	}

	c := colly.NewCollector(colly.UserAgent(s.cfg.UserAgent))
	c.SetRequestTimeout(s.timeout)

	var page *RenderedPage
	var fetchErr error
	c.OnResponse(func(r *colly.Response) {
		page = &RenderedPage{URL: r.Request.URL.String(), HTML: string(r.Body)}
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = err
	})

	if err := c.Visit(url); err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	c.Wait()

	if fetchErr != nil {
		return nil, &NetworkError{URL: url, Err: fetchErr}
	}
	if page == nil {
		return nil, &NetworkError{URL: url, Err: context.DeadlineExceeded}
	}
	return page, nil
}

func (s *staticSession) Close() {}
