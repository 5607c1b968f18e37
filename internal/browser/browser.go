// Package browser provides scoped page-fetch sessions. A session owns one
// isolated automation context; sessions are never shared across tasks and
// callers must Close on every exit path.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"snatcher/internal/config"
)

// RenderedPage is the fetched document after rendering and consent handling.
type RenderedPage struct {
	URL  string
	HTML string
}

// NetworkError reports a fetch timeout or transport fault.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// SessionError reports an automation backend that could not start.
type SessionError struct {
	Err error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("open browser session: %v", e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// Session fetches rendered pages within one isolated browsing context.
type Session interface {
	Fetch(ctx context.Context, url string) (*RenderedPage, error)
	Close()
}

// Factory opens sessions. Implementations are safe for concurrent use;
// the sessions they return are not.
type Factory interface {
	Open(ctx context.Context) (Session, error)
}

// NewFactory creates a session factory for the configured backend.
func NewFactory(cfg config.BrowserConfig, logger *slog.Logger) (Factory, error) {
	switch cfg.Backend {
	case "chromedp":
		return NewChromeFactory(cfg, logger), nil
	case "static":
		return NewStaticFactory(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown browser backend: %s", cfg.Backend)
	}
}

// humanDelay returns a randomized pause within the configured bounds,
// used to mimic human pacing between navigation and reading the page.
func humanDelay(cfg config.BrowserConfig) time.Duration {
	min, max := cfg.DelayMinMS, cfg.DelayMaxMS
	if min <= 0 {
		min = 2000
	}
	if max <= min {
		max = min + 1
	}
	return time.Duration(min+rand.Intn(max-min)) * time.Millisecond
}
