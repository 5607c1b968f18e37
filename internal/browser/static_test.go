package browser

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snatcher/internal/config"
)

func testBrowserConfig() config.BrowserConfig {
	return config.BrowserConfig{
		Backend:    "static",
		UserAgent:  "test-agent/1.0",
		DelayMinMS: 1,
		DelayMaxMS: 2,
	}
}

func TestStaticSession_Fetch(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		w.Write([]byte(`<html><body><span class="price">£1,306.00</span></body></html>`))
	}))
	defer srv.Close()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	f := NewStaticFactory(testBrowserConfig(), logger)

	sess, err := f.Open(context.Background())
	require.NoError(t, err)
	defer sess.Close()

	page, err := sess.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, page.HTML, "£1,306.00")
	assert.Equal(t, "test-agent/1.0", gotUA)
}

func TestStaticSession_FetchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	f := NewStaticFactory(testBrowserConfig(), logger)

	sess, err := f.Open(context.Background())
	require.NoError(t, err)
	defer sess.Close()

	_, err = sess.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	var netErr *NetworkError
	assert.True(t, errors.As(err, &netErr))
	assert.Equal(t, srv.URL, netErr.URL)
}

func TestStaticSession_FetchCancelledContext(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	f := NewStaticFactory(testBrowserConfig(), logger)

	sess, err := f.Open(context.Background())
	require.NoError(t, err)
	defer sess.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sess.Fetch(ctx, "http://localhost:1/never")
	require.Error(t, err)
	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewFactory(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	f, err := NewFactory(config.BrowserConfig{Backend: "static"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &StaticFactory{}, f)

	f, err = NewFactory(config.BrowserConfig{Backend: "chromedp"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &ChromeFactory{}, f)

	_, err = NewFactory(config.BrowserConfig{Backend: "phantomjs"}, logger)
	assert.Error(t, err)
}

func TestHumanDelay(t *testing.T) {
	cfg := config.BrowserConfig{DelayMinMS: 10, DelayMaxMS: 20}
	for i := 0; i < 50; i++ {
		d := humanDelay(cfg)
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.Less(t, d, 20*time.Millisecond)
	}
}
