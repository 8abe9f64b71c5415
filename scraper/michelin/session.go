// Package michelin drives a headless browser over the Michelin Guide site and
// turns the rendered listing and restaurant pages into records.
package michelin

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"

	"michelin-scraper/config"
	"michelin-scraper/utils"
)

var (
	// ErrSessionStart means no browser could be launched. Nothing downstream
	// can run without one.
	ErrSessionStart = errors.New("michelin: could not start browser session")
	// ErrFetchTimeout means the page never showed its ready marker in time.
	ErrFetchTimeout = errors.New("michelin: page not ready before timeout")
	// ErrInvalidURL is returned for anything that is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("michelin: invalid page url")
)

// PageFetcher returns the rendered DOM of a page once marker is present.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL, marker string) (*goquery.Document, error)
}

// Browser is a PageFetcher holding a browser that must be released.
type Browser interface {
	PageFetcher
	Close() error
}

// Session is one Chrome instance with a single tab, reused for every fetch
// of a stage.
type Session struct {
	cfg     *config.Config
	logger  *utils.Logger
	limiter *rate.Limiter
	retry   *utils.RetryConfig

	tabCtx      context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
}

// NewSession launches the browser. The session lives until Close is called or
// ctx is cancelled.
func NewSession(ctx context.Context, cfg *config.Config, logger *utils.Logger) (*Session, error) {
	chromeBin := cfg.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	logger.Info("[session] Using browser binary: %s (headless=%t)", displayBin(chromeBin), cfg.Headless)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(cfg.UserAgent),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)

	// Suppress chromedp log noise
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	// An empty Run starts the browser so launch failures surface here.
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("%w: %v", ErrSessionStart, err)
	}

	limit := rate.Inf
	if cfg.RateLimitMs > 0 {
		limit = rate.Every(time.Duration(cfg.RateLimitMs) * time.Millisecond)
	}

	s := &Session{
		cfg:         cfg,
		logger:      logger,
		limiter:     rate.NewLimiter(limit, 1),
		tabCtx:      tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
	}
	s.retry = &utils.RetryConfig{
		MaxAttempts: cfg.MaxRetries,
		BaseDelay:   2 * time.Second,
		Logger:      logger,
		IsRetryable: isRetryable,
	}
	return s, nil
}

// Fetch navigates the session tab to pageURL, waits for marker and returns
// the rendered document. Every call is a fresh navigation.
func (s *Session) Fetch(ctx context.Context, pageURL, marker string) (*goquery.Document, error) {
	u, err := parsePageURL(pageURL)
	if err != nil {
		return nil, err
	}

	var doc *goquery.Document
	err = s.retry.Do(ctx, "fetch "+u.String(), func() error {
		d, err := s.fetchOnce(ctx, u, marker)
		if err != nil {
			return err
		}
		doc = d
		return nil
	})
	return doc, err
}

func (s *Session) fetchOnce(ctx context.Context, u *url.URL, marker string) (*goquery.Document, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("michelin: rate limit: %w", err)
	}

	// The tab context carries the browser; ctx only contributes cancellation.
	runCtx, cancel := context.WithTimeout(s.tabCtx, s.cfg.RequestTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(u.String()),
		chromedp.WaitReady(marker, chromedp.ByQuery),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(s.cfg.SettleDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("michelin: fetch %s: %w", u, ctx.Err())
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s after %v", ErrFetchTimeout, u, s.cfg.RequestTimeout)
		}
		return nil, fmt.Errorf("michelin: fetch %s: %w", u, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("michelin: parse %s: %w", u, err)
	}
	doc.Url = u
	return doc, nil
}

// Close shuts the tab and the browser process. Safe to call more than once.
func (s *Session) Close() error {
	s.cancelTab()
	s.cancelAlloc()
	return nil
}

func isRetryable(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, ErrInvalidURL)
}

// parsePageURL accepts only absolute http(s) URLs.
func parsePageURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidURL, raw, err)
	}
	if !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return u, nil
}

func displayBin(bin string) string {
	if bin == "" {
		return "(chromedp default)"
	}
	return bin
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
