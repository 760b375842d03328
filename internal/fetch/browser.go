package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/jonathan/coverme/internal/dom"
)

// MinContentLength is the minimum visible text length to consider an HTTP
// fetch complete. Shorter pages are likely rendered client-side.
const MinContentLength = 500

// DefaultBrowserTimeout bounds a single headless render.
const DefaultBrowserTimeout = 30 * time.Second

// RenderFunc renders url and returns the resulting HTML.
type RenderFunc func(ctx context.Context, url string, timeout time.Duration) (string, error)

// ShouldUseBrowser returns true if the page's visible text is too short,
// indicating it is likely a JavaScript-rendered SPA.
func ShouldUseBrowser(page *dom.Page) bool {
	body := page.Doc.Find("body")
	return dom.RuneLen(dom.InnerText(body)) < MinContentLength
}

// WithBrowser renders a page in a headless browser and returns the rendered HTML.
// Requires Chrome/Chromium to be installed on the system.
func WithBrowser(ctx context.Context, url string, timeout time.Duration, logger *zap.Logger) (string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("starting headless browser", zap.String("url", url))

	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(DefaultUserAgent),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, timeout)
	defer cancel()

	var html string

	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		// job boards hydrate the description after load
		chromedp.Sleep(3*time.Second),
		chromedp.ActionFunc(func(ctx context.Context) error {
			// Click waits for the node, so bound it or a missing banner eats the whole timeout
			clickCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			_ = chromedp.Click(`button[id*="accept"], button[class*="accept"]`, chromedp.NodeVisible).Do(clickCtx)
			return nil
		}),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("browser rendering failed: %w", err)
	}

	logger.Debug("rendered HTML", zap.String("url", url), zap.Int("bytes", len(html)))
	return html, nil
}

// BrowserRenderer adapts WithBrowser to a RenderFunc.
func BrowserRenderer(logger *zap.Logger) RenderFunc {
	return func(ctx context.Context, url string, timeout time.Duration) (string, error) {
		return WithBrowser(ctx, url, timeout, logger)
	}
}
