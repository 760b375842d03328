package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/coverme/internal/dom"
)

// Loader turns URLs and local files into parsed pages.
type Loader struct {
	options        *Options
	render         RenderFunc
	useBrowser     bool
	browserTimeout time.Duration
	logger         *zap.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithOptions sets the HTTP fetch options.
func WithOptions(opts *Options) LoaderOption {
	return func(l *Loader) { l.options = opts }
}

// WithBrowserFallback enables headless rendering for short or client-side
// rendered pages.
func WithBrowserFallback(enabled bool) LoaderOption {
	return func(l *Loader) { l.useBrowser = enabled }
}

// WithRenderer replaces the headless browser renderer.
func WithRenderer(render RenderFunc) LoaderOption {
	return func(l *Loader) { l.render = render }
}

// WithBrowserTimeout bounds each headless render.
func WithBrowserTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) { l.browserTimeout = d }
}

// WithLogger sets the loader logger.
func WithLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) { l.logger = logger }
}

// NewLoader creates a Loader. The browser fallback is off by default.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		options:        DefaultOptions(),
		browserTimeout: DefaultBrowserTimeout,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.render == nil {
		l.render = BrowserRenderer(l.logger)
	}
	return l
}

// Load fetches rawURL and parses it. With the browser fallback enabled, pages
// on client-side rendered platforms, pages with too little visible text and
// pages the HTTP fetch could not retrieve are rendered headlessly instead.
func (l *Loader) Load(ctx context.Context, rawURL string) (*dom.Page, error) {
	if _, err := ValidateURL(rawURL); err != nil {
		return nil, err
	}
	log := l.logger.With(zap.String("url", rawURL))
	platform := DetectPlatform(rawURL)

	result, fetchErr := URL(ctx, rawURL, l.options)
	if fetchErr != nil && !l.useBrowser {
		return nil, fmt.Errorf("%w: %w", ErrHTTPRequestFailed, fetchErr)
	}

	var page *dom.Page
	if fetchErr == nil {
		var err error
		page, err = dom.NewPageFromHTML(result.HTML, rawURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrContentExtractionFailed, err)
		}
		log.Debug("fetched page",
			zap.String("platform", string(platform)),
			zap.Int("bytes", len(result.HTML)))
	} else {
		log.Debug("HTTP fetch failed, trying browser", zap.Error(fetchErr))
	}

	if !l.useBrowser || (page != nil && !platform.RendersClientSide() && !ShouldUseBrowser(page)) {
		return page, nil
	}

	html, err := l.render(ctx, rawURL, l.browserTimeout)
	if err != nil {
		if page != nil {
			log.Warn("browser rendering failed, using HTTP content", zap.Error(err))
			return page, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrHTTPRequestFailed, errors.Join(fetchErr, err))
	}
	rendered, err := dom.NewPageFromHTML(html, rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContentExtractionFailed, err)
	}
	log.Debug("using browser-rendered page", zap.Int("bytes", len(html)))
	return rendered, nil
}

// LoadFile parses a saved HTML file. rawURL supplies the page location when
// the file does not carry one itself.
func (l *Loader) LoadFile(path, rawURL string) (*dom.Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	page, err := dom.NewPage(f, rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContentExtractionFailed, err)
	}
	return page, nil
}
