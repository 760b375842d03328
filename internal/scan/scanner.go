// Package scan is the caller side of job detection: it decides whether a page
// is worth scanning, bounds detection with a timeout, discards superseded
// results, applies the acceptance threshold, and persists and announces
// accepted jobs.
package scan

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jonathan/coverme/internal/db"
	"github.com/jonathan/coverme/internal/detect"
	"github.com/jonathan/coverme/internal/dom"
)

// Status is the outcome of a scan.
type Status string

const (
	// StatusAccepted means a job was detected, persisted and announced.
	StatusAccepted Status = "accepted"
	// StatusRejected means a candidate was found but failed acceptance.
	StatusRejected Status = "rejected"
	// StatusNotFound means detection returned nothing or timed out.
	StatusNotFound Status = "not_found"
	// StatusSkipped means the page was not scanned.
	StatusSkipped Status = "skipped"
	// StatusStale means a newer scan for the same key superseded this one.
	StatusStale Status = "stale"
	// StatusDetected means a user-requested detection found a candidate. No
	// acceptance checks were applied.
	StatusDetected Status = "detected"
)

var acceptTerms = regexp.MustCompile(`(?i)\b(responsibilities|requirements|qualifications|experience|skills)\b`)

// DefaultSkipHosts are sites that never host job postings.
var DefaultSkipHosts = []string{
	"google.com",
	"youtube.com",
	"facebook.com",
	"instagram.com",
	"twitter.com",
	"amazon.com",
	"reddit.com",
	"netflix.com",
	"pinterest.com",
	"wikipedia.org",
	"spotify.com",
	"gmail.com",
	"yahoo.com",
	"walmart.com",
	"ebay.com",
	"twitch.tv",
	"tiktok.com",
	"microsoft.com",
	"apple.com",
	"github.com",
}

// Options tunes the scanner.
type Options struct {
	DetectTimeout     time.Duration `json:"detect_timeout" validate:"gt=0"`
	AcceptThreshold   int           `json:"accept_threshold" validate:"gte=0,lte=100"`
	MinAcceptedLength int           `json:"min_accepted_length" validate:"gte=0"`
	SkipHosts         []string      `json:"skip_hosts" validate:"dive,required"`
}

// DefaultOptions returns the content-script defaults.
func DefaultOptions() Options {
	return Options{
		DetectTimeout:     5 * time.Second,
		AcceptThreshold:   60,
		MinAcceptedLength: 300,
		SkipHosts:         DefaultSkipHosts,
	}
}

// JobDetector finds a job candidate on a page. *detect.Detector implements it.
type JobDetector interface {
	Detect(ctx context.Context, page *dom.Page) *detect.JobCandidate
	Registry() *detect.Registry
}

// Store persists accepted detections.
type Store interface {
	SaveDetection(ctx context.Context, d *db.Detection) error
}

// Result describes one scan.
type Result struct {
	Status    Status               `json:"status"`
	Reason    string               `json:"reason,omitempty"`
	URL       string               `json:"url,omitempty"`
	Hostname  string               `json:"hostname,omitempty"`
	Token     Token                `json:"-"`
	Candidate *detect.JobCandidate `json:"candidate,omitempty"`
	Detection *db.Detection        `json:"detection,omitempty"`
}

// Found reports whether detection produced a candidate, accepted or not.
func (r *Result) Found() bool {
	return r.Candidate != nil && r.Status != StatusStale
}

// Scanner runs detection on behalf of a page context.
type Scanner struct {
	detector JobDetector
	tracker  *Tracker
	store    Store
	notifier Notifier
	opts     Options
	logger   *zap.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithStore persists accepted detections.
func WithStore(s Store) Option {
	return func(sc *Scanner) { sc.store = s }
}

// WithNotifier announces accepted detections.
func WithNotifier(n Notifier) Option {
	return func(sc *Scanner) { sc.notifier = n }
}

// WithOptions replaces the default tunables.
func WithOptions(o Options) Option {
	return func(sc *Scanner) { sc.opts = o }
}

// WithLogger sets the scanner logger.
func WithLogger(l *zap.Logger) Option {
	return func(sc *Scanner) { sc.logger = l }
}

// New creates a Scanner around detector.
func New(detector JobDetector, opts ...Option) (*Scanner, error) {
	if detector == nil {
		return nil, fmt.Errorf("scanner requires a detector")
	}
	sc := &Scanner{
		detector: detector,
		opts:     DefaultOptions(),
		tracker:  NewTracker(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(sc)
	}
	if err := validator.New().Struct(sc.opts); err != nil {
		return nil, fmt.Errorf("invalid scan options: %w", err)
	}
	return sc, nil
}

// Tracker returns the scanner's generation tracker.
func (s *Scanner) Tracker() *Tracker {
	return s.tracker
}

// Scan runs a full scan of page under key. An empty key uses the page URL.
// The returned error is non-nil only when persisting an accepted detection
// fails; every other outcome is reported through Result.Status.
func (s *Scanner) Scan(ctx context.Context, page *dom.Page, key string) (*Result, error) {
	if page == nil || page.Doc == nil {
		return &Result{Status: StatusSkipped, Reason: "no page"}, nil
	}
	if key == "" {
		key = page.Key()
	}
	res := &Result{Hostname: page.Hostname}
	if page.URL != nil {
		res.URL = page.URL.String()
	}
	log := s.logger.With(zap.String("key", key), zap.String("host", page.Hostname))

	if reason, skip := s.ShouldSkip(page); skip {
		res.Status, res.Reason = StatusSkipped, reason
		log.Debug("scan skipped", zap.String("reason", reason))
		return res, nil
	}

	tok := s.tracker.Begin(key)
	res.Token = tok

	candidate, timedOut := s.detect(ctx, page)
	if !s.tracker.Settle(tok) {
		res.Status, res.Reason = StatusStale, "superseded by a newer scan"
		log.Debug("discarding stale scan", zap.Uint64("generation", tok.Generation))
		return res, nil
	}
	res.Candidate = candidate

	switch {
	case timedOut:
		res.Status, res.Reason = StatusNotFound, "detection timed out"
		return res, nil
	case candidate == nil:
		res.Status = StatusNotFound
		return res, nil
	}

	if reason, ok := s.accept(candidate); !ok {
		res.Status, res.Reason = StatusRejected, reason
		log.Debug("candidate rejected", zap.String("reason", reason), zap.Int("confidence", candidate.Confidence))
		return res, nil
	}
	res.Status = StatusAccepted

	detection := &db.Detection{
		URL:         res.URL,
		Hostname:    page.Hostname,
		PageID:      tok.PageID,
		Title:       candidate.Title,
		Company:     candidate.Company,
		Description: candidate.Description,
		Method:      string(candidate.Method),
		Confidence:  candidate.Confidence,
		ContentHash: db.HashContent(candidate.Description),
		DetectedAt:  time.Now().UTC(),
	}
	res.Detection = detection

	if s.store != nil {
		if err := s.store.SaveDetection(ctx, detection); err != nil {
			return res, fmt.Errorf("failed to persist detection: %w", err)
		}
	}
	if s.notifier != nil {
		msg := Message{Action: ActionJobDetected, JobDetails: candidate}
		if err := s.notifier.Notify(ctx, msg); err != nil {
			log.Warn("failed to notify job detection", zap.Error(err))
		}
	}
	log.Info("job detected",
		zap.String("title", candidate.Title),
		zap.String("method", string(candidate.Method)),
		zap.Int("confidence", candidate.Confidence))
	return res, nil
}

// Inspect runs a detection the user asked for. The skip list and the timeout
// apply; the acceptance threshold does not, and nothing is persisted or
// announced.
func (s *Scanner) Inspect(ctx context.Context, page *dom.Page) *Result {
	if page == nil || page.Doc == nil {
		return &Result{Status: StatusSkipped, Reason: "no page"}
	}
	res := &Result{Hostname: page.Hostname}
	if page.URL != nil {
		res.URL = page.URL.String()
	}
	if reason, skip := s.ShouldSkip(page); skip {
		res.Status, res.Reason = StatusSkipped, reason
		return res
	}

	candidate, timedOut := s.detect(ctx, page)
	switch {
	case timedOut:
		res.Status, res.Reason = StatusNotFound, "detection timed out"
	case candidate == nil:
		res.Status = StatusNotFound
	default:
		res.Status, res.Candidate = StatusDetected, candidate
	}
	return res
}

// Detect runs detection alone, bounded by the timeout, with no acceptance
// threshold, persistence or notification.
func (s *Scanner) Detect(ctx context.Context, page *dom.Page) *detect.JobCandidate {
	candidate, _ := s.detect(ctx, page)
	return candidate
}

// detect races the detector against the timeout. The detector keeps running
// after a timeout until its next cancellation check; its result is dropped.
func (s *Scanner) detect(ctx context.Context, page *dom.Page) (*detect.JobCandidate, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.DetectTimeout)
	defer cancel()

	done := make(chan *detect.JobCandidate, 1)
	go func() {
		done <- s.detector.Detect(ctx, page)
	}()

	select {
	case c := <-done:
		if c == nil && ctx.Err() != nil {
			return nil, true
		}
		return c, false
	case <-ctx.Done():
		return nil, true
	}
}

// ShouldSkip reports whether page is on a non-job site or is a board page
// that is not a single listing, with the reason.
func (s *Scanner) ShouldSkip(page *dom.Page) (string, bool) {
	host := strings.ToLower(page.Hostname)
	for _, h := range s.opts.SkipHosts {
		h = strings.ToLower(h)
		if host == h || strings.HasSuffix(host, "."+h) {
			return "non-job site", true
		}
	}
	if entry, ok := s.detector.Registry().Lookup(host); ok && page.URL != nil {
		if !entry.IsListingPath(page.RequestPath()) {
			return "not a listing page on " + entry.Domain, true
		}
	}
	return "", false
}

// accept applies the acceptance threshold and the secondary content check.
func (s *Scanner) accept(c *detect.JobCandidate) (string, bool) {
	if c.Confidence < s.opts.AcceptThreshold {
		return fmt.Sprintf("confidence %d below threshold %d", c.Confidence, s.opts.AcceptThreshold), false
	}
	if dom.RuneLen(c.Description) < s.opts.MinAcceptedLength {
		return "description too short", false
	}
	if !acceptTerms.MatchString(c.Description) {
		return "description lacks job terms", false
	}
	return "", true
}
