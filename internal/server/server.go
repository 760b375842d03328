package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/coverme/internal/db"
	"github.com/jonathan/coverme/internal/dom"
	"github.com/jonathan/coverme/internal/scan"
	"github.com/jonathan/coverme/internal/server/ratelimit"
)

// maxBodyBytes bounds posted page HTML.
const maxBodyBytes = 10 << 20

// PageLoader fetches a page by URL. *fetch.Loader implements it.
type PageLoader interface {
	Load(ctx context.Context, rawURL string) (*dom.Page, error)
}

// DetectionStore persists and queries accepted detections. *db.DB implements it.
type DetectionStore interface {
	scan.Store
	ListDetections(ctx context.Context, limit int) ([]db.Detection, error)
	GetLatestByURL(ctx context.Context, url string) (*db.Detection, error)
	DeleteDetection(ctx context.Context, id uuid.UUID) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer      *http.Server
	scanner         *scan.Scanner
	loader          PageLoader
	store           DetectionStore
	hub             *Hub
	rateLimiter     *ratelimit.Limiter
	validate        *validator.Validate
	logger          *zap.Logger
	shutdownTimeout time.Duration
}

// Config holds server configuration
type Config struct {
	Port            int
	ScanOptions     scan.Options
	RateLimit       *ratelimit.Config
	ShutdownTimeout time.Duration
}

// Option configures optional server collaborators.
type Option func(*Server)

// WithStore enables persistence and the history endpoints.
func WithStore(store DetectionStore) Option {
	return func(s *Server) { s.store = store }
}

// WithLoader enables detection by URL.
func WithLoader(loader PageLoader) Option {
	return func(s *Server) { s.loader = loader }
}

// WithLogger sets the server logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New creates a new server instance around detector.
func New(cfg Config, detector scan.JobDetector, opts ...Option) (*Server, error) {
	s := &Server{
		hub:             NewHub(16),
		validate:        validator.New(),
		logger:          zap.NewNop(),
		shutdownTimeout: cfg.ShutdownTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = 30 * time.Second
	}

	scanOpts := cfg.ScanOptions
	if scanOpts.DetectTimeout == 0 {
		scanOpts = scan.DefaultOptions()
	}
	scanOptions := []scan.Option{
		scan.WithOptions(scanOpts),
		scan.WithNotifier(s.hub),
		scan.WithLogger(s.logger),
	}
	if s.store != nil {
		scanOptions = append(scanOptions, scan.WithStore(s.store))
	}
	scanner, err := scan.New(detector, scanOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create scanner: %w", err)
	}
	s.scanner = scanner

	rl := cfg.RateLimit
	if rl == nil {
		rl = ratelimit.LoadConfig()
	}
	s.rateLimiter = ratelimit.NewLimiter(rl)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // event streams stay open
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /messages", s.handleMessage)
	mux.HandleFunc("POST /detect", s.handleDetect)
	mux.HandleFunc("GET /detections", s.handleListDetections)
	mux.HandleFunc("GET /detections/latest", s.handleLatestDetection)
	mux.HandleFunc("DELETE /detections/{id}", s.handleDeleteDetection)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /health", s.handleHealth)

	return s.withRateLimit(s.withLogging(s.withCORS(mux)))
}

// Hub returns the hub that receives jobDetected messages.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		s.rateLimiter.Stop()
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	s.rateLimiter.Stop()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit rejects clients over their per-endpoint budget
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(extractClientID(r), r.URL.Path, r.Method)
		setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.Duration("duration", time.Since(start)))
	})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// writeError maps err to a status code and writes it.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("request failed", zap.Int("status", status), zap.Error(err))
	}
	s.errorResponse(w, status, err.Error())
}

// extractClientID uses the IP from RemoteAddr.
func extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 with retry information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		secs := int(info.RetryAfter.Seconds()) + 1
		response["retry_after"] = secs
		w.Header().Set("Retry-After", fmt.Sprintf("%d", secs))
	}

	s.logger.Info("rate limit exceeded", zap.Int("limit", info.Limit))
	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
