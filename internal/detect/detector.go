package detect

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/coverme/internal/dom"
)

// Detector runs the detection strategies against a page. It holds no
// per-call state and is safe for concurrent use.
type Detector struct {
	cfg      Config
	registry *Registry
	logger   *zap.Logger
	keywords *keywordCounter
}

// Option configures a Detector.
type Option func(*Detector)

// WithConfig replaces the default tunables.
func WithConfig(cfg Config) Option {
	return func(d *Detector) { d.cfg = cfg }
}

// WithRegistry replaces the built-in site registry.
func WithRegistry(r *Registry) Option {
	return func(d *Detector) { d.registry = r }
}

// WithLogger sets the logger used for debug tracing.
func WithLogger(l *zap.Logger) Option {
	return func(d *Detector) { d.logger = l }
}

// New builds a Detector with DefaultConfig and DefaultRegistry unless
// overridden.
func New(opts ...Option) (*Detector, error) {
	d := &Detector{
		cfg:      DefaultConfig(),
		registry: DefaultRegistry(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.cfg.Validate(); err != nil {
		return nil, err
	}
	if d.registry == nil {
		d.registry = DefaultRegistry()
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	d.keywords = newKeywordCounter(d.cfg.ScoringKeywords)
	return d, nil
}

// Config returns the tunables in use.
func (d *Detector) Config() Config {
	return d.cfg
}

// Registry returns the site registry in use.
func (d *Detector) Registry() *Registry {
	return d.registry
}

type strategy struct {
	method Method
	run    func(*dom.Page) *RawCandidate
}

func (d *Detector) strategies() []strategy {
	return []strategy{
		{MethodSchema, d.TrySchema},
		{MethodSiteSpecific, d.TrySiteSpecific},
		{MethodSemantic, d.TrySemantic},
		{MethodCluster, d.TryCluster},
		{MethodFallback, d.TryFallback},
	}
}

// Detect runs the strategies in trust order and returns the first result that
// passes verification, cleaned and scored. It returns nil when the page is not
// recognised as a job posting or ctx is done before a strategy succeeds.
func (d *Detector) Detect(ctx context.Context, page *dom.Page) *JobCandidate {
	if page == nil || page.Doc == nil {
		return nil
	}
	log := d.logger.With(zap.String("host", page.Hostname))

	var raw *RawCandidate
	for _, s := range d.strategies() {
		if ctx.Err() != nil {
			log.Debug("detection cancelled", zap.Error(ctx.Err()))
			return nil
		}
		raw = d.runStrategy(log, s, page)
		if raw != nil {
			break
		}
	}
	if raw == nil {
		log.Debug("no strategy matched")
		return nil
	}

	if !d.verify(raw) {
		log.Debug("candidate rejected by verification", zap.String("method", string(raw.Method)))
		return nil
	}
	cleaned, ok := d.clean(raw)
	if !ok {
		log.Debug("candidate too short after cleaning", zap.String("method", string(raw.Method)))
		return nil
	}

	candidate := &JobCandidate{
		Description: cleaned.Description,
		Title:       cleaned.Title,
		Company:     cleaned.Company,
		Method:      cleaned.Method,
		Confidence:  d.score(cleaned),
	}
	log.Debug("job detected",
		zap.String("method", string(candidate.Method)),
		zap.Int("confidence", candidate.Confidence),
		zap.String("title", candidate.Title))
	return candidate
}

// runStrategy converts a panic inside a strategy into "nothing found".
func (d *Detector) runStrategy(log *zap.Logger, s strategy, page *dom.Page) (raw *RawCandidate) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("strategy panicked",
				zap.String("method", string(s.method)),
				zap.String("panic", fmt.Sprint(r)))
			raw = nil
		}
	}()
	raw = s.run(page)
	if raw != nil {
		raw.Method = s.method
	}
	return raw
}
