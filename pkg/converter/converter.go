// Package converter is the public entry point for embedding smartpdf in
// other Go programs.
package converter

import (
	"context"
	"errors"

	"github.com/joho/godotenv"

	"github.com/spherical/smartpdf/internal/cache"
	"github.com/spherical/smartpdf/internal/classify"
	"github.com/spherical/smartpdf/internal/config"
	"github.com/spherical/smartpdf/internal/convert"
	"github.com/spherical/smartpdf/internal/domain"
	"github.com/spherical/smartpdf/internal/engine"
	"github.com/spherical/smartpdf/internal/ledger"
	"github.com/spherical/smartpdf/internal/observability"
	"github.com/spherical/smartpdf/internal/pdf"
	"github.com/spherical/smartpdf/internal/scan"
)

// Re-export types for the public API.
type (
	Config               = config.Config
	Event                = domain.Event
	EventType            = domain.EventType
	BatchResult          = domain.BatchResult
	DocumentResult       = domain.DocumentResult
	ClassificationResult = domain.ClassificationResult
	StatusCode           = domain.StatusCode
	RunSummary           = ledger.RunSummary
	DocumentRecord       = ledger.DocumentRecord
	Logger               = observability.Logger
)

// Event type constants
const (
	EventBatchStart       = domain.EventBatchStart
	EventDocumentStart    = domain.EventDocumentStart
	EventRouted           = domain.EventRouted
	EventPagesProgress    = domain.EventPagesProgress
	EventSliceRetry       = domain.EventSliceRetry
	EventDocumentComplete = domain.EventDocumentComplete
	EventBatchComplete    = domain.EventBatchComplete
)

// ErrNoLedger is returned by history queries when no ledger is configured.
var ErrNoLedger = errors.New("no ledger configured")

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return config.DefaultConfig()
}

// LoadConfig reads .env (if present), then defaults, the optional file and
// SMART_PDF_MD_* variables. The result is not validated.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load() // Ignore error if .env doesn't exist
	return config.Load(path)
}

// Client converts documents with a fixed configuration.
type Client struct {
	cfg        *Config
	logger     *observability.Logger
	opener     *pdf.Opener
	registry   *engine.Registry
	classifier domain.Classifier
	cache      cache.Client
	ledger     *ledger.Store
	events     chan<- Event
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used by every component.
func WithLogger(l *Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithEvents streams progress events to ch. Events are dropped when ch is
// full.
func WithEvents(ch chan<- Event) Option {
	return func(c *Client) { c.events = ch }
}

// NewClient validates cfg and wires engines, the classification cache and
// the run ledger.
func NewClient(ctx context.Context, cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, domain.ConfigError("config is required", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{cfg: cfg, logger: observability.Nop(), opener: pdf.NewOpener()}
	for _, opt := range opts {
		opt(c)
	}

	registry, err := engine.NewDefaultRegistry(cfg, c.opener, c.logger)
	if err != nil {
		return nil, err
	}
	c.registry = registry

	client, err := cache.New(cfg.Cache)
	if err != nil {
		return nil, domain.ConfigError("open classification cache", err)
	}
	c.cache = client
	c.classifier = classify.NewCached(
		classify.New(c.opener, cfg.MinChars, cfg.MinRatio, c.logger),
		client, cfg.Cache.TTL, pdf.Fingerprint, c.logger,
	)

	store, err := ledger.Open(ctx, cfg.Ledger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.ledger = store

	return c, nil
}

// Convert converts the PDF file or directory at input. The returned error
// is non-nil only for failures outside individual documents; per-document
// failures are reported in the batch result.
func (c *Client) Convert(ctx context.Context, input string) (*BatchResult, error) {
	if input == "" {
		return nil, domain.ValidationError("input path is required", nil)
	}
	return c.orchestrator().Run(ctx, input)
}

func (c *Client) orchestrator() *convert.Orchestrator {
	opts := []convert.Option{
		convert.WithClassifier(c.classifier),
		convert.WithLogger(c.logger),
	}
	if c.events != nil {
		opts = append(opts, convert.WithEvents(c.events))
	}
	if c.ledger != nil {
		opts = append(opts, convert.WithLedger(c.ledger))
	}
	return convert.New(c.cfg, c.registry, c.opener, opts...)
}

// Classify runs the textual heuristic on one document.
func (c *Client) Classify(ctx context.Context, path string) (ClassificationResult, error) {
	if err := pdf.CheckFile(path); err != nil {
		return ClassificationResult{}, err
	}
	return c.classifier.Classify(ctx, path)
}

// Discover lists the PDFs a Convert call on input would process.
func (c *Client) Discover(input string) ([]string, error) {
	return scan.Discover(input, scan.Options{Include: c.cfg.Include, Exclude: c.cfg.Exclude})
}

// Engines lists registered engine names, sorted.
func (c *Client) Engines() []string {
	return c.registry.Names()
}

// Probe reports, per engine, whether its external dependency is usable.
// A nil error means available.
func (c *Client) Probe() map[string]error {
	return c.registry.Probe()
}

// History returns the most recent runs recorded in the ledger.
func (c *Client) History(ctx context.Context, limit int) ([]RunSummary, error) {
	if c.ledger == nil {
		return nil, ErrNoLedger
	}
	return c.ledger.RecentRuns(ctx, limit)
}

// RunDocuments returns the per-document records of one run.
func (c *Client) RunDocuments(ctx context.Context, runID string) ([]DocumentRecord, error) {
	if c.ledger == nil {
		return nil, ErrNoLedger
	}
	return c.ledger.Documents(ctx, runID)
}

// Close releases the cache and the ledger.
func (c *Client) Close() error {
	var errs []error
	if c.cache != nil {
		errs = append(errs, c.cache.Close())
	}
	if c.ledger != nil {
		errs = append(errs, c.ledger.Close())
	}
	return errors.Join(errs...)
}
