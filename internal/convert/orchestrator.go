// Package convert routes each document of a batch to an engine and
// aggregates the per-document outcomes.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/spherical/smartpdf/internal/config"
	"github.com/spherical/smartpdf/internal/domain"
	"github.com/spherical/smartpdf/internal/engine"
	"github.com/spherical/smartpdf/internal/ledger"
	"github.com/spherical/smartpdf/internal/observability"
	"github.com/spherical/smartpdf/internal/pdf"
	"github.com/spherical/smartpdf/internal/scan"
)

// DefaultSlice is the heavy slice size used when none is configured.
const DefaultSlice = 40

// Ledger records runs. *ledger.Store implements it.
type Ledger interface {
	StartRun(ctx context.Context, id, input string) error
	RecordDocument(ctx context.Context, runID string, rec ledger.DocumentRecord) error
	FinishRun(ctx context.Context, batch *domain.BatchResult) error
	Converted(ctx context.Context, fingerprint, output string) (bool, error)
}

// Orchestrator converts batches of documents.
type Orchestrator struct {
	cfg         *config.Config
	registry    *engine.Registry
	opener      domain.Opener
	classifier  domain.Classifier
	ledger      Ledger
	fingerprint func(path string) (string, error)
	events      chan<- domain.Event
	logger      *observability.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClassifier replaces the default classifier.
func WithClassifier(c domain.Classifier) Option {
	return func(o *Orchestrator) { o.classifier = c }
}

// WithLedger records runs and enables resume.
func WithLedger(l Ledger) Option {
	return func(o *Orchestrator) { o.ledger = l }
}

// WithEvents sends progress events to ch. Sends never block; events are
// dropped when ch is full.
func WithEvents(ch chan<- domain.Event) Option {
	return func(o *Orchestrator) { o.events = ch }
}

// WithLogger sets the logger.
func WithLogger(l *observability.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithFingerprint replaces the content digest used by the ledger.
func WithFingerprint(fn func(path string) (string, error)) Option {
	return func(o *Orchestrator) { o.fingerprint = fn }
}

// New creates an orchestrator. The classifier defaults to the heuristic
// classifier over opener with the configured thresholds.
func New(cfg *config.Config, registry *engine.Registry, opener domain.Opener, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:         cfg,
		registry:    registry,
		opener:      opener,
		fingerprint: pdf.Fingerprint,
		logger:      observability.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.WithComponent("convert")
	if o.classifier == nil {
		o.classifier = defaultClassifier(cfg, opener, o.logger)
	}
	return o
}

// Run discovers the PDFs under input and converts them. A missing input or a
// directory without PDFs yields exit code 1 without an error.
func (o *Orchestrator) Run(ctx context.Context, input string) (*domain.BatchResult, error) {
	files, err := scan.Discover(input, scan.Options{Include: o.cfg.Include, Exclude: o.cfg.Exclude})
	if err != nil {
		if errors.Is(err, domain.ErrInputNotFound) {
			o.logger.Error().Str("input", input).Msg("input not found")
			return &domain.BatchResult{Input: input, ExitCode: domain.StatusInputNotFound}, nil
		}
		return nil, err
	}
	if len(files) == 0 {
		o.logger.Error().Str("input", input).Msg("no PDF files found")
		return &domain.BatchResult{Input: input, ExitCode: domain.StatusInputNotFound}, nil
	}

	o.logger.Info().Str("input", input).Int("files", len(files)).Msg("scan complete")
	return o.RunFiles(ctx, input, files), nil
}

type indexedResult struct {
	index  int
	result domain.DocumentResult
}

// RunFiles converts files with a bounded worker pool. Results are placed in
// input order by a single collector, which also writes the ledger.
func (o *Orchestrator) RunFiles(ctx context.Context, input string, files []string) *domain.BatchResult {
	started := time.Now()
	batch := &domain.BatchResult{
		RunID:   uuid.NewString(),
		Input:   input,
		Results: make([]domain.DocumentResult, len(files)),
	}
	total := len(files)

	if o.ledger != nil {
		if err := o.ledger.StartRun(ctx, batch.RunID, input); err != nil {
			o.logger.Warn().Err(err).Msg("ledger start failed")
		}
	}
	o.emit(domain.Event{Type: domain.EventBatchStart, Total: total, Payload: batch.RunID})

	workers := o.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	resultCh := make(chan indexedResult, total)
	go func() {
		var g errgroup.Group
		g.SetLimit(workers)
		for i, path := range files {
			if err := ctx.Err(); err != nil {
				resultCh <- indexedResult{i, cancelled(path, err)}
				continue
			}
			g.Go(func() error {
				resultCh <- indexedResult{i, o.ProcessDocument(ctx, i, total, path)}
				return nil
			})
		}
		_ = g.Wait()
		close(resultCh)
	}()

	for r := range resultCh {
		batch.Results[r.index] = r.result
		o.record(batch.RunID, r.result)

		res := r.result
		o.emit(domain.Event{
			Type:     domain.EventDocumentComplete,
			Document: res.Path,
			Index:    r.index + 1,
			Total:    total,
			Engine:   res.Engine,
			Status:   res.Status,
			Result:   &res,
		})
	}

	batch.Elapsed = time.Since(started)
	batch.Finalize()

	if o.ledger != nil {
		if err := o.ledger.FinishRun(context.WithoutCancel(ctx), batch); err != nil {
			o.logger.Warn().Err(err).Msg("ledger finish failed")
		}
	}
	o.emit(domain.Event{Type: domain.EventBatchComplete, Total: total, Status: batch.ExitCode, Payload: batch.RunID})

	o.logger.Info().
		Str("run_id", batch.RunID).
		Int("total", total).
		Int("failures", batch.FailureCount).
		Int("exit_code", int(batch.ExitCode)).
		Dur("elapsed", batch.Elapsed).
		Msg("batch complete")
	return batch
}

// ProcessDocument converts one document. It never panics; a panic or an
// unexpected error becomes status 9.
func (o *Orchestrator) ProcessDocument(ctx context.Context, index, total int, path string) (result domain.DocumentResult) {
	started := time.Now()
	result = domain.DocumentResult{Path: path}
	log := o.logger.WithDocument(path)

	defer func() {
		if r := recover(); r != nil {
			result.Status = domain.StatusUnhandled
			result.Err = domain.UnhandledError(fmt.Sprintf("panic: %v", r), nil)
			log.Error().Err(result.Err).Msg("document panicked")
		}
		result.Elapsed = time.Since(started)
	}()

	if err := ctx.Err(); err != nil {
		return cancelled(path, err)
	}

	doc := domain.NewDocument(path, o.cfg.OutputDir)
	log.Info().Int("index", index+1).Int("total", total).Str("output_dir", doc.OutputDir).Msg("processing document")
	o.emit(domain.Event{Type: domain.EventDocumentStart, Document: path, Index: index + 1, Total: total})

	if o.cfg.DryRun {
		return o.dryRun(doc, result)
	}

	if err := os.MkdirAll(doc.OutputDir, 0o755); err != nil {
		return unhandled(result, domain.IOError("create output directory", err))
	}

	if o.cfg.Resume && o.ledger != nil {
		if skipped, ok := o.alreadyConverted(ctx, doc); ok {
			result.Status = domain.StatusOK
			result.Route = domain.RouteSkipped
			result.Artifact = skipped
			log.Info().Str("artifact", skipped).Msg("already converted, skipping")
			return result
		}
	}

	name, err := o.route(ctx, doc)
	result.Classification = doc.Classification()
	if c := doc.Classification(); c != nil {
		result.Pages = c.PagesConsidered
	}
	if err != nil {
		return unhandled(result, err)
	}
	result.Engine = name

	eng, err := o.registry.Get(name)
	if err != nil {
		log.Error().Err(err).Msg("engine lookup failed")
		return unhandled(result, err)
	}
	o.emit(domain.Event{Type: domain.EventRouted, Document: path, Index: index + 1, Total: total, Engine: name})

	if eng.Kind() == domain.KindText {
		result = o.convertText(ctx, eng, doc, result)
	} else {
		result = o.convertHeavy(ctx, eng, doc, result)
	}

	if result.Failed() {
		log.Error().
			Str("engine", name).
			Str("route", string(result.Route)).
			Int("status", int(result.Status)).
			Err(result.Err).
			Msg("document failed")
	} else {
		log.Info().
			Str("engine", name).
			Str("route", string(result.Route)).
			Str("artifact", result.Artifact).
			Dur("elapsed", time.Since(started)).
			Msg("document converted")
	}
	return result
}

func (o *Orchestrator) dryRun(doc *domain.Document, result domain.DocumentResult) domain.DocumentResult {
	result.Route = domain.RouteDryRun
	result.Status = domain.StatusOK

	var plan string
	switch o.cfg.RunMode() {
	case domain.ModeFast:
		result.Engine = engine.FastName
		plan = "would use the fast text path"
	case domain.ModeHeavy:
		result.Engine = o.heavyEngine()
		plan = fmt.Sprintf("would use the heavy path (slice=%d)", o.slice())
	default:
		result.Engine = o.cfg.Engine
		plan = "would route based on heuristics (not evaluated in dry-run)"
	}
	o.logger.Info().
		Str("document", doc.Path).
		Str("mode", string(o.cfg.RunMode())).
		Str("output_dir", doc.OutputDir).
		Msg(plan)
	return result
}

func (o *Orchestrator) alreadyConverted(ctx context.Context, doc *domain.Document) (string, bool) {
	fp, err := o.fingerprint(doc.Path)
	if err != nil {
		return "", false
	}
	candidates := []string{doc.OutputPath(".md")}
	if ext := o.cfg.Format().Extension(); ext != ".md" {
		candidates = append(candidates, doc.OutputPath(ext))
	}
	for _, out := range candidates {
		if _, err := os.Stat(out); err != nil {
			continue
		}
		done, err := o.ledger.Converted(ctx, fp, out)
		if err != nil {
			o.logger.Warn().Err(err).Str("document", doc.Path).Msg("resume lookup failed")
			return "", false
		}
		if done {
			return out, true
		}
	}
	return "", false
}

func (o *Orchestrator) record(runID string, res domain.DocumentResult) {
	if o.ledger == nil || res.Route == domain.RouteDryRun {
		return
	}
	fp, err := o.fingerprint(res.Path)
	if err != nil {
		fp = ""
	}
	rec := ledger.DocumentRecord{
		Path:        res.Path,
		Fingerprint: fp,
		Output:      res.Artifact,
		Engine:      res.Engine,
		Route:       res.Route,
		Status:      res.Status,
		Pages:       res.Pages,
		Attempts:    res.Attempts,
		Elapsed:     res.Elapsed,
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	if err := o.ledger.RecordDocument(context.Background(), runID, rec); err != nil {
		o.logger.Warn().Err(err).Str("document", res.Path).Msg("ledger write failed")
	}
}

func (o *Orchestrator) emit(ev domain.Event) {
	if o.events == nil {
		return
	}
	ev.Timestamp = time.Now()
	select {
	case o.events <- ev:
	default:
		o.logger.Debug().Str("event", string(ev.Type)).Msg("event channel full, dropping event")
	}
}

func (o *Orchestrator) heavyEngine() string {
	if o.cfg.Engine != "" {
		return o.cfg.Engine
	}
	return o.cfg.HeavyEngine
}

func (o *Orchestrator) slice() int {
	if o.cfg.Slice > 0 {
		return o.cfg.Slice
	}
	return DefaultSlice
}

func cancelled(path string, err error) domain.DocumentResult {
	return domain.DocumentResult{
		Path:   path,
		Status: domain.StatusUnhandled,
		Err:    domain.UnhandledError("not processed", err),
	}
}

func unhandled(result domain.DocumentResult, err error) domain.DocumentResult {
	result.Status = domain.StatusUnhandled
	result.Err = err
	return result
}
