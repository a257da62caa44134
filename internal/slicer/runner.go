package slicer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spherical/smartpdf/internal/domain"
	"github.com/spherical/smartpdf/internal/observability"
)

// Result summarises a completed or abandoned slice run.
type Result struct {
	Attempts    int
	Slices      int
	PagesDone   int
	Final       State
	LastOutcome domain.Outcome
}

// Runner executes a Planner against a heavy engine.
type Runner struct {
	engine  domain.Engine
	logger  *observability.Logger
	retry   RetryPolicy
	onEvent func(domain.Event)
}

// Option configures a Runner.
type Option func(*Runner)

// WithRetryPolicy sets the delay between a failed slice and its retry.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(r *Runner) { r.retry = p }
}

// WithEvents registers a callback for progress and retry events.
func WithEvents(fn func(domain.Event)) Option {
	return func(r *Runner) { r.onEvent = fn }
}

// WithLogger sets the runner's logger.
func WithLogger(l *observability.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a runner for the given engine.
func NewRunner(engine domain.Engine, opts ...Option) *Runner {
	r := &Runner{engine: engine, logger: observability.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run drives planner to a terminal state. Successful slice artifacts go to
// sink in cursor order. Exhaustion returns a SliceExhaustedError that wraps a
// TimeoutError when the final attempt timed out. An engine returning a Go
// error aborts the run with that error.
func (r *Runner) Run(ctx context.Context, planner *Planner, task domain.ConversionTask, sink Sink) (Result, error) {
	var res Result

	workRoot := task.WorkDir
	if workRoot == "" {
		dir, err := os.MkdirTemp("", "smartpdf-slices-")
		if err != nil {
			return res, domain.IOError("create slice work directory", err)
		}
		defer os.RemoveAll(dir)
		workRoot = dir
	}

	docPath := ""
	if task.Document != nil {
		docPath = task.Document.Path
	}
	log := r.logger.With().
		Str("document", docPath).
		Str("engine", r.engine.Name()).
		Logger()

	state := planner.State()
	log.Info().
		Int("total_pages", state.TotalPages).
		Int("slice", state.CurrentSliceSize).
		Int("min_slice", state.MinSliceSize).
		Msg("slice run started")

	for {
		rng, ok := planner.Next()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			res.Final = planner.State()
			return res, err
		}

		state = planner.State()
		attempt := state.Attempts
		res.Attempts = attempt

		workDir := filepath.Join(workRoot, fmt.Sprintf("slice-%04d-%04d-a%d", rng.Start, rng.End, attempt))
		if err := os.MkdirAll(workDir, 0o755); err != nil {
			res.Final = planner.State()
			return res, domain.IOError("create slice work directory", err)
		}

		t := task
		rc := rng
		t.Range = &rc
		t.WorkDir = workDir

		started := time.Now()
		outcome, err := r.engine.Convert(ctx, t)
		elapsed := time.Since(started)
		res.LastOutcome = outcome
		if err != nil {
			_ = os.RemoveAll(workDir)
			res.Final = planner.State()
			return res, err
		}

		if outcome.Succeeded {
			if err := sink.Append(outcome.ArtifactPath, outcome.Assets...); err != nil {
				_ = os.RemoveAll(workDir)
				res.Final = planner.State()
				return res, err
			}
			_ = os.RemoveAll(workDir)
			if err := planner.Succeed(); err != nil {
				return res, err
			}
			res.Slices++
			res.PagesDone += rng.Len()

			log.Info().
				Str("range", rng.String()).
				Int("done", res.PagesDone).
				Int("total", state.TotalPages).
				Dur("elapsed", elapsed).
				Msg("slice converted")
			r.emit(domain.Event{
				Type:     domain.EventPagesProgress,
				Document: docPath,
				Done:     res.PagesDone,
				Pages:    state.TotalPages,
				Engine:   r.engine.Name(),
				Payload:  rng.String(),
			})
			continue
		}

		_ = os.RemoveAll(workDir)
		size := state.CurrentSliceSize
		retry, err := planner.Fail()
		if err != nil {
			return res, err
		}

		log.Warn().
			Str("range", rng.String()).
			Int("slice", size).
			Int("exit_status", outcome.ExitStatus).
			Bool("timed_out", outcome.TimedOut).
			Str("detail", outcome.Detail).
			Dur("elapsed", elapsed).
			Msg("slice failed")

		if !retry {
			res.Final = planner.State()
			cause := error(domain.EngineFailure(
				fmt.Sprintf("%s exited with status %d", r.engine.Name(), outcome.ExitStatus),
				detailErr(outcome.Detail)))
			if outcome.TimedOut {
				cause = domain.TimeoutError(fmt.Sprintf("slice %s timed out", rng), cause)
			}
			log.Error().Str("range", rng.String()).Int("slice", size).Msg("slice exhausted at minimum size")
			return res, domain.SliceExhaustedError(rng, size, cause)
		}

		next := planner.State()
		log.Warn().Int("slice", next.CurrentSliceSize).Msg("retrying with smaller slice")
		r.emit(domain.Event{
			Type:     domain.EventSliceRetry,
			Document: docPath,
			Done:     res.PagesDone,
			Pages:    next.TotalPages,
			Engine:   r.engine.Name(),
			Payload:  fmt.Sprintf("slice=%d", next.CurrentSliceSize),
		})

		if err := r.retry.Wait(ctx, next.Failures-1); err != nil {
			res.Final = planner.State()
			return res, err
		}
	}

	res.Final = planner.State()
	log.Info().Int("slices", res.Slices).Int("attempts", res.Attempts).Msg("slice run complete")
	return res, nil
}

func (r *Runner) emit(ev domain.Event) {
	if r.onEvent == nil {
		return
	}
	ev.Timestamp = time.Now()
	r.onEvent(ev)
}

func detailErr(detail string) error {
	if detail == "" {
		return nil
	}
	return errors.New(detail)
}
