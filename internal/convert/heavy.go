package convert

import (
	"context"
	"os"

	"github.com/spherical/smartpdf/internal/domain"
	"github.com/spherical/smartpdf/internal/pdf"
	"github.com/spherical/smartpdf/internal/slicer"
)

func (o *Orchestrator) task(doc *domain.Document, name string) domain.ConversionTask {
	return domain.ConversionTask{
		Document:  doc,
		OutputDir: doc.OutputDir,
		Engine:    name,
		Options:   o.cfg.ConversionOptions(),
	}
}

func (o *Orchestrator) convertText(ctx context.Context, eng domain.Engine, doc *domain.Document, result domain.DocumentResult) domain.DocumentResult {
	result.Route = domain.RouteFast
	result.Attempts = 1

	task := o.task(doc, eng.Name())
	task.Options.Progress = func(done, total int) {
		o.emit(domain.Event{
			Type:     domain.EventPagesProgress,
			Document: doc.Path,
			Engine:   eng.Name(),
			Done:     done,
			Pages:    total,
		})
	}

	outcome, err := eng.Convert(ctx, task)
	if err != nil {
		return unhandled(result, err)
	}
	if !outcome.Succeeded {
		return unhandled(result, domain.EngineFailure(outcome.Detail, nil))
	}
	if n, ok := doc.PageCount(); ok {
		result.Pages = n
	}
	result.Status = domain.StatusOK
	result.Artifact = outcome.ArtifactPath
	return result
}

// convertHeavy slices when the page count is known and falls back to a single
// whole-document pass when it is not.
func (o *Orchestrator) convertHeavy(ctx context.Context, eng domain.Engine, doc *domain.Document, result domain.DocumentResult) domain.DocumentResult {
	log := o.logger.WithDocument(doc.Path)

	total, err := pdf.CountPages(o.opener, doc.Path)
	if err != nil {
		log.Warn().Err(err).Msg("page count unavailable, running single pass")
		return o.singlePass(ctx, eng, doc, result)
	}
	doc.SetPageCount(total)
	result.Pages = total
	result.Route = domain.RouteSliced

	planner, err := slicer.NewPlanner(total, o.slice(), o.cfg.MinSlice)
	if err != nil {
		return unhandled(result, err)
	}

	out := doc.OutputPath(".md")
	sink := slicer.NewAssembler(out)
	if total == 0 {
		if err := os.WriteFile(out, nil, 0o644); err != nil {
			return unhandled(result, domain.IOError("write output", err))
		}
		result.Status = domain.StatusOK
		result.Artifact = out
		return result
	}

	workDir, err := os.MkdirTemp("", "smartpdf-"+doc.Stem()+"-")
	if err != nil {
		return unhandled(result, domain.IOError("create work directory", err))
	}
	defer os.RemoveAll(workDir)

	task := o.task(doc, eng.Name())
	task.WorkDir = workDir

	runner := slicer.NewRunner(eng,
		slicer.WithLogger(o.logger),
		slicer.WithEvents(o.emit),
		slicer.WithRetryPolicy(slicer.RetryPolicy{Initial: o.cfg.RetryDelay, Max: o.cfg.RetryMaxDelay}),
	)
	res, err := runner.Run(ctx, planner, task, sink)
	result.Attempts = res.Attempts
	if err != nil {
		result.Err = err
		switch {
		case domain.IsType(err, domain.ErrorTypeTimeout):
			result.Status = domain.StatusTimeout
		case domain.IsType(err, domain.ErrorTypeSliceExhausted):
			result.Status = domain.StatusSliceExhausted
		default:
			result.Status = domain.StatusUnhandled
		}
		if sink.Written() > 0 {
			result.Artifact = out
		}
		return result
	}

	result.Status = domain.StatusOK
	result.Artifact = out
	return result
}

func (o *Orchestrator) singlePass(ctx context.Context, eng domain.Engine, doc *domain.Document, result domain.DocumentResult) domain.DocumentResult {
	result.Route = domain.RouteSinglePass
	result.Attempts = 1

	workDir, err := os.MkdirTemp("", "smartpdf-"+doc.Stem()+"-")
	if err != nil {
		return unhandled(result, domain.IOError("create work directory", err))
	}
	defer os.RemoveAll(workDir)

	task := o.task(doc, eng.Name())
	task.WorkDir = workDir

	outcome, err := eng.Convert(ctx, task)
	if err != nil {
		return unhandled(result, err)
	}
	if !outcome.Succeeded {
		detail := outcome.Detail
		if detail == "" {
			detail = "single-pass conversion failed"
		}
		if outcome.TimedOut {
			result.Status = domain.StatusTimeout
			result.Err = domain.TimeoutError(detail, nil)
		} else {
			result.Status = domain.StatusSinglePassFailed
			result.Err = domain.EngineFailure(detail, nil)
		}
		return result
	}

	out := doc.OutputPath(".md")
	if err := slicer.NewAssembler(out).Append(outcome.ArtifactPath, outcome.Assets...); err != nil {
		return unhandled(result, err)
	}
	result.Status = domain.StatusOK
	result.Artifact = out
	return result
}
