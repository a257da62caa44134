package convert

import (
	"context"

	"github.com/spherical/smartpdf/internal/classify"
	"github.com/spherical/smartpdf/internal/config"
	"github.com/spherical/smartpdf/internal/domain"
	"github.com/spherical/smartpdf/internal/engine"
	"github.com/spherical/smartpdf/internal/observability"
)

func defaultClassifier(cfg *config.Config, opener domain.Opener, logger *observability.Logger) domain.Classifier {
	return classify.New(opener, cfg.MinChars, cfg.MinRatio, logger)
}

// route picks the engine name for doc:
//
//	fast mode   -> fast engine
//	heavy mode  -> forced engine, else the heavy engine
//	auto mode   -> forced engine without classifying, else
//	               textual -> textual override or fast,
//	               otherwise -> non-textual override or the heavy engine.
//
// An unreadable document is treated as non-textual.
func (o *Orchestrator) route(ctx context.Context, doc *domain.Document) (string, error) {
	switch o.cfg.RunMode() {
	case domain.ModeFast:
		return engine.FastName, nil
	case domain.ModeHeavy:
		return o.heavyEngine(), nil
	}

	if o.cfg.Engine != "" {
		return o.cfg.Engine, nil
	}

	res, err := o.classifier.Classify(ctx, doc.Path)
	switch {
	case err == nil:
		doc.SetClassification(res)
	case domain.IsType(err, domain.ErrorTypeUnreadable):
		o.logger.Warn().Err(err).Str("document", doc.Path).Msg("cannot classify, treating as non-textual")
	default:
		return "", err
	}

	if err == nil && res.IsTextual {
		o.logger.Info().
			Str("document", doc.Path).
			Int("qualifying", res.QualifyingPages).
			Int("pages", res.PagesConsidered).
			Msg("textual document")
		if o.cfg.EngineTextual != "" {
			return o.cfg.EngineTextual, nil
		}
		return engine.FastName, nil
	}

	if o.cfg.EngineNonTextual != "" {
		return o.cfg.EngineNonTextual, nil
	}
	return o.cfg.HeavyEngine, nil
}
