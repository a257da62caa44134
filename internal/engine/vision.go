package engine

import (
	"context"
	"errors"

	"github.com/spherical/smartpdf/internal/config"
	"github.com/spherical/smartpdf/internal/domain"
	"github.com/spherical/smartpdf/internal/llm"
	"github.com/spherical/smartpdf/internal/observability"
)

// VisionName is the registry name of the vision model engine.
const VisionName = "vision"

// Transcriber converts one JPEG page image to Markdown.
type Transcriber interface {
	Transcribe(ctx context.Context, jpeg []byte) (string, error)
}

// Vision sends rendered pages to a multimodal chat model.
type Vision struct {
	render  RenderFunc
	client  Transcriber
	hasKey  bool
	quality int
	logger  *observability.Logger
}

// NewVision creates the vision engine from its settings.
func NewVision(cfg config.VisionConfig, render RenderFunc, logger *observability.Logger) *Vision {
	client := llm.NewClient(llm.Config{
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		Endpoint:   cfg.Endpoint,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	v := NewVisionWith(render, client, cfg.JPEGQuality, logger)
	v.hasKey = cfg.APIKey != ""
	return v
}

// NewVisionWith creates the vision engine with a custom transcriber.
func NewVisionWith(render RenderFunc, client Transcriber, quality int, logger *observability.Logger) *Vision {
	if logger == nil {
		logger = observability.Nop()
	}
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	return &Vision{
		render:  render,
		client:  client,
		hasKey:  true,
		quality: quality,
		logger:  logger.WithComponent("engine.vision"),
	}
}

func (v *Vision) Name() string            { return VisionName }
func (v *Vision) Kind() domain.EngineKind { return domain.KindHeavy }

// Available reports whether an API key is configured.
func (v *Vision) Available() error {
	if !v.hasKey {
		return errors.New("OPENROUTER_API_KEY is not set")
	}
	return nil
}

func (v *Vision) Convert(ctx context.Context, task domain.ConversionTask) (domain.Outcome, error) {
	if err := v.Available(); err != nil {
		return failed(1, "%v", err), nil
	}
	dir, err := scratchDir(task)
	if err != nil {
		return domain.Outcome{}, err
	}

	text, out := transcribePages(ctx, v.render, task, encodeJPEG(v.quality), v.client.Transcribe)
	if !out.Succeeded {
		v.logger.Warn().Str("document", task.Document.Path).Str("detail", out.Detail).Msg("vision transcription failed")
		return out, nil
	}

	path, err := writeArtifact(dir, task.Document, text)
	if err != nil {
		return domain.Outcome{}, err
	}
	out.ArtifactPath = path
	return out, nil
}
