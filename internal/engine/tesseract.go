package engine

import (
	"context"
	"errors"

	"github.com/otiai10/gosseract/v2"

	"github.com/spherical/smartpdf/internal/config"
	"github.com/spherical/smartpdf/internal/domain"
	"github.com/spherical/smartpdf/internal/observability"
)

// TesseractName is the registry name of the OCR engine.
const TesseractName = "tesseract"

// Recognizer turns an encoded page image into text.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// gosseractRecognizer runs libtesseract in process.
type gosseractRecognizer struct {
	language string
}

func (g gosseractRecognizer) Recognize(_ context.Context, image []byte) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(g.language); err != nil {
		return "", err
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", err
	}
	return client.Text()
}

// Tesseract renders pages and OCRs them one by one.
type Tesseract struct {
	render RenderFunc
	ocr    Recognizer
	logger *observability.Logger
}

// NewTesseract creates the OCR engine backed by gosseract.
func NewTesseract(cfg config.TesseractConfig, render RenderFunc, logger *observability.Logger) *Tesseract {
	lang := cfg.Language
	if lang == "" {
		lang = "eng"
	}
	return NewTesseractWith(render, gosseractRecognizer{language: lang}, logger)
}

// NewTesseractWith creates the OCR engine with a custom recognizer.
func NewTesseractWith(render RenderFunc, ocr Recognizer, logger *observability.Logger) *Tesseract {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Tesseract{render: render, ocr: ocr, logger: logger.WithComponent("engine.tesseract")}
}

func (t *Tesseract) Name() string            { return TesseractName }
func (t *Tesseract) Kind() domain.EngineKind { return domain.KindHeavy }

// Available reports whether libtesseract is linked and answers.
func (t *Tesseract) Available() error {
	if _, ok := t.ocr.(gosseractRecognizer); ok && gosseract.Version() == "" {
		return errors.New("tesseract library unavailable")
	}
	return nil
}

func (t *Tesseract) Convert(ctx context.Context, task domain.ConversionTask) (domain.Outcome, error) {
	dir, err := scratchDir(task)
	if err != nil {
		return domain.Outcome{}, err
	}
	if err := validateDPI(task.Options.HighResDPI); err != nil {
		return domain.Outcome{}, err
	}

	text, out := transcribePages(ctx, t.render, task, encodePNG, t.ocr.Recognize)
	if !out.Succeeded {
		t.logger.Warn().Str("document", task.Document.Path).Str("detail", out.Detail).Msg("ocr failed")
		return out, nil
	}

	path, err := writeArtifact(dir, task.Document, text)
	if err != nil {
		return domain.Outcome{}, err
	}
	out.ArtifactPath = path
	return out, nil
}
