package engine

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/spherical/smartpdf/internal/config"
	"github.com/spherical/smartpdf/internal/domain"
	"github.com/spherical/smartpdf/internal/observability"
	"github.com/spherical/smartpdf/internal/pdf"
)

// OCRmyPDFName is the registry name of the ocrmypdf engine.
const OCRmyPDFName = "ocrmypdf"

// OCRmyPDF adds a text layer with ocrmypdf and then reads it back.
type OCRmyPDF struct {
	command  string
	language string
	extra    []string
	opener   domain.Opener
	logger   *observability.Logger
}

// NewOCRmyPDF creates the ocrmypdf engine.
func NewOCRmyPDF(cfg config.CommandConfig, opener domain.Opener, logger *observability.Logger) *OCRmyPDF {
	if logger == nil {
		logger = observability.Nop()
	}
	cmd := cfg.Command
	if cmd == "" {
		cmd = "ocrmypdf"
	}
	lang := cfg.Language
	if lang == "" {
		lang = "eng"
	}
	return &OCRmyPDF{
		command:  cmd,
		language: lang,
		extra:    cfg.Args,
		opener:   opener,
		logger:   logger.WithComponent("engine.ocrmypdf"),
	}
}

func (o *OCRmyPDF) Name() string            { return OCRmyPDFName }
func (o *OCRmyPDF) Kind() domain.EngineKind { return domain.KindHeavy }

// Available checks that ocrmypdf is on PATH.
func (o *OCRmyPDF) Available() error {
	return lookPath(o.command)
}

func (o *OCRmyPDF) Convert(ctx context.Context, task domain.ConversionTask) (domain.Outcome, error) {
	dir, err := scratchDir(task)
	if err != nil {
		return domain.Outcome{}, err
	}

	input := task.Document.Path
	if task.Range != nil {
		input = filepath.Join(dir, "slice.pdf")
		if err := pdf.ExtractRange(task.Document.Path, input, *task.Range); err != nil {
			return failed(1, "extract slice %s: %v", task.Range, err), nil
		}
	}

	output := filepath.Join(dir, "ocr.pdf")
	args := []string{"--skip-text", "-l", o.language}
	args = append(args, o.extra...)
	args = append(args, input, output)

	cmd := command{Name: o.command, Args: args, Dir: dir}
	o.logger.Debug().Str("document", task.Document.Path).Str("command", cmd.String()).Msg("running ocrmypdf")

	out := runCommand(ctx, cmd)
	if !out.Succeeded {
		return out, nil
	}

	src, err := o.opener.Open(output)
	if err != nil {
		return failed(1, "read ocr output: %v", err), nil
	}
	defer src.Close()

	pages := make([]string, 0, src.PageCount())
	for i := 0; i < src.PageCount(); i++ {
		text, err := src.PageText(i)
		if err != nil {
			return failed(1, "read ocr page %d: %v", i+1, err), nil
		}
		pages = append(pages, text)
	}

	path, err := writeArtifact(dir, task.Document, strings.Join(pages, pageSeparator))
	if err != nil {
		return domain.Outcome{}, err
	}
	out.ArtifactPath = path
	return out, nil
}
