package engine

import (
	"bytes"
	"context"
	"strconv"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/spherical/smartpdf/internal/config"
	"github.com/spherical/smartpdf/internal/domain"
	"github.com/spherical/smartpdf/internal/observability"
)

// PopplerName is the registry name of the pdftohtml engine.
const PopplerName = "poppler"

// Poppler converts through poppler's pdftohtml and html-to-markdown.
type Poppler struct {
	command string
	extra   []string
	logger  *observability.Logger
}

// NewPoppler creates the poppler engine.
func NewPoppler(cfg config.CommandConfig, logger *observability.Logger) *Poppler {
	if logger == nil {
		logger = observability.Nop()
	}
	cmd := cfg.Command
	if cmd == "" {
		cmd = "pdftohtml"
	}
	return &Poppler{command: cmd, extra: cfg.Args, logger: logger.WithComponent("engine.poppler")}
}

func (p *Poppler) Name() string            { return PopplerName }
func (p *Poppler) Kind() domain.EngineKind { return domain.KindHeavy }

// Available checks that pdftohtml is on PATH.
func (p *Poppler) Available() error {
	return lookPath(p.command)
}

// Args builds the pdftohtml argument list. Page numbers are one-based.
func (p *Poppler) Args(task domain.ConversionTask) []string {
	args := []string{"-s", "-i", "-noframes", "-stdout"}
	if task.Options.ImagesEnabled {
		args = []string{"-s", "-noframes", "-stdout"}
	}
	if task.Range != nil {
		args = append(args,
			"-f", strconv.Itoa(task.Range.Start+1),
			"-l", strconv.Itoa(task.Range.End+1))
	}
	args = append(args, p.extra...)
	return append(args, task.Document.Path)
}

func (p *Poppler) Convert(ctx context.Context, task domain.ConversionTask) (domain.Outcome, error) {
	dir, err := scratchDir(task)
	if err != nil {
		return domain.Outcome{}, err
	}

	var html bytes.Buffer
	cmd := command{Name: p.command, Args: p.Args(task), Dir: dir, Stdout: &html}
	p.logger.Debug().Str("document", task.Document.Path).Str("command", cmd.String()).Msg("running pdftohtml")

	out := runCommand(ctx, cmd)
	if !out.Succeeded {
		return out, nil
	}

	markdown, err := htmltomarkdown.ConvertString(html.String())
	if err != nil {
		return failed(1, "html to markdown: %v", err), nil
	}

	path, err := writeArtifact(dir, task.Document, markdown)
	if err != nil {
		return domain.Outcome{}, err
	}
	out.ArtifactPath = path
	if task.Options.ImagesEnabled {
		if out.Assets, err = collectAssets(dir, path); err != nil {
			return domain.Outcome{}, err
		}
	}
	return out, nil
}
