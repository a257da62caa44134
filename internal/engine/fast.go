package engine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/spherical/smartpdf/internal/domain"
	"github.com/spherical/smartpdf/internal/observability"
)

// FastName is the registry name of the text-layer engine.
const FastName = "fast"

const pageSeparator = "\n\n"

// Fast writes a document's embedded text layer, page by page.
type Fast struct {
	opener domain.Opener
	md     goldmark.Markdown
	logger *observability.Logger
}

// NewFast creates the text engine.
func NewFast(opener domain.Opener, logger *observability.Logger) *Fast {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Fast{
		opener: opener,
		md:     goldmark.New(),
		logger: logger.WithComponent("engine.fast"),
	}
}

func (f *Fast) Name() string            { return FastName }
func (f *Fast) Kind() domain.EngineKind { return domain.KindText }

// Convert extracts every page and writes <stem>.<ext> into the task's output
// directory. Failures are returned as errors.
func (f *Fast) Convert(ctx context.Context, task domain.ConversionTask) (domain.Outcome, error) {
	if !task.Whole() {
		return domain.Outcome{}, domain.ValidationError("fast engine converts whole documents only", nil)
	}

	doc := task.Document
	src, err := f.opener.Open(doc.Path)
	if err != nil {
		return domain.Outcome{}, err
	}
	defer src.Close()

	total := src.PageCount()
	var sb strings.Builder
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return domain.Outcome{}, err
		}

		text, err := src.PageText(i)
		if err != nil {
			return domain.Outcome{}, domain.EngineFailure(fmt.Sprintf("extract page %d", i+1), err)
		}
		if i > 0 {
			sb.WriteString(pageSeparator)
		}
		sb.WriteString(text)

		if task.Options.Progress != nil {
			task.Options.Progress(i+1, total)
		}
	}

	format := task.Options.Format
	if format == "" {
		format = domain.FormatMarkdown
	}
	body := []byte(sb.String())
	if format == domain.FormatHTML {
		var buf bytes.Buffer
		if err := f.md.Convert(body, &buf); err != nil {
			return domain.Outcome{}, domain.EngineFailure("render html", err)
		}
		body = buf.Bytes()
	}

	outDir := task.OutputDir
	if outDir == "" {
		outDir = doc.OutputDir
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return domain.Outcome{}, domain.IOError("create output directory", err)
	}
	outPath := filepath.Join(outDir, doc.Stem()+format.Extension())
	if err := os.WriteFile(outPath, body, 0o644); err != nil {
		return domain.Outcome{}, domain.IOError(fmt.Sprintf("write %s", outPath), err)
	}

	f.logger.Debug().Str("document", doc.Path).Int("pages", total).Str("output", outPath).Msg("text extracted")
	return domain.Outcome{Succeeded: true, ArtifactPath: outPath}, nil
}
