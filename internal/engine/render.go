package engine

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/spherical/smartpdf/internal/domain"
	"github.com/spherical/smartpdf/internal/pdf"
)

// Renderer rasterises pages of an opened document.
type Renderer interface {
	PageCount() int
	PageImage(index int, dpi float64) (image.Image, error)
	Close() error
}

// RenderFunc opens a document for rendering.
type RenderFunc func(path string) (Renderer, error)

// FitzRenderer renders through the go-fitz opener.
func FitzRenderer(o *pdf.Opener) RenderFunc {
	return func(path string) (Renderer, error) {
		doc, err := o.OpenDocument(path)
		if err != nil {
			return nil, err
		}
		return doc, nil
	}
}

// encodeFunc serialises a rendered page.
type encodeFunc func(img image.Image) ([]byte, error)

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeJPEG(quality int) encodeFunc {
	return func(img image.Image) ([]byte, error) {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
}

// transcribePages renders every page of the task's range and joins the
// per-page text with a blank line. A returned Outcome with Succeeded unset
// describes an ordinary failure.
func transcribePages(
	ctx context.Context,
	render RenderFunc,
	task domain.ConversionTask,
	encode encodeFunc,
	page func(ctx context.Context, data []byte) (string, error),
) (string, domain.Outcome) {
	doc, err := render(task.Document.Path)
	if err != nil {
		return "", failed(1, "open for rendering: %v", err)
	}
	defer doc.Close()

	total := doc.PageCount()
	if total == 0 {
		return "", domain.Outcome{Succeeded: true}
	}

	dpi := task.Options.HighResDPI
	if dpi <= 0 {
		dpi = 120
	}

	bounds := pageBounds(task, total)
	parts := make([]string, 0, bounds.Len())
	for i := bounds.Start; i <= bounds.End; i++ {
		if err := ctx.Err(); err != nil {
			return "", failed(1, "%v", err)
		}

		img, err := doc.PageImage(i, float64(dpi))
		if err != nil {
			return "", failed(1, "render page %d: %v", i+1, err)
		}
		data, err := encode(img)
		if err != nil {
			return "", failed(1, "encode page %d: %v", i+1, err)
		}
		text, err := page(ctx, data)
		if err != nil {
			return "", failed(1, "page %d: %v", i+1, err)
		}
		parts = append(parts, strings.TrimSpace(text))

		if task.Options.Progress != nil {
			task.Options.Progress(i-bounds.Start+1, bounds.Len())
		}
	}
	return strings.Join(parts, pageSeparator), domain.Outcome{Succeeded: true}
}

// validateDPI rejects negative render resolutions. Zero selects the default.
func validateDPI(dpi int) error {
	if dpi < 0 {
		return domain.ValidationError(fmt.Sprintf("invalid dpi %d", dpi), nil)
	}
	return nil
}
