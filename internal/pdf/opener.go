// Package pdf opens, inspects and cuts PDF documents.
package pdf

import (
	"fmt"
	"image"
	"sync"

	"github.com/gen2brain/go-fitz"

	"github.com/spherical/smartpdf/internal/domain"
)

// Opener implements domain.Opener using go-fitz (MuPDF).
type Opener struct{}

// NewOpener creates a new opener instance
func NewOpener() *Opener {
	return &Opener{}
}

// Open satisfies domain.Opener.
func (o *Opener) Open(path string) (domain.PageSource, error) {
	return o.OpenDocument(path)
}

// OpenDocument opens path and returns the concrete document, which can also
// render pages.
func (o *Opener) OpenDocument(path string) (*Document, error) {
	if err := CheckFile(path); err != nil {
		return nil, domain.UnreadableDocumentError(path, err)
	}
	doc, err := fitz.New(path)
	if err != nil {
		return nil, domain.UnreadableDocumentError(path, err)
	}
	return &Document{path: path, doc: doc, pages: doc.NumPage()}, nil
}

// Document is an open PDF. MuPDF contexts are not safe for concurrent use,
// so every call is serialized.
type Document struct {
	mu    sync.Mutex
	path  string
	doc   *fitz.Document
	pages int
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	return d.pages
}

// PageText extracts the plain text of a zero-based page.
func (d *Document) PageText(index int) (string, error) {
	if err := d.checkIndex(index); err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	text, err := d.doc.Text(index)
	if err != nil {
		return "", fmt.Errorf("extract text of page %d: %w", index, err)
	}
	return text, nil
}

// PageImage renders a zero-based page at the given resolution.
func (d *Document) PageImage(index int, dpi float64) (image.Image, error) {
	if err := d.checkIndex(index); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	img, err := d.doc.ImageDPI(index, dpi)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", index, err)
	}
	return img, nil
}

func (d *Document) checkIndex(index int) error {
	if index < 0 || index >= d.pages {
		return domain.ValidationError(fmt.Sprintf("page %d out of range [0,%d)", index, d.pages), nil)
	}
	return nil
}

// Close releases the MuPDF document.
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc == nil {
		return nil
	}
	err := d.doc.Close()
	d.doc = nil
	return err
}

// CountPages opens path just long enough to count its pages.
func CountPages(o domain.Opener, path string) (int, error) {
	src, err := o.Open(path)
	if err != nil {
		return 0, err
	}
	defer src.Close()
	return src.PageCount(), nil
}
