package engine

import (
	"github.com/spherical/smartpdf/internal/config"
	"github.com/spherical/smartpdf/internal/domain"
	"github.com/spherical/smartpdf/internal/observability"
	"github.com/spherical/smartpdf/internal/pdf"
)

// NewDefaultRegistry registers every built-in engine. With cfg.Mock set, the
// mock engine also takes the marker name so that routing to marker stays
// unchanged. Heavy engines run under cfg.HeavyTimeout.
func NewDefaultRegistry(cfg *config.Config, opener *pdf.Opener, logger *observability.Logger) (*Registry, error) {
	if logger == nil {
		logger = observability.Nop()
	}
	render := FitzRenderer(opener)

	var marker domain.Engine = NewMarker(cfg.Engines.Marker, logger)
	if cfg.Mock {
		marker = NewMock(MarkerName, cfg.MockFail, cfg.MockFailIfSliceGT)
	}

	heavy := []domain.Engine{
		marker,
		NewMock(MockName, cfg.MockFail, cfg.MockFailIfSliceGT),
		NewPoppler(cfg.Engines.Poppler, logger),
		NewOCRmyPDF(cfg.Engines.OCRmyPDF, opener, logger),
		NewTesseract(cfg.Engines.Tesseract, render, logger),
		NewVision(cfg.Engines.Vision, render, logger),
	}

	r := NewRegistry()
	if err := r.Register(NewFast(opener, logger)); err != nil {
		return nil, err
	}
	for _, e := range heavy {
		if err := r.Register(WithTimeout(e, cfg.HeavyTimeout)); err != nil {
			return nil, err
		}
	}
	return r, nil
}
