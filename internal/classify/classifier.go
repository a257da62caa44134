// Package classify decides whether a PDF carries enough extractable text to
// take the fast path.
package classify

import (
	"context"
	"unicode"

	"github.com/spherical/smartpdf/internal/domain"
	"github.com/spherical/smartpdf/internal/observability"
)

const (
	DefaultMinChars = 100
	DefaultMinRatio = 0.2
)

// Classifier applies the qualifying-page heuristic through an Opener.
type Classifier struct {
	opener   domain.Opener
	minChars int
	minRatio float64
	logger   *observability.Logger
}

// New creates a classifier with the given thresholds.
func New(opener domain.Opener, minChars int, minRatio float64, logger *observability.Logger) *Classifier {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Classifier{
		opener:   opener,
		minChars: minChars,
		minRatio: minRatio,
		logger:   logger.WithComponent("classify"),
	}
}

// Thresholds returns the configured minimum characters and ratio.
func (c *Classifier) Thresholds() (int, float64) {
	return c.minChars, c.minRatio
}

// Classify opens path and evaluates it. An unopenable document yields an
// UnreadableDocumentError.
func (c *Classifier) Classify(ctx context.Context, path string) (domain.ClassificationResult, error) {
	src, err := c.opener.Open(path)
	if err != nil {
		if !domain.IsType(err, domain.ErrorTypeUnreadable) {
			err = domain.UnreadableDocumentError(path, err)
		}
		return domain.ClassificationResult{}, err
	}
	defer src.Close()

	res, err := Evaluate(ctx, src, c.minChars, c.minRatio)
	if err != nil {
		return domain.ClassificationResult{}, err
	}

	c.logger.Debug().
		Str("document", path).
		Int("pages", res.PagesConsidered).
		Int("qualifying", res.QualifyingPages).
		Bool("textual", res.IsTextual).
		Msg("classified")
	return res, nil
}

// Evaluate runs the heuristic over an opened document. A page qualifies when
// it has at least minChars non-whitespace characters; the document is textual
// when qualifying/total >= minRatio. No qualifying pages is never textual,
// whatever minRatio is. A page whose
// text cannot be extracted does not qualify.
func Evaluate(ctx context.Context, src domain.PageSource, minChars int, minRatio float64) (domain.ClassificationResult, error) {
	total := src.PageCount()
	res := domain.ClassificationResult{PagesConsidered: total}
	if total == 0 {
		return res, nil
	}

	for i := 0; i < total; i++ {
		select {
		case <-ctx.Done():
			return domain.ClassificationResult{}, ctx.Err()
		default:
		}

		text, err := src.PageText(i)
		if err != nil {
			continue
		}
		if CountNonSpace(text) >= minChars {
			res.QualifyingPages++
		}
	}

	res.IsTextual = res.QualifyingPages > 0 && float64(res.QualifyingPages)/float64(total) >= minRatio
	return res, nil
}

// CountNonSpace counts runes that are not Unicode whitespace.
func CountNonSpace(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
