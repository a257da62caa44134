package domain

import "context"

// EngineKind declares which half of the adapter contract an engine implements.
type EngineKind string

const (
	// KindText engines convert whole documents and return errors on failure.
	KindText EngineKind = "text"
	// KindHeavy engines accept page ranges and report ordinary failures in
	// the Outcome rather than as errors.
	KindHeavy EngineKind = "heavy"
)

// PageSource is an opened document.
type PageSource interface {
	PageCount() int
	PageText(index int) (string, error)
	Close() error
}

// Opener opens documents for page counting and text extraction.
type Opener interface {
	Open(path string) (PageSource, error)
}

// Engine converts a document or page range to an artifact.
type Engine interface {
	Name() string
	Kind() EngineKind
	Convert(ctx context.Context, task ConversionTask) (Outcome, error)
}

// Prober is implemented by engines that depend on external tooling.
type Prober interface {
	Available() error
}

// Classifier decides whether a document is textual.
type Classifier interface {
	Classify(ctx context.Context, path string) (ClassificationResult, error)
}
