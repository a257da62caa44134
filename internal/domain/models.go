package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// StatusCode is the per-document and batch exit status.
type StatusCode int

const (
	StatusOK               StatusCode = 0
	StatusInputNotFound    StatusCode = 1
	StatusSliceExhausted   StatusCode = 2
	StatusSinglePassFailed StatusCode = 3
	StatusTimeout          StatusCode = 4
	StatusUnhandled        StatusCode = 9
)

func (s StatusCode) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusInputNotFound:
		return "input-not-found"
	case StatusSliceExhausted:
		return "slice-exhausted"
	case StatusSinglePassFailed:
		return "single-pass-failed"
	case StatusTimeout:
		return "timeout"
	case StatusUnhandled:
		return "unhandled"
	default:
		return fmt.Sprintf("status-%d", int(s))
	}
}

// Mode selects how documents are routed.
type Mode string

const (
	ModeAuto  Mode = "auto"
	ModeFast  Mode = "fast"
	ModeHeavy Mode = "heavy"
)

// ParseMode accepts auto, fast, heavy and the legacy alias marker.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ModeAuto, nil
	case "fast":
		return ModeFast, nil
	case "heavy", "marker":
		return ModeHeavy, nil
	default:
		return "", ValidationError(fmt.Sprintf("invalid mode %q (want auto, fast or heavy)", s), nil)
	}
}

// OutputFormat is the fast path's artifact format.
type OutputFormat string

const (
	FormatMarkdown OutputFormat = "md"
	FormatText     OutputFormat = "txt"
	FormatHTML     OutputFormat = "html"
)

// ParseOutputFormat validates an output format name.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatMarkdown, "markdown":
		return FormatMarkdown, nil
	case FormatText:
		return FormatText, nil
	case FormatHTML:
		return FormatHTML, nil
	default:
		return "", ValidationError(fmt.Sprintf("invalid output format %q (want md, txt or html)", s), nil)
	}
}

// Extension returns the file extension including the leading dot.
func (f OutputFormat) Extension() string {
	switch f {
	case FormatText:
		return ".txt"
	case FormatHTML:
		return ".html"
	default:
		return ".md"
	}
}

// PageRange is an inclusive, zero-based page interval.
type PageRange struct {
	Start int
	End   int
}

// Len returns the number of pages in the range.
func (r PageRange) Len() int {
	return r.End - r.Start + 1
}

func (r PageRange) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// ClassificationResult is the outcome of the textual heuristic for one document.
type ClassificationResult struct {
	IsTextual       bool `json:"is_textual"`
	PagesConsidered int  `json:"pages_considered"`
	QualifyingPages int  `json:"qualifying_pages"`
}

// Ratio returns qualifying/considered, or 0 for an empty document.
func (c ClassificationResult) Ratio() float64 {
	if c.PagesConsidered == 0 {
		return 0
	}
	return float64(c.QualifyingPages) / float64(c.PagesConsidered)
}

// Document represents the source PDF file being processed.
type Document struct {
	Path      string
	OutputDir string

	pageCount      int
	pageCountKnown bool
	classification *ClassificationResult
}

// NewDocument resolves the output directory once. An empty outputDir means
// alongside the input.
func NewDocument(path, outputDir string) *Document {
	if outputDir == "" {
		outputDir = filepath.Dir(path)
	}
	return &Document{Path: path, OutputDir: outputDir}
}

// Stem is the base name without extension.
func (d *Document) Stem() string {
	base := filepath.Base(d.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// OutputPath returns the artifact path for the given extension.
func (d *Document) OutputPath(ext string) string {
	return filepath.Join(d.OutputDir, d.Stem()+ext)
}

// PageCount returns the cached page count and whether it is known.
func (d *Document) PageCount() (int, bool) {
	return d.pageCount, d.pageCountKnown
}

func (d *Document) SetPageCount(n int) {
	d.pageCount = n
	d.pageCountKnown = true
}

// Classification returns the cached classification, or nil.
func (d *Document) Classification() *ClassificationResult {
	return d.classification
}

// SetClassification caches the classification; later calls are ignored.
func (d *Document) SetClassification(c ClassificationResult) {
	if d.classification == nil {
		d.classification = &c
	}
}

// ConversionOptions carries rendering knobs through to engines.
type ConversionOptions struct {
	ImagesEnabled bool
	LowResDPI     int
	HighResDPI    int
	Format        OutputFormat
	// Progress, when set, receives page-level progress from text engines.
	Progress func(done, total int)
}

// ConversionTask is one engine invocation: a whole document or a slice.
type ConversionTask struct {
	Document *Document
	Range    *PageRange // nil means the whole document
	// OutputDir is the final artifact directory. WorkDir is per-attempt scratch.
	OutputDir string
	WorkDir   string
	Engine    string
	Options   ConversionOptions
}

// Whole reports whether the task covers the whole document.
func (t ConversionTask) Whole() bool {
	return t.Range == nil
}

// Outcome is the process-style result of an engine invocation.
type Outcome struct {
	Succeeded    bool
	ArtifactPath string
	// Assets are files the artifact references, such as extracted images.
	Assets       []string
	ExitStatus   int
	Detail       string
	TimedOut     bool
}

// Route names the path a document took through the orchestrator.
type Route string

const (
	RouteFast       Route = "fast"
	RouteSliced     Route = "sliced"
	RouteSinglePass Route = "single-pass"
	RouteDryRun     Route = "dry-run"
	RouteSkipped    Route = "skipped"
)

// DocumentResult is created once per document.
type DocumentResult struct {
	Path           string
	Status         StatusCode
	Engine         string
	Route          Route
	Artifact       string
	Classification *ClassificationResult
	Pages          int
	Attempts       int
	Elapsed        time.Duration
	Err            error
}

func (r DocumentResult) Failed() bool {
	return r.Status != StatusOK
}

// BatchResult aggregates document results in input order.
type BatchResult struct {
	RunID        string
	Input        string
	Results      []DocumentResult
	FailureCount int
	ExitCode     StatusCode
	Elapsed      time.Duration
}

// Finalize computes the failure count and the exit code, which is the status
// of the first failed document in input order.
func (b *BatchResult) Finalize() {
	b.FailureCount = 0
	b.ExitCode = StatusOK
	for _, r := range b.Results {
		if !r.Failed() {
			continue
		}
		b.FailureCount++
		if b.ExitCode == StatusOK {
			b.ExitCode = r.Status
		}
	}
}
