package commands

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical/smartpdf/cmd/smartpdf/ui"
	"github.com/spherical/smartpdf/internal/config"
	"github.com/spherical/smartpdf/internal/domain"
	"github.com/spherical/smartpdf/internal/observability"
	"github.com/spherical/smartpdf/pkg/converter"
)

type convertFlags struct {
	mode              string
	engine            string
	engineTextual     string
	engineNonTextual  string
	heavyEngine       string
	outDir            string
	images            bool
	noImages          bool
	minChars          int
	minRatio          float64
	minSlice          int
	mock              bool
	mockFail          bool
	mockFailIfSliceGT int
	dryRun            bool
	progress          bool
	format            string
	include           []string
	exclude           []string
	workers           int
	timeout           time.Duration
	ledgerPath        string
	resume            bool
}

var convertOpts convertFlags

var convertCmd = &cobra.Command{
	Use:   "convert INPUT [SLICE]",
	Short: "Convert a PDF file or a directory of PDFs to Markdown",
	Long: `Convert INPUT (a PDF file or a directory searched recursively for *.pdf).

SLICE is the initial number of pages handed to the heavy engine per attempt.
A failed slice is retried at half the size, down to the minimum slice size.
It may also be set with SMART_PDF_MD_SLICE or the slice config key.

Exit codes: 0 ok, 1 input not found or no PDFs, 2 slice exhausted or usage
error, 3 single-pass failed, 4 heavy attempt timed out, 9 unhandled error.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConvert,
}

func init() {
	f := convertCmd.Flags()
	o := &convertOpts
	f.StringVarP(&o.mode, "mode", "m", "", "routing mode: auto, fast or heavy")
	f.StringVarP(&o.engine, "engine", "e", "", "force this engine for every document in auto mode")
	f.StringVar(&o.engineTextual, "engine-textual", "", "engine for documents classified as textual")
	f.StringVar(&o.engineNonTextual, "engine-non-textual", "", "engine for documents classified as non-textual")
	f.StringVar(&o.heavyEngine, "heavy-engine", "", "default heavy engine")
	f.StringVarP(&o.outDir, "out", "o", "", "output directory (default: next to each input)")
	f.BoolVarP(&o.images, "images", "i", false, "extract images in the heavy engine")
	f.BoolVarP(&o.noImages, "no-images", "I", false, "disable image extraction")
	f.IntVarP(&o.minChars, "min-chars", "c", 0, "non-whitespace characters for a page to count as textual")
	f.Float64VarP(&o.minRatio, "min-ratio", "r", 0, "share of textual pages for a document to be textual")
	f.IntVar(&o.minSlice, "min-slice", 0, "smallest slice size before giving up")
	f.BoolVarP(&o.mock, "mock", "M", false, "replace marker with the mock engine")
	f.BoolVarP(&o.mockFail, "mock-fail", "F", false, "make the mock engine fail")
	f.IntVar(&o.mockFailIfSliceGT, "mock-fail-if-slice-gt", 0, "make the mock engine fail slices larger than N pages")
	f.BoolVarP(&o.dryRun, "dry-run", "n", false, "show what would be done without converting")
	f.BoolVarP(&o.progress, "progress", "p", false, "show progress bars")
	f.StringVarP(&o.format, "format", "f", "", "fast path output format: md, txt or html")
	f.StringSliceVarP(&o.include, "include", "S", nil, "only convert files matching these globs (relative path or base name; * also matches /)")
	f.StringSliceVarP(&o.exclude, "exclude", "X", nil, "skip files matching these globs")
	f.IntVarP(&o.workers, "workers", "w", 0, "documents converted in parallel")
	f.DurationVar(&o.timeout, "timeout", 0, "limit for one heavy engine attempt (0 disables)")
	f.StringVar(&o.ledgerPath, "ledger", "", "record runs in this SQLite file")
	f.BoolVar(&o.resume, "resume", false, "skip documents already converted according to the ledger")
}

// applyConvertFlags copies explicitly set flags over cfg.
func applyConvertFlags(cmd *cobra.Command, cfg *config.Config, o *convertFlags) {
	set := cmd.Flags().Changed

	if set("mode") {
		cfg.Mode = o.mode
	}
	if set("engine") {
		cfg.Engine = o.engine
	}
	if set("engine-textual") {
		cfg.EngineTextual = o.engineTextual
	}
	if set("engine-non-textual") {
		cfg.EngineNonTextual = o.engineNonTextual
	}
	if set("heavy-engine") {
		cfg.HeavyEngine = o.heavyEngine
	}
	if set("out") {
		cfg.OutputDir = o.outDir
	}
	if set("images") {
		cfg.Images = o.images
	}
	if set("no-images") && o.noImages {
		cfg.Images = false
	}
	if set("min-chars") {
		cfg.MinChars = o.minChars
	}
	if set("min-ratio") {
		cfg.MinRatio = o.minRatio
	}
	if set("min-slice") {
		cfg.MinSlice = o.minSlice
	}
	if set("mock") {
		cfg.Mock = o.mock
	}
	if set("mock-fail") {
		cfg.MockFail = o.mockFail
	}
	if set("mock-fail-if-slice-gt") {
		cfg.MockFailIfSliceGT = o.mockFailIfSliceGT
	}
	if set("dry-run") {
		cfg.DryRun = o.dryRun
	}
	if set("progress") {
		cfg.Progress = o.progress
	}
	if set("format") {
		cfg.OutputFormat = o.format
	}
	if set("include") {
		cfg.Include = o.include
	}
	if set("exclude") {
		cfg.Exclude = o.exclude
	}
	if set("workers") {
		cfg.Workers = o.workers
	}
	if set("timeout") {
		cfg.HeavyTimeout = o.timeout
	}
	if set("ledger") {
		cfg.Ledger.Driver = "sqlite"
		cfg.Ledger.Path = o.ledgerPath
	}
	if set("resume") {
		cfg.Resume = o.resume
	}
}

// resolveArgs applies INPUT and SLICE and checks that both are present.
func resolveArgs(cfg *config.Config, args []string) error {
	if len(args) > 0 {
		cfg.Input = args[0]
	}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return usageError("SLICE must be a positive integer, got %q", args[1])
		}
		cfg.Slice = n
	}
	if cfg.Input == "" {
		return usageError("INPUT is required")
	}
	if cfg.Slice <= 0 {
		return usageError("SLICE is required: pass it after INPUT or set %sSLICE", config.EnvPrefix)
	}
	if cfg.Resume && cfg.Ledger.Driver == "none" {
		return usageError("--resume needs a ledger (--ledger PATH)")
	}
	return nil
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyConvertFlags(cmd, cfg, &convertOpts)
	if err := resolveArgs(cfg, args); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return &ExitError{Code: ExitCodeUsage, Err: err}
	}

	logger := newLogger(cfg)
	ctx, cancel := signalContext(logger)
	defer cancel()

	opts := []converter.Option{converter.WithLogger(logger)}

	var (
		events chan converter.Event
		done   chan struct{}
	)
	if cfg.Progress {
		events = make(chan converter.Event, 256)
		done = make(chan struct{})
		consume := logProgress(logger)
		if ui.IsTerminal() {
			consume = ui.NewBatchProgress().Consume
		}
		go func() {
			defer close(done)
			consume(events)
		}()
		opts = append(opts, converter.WithEvents(events))
	}

	client, err := newClient(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer client.Close()

	batch, err := client.Convert(ctx, cfg.Input)
	if events != nil {
		close(events)
		<-done
	}
	if err != nil {
		return &ExitError{Code: int(domain.StatusUnhandled), Err: err}
	}

	if batch.ExitCode == domain.StatusInputNotFound && len(batch.Results) == 0 {
		ui.Error("no PDF files found at %s", cfg.Input)
		return &ExitError{Code: int(batch.ExitCode)}
	}

	ui.BatchSummary(batch)
	if batch.ExitCode != domain.StatusOK {
		return &ExitError{Code: int(batch.ExitCode)}
	}
	return nil
}

// logProgress reports progress events as log lines, for output that is not
// a terminal.
func logProgress(logger *observability.Logger) func(<-chan converter.Event) {
	log := logger.WithComponent("progress")
	return func(events <-chan converter.Event) {
		for ev := range events {
			switch ev.Type {
			case converter.EventDocumentStart:
				log.Info().
					Str("document", ev.Document).
					Int("index", ev.Index).
					Int("total", ev.Total).
					Msg("document started")
			case converter.EventPagesProgress:
				e := log.Info().
					Str("document", ev.Document).
					Str("engine", ev.Engine).
					Int("done", ev.Done).
					Int("pages", ev.Pages)
				if ev.Payload != "" {
					e = e.Str("range", ev.Payload)
				}
				e.Msg("pages converted")
			case converter.EventSliceRetry:
				log.Info().
					Str("document", ev.Document).
					Str("engine", ev.Engine).
					Str("retry", ev.Payload).
					Msg("slice retry")
			}
		}
	}
}
