package commands

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/smartpdf/cmd/smartpdf/ui"
	"github.com/spherical/smartpdf/internal/config"
	"github.com/spherical/smartpdf/internal/observability"
	"github.com/spherical/smartpdf/internal/pdf/pdftest"
	"github.com/spherical/smartpdf/pkg/converter"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 4, ExitCode(&ExitError{Code: 4}))
	assert.Equal(t, 3, ExitCode(errors.Join(errors.New("ctx"), &ExitError{Code: 3})))
	assert.Equal(t, ExitCodeUsage, ExitCode(errors.New("unknown flag: --bogus")))
}

func TestApplyEnvPairs(t *testing.T) {
	t.Setenv("SMART_PDF_MD_MODE", "")
	t.Setenv("SOMETHING_ELSE", "")

	var errOut bytes.Buffer
	ui.SetOutput(&bytes.Buffer{}, &errOut)
	t.Cleanup(func() { ui.SetOutput(os.Stdout, os.Stderr) })

	require.NoError(t, applyEnvPairs([]string{"SMART_PDF_MD_MODE=fast", "SOMETHING_ELSE=1"}, true))
	assert.Equal(t, "fast", os.Getenv("SMART_PDF_MD_MODE"))
	assert.Contains(t, errOut.String(), "unknown environment key SOMETHING_ELSE")
	assert.NotContains(t, errOut.String(), "SMART_PDF_MD_MODE")

	errOut.Reset()
	require.NoError(t, applyEnvPairs([]string{"SOMETHING_ELSE=2"}, false))
	assert.Empty(t, errOut.String())

	err := applyEnvPairs([]string{"novalue"}, true)
	assert.Equal(t, ExitCodeUsage, ExitCode(err))
}

func TestResolveArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		preset  func(*config.Config)
		wantErr string
		slice   int
	}{
		{name: "input and slice", args: []string{"docs", "40"}, slice: 40},
		{name: "slice from config", args: []string{"docs"}, preset: func(c *config.Config) { c.Slice = 12 }, slice: 12},
		{name: "missing input", args: nil, preset: func(c *config.Config) { c.Slice = 12 }, wantErr: "INPUT is required"},
		{name: "missing slice", args: []string{"docs"}, wantErr: "SLICE is required"},
		{name: "bad slice", args: []string{"docs", "ten"}, wantErr: "positive integer"},
		{name: "zero slice", args: []string{"docs", "0"}, wantErr: "positive integer"},
		{name: "resume without ledger", args: []string{"docs", "5"}, preset: func(c *config.Config) { c.Resume = true }, wantErr: "needs a ledger"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			if tt.preset != nil {
				tt.preset(cfg)
			}
			err := resolveArgs(cfg, tt.args)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Equal(t, ExitCodeUsage, ExitCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.slice, cfg.Slice)
		})
	}
}

func TestApplyConvertFlagsOnlyOverridesChangedFlags(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MinChars = 250
	cfg.Images = true

	require.NoError(t, convertCmd.Flags().Set("mode", "heavy"))
	require.NoError(t, convertCmd.Flags().Set("no-images", "true"))
	require.NoError(t, convertCmd.Flags().Set("ledger", "/tmp/runs.db"))
	t.Cleanup(func() {
		convertOpts = convertFlags{}
		for _, name := range []string{"mode", "no-images", "ledger"} {
			convertCmd.Flags().Lookup(name).Changed = false
		}
	})

	applyConvertFlags(convertCmd, cfg, &convertOpts)
	assert.Equal(t, "heavy", cfg.Mode)
	assert.False(t, cfg.Images)
	assert.Equal(t, 250, cfg.MinChars)
	assert.Equal(t, "sqlite", cfg.Ledger.Driver)
	assert.Equal(t, "/tmp/runs.db", cfg.Ledger.Path)
}

func TestConvertCommandEndToEnd(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	pdftest.Write(t, dir, "scan.pdf", make([]string, 8))

	ui.SetOutput(&bytes.Buffer{}, &bytes.Buffer{})
	t.Cleanup(func() { ui.SetOutput(os.Stdout, os.Stderr) })

	rootCmd.SetArgs([]string{"convert", dir, "4", "--mock", "-o", out, "-L", "error", "--no-color"})
	require.NoError(t, Execute())

	data, err := os.ReadFile(filepath.Join(out, "scan.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "mock marker slice 0-3")
	assert.Contains(t, string(data), "mock marker slice 4-7")

	rootCmd.SetArgs([]string{"convert", dir, "4", "--mock", "--mock-fail", "-o", out, "-L", "error"})
	err = Execute()
	assert.Equal(t, 2, ExitCode(err))

	rootCmd.SetArgs([]string{"convert", filepath.Join(dir, "missing"), "4", "-L", "error"})
	err = Execute()
	assert.Equal(t, 1, ExitCode(err))
}

func TestLogProgressWritesOneLinePerStep(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json", Output: &buf})

	events := make(chan converter.Event, 8)
	events <- converter.Event{Type: converter.EventBatchStart, Total: 1}
	events <- converter.Event{Type: converter.EventDocumentStart, Document: "a.pdf", Index: 1, Total: 1}
	events <- converter.Event{Type: converter.EventPagesProgress, Document: "a.pdf", Engine: "fast", Done: 1, Pages: 2}
	events <- converter.Event{Type: converter.EventPagesProgress, Document: "a.pdf", Engine: "marker", Done: 2, Pages: 2, Payload: "0-1"}
	events <- converter.Event{Type: converter.EventSliceRetry, Document: "a.pdf", Engine: "marker", Payload: "slice=5"}
	close(events)

	logProgress(logger)(events)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], `"message":"document started"`)
	assert.Contains(t, lines[1], `"done":1`)
	assert.Contains(t, lines[1], `"pages":2`)
	assert.NotContains(t, lines[1], `"range"`)
	assert.Contains(t, lines[2], `"range":"0-1"`)
	assert.Contains(t, lines[3], `"retry":"slice=5"`)
}

func TestConvertProgressWithoutTerminalLogs(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	logFile := filepath.Join(t.TempDir(), "run.log")
	pdftest.Write(t, dir, "scan.pdf", make([]string, 4))

	ui.SetOutput(&bytes.Buffer{}, &bytes.Buffer{})
	t.Cleanup(func() { ui.SetOutput(os.Stdout, os.Stderr) })
	require.False(t, ui.IsTerminal())

	rootCmd.SetArgs([]string{"convert", dir, "2", "--mock", "-p", "-o", out, "-L", "info", "--log-json", "--log-file", logFile})
	t.Cleanup(func() {
		for _, name := range []string{"progress", "mock", "out"} {
			convertCmd.Flags().Lookup(name).Changed = false
		}
		convertOpts = convertFlags{}
		for _, name := range []string{"log-json", "log-file"} {
			rootCmd.PersistentFlags().Lookup(name).Changed = false
		}
		logJSON, logFile = false, ""
	})
	require.NoError(t, Execute())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	var progress []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.Contains(line, `"message":"pages converted"`) {
			progress = append(progress, line)
		}
	}
	require.Len(t, progress, 2)
	assert.Contains(t, progress[0], `"range":"0-1"`)
	assert.Contains(t, progress[1], `"range":"2-3"`)
}
