package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/smartpdf/internal/config"
	"github.com/spherical/smartpdf/internal/domain"
	"github.com/spherical/smartpdf/internal/pdf"
	"github.com/spherical/smartpdf/internal/pdf/pdftest"
)

// writeScript installs an executable shell script and returns its path.
func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func heavyTask(t *testing.T, docPath string, r *domain.PageRange) domain.ConversionTask {
	t.Helper()
	doc := domain.NewDocument(docPath, t.TempDir())
	return domain.ConversionTask{
		Document:  doc,
		Range:     r,
		OutputDir: doc.OutputDir,
		WorkDir:   t.TempDir(),
		Options:   domain.ConversionOptions{LowResDPI: 96, HighResDPI: 72},
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewMock("", false, 0)))
	require.NoError(t, r.RegisterAs("alias", NewMock("", false, 0)))

	err := r.Register(NewMock("", false, 0))
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))

	e, err := r.Get("mock")
	require.NoError(t, err)
	assert.Equal(t, domain.KindHeavy, e.Kind())

	_, err = r.Get("nope")
	assert.ErrorIs(t, err, domain.ErrUnknownEngine)
	assert.Equal(t, "unknown engine: nope", err.Error())

	assert.Equal(t, []string{"alias", "mock"}, r.Names())
}

func TestDefaultRegistry(t *testing.T) {
	cfg := config.DefaultConfig()
	r, err := NewDefaultRegistry(cfg, pdf.NewOpener(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"fast", "marker", "mock", "ocrmypdf", "poppler", "tesseract", "vision"}, r.Names())

	fast, err := r.Get("fast")
	require.NoError(t, err)
	assert.Equal(t, domain.KindText, fast.Kind())

	probes := r.Probe()
	assert.NoError(t, probes["mock"])
	assert.Error(t, probes["vision"])
}

func TestDefaultRegistryMockTakesMarkerName(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Mock = true
	r, err := NewDefaultRegistry(cfg, pdf.NewOpener(), nil)
	require.NoError(t, err)

	marker, err := r.Get("marker")
	require.NoError(t, err)

	src := pdftest.Write(t, t.TempDir(), "scan.pdf", pdftest.Repeat("", 3))
	out, err := marker.Convert(context.Background(), heavyTask(t, src, nil))
	require.NoError(t, err)
	require.True(t, out.Succeeded)
	assert.Contains(t, readFile(t, out.ArtifactPath), "mock marker single-pass")
}

func TestFastEngineFormats(t *testing.T) {
	src := pdftest.Write(t, t.TempDir(), "notes.pdf", []string{"First page", "Second page"})

	tests := []struct {
		format domain.OutputFormat
		ext    string
		check  func(t *testing.T, body string)
	}{
		{domain.FormatMarkdown, ".md", func(t *testing.T, body string) {
			assert.Contains(t, body, "First page")
			assert.Contains(t, body, "\n\n")
			assert.Less(t, strings.Index(body, "First"), strings.Index(body, "Second"))
		}},
		{domain.FormatText, ".txt", func(t *testing.T, body string) {
			assert.Contains(t, body, "Second page")
		}},
		{domain.FormatHTML, ".html", func(t *testing.T, body string) {
			assert.Contains(t, body, "<p>")
		}},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			doc := domain.NewDocument(src, t.TempDir())
			var progress []int
			task := domain.ConversionTask{
				Document:  doc,
				OutputDir: doc.OutputDir,
				Options: domain.ConversionOptions{
					Format:   tt.format,
					Progress: func(done, total int) { progress = append(progress, done) },
				},
			}

			out, err := NewFast(pdf.NewOpener(), nil).Convert(context.Background(), task)
			require.NoError(t, err)
			assert.True(t, out.Succeeded)
			assert.Equal(t, filepath.Join(doc.OutputDir, "notes"+tt.ext), out.ArtifactPath)
			assert.Equal(t, []int{1, 2}, progress)
			tt.check(t, readFile(t, out.ArtifactPath))
		})
	}
}

func TestFastEngineIsIdempotent(t *testing.T) {
	src := pdftest.Write(t, t.TempDir(), "same.pdf", []string{"Stable text"})
	doc := domain.NewDocument(src, t.TempDir())
	task := domain.ConversionTask{Document: doc, OutputDir: doc.OutputDir}
	engine := NewFast(pdf.NewOpener(), nil)

	first, err := engine.Convert(context.Background(), task)
	require.NoError(t, err)
	a := readFile(t, first.ArtifactPath)

	second, err := engine.Convert(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, a, readFile(t, second.ArtifactPath))
}

func TestFastEngineErrors(t *testing.T) {
	engine := NewFast(pdf.NewOpener(), nil)

	src := pdftest.Write(t, t.TempDir(), "a.pdf", []string{"x"})
	task := heavyTask(t, src, &domain.PageRange{Start: 0, End: 0})
	_, err := engine.Convert(context.Background(), task)
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))

	bad := filepath.Join(t.TempDir(), "bad.pdf")
	require.NoError(t, os.WriteFile(bad, []byte("garbage"), 0o644))
	_, err = engine.Convert(context.Background(), heavyTask(t, bad, nil))
	assert.True(t, domain.IsType(err, domain.ErrorTypeUnreadable))
}

func TestMockEngine(t *testing.T) {
	task := heavyTask(t, "/data/in/book.pdf", &domain.PageRange{Start: 0, End: 9})

	out, err := NewMock("", false, 0).Convert(context.Background(), task)
	require.NoError(t, err)
	require.True(t, out.Succeeded)
	assert.Equal(t, "# MOCK MARKER OUTPUT\nmock marker slice 0-9\nSource: /data/in/book.pdf\n", readFile(t, out.ArtifactPath))

	out, err = NewMock("", false, 5).Convert(context.Background(), task)
	require.NoError(t, err)
	assert.False(t, out.Succeeded)
	assert.Equal(t, 1, out.ExitStatus)

	out, err = NewMock("", true, 0).Convert(context.Background(), heavyTask(t, "/data/in/book.pdf", nil))
	require.NoError(t, err)
	assert.False(t, out.Succeeded)

	out, err = NewMock("", false, 5).Convert(context.Background(), heavyTask(t, "/data/in/book.pdf", nil))
	require.NoError(t, err)
	assert.True(t, out.Succeeded, "slice limit does not apply to single pass")
}

func TestMarkerArgs(t *testing.T) {
	m := NewMarker(config.CommandConfig{Args: []string{"--use_llm"}}, nil)

	task := heavyTask(t, "/in/a.pdf", &domain.PageRange{Start: 10, End: 19})
	assert.Equal(t, []string{
		"/in/a.pdf", "--output_format", "markdown", "--disable_image_extraction",
		"--page_range", "10-19", "--output_dir", "/out",
		"--lowres_image_dpi", "96", "--highres_image_dpi", "72", "--use_llm",
	}, m.Args(task, "/out"))

	task = heavyTask(t, "/in/a.pdf", nil)
	task.Options.ImagesEnabled = true
	args := m.Args(task, "/out")
	assert.NotContains(t, args, "--disable_image_extraction")
	assert.Contains(t, args, "0-999999")
}

func TestMarkerRunsSubprocess(t *testing.T) {
	// Mimics marker: writes <output_dir>/<stem>/<stem>.md.
	script := writeScript(t, "marker_single", `
src="$1"; out=""; range=""
while [ $# -gt 0 ]; do
  case "$1" in
    --output_dir) out="$2"; shift ;;
    --page_range) range="$2"; shift ;;
  esac
  shift
done
stem=$(basename "$src" .pdf)
mkdir -p "$out/$stem"
printf 'converted %s' "$range" > "$out/$stem/$stem.md"
`)

	m := NewMarker(config.CommandConfig{Command: script}, nil)
	require.NoError(t, m.Available())

	out, err := m.Convert(context.Background(), heavyTask(t, "/in/report.pdf", &domain.PageRange{Start: 5, End: 9}))
	require.NoError(t, err)
	require.True(t, out.Succeeded, out.Detail)
	assert.Equal(t, "converted 5-9", readFile(t, out.ArtifactPath))
}

func TestMarkerReportsImagesAsAssets(t *testing.T) {
	script := writeScript(t, "marker_single", `
src="$1"; out=""
while [ $# -gt 0 ]; do
  case "$1" in
    --output_dir) out="$2"; shift ;;
  esac
  shift
done
stem=$(basename "$src" .pdf)
mkdir -p "$out/$stem"
printf 'jpeg' > "$out/$stem/_page_0_Picture_1.jpeg"
printf '{}' > "$out/$stem/${stem}_meta.json"
printf '![](_page_0_Picture_1.jpeg)' > "$out/$stem/$stem.md"
`)
	m := NewMarker(config.CommandConfig{Command: script}, nil)

	task := heavyTask(t, "/in/report.pdf", nil)
	out, err := m.Convert(context.Background(), task)
	require.NoError(t, err)
	require.True(t, out.Succeeded, out.Detail)
	assert.Empty(t, out.Assets)

	task = heavyTask(t, "/in/report.pdf", nil)
	task.Options.ImagesEnabled = true
	out, err = m.Convert(context.Background(), task)
	require.NoError(t, err)
	require.True(t, out.Succeeded, out.Detail)
	dir := filepath.Dir(out.ArtifactPath)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "_page_0_Picture_1.jpeg"),
		filepath.Join(dir, "report_meta.json"),
	}, out.Assets)
}

func TestMarkerFailureIsOutcome(t *testing.T) {
	script := writeScript(t, "marker_single", "echo 'CUDA out of memory' >&2\nexit 3\n")

	out, err := NewMarker(config.CommandConfig{Command: script}, nil).
		Convert(context.Background(), heavyTask(t, "/in/a.pdf", nil))
	require.NoError(t, err)
	assert.False(t, out.Succeeded)
	assert.Equal(t, 3, out.ExitStatus)
	assert.Contains(t, out.Detail, "CUDA out of memory")
}

func TestMarkerMissingExecutable(t *testing.T) {
	m := NewMarker(config.CommandConfig{Command: "definitely-not-marker-xyz"}, nil)
	assert.Error(t, m.Available())

	out, err := m.Convert(context.Background(), heavyTask(t, "/in/a.pdf", nil))
	require.NoError(t, err)
	assert.False(t, out.Succeeded)
	assert.Equal(t, exitNotFound, out.ExitStatus)
}

func TestMarkerNoOutputIsFailure(t *testing.T) {
	script := writeScript(t, "marker_single", "exit 0\n")

	out, err := NewMarker(config.CommandConfig{Command: script}, nil).
		Convert(context.Background(), heavyTask(t, "/in/a.pdf", nil))
	require.NoError(t, err)
	assert.False(t, out.Succeeded)
	assert.Contains(t, out.Detail, "no markdown produced")
}

func TestPopplerConvertsHTML(t *testing.T) {
	script := writeScript(t, "pdftohtml", `
printf '<html><body><h1>Title</h1><p>Hello <b>world</b></p></body></html>'
`)
	p := NewPoppler(config.CommandConfig{Command: script}, nil)

	task := heavyTask(t, "/in/doc.pdf", &domain.PageRange{Start: 0, End: 4})
	assert.Equal(t, []string{"-s", "-i", "-noframes", "-stdout", "-f", "1", "-l", "5", "/in/doc.pdf"}, p.Args(task))

	out, err := p.Convert(context.Background(), task)
	require.NoError(t, err)
	require.True(t, out.Succeeded, out.Detail)
	body := readFile(t, out.ArtifactPath)
	assert.Contains(t, body, "# Title")
	assert.Contains(t, body, "Hello **world**")
}

func TestPopplerReportsImagesAsAssets(t *testing.T) {
	script := writeScript(t, "pdftohtml", `
printf 'png' > doc-1_1.png
printf '<html><body><img src="doc-1_1.png"/></body></html>'
`)
	p := NewPoppler(config.CommandConfig{Command: script}, nil)

	task := heavyTask(t, "/in/doc.pdf", nil)
	task.Options.ImagesEnabled = true
	assert.Equal(t, []string{"-s", "-noframes", "-stdout", "/in/doc.pdf"}, p.Args(task))

	out, err := p.Convert(context.Background(), task)
	require.NoError(t, err)
	require.True(t, out.Succeeded, out.Detail)
	assert.Contains(t, readFile(t, out.ArtifactPath), "doc-1_1.png")
	assert.Equal(t, []string{filepath.Join(task.WorkDir, "doc-1_1.png")}, out.Assets)
}

func TestOCRmyPDFReadsTextLayer(t *testing.T) {
	// Stands in for ocrmypdf by copying the input to the output path.
	script := writeScript(t, "ocrmypdf", `
for last; do :; done
in=""; prev=""
for a in "$@"; do in="$prev"; prev="$a"; done
cp "$in" "$last"
`)
	src := pdftest.Write(t, t.TempDir(), "scan.pdf", []string{"zero", "one", "two", "three"})
	o := NewOCRmyPDF(config.CommandConfig{Command: script}, pdf.NewOpener(), nil)

	out, err := o.Convert(context.Background(), heavyTask(t, src, &domain.PageRange{Start: 1, End: 2}))
	require.NoError(t, err)
	require.True(t, out.Succeeded, out.Detail)

	body := readFile(t, out.ArtifactPath)
	assert.Contains(t, body, "one")
	assert.Contains(t, body, "two")
	assert.NotContains(t, body, "zero")
	assert.NotContains(t, body, "three")
}

type fakeRecognizer struct {
	calls int
	err   error
}

func (f *fakeRecognizer) Recognize(_ context.Context, image []byte) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "page text", nil
}

func TestTesseractRendersRange(t *testing.T) {
	src := pdftest.Write(t, t.TempDir(), "scan.pdf", pdftest.Repeat("", 6))
	ocr := &fakeRecognizer{}
	engine := NewTesseractWith(FitzRenderer(pdf.NewOpener()), ocr, nil)

	out, err := engine.Convert(context.Background(), heavyTask(t, src, &domain.PageRange{Start: 2, End: 4}))
	require.NoError(t, err)
	require.True(t, out.Succeeded, out.Detail)
	assert.Equal(t, 3, ocr.calls)
	assert.Equal(t, "page text\n\npage text\n\npage text", readFile(t, out.ArtifactPath))
}

func TestTesseractFailureIsOutcome(t *testing.T) {
	src := pdftest.Write(t, t.TempDir(), "scan.pdf", pdftest.Repeat("", 2))
	engine := NewTesseractWith(FitzRenderer(pdf.NewOpener()), &fakeRecognizer{err: errors.New("no traineddata")}, nil)

	out, err := engine.Convert(context.Background(), heavyTask(t, src, nil))
	require.NoError(t, err)
	assert.False(t, out.Succeeded)
	assert.Contains(t, out.Detail, "no traineddata")
}

type fakeTranscriber struct {
	delay time.Duration
	seen  int
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, jpeg []byte) (string, error) {
	f.seen++
	if len(jpeg) < 2 || jpeg[0] != 0xff || jpeg[1] != 0xd8 {
		return "", errors.New("not a jpeg")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "## Page\n", nil
}

func TestVisionSendsJPEGPages(t *testing.T) {
	src := pdftest.Write(t, t.TempDir(), "brochure.pdf", pdftest.Repeat("", 2))
	tr := &fakeTranscriber{}
	engine := NewVisionWith(FitzRenderer(pdf.NewOpener()), tr, 80, nil)

	out, err := engine.Convert(context.Background(), heavyTask(t, src, nil))
	require.NoError(t, err)
	require.True(t, out.Succeeded, out.Detail)
	assert.Equal(t, 2, tr.seen)
	assert.Equal(t, "## Page\n\n## Page", readFile(t, out.ArtifactPath))
}

func TestVisionWithoutKeyFails(t *testing.T) {
	engine := NewVision(config.VisionConfig{}, FitzRenderer(pdf.NewOpener()), nil)
	assert.Error(t, engine.Available())

	out, err := engine.Convert(context.Background(), heavyTask(t, "/in/a.pdf", nil))
	require.NoError(t, err)
	assert.False(t, out.Succeeded)
}

func TestWithTimeoutMarksTimedOut(t *testing.T) {
	src := pdftest.Write(t, t.TempDir(), "slow.pdf", pdftest.Repeat("", 1))
	slow := NewVisionWith(FitzRenderer(pdf.NewOpener()), &fakeTranscriber{delay: time.Second}, 80, nil)

	out, err := WithTimeout(slow, 50*time.Millisecond).Convert(context.Background(), heavyTask(t, src, nil))
	require.NoError(t, err)
	assert.False(t, out.Succeeded)
	assert.True(t, out.TimedOut)
	assert.NotZero(t, out.ExitStatus)
}

func TestWithTimeoutKillsSubprocess(t *testing.T) {
	script := writeScript(t, "marker_single", "sleep 10\n")
	engine := WithTimeout(NewMarker(config.CommandConfig{Command: script}, nil), 100*time.Millisecond)

	started := time.Now()
	out, err := engine.Convert(context.Background(), heavyTask(t, "/in/a.pdf", nil))
	require.NoError(t, err)
	assert.False(t, out.Succeeded)
	assert.True(t, out.TimedOut)
	assert.Less(t, time.Since(started), 8*time.Second)
}

func TestWithTimeoutIgnoresParentCancellation(t *testing.T) {
	src := pdftest.Write(t, t.TempDir(), "slow.pdf", pdftest.Repeat("", 1))
	slow := NewVisionWith(FitzRenderer(pdf.NewOpener()), &fakeTranscriber{delay: time.Second}, 80, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := WithTimeout(slow, time.Minute).Convert(ctx, heavyTask(t, src, nil))
	require.NoError(t, err)
	assert.False(t, out.Succeeded)
	assert.False(t, out.TimedOut)
}

func TestWithTimeoutDisabled(t *testing.T) {
	m := NewMock("", false, 0)
	assert.Same(t, m, WithTimeout(m, 0))
}

func TestTailBufferKeepsEnd(t *testing.T) {
	b := &tailBuffer{max: 4}
	_, _ = b.Write([]byte("abcdef"))
	_, _ = b.Write([]byte("gh"))
	assert.Equal(t, "efgh", b.String())
}

func TestValidateDPI(t *testing.T) {
	assert.Error(t, validateDPI(-1))
	assert.True(t, domain.IsType(validateDPI(-72), domain.ErrorTypeValidation))
	assert.NoError(t, validateDPI(0))
	assert.NoError(t, validateDPI(300))
}
