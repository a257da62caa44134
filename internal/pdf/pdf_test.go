package pdf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/smartpdf/internal/domain"
	"github.com/spherical/smartpdf/internal/pdf/pdftest"
)

func TestOpenerReadsPagesAndText(t *testing.T) {
	path := pdftest.Write(t, t.TempDir(), "three.pdf", []string{"Alpha page", "", "Gamma page"})

	src, err := NewOpener().Open(path)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, 3, src.PageCount())

	text, err := src.PageText(0)
	require.NoError(t, err)
	assert.Contains(t, text, "Alpha page")

	blank, err := src.PageText(1)
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(blank))

	_, err = src.PageText(3)
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
}

func TestOpenerRendersPage(t *testing.T) {
	path := pdftest.Write(t, t.TempDir(), "one.pdf", []string{"Render me"})

	doc, err := NewOpener().OpenDocument(path)
	require.NoError(t, err)
	defer doc.Close()

	img, err := doc.PageImage(0, 72)
	require.NoError(t, err)
	assert.Equal(t, 612, img.Bounds().Dx())
}

func TestOpenerUnreadable(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.pdf")
	require.NoError(t, os.WriteFile(garbage, []byte("this is not a pdf"), 0o644))

	tests := []struct {
		name string
		path string
	}{
		{"garbage", garbage},
		{"missing", filepath.Join(dir, "missing.pdf")},
		{"directory", dir},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOpener().Open(tt.path)
			require.Error(t, err)
			assert.True(t, domain.IsType(err, domain.ErrorTypeUnreadable))
		})
	}
}

func TestCountPages(t *testing.T) {
	path := pdftest.Write(t, t.TempDir(), "five.pdf", pdftest.Repeat("x", 5))
	n, err := CountPages(NewOpener(), path)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestCheckFile(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("hi"), 0o644))

	assert.Error(t, CheckFile(""))
	assert.Error(t, CheckFile(txt))
	assert.Error(t, CheckFile(dir))
	assert.NoError(t, CheckFile(pdftest.Write(t, dir, "ok.PDF", []string{"a"})))
}

func TestCheckRange(t *testing.T) {
	assert.NoError(t, CheckRange(domain.PageRange{Start: 0, End: 9}, 10))
	assert.Error(t, CheckRange(domain.PageRange{Start: 5, End: 10}, 10))
	assert.Error(t, CheckRange(domain.PageRange{Start: 4, End: 3}, 10))
	assert.Error(t, CheckRange(domain.PageRange{Start: -1, End: 3}, 10))
}

func TestExtractRange(t *testing.T) {
	dir := t.TempDir()
	src := pdftest.Write(t, dir, "src.pdf", []string{"p0", "p1", "p2", "p3", "p4", "p5"})
	dst := filepath.Join(dir, "slice.pdf")

	require.NoError(t, ExtractRange(src, dst, domain.PageRange{Start: 2, End: 4}))

	doc, err := NewOpener().OpenDocument(dst)
	require.NoError(t, err)
	defer doc.Close()
	require.Equal(t, 3, doc.PageCount())

	first, err := doc.PageText(0)
	require.NoError(t, err)
	assert.Contains(t, first, "p2")

	err = ExtractRange(src, dst, domain.PageRange{Start: 4, End: 8})
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
}

func TestFingerprintStable(t *testing.T) {
	dir := t.TempDir()
	a := pdftest.Write(t, dir, "a.pdf", []string{"same"})
	b := pdftest.Write(t, dir, "b.pdf", []string{"same"})
	c := pdftest.Write(t, dir, "c.pdf", []string{"different"})

	fa, err := Fingerprint(a)
	require.NoError(t, err)
	fb, err := Fingerprint(b)
	require.NoError(t, err)
	fc, err := Fingerprint(c)
	require.NoError(t, err)

	assert.Len(t, fa, 64)
	assert.Equal(t, fa, fb)
	assert.NotEqual(t, fa, fc)
}
