package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/smartpdf/internal/domain"
)

func tree(t *testing.T, files ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("%PDF-1.4"), 0o644))
	}
	return root
}

func rel(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, len(paths))
	for i, p := range paths {
		r, err := filepath.Rel(root, p)
		require.NoError(t, err)
		out[i] = filepath.ToSlash(r)
	}
	return out
}

func TestDiscover(t *testing.T) {
	root := tree(t,
		"b.pdf",
		"a.PDF",
		"notes.txt",
		"drafts/c.pdf",
		"drafts/old/d.pdf",
		"scans/e.pdf",
	)

	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{"all pdfs sorted", Options{}, []string{"a.PDF", "b.pdf", "drafts/c.pdf", "drafts/old/d.pdf", "scans/e.pdf"}},
		{"include by base name", Options{Include: []string{"c.pdf", "e.*"}}, []string{"drafts/c.pdf", "scans/e.pdf"}},
		{"include by directory", Options{Include: []string{"drafts/**"}}, []string{"drafts/c.pdf", "drafts/old/d.pdf"}},
		{"single star crosses directories", Options{Include: []string{"drafts/*.pdf"}}, []string{"drafts/c.pdf", "drafts/old/d.pdf"}},
		{"character class", Options{Include: []string{"scans/[a-e].pdf"}}, []string{"scans/e.pdf"}},
		{"exclude", Options{Exclude: []string{"drafts/**", "b.pdf"}}, []string{"a.PDF", "scans/e.pdf"}},
		{"include and exclude", Options{Include: []string{"*.pdf"}, Exclude: []string{"d.pdf"}}, []string{"b.pdf", "drafts/c.pdf", "scans/e.pdf"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Discover(root, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rel(t, root, got))
		})
	}
}

func TestDiscoverSingleFile(t *testing.T) {
	root := tree(t, "report.bin")
	got, err := Discover(filepath.Join(root, "report.bin"), Options{Include: []string{"nothing"}})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestDiscoverMissing(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "missing"), Options{})
	assert.ErrorIs(t, err, domain.ErrInputNotFound)
}

func TestDiscoverEmptyDirectory(t *testing.T) {
	got, err := Discover(t.TempDir(), Options{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDiscoverInvalidPattern(t *testing.T) {
	_, err := Discover(tree(t, "a.pdf"), Options{Include: []string{"[a-"}})
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
}
