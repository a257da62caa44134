// Package scan discovers the PDF files a batch should convert.
package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/spherical/smartpdf/internal/domain"
)

// Options filters directory scans. Patterns match the slash-separated path
// relative to the root, or the base name. A * also matches /.
type Options struct {
	Include []string
	Exclude []string
}

// Discover returns the PDFs to process for root. A file is returned as is,
// whatever its extension. A directory is walked recursively for *.pdf files
// (case-insensitive), filtered, and sorted.
func Discover(root string, opts Options) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrInputNotFound, root)
		}
		return nil, domain.IOError(fmt.Sprintf("stat %s", root), err)
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	include, err := compile(opts.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := compile(opts.Exclude)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if len(include) > 0 && !matchAny(include, rel) {
			return nil
		}
		if matchAny(exclude, rel) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, domain.IOError(fmt.Sprintf("scan %s", root), err)
	}

	sort.Strings(files)
	return files, nil
}

func compile(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(p)
		if err != nil {
			return nil, domain.ValidationError(fmt.Sprintf("invalid pattern %q", p), err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

func matchAny(globs []glob.Glob, rel string) bool {
	base := rel
	if i := strings.LastIndex(rel, "/"); i >= 0 {
		base = rel[i+1:]
	}
	for _, g := range globs {
		if g.Match(rel) || g.Match(base) {
			return true
		}
	}
	return false
}
