package slicer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/spherical/smartpdf/internal/domain"
)

// Sink receives successful slice artifacts in cursor order, together with
// the files each artifact references.
type Sink interface {
	Append(artifactPath string, assets ...string) error
}

// Assembler concatenates slice artifacts into one output file, separated by
// a blank line. The file is truncated by the first Append of a run, so a
// failed run leaves the slices that did succeed.
type Assembler struct {
	mu      sync.Mutex
	path    string
	written int
}

// NewAssembler targets the given output path.
func NewAssembler(path string) *Assembler {
	return &Assembler{path: path}
}

// Path returns the output file path.
func (a *Assembler) Path() string {
	return a.path
}

// Written returns the number of artifacts appended so far.
func (a *Assembler) Written() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.written
}

// Append copies the artifact's contents onto the output file. Assets are
// copied into the output directory at their path relative to the artifact,
// so the links in the Markdown keep resolving.
func (a *Assembler) Append(artifactPath string, assets ...string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := os.ReadFile(artifactPath)
	if err != nil {
		return domain.IOError(fmt.Sprintf("read slice artifact %s", artifactPath), err)
	}

	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return domain.IOError("create output directory", err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if a.written == 0 {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}
	f, err := os.OpenFile(a.path, flags, 0o644)
	if err != nil {
		return domain.IOError(fmt.Sprintf("open output %s", a.path), err)
	}
	defer f.Close()

	if a.written > 0 {
		if _, err := f.WriteString("\n\n"); err != nil {
			return domain.IOError("write separator", err)
		}
	}
	if _, err := f.Write(data); err != nil {
		return domain.IOError(fmt.Sprintf("write output %s", a.path), err)
	}

	for _, asset := range assets {
		if err := copyAsset(filepath.Dir(artifactPath), asset, filepath.Dir(a.path)); err != nil {
			return err
		}
	}

	a.written++
	return nil
}

func copyAsset(srcRoot, src, dstRoot string) error {
	rel, err := filepath.Rel(srcRoot, src)
	if err != nil || !filepath.IsLocal(rel) {
		rel = filepath.Base(src)
	}
	dst := filepath.Join(dstRoot, rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return domain.IOError(fmt.Sprintf("create asset directory for %s", rel), err)
	}

	in, err := os.Open(src)
	if err != nil {
		return domain.IOError(fmt.Sprintf("open asset %s", src), err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return domain.IOError(fmt.Sprintf("create asset %s", dst), err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return domain.IOError(fmt.Sprintf("copy asset %s", rel), err)
	}
	return out.Close()
}
