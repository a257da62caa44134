package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spherical/smartpdf/internal/domain"
)

// scratchDir returns the task's work directory, creating it when needed.
func scratchDir(task domain.ConversionTask) (string, error) {
	dir := task.WorkDir
	if dir == "" {
		return "", domain.ValidationError("heavy engines require a work directory", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", domain.IOError("create work directory", err)
	}
	return dir, nil
}

// writeArtifact stores content as <dir>/<stem>.md.
func writeArtifact(dir string, doc *domain.Document, content string) (string, error) {
	path := filepath.Join(dir, doc.Stem()+".md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", domain.IOError(fmt.Sprintf("write %s", path), err)
	}
	return path, nil
}

// newestMarkdown finds the most recently modified .md file under dir.
func newestMarkdown(dir string) (string, error) {
	var newest string
	var newestMod time.Time

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".md" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest, newestMod = path, info.ModTime()
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if newest == "" {
		return "", fmt.Errorf("no markdown produced under %s", dir)
	}
	return newest, nil
}

// collectAssets lists the non-Markdown files under dir, skipping skip.
func collectAssets(dir, skip string) ([]string, error) {
	var assets []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path == skip || filepath.Ext(path) == ".md" {
			return nil
		}
		assets = append(assets, path)
		return nil
	})
	if err != nil {
		return nil, domain.IOError(fmt.Sprintf("list assets under %s", dir), err)
	}
	return assets, nil
}

// failed builds an ordinary failure outcome.
func failed(status int, format string, args ...interface{}) domain.Outcome {
	return domain.Outcome{ExitStatus: status, Detail: fmt.Sprintf(format, args...)}
}

// pageBounds resolves a task's range against a page count.
func pageBounds(task domain.ConversionTask, total int) domain.PageRange {
	if task.Range == nil {
		return domain.PageRange{Start: 0, End: total - 1}
	}
	r := *task.Range
	if r.End > total-1 {
		r.End = total - 1
	}
	return r
}
