package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spherical/smartpdf/internal/domain"
)

// CheckFile reports whether path names a readable regular file with a .pdf
// extension (any case). It does not parse the file.
func CheckFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return domain.ValidationError("empty document path", nil)
	}

	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		return domain.ValidationError(fmt.Sprintf("no such document: %s", path), err)
	case err != nil:
		return domain.ValidationError(fmt.Sprintf("cannot stat %s", path), err)
	case info.IsDir():
		return domain.ValidationError(fmt.Sprintf("%s is a directory", path), nil)
	}

	if ext := filepath.Ext(path); !strings.EqualFold(ext, ".pdf") {
		return domain.ValidationError(fmt.Sprintf("%s does not have a .pdf extension", path), nil)
	}

	f, err := os.Open(path)
	if err != nil {
		return domain.ValidationError(fmt.Sprintf("cannot read %s", path), err)
	}
	return f.Close()
}

// CheckRange reports whether r lies within a document of total pages.
func CheckRange(r domain.PageRange, total int) error {
	if r.Start < 0 || r.End < r.Start || r.End >= total {
		return domain.ValidationError(fmt.Sprintf("page range %s outside document of %d pages", r, total), nil)
	}
	return nil
}
