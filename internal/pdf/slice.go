package pdf

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/spherical/smartpdf/internal/domain"
)

func relaxedConfig() *model.Configuration {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return cfg
}

// ExtractRange writes the zero-based inclusive range r of src to dst as a
// standalone PDF.
func ExtractRange(src, dst string, r domain.PageRange) error {
	total, err := api.PageCountFile(src)
	if err != nil {
		return domain.UnreadableDocumentError(src, err)
	}
	if err := CheckRange(r, total); err != nil {
		return err
	}
	selection := []string{fmt.Sprintf("%d-%d", r.Start+1, r.End+1)}
	if err := api.TrimFile(src, dst, selection, relaxedConfig()); err != nil {
		return domain.IOError(fmt.Sprintf("extract pages %s from %s", r, src), err)
	}
	return nil
}

// Fingerprint returns the hex sha256 of the file contents.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", domain.IOError("open for fingerprint", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", domain.IOError("hash file", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
