// Package export assembles rectified pages into PDF documents and pulls
// page images back out of scanned PDFs.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
)

// ErrNoPages is returned when there is nothing to export.
var ErrNoPages = errors.New("no pages to export")

// WritePDF writes one page per image, in order, to out. An existing file at
// out is replaced.
func WritePDF(images []string, out string) error {
	if len(images) == 0 {
		return ErrNoPages
	}
	for _, p := range images {
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("cannot access page %s: %w", p, err)
		}
		if info.IsDir() {
			return fmt.Errorf("page %s is a directory", p)
		}
	}

	if dir := filepath.Dir(out); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// pdfcpu appends to an existing file, so build into a fresh temp file.
	tmp := out + ".partial"
	_ = os.Remove(tmp)
	if err := api.ImportImagesFile(images, tmp, pdfcpu.DefaultImportConfig(), nil); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to import pages: %w", err)
	}
	if err := os.Rename(tmp, out); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	return nil
}

// PageCount returns the number of pages in the PDF at path.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to count pages of %s: %w", path, err)
	}
	return n, nil
}
