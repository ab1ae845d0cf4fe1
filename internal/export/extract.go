package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/MeKo-Tech/scanwarp/internal/codec"
)

// Page is one embedded image of a PDF page, still encoded.
type Page struct {
	Number int
	Index  int
	Ext    string
	Data   []byte
}

// ExtractPages returns the embedded images of the PDF at path, ordered by
// page. pageRange uses "1-3,5" syntax; empty selects every page.
func ExtractPages(path, pageRange string) ([]Page, error) {
	pageNumbers, err := ParsePageRange(pageRange)
	if err != nil {
		return nil, fmt.Errorf("invalid page range %q: %w", pageRange, err)
	}

	tempDir, err := os.MkdirTemp("", "scanwarp-extract-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	var selected []string
	for _, n := range pageNumbers {
		selected = append(selected, strconv.Itoa(n))
	}
	if err := api.ExtractImagesFile(path, tempDir, selected, nil); err != nil {
		return nil, fmt.Errorf("failed to extract images from PDF: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return collectPages(tempDir, base)
}

// collectPages reads every extracted image in dir.
func collectPages(dir, base string) ([]Page, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var pages []Page
	for _, e := range entries {
		if e.IsDir() || !codec.IsSupported(e.Name()) {
			continue
		}
		num, err := pageFromFilename(base, e.Name())
		if err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		pages = append(pages, Page{
			Number: num,
			Ext:    strings.ToLower(filepath.Ext(e.Name())),
			Data:   data,
		})
	}

	sort.SliceStable(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })
	for i := range pages {
		if i > 0 && pages[i].Number == pages[i-1].Number {
			pages[i].Index = pages[i-1].Index + 1
		}
	}
	return pages, nil
}

// pageFromFilename reads the page number pdfcpu encodes in an extracted
// file name: the first numeric field after the source's base name.
func pageFromFilename(base, filename string) (int, error) {
	name := strings.TrimSuffix(filename, filepath.Ext(filename))
	name = strings.TrimPrefix(name, base+"_")
	for _, field := range strings.Split(name, "_") {
		if n, err := strconv.Atoi(field); err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, errors.New("no page number in " + filename)
}

// ParsePageRange parses a page range string like "1-5" or "1,3,5".
// An empty string means every page and yields nil.
func ParsePageRange(pageRange string) ([]int, error) {
	if strings.TrimSpace(pageRange) == "" {
		return nil, nil
	}

	var pages []int
	for _, part := range strings.Split(pageRange, ",") {
		tokenPages, err := parseRangeToken(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		pages = append(pages, tokenPages...)
	}
	return pages, nil
}

// parseRangeToken parses either a single page token (e.g., "3") or a range token (e.g., "1-5").
func parseRangeToken(part string) ([]int, error) {
	if before, after, ok := strings.Cut(part, "-"); ok {
		start, err := strconv.Atoi(strings.TrimSpace(before))
		if err != nil || start < 1 {
			return nil, fmt.Errorf("invalid start page: %s", before)
		}
		end, err := strconv.Atoi(strings.TrimSpace(after))
		if err != nil {
			return nil, fmt.Errorf("invalid end page: %s", after)
		}
		if start > end {
			return nil, fmt.Errorf("start page %d greater than end page %d", start, end)
		}
		out := make([]int, 0, end-start+1)
		for i := start; i <= end; i++ {
			out = append(out, i)
		}
		return out, nil
	}
	page, err := strconv.Atoi(part)
	if err != nil || page < 1 {
		return nil, fmt.Errorf("invalid page number: %s", part)
	}
	return []int{page}, nil
}
