// Package raster wraps the external poppler rasterizer (pdftoppm). It turns
// one PDF page into a PNG page image, or a typed failure. The raw tool errors
// never leave this package.
package raster

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ErrorKind classifies rasterization failures.
type ErrorKind string

const (
	KindPageOutOfRange ErrorKind = "PAGE_OUT_OF_RANGE"
	KindEncrypted      ErrorKind = "ENCRYPTED_DOCUMENT"
	KindCorruptPage    ErrorKind = "CORRUPT_PAGE"
	KindRasterFailed   ErrorKind = "RASTER_FAILED"
)

// Error is the typed rasterization failure for a single page.
type Error struct {
	Kind      ErrorKind
	PageIndex int
	Detail    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("rasterize page %d (%s): %s", e.PageIndex, e.Kind, e.Detail)
}

// PageImage is the rasterized bitmap of one page. Owned by the worker
// processing that page; call Release once OCR is done with it.
type PageImage struct {
	PageIndex int
	PNG       []byte
	Width     int
	Height    int
	DPI       int
}

// Release drops the pixel data so the buffer can be collected while the
// page outcome lives on.
func (p *PageImage) Release() {
	p.PNG = nil
}

// Config holds the rasterizer tool configuration.
type Config struct {
	Pdftoppm string // binary name or absolute path; if empty -> "pdftoppm"
}

// Rasterizer shells out to pdftoppm for one page at a time.
type Rasterizer struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Rasterizer {
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Rasterizer{cfg: cfg, runner: ExecRunner{}, logger: logger}
}

// NewWithRunner is the test seam: same as New but with an explicit Runner.
func NewWithRunner(cfg Config, runner Runner, logger *slog.Logger) *Rasterizer {
	r := New(cfg, logger)
	r.runner = runner
	return r
}

// Rasterize renders page pageIndex (zero-based) of the PDF at pdfPath to a PNG
// at the given DPI. pageCount bounds the index check; failures come back as
// *Error with a closed Kind set.
func (r *Rasterizer) Rasterize(ctx context.Context, pdfPath string, pageCount, pageIndex, dpi int) (*PageImage, error) {
	if pageIndex < 0 || pageIndex >= pageCount {
		return nil, &Error{
			Kind:      KindPageOutOfRange,
			PageIndex: pageIndex,
			Detail:    fmt.Sprintf("index %d outside [0,%d)", pageIndex, pageCount),
		}
	}

	tmpDir, err := os.MkdirTemp("", "dl-pp-*")
	if err != nil {
		return nil, &Error{Kind: KindRasterFailed, PageIndex: pageIndex, Detail: err.Error()}
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			r.logger.Warn("raster.tmpdir.cleanup_failed", "dir", tmpDir, "error", err)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	pageNr := strconv.Itoa(pageIndex + 1) // pdftoppm pages are 1-based

	// pdftoppm -f N -l N -r <dpi> -png <in.pdf> <tmp/page>
	_, errb, err := r.runner.Run(ctx, r.cfg.Pdftoppm,
		"-f", pageNr, "-l", pageNr,
		"-r", strconv.Itoa(dpi),
		"-png", pdfPath, prefix)
	if err != nil {
		return nil, classifyToolError(pageIndex, string(errb), err)
	}

	// pdftoppm names output page-<N>.png with zero padding that depends on
	// the document's page count, so glob instead of guessing.
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return nil, &Error{
			Kind:      KindCorruptPage,
			PageIndex: pageIndex,
			Detail:    "pdftoppm produced no image for page",
		}
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		return nil, &Error{Kind: KindRasterFailed, PageIndex: pageIndex, Detail: err.Error()}
	}

	img := &PageImage{PageIndex: pageIndex, PNG: data, DPI: dpi}
	if cfgImg, err := png.DecodeConfig(bytes.NewReader(data)); err == nil {
		img.Width = cfgImg.Width
		img.Height = cfgImg.Height
	}

	r.logger.Debug("raster.page.ok",
		"page", pageIndex,
		"dpi", dpi,
		"bytes", len(data),
		"width", img.Width,
		"height", img.Height,
	)
	return img, nil
}

// classifyToolError folds pdftoppm's stderr into the error taxonomy. The tool
// reports per-page decode problems as "Syntax Error" lines and encryption as
// password errors.
func classifyToolError(pageIndex int, stderr string, err error) *Error {
	detail := strings.TrimSpace(stderr)
	if detail == "" {
		detail = err.Error()
	}
	lower := strings.ToLower(detail)
	switch {
	case strings.Contains(lower, "password") || strings.Contains(lower, "encrypted"):
		return &Error{Kind: KindEncrypted, PageIndex: pageIndex, Detail: detail}
	case strings.Contains(lower, "syntax error") || strings.Contains(lower, "may not be a pdf") ||
		strings.Contains(lower, "couldn't read") || strings.Contains(lower, "corrupt"):
		return &Error{Kind: KindCorruptPage, PageIndex: pageIndex, Detail: detail}
	default:
		return &Error{Kind: KindRasterFailed, PageIndex: pageIndex, Detail: detail}
	}
}
