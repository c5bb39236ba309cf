// Package pipeline is the processing core: the bounded page worker pool, the
// result assembler and the request coordinator. Adapters return typed
// failures, the pool converts them to page results, and only document-level
// rejections surface as errors.
package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/doculens/doculens/constants"
	"github.com/doculens/doculens/internal/common"
	"github.com/doculens/doculens/internal/ocr"
)

// Options is the per-request configuration surface. Zero values take the
// documented defaults; out-of-range values are refused at ingestion.
type Options struct {
	TargetDPI int `json:"target_dpi"` // default 300

	// AcceptThreshold is the inclusive Recognized/Degraded boundary,
	// default 0.60. Because zero selects the default, an exact 0.0
	// threshold cannot be requested; the closest is a small positive
	// value, which still degrades pages at confidence 0.
	AcceptThreshold float64 `json:"accept_threshold"`

	MaxParallelPages int           `json:"max_parallel_pages"` // default 4
	PerPageTimeout   time.Duration `json:"per_page_timeout"`   // default 90s
	LanguageHint     string        `json:"language_hint"`      // default "eng"

	// PreferEmbeddedText lets pages with clean content-stream text bypass
	// raster+OCR. Default true; DisableEmbeddedText flips it off because the
	// zero value of a bool cannot mean "on".
	DisableEmbeddedText bool `json:"disable_embedded_text,omitempty"`
}

// Normalize fills defaults in place.
func (o *Options) Normalize() {
	if o.TargetDPI <= 0 {
		o.TargetDPI = 300
	}
	if o.AcceptThreshold <= 0 {
		o.AcceptThreshold = 0.60
	}
	if o.MaxParallelPages <= 0 {
		o.MaxParallelPages = 4
	}
	if o.PerPageTimeout <= 0 {
		o.PerPageTimeout = 90 * time.Second
	}
	if o.LanguageHint == "" {
		o.LanguageHint = "eng"
	}
}

// Validate refuses out-of-range options. Called once at ingestion; the core
// reads no configuration from anywhere else.
func (o Options) Validate() error {
	if o.TargetDPI < 0 || o.TargetDPI > 1200 {
		return common.NewAppError("OPTIONS_ERROR", fmt.Sprintf("target_dpi %d out of range", o.TargetDPI), common.ErrInvalidInput)
	}
	if o.AcceptThreshold < 0 || o.AcceptThreshold > 1 {
		return common.NewAppError("OPTIONS_ERROR", fmt.Sprintf("accept_threshold %v outside [0,1]", o.AcceptThreshold), common.ErrInvalidInput)
	}
	if o.MaxParallelPages < 0 || o.MaxParallelPages > 128 {
		return common.NewAppError("OPTIONS_ERROR", fmt.Sprintf("max_parallel_pages %d out of range", o.MaxParallelPages), common.ErrInvalidInput)
	}
	if o.PerPageTimeout < 0 {
		return common.NewAppError("OPTIONS_ERROR", "per_page_timeout must not be negative", common.ErrInvalidInput)
	}
	return nil
}

// PageTask is one page's unit of work. It holds a read-only view of the
// document, never ownership.
type PageTask struct {
	PageIndex int
	PDFPath   string
	PageCount int
}

// PageSource records where a page's text came from.
type PageSource string

const (
	SourceOCR      PageSource = "ocr"
	SourceEmbedded PageSource = "embedded"
)

// PageResult is the outcome of processing one page. Exactly one exists per
// page index; immutable once produced.
type PageResult struct {
	PageIndex      int                  `json:"page_index"`
	Status         constants.PageStatus `json:"status"`
	Text           string               `json:"text,omitempty"`
	Spans          []ocr.TextSpan       `json:"spans,omitempty"`
	MeanConfidence float64              `json:"mean_confidence"`
	Source         PageSource           `json:"source,omitempty"`
	Reason         string               `json:"reason,omitempty"`     // set for Degraded
	ErrorKind      string               `json:"error_kind,omitempty"` // set for Failed/Skipped
	Detail         string               `json:"detail,omitempty"`
	Elapsed        time.Duration        `json:"elapsed_ns,omitempty"`
}

// Usable reports whether the page produced text a caller may consume.
func (p PageResult) Usable() bool {
	return p.Status == constants.PageRecognized || p.Status == constants.PageDegraded
}

// FailedPage pairs a failed index with its error kind for the diagnostic
// summary.
type FailedPage struct {
	PageIndex int    `json:"page_index"`
	ErrorKind string `json:"error_kind"`
}

// Diagnostics is the per-request report callers use to decide whether to
// accept a partial document or re-request specific pages.
type Diagnostics struct {
	Recognized  int          `json:"recognized"`
	Degraded    int          `json:"degraded"`
	Failed      int          `json:"failed"`
	Skipped     int          `json:"skipped"`
	FailedPages []FailedPage `json:"failed_pages,omitempty"`
}

// DocumentResult is the terminal artifact of one request.
type DocumentResult struct {
	RequestID     uuid.UUID               `json:"request_id"`
	Name          string                  `json:"name"`
	PageCount     int                     `json:"page_count"`
	Pages         []PageResult            `json:"pages"`
	OverallStatus constants.OverallStatus `json:"overall_status"`
	Diagnostics   Diagnostics             `json:"diagnostics"`
	Elapsed       time.Duration           `json:"elapsed_ns"`
}

// Text linearizes the usable pages in order, separated by form feeds so page
// boundaries survive concatenation.
func (r *DocumentResult) Text() string {
	var b strings.Builder
	for _, p := range r.Pages {
		if !p.Usable() {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n")
		}
		b.WriteString(p.Text)
	}
	return b.String()
}
