package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/doculens/doculens/constants"
	"github.com/doculens/doculens/internal/document"
	"github.com/doculens/doculens/internal/ocr"
	"github.com/doculens/doculens/internal/raster"
)

// PageRasterizer is the pool's view of the rasterization adapter.
type PageRasterizer interface {
	Rasterize(ctx context.Context, pdfPath string, pageCount, pageIndex, dpi int) (*raster.PageImage, error)
}

// PageRecognizer is the pool's view of the OCR adapter.
type PageRecognizer interface {
	Recognize(ctx context.Context, img *raster.PageImage, lang string, timeout time.Duration) (ocr.Recognition, error)
	EngineName() string
}

// Pool runs raster+OCR for every page with bounded parallelism and per-page
// fault isolation. One bad page never cancels or blocks its siblings; the
// pool finishes only when every page has exactly one result.
type Pool struct {
	raster PageRasterizer
	ocr    PageRecognizer
	logger *slog.Logger
}

func NewPool(r PageRasterizer, o PageRecognizer, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{raster: r, ocr: o, logger: logger}
}

// Run processes all pages of doc and returns one PageResult per page index.
// emit, when non-nil, observes each result exactly once as it is produced
// (completion order, not page order). Cancellation via ctx stops scheduling
// of not-yet-started pages — they are recorded as Skipped — while in-flight
// pages run to completion or their own timeout.
func (p *Pool) Run(ctx context.Context, doc *document.Document, pdfPath string, opts Options, emit func(PageResult)) []PageResult {
	results := make([]PageResult, doc.PageCount)

	var emitMu sync.Mutex
	record := func(res PageResult) {
		results[res.PageIndex] = res
		if emit != nil {
			emitMu.Lock()
			emit(res)
			emitMu.Unlock()
		}
	}

	var g errgroup.Group
	g.SetLimit(opts.MaxParallelPages)

	skippedFrom := -1
	for i := 0; i < doc.PageCount; i++ {
		// Cancellation is checked between dispatches only; a page already
		// handed to the group runs to completion.
		if ctx.Err() != nil {
			skippedFrom = i
			break
		}
		idx := i
		g.Go(func() error {
			// A page still queued behind the limit when cancellation
			// arrived is skipped, not launched.
			if ctx.Err() != nil {
				record(skippedResult(idx))
				return nil
			}
			record(p.processPage(ctx, doc, pdfPath, idx, opts))
			return nil
		})
	}
	_ = g.Wait()

	if skippedFrom >= 0 {
		for i := skippedFrom; i < doc.PageCount; i++ {
			record(skippedResult(i))
		}
		p.logger.Info("pool.run.canceled",
			"doc_id", doc.ID,
			"completed", skippedFrom,
			"skipped", doc.PageCount-skippedFrom,
		)
	}
	return results
}

func skippedResult(pageIndex int) PageResult {
	return PageResult{
		PageIndex: pageIndex,
		Status:    constants.PageSkipped,
		ErrorKind: "NOT_PROCESSED",
		Detail:    "request canceled before page was scheduled",
	}
}

// processPage runs the per-page pipeline: embedded-text fast path, then
// raster, then OCR, then threshold classification. Every failure is folded
// into a Failed result; nothing escapes as an error.
func (p *Pool) processPage(ctx context.Context, doc *document.Document, pdfPath string, pageIndex int, opts Options) PageResult {
	start := time.Now()

	if !opts.DisableEmbeddedText {
		if text, ok := doc.UsableEmbeddedText(pageIndex); ok {
			p.logger.Debug("pool.page.embedded", "doc_id", doc.ID, "page", pageIndex, "chars", len(text))
			return PageResult{
				PageIndex:      pageIndex,
				Status:         constants.PageRecognized,
				Text:           text,
				MeanConfidence: 1.0,
				Source:         SourceEmbedded,
				Elapsed:        time.Since(start),
			}
		}
	}

	// A started page is shielded from request-level cancellation: the
	// external tools run to completion or to the per-page timeout, never
	// to a mid-call kill.
	ctx = context.WithoutCancel(ctx)

	img, err := p.raster.Rasterize(ctx, pdfPath, doc.PageCount, pageIndex, opts.TargetDPI)
	if err != nil {
		kind, detail := rasterFailure(err)
		p.logger.Warn("pool.page.raster_failed", "doc_id", doc.ID, "page", pageIndex, "kind", kind)
		return PageResult{
			PageIndex: pageIndex,
			Status:    constants.PageFailed,
			ErrorKind: kind,
			Detail:    detail,
			Elapsed:   time.Since(start),
		}
	}
	defer img.Release()

	rec, err := p.ocr.Recognize(ctx, img, opts.LanguageHint, opts.PerPageTimeout)
	if err != nil {
		kind, detail := ocrFailure(err)
		p.logger.Warn("pool.page.ocr_failed", "doc_id", doc.ID, "page", pageIndex, "kind", kind)
		return PageResult{
			PageIndex: pageIndex,
			Status:    constants.PageFailed,
			ErrorKind: kind,
			Detail:    detail,
			Elapsed:   time.Since(start),
		}
	}

	res := PageResult{
		PageIndex:      pageIndex,
		Status:         constants.PageRecognized,
		Text:           rec.PlainText,
		Spans:          rec.Spans,
		MeanConfidence: rec.MeanConfidence,
		Source:         SourceOCR,
		Elapsed:        time.Since(start),
	}
	// Threshold is inclusive: a page exactly at the threshold is Recognized.
	if rec.MeanConfidence < opts.AcceptThreshold {
		res.Status = constants.PageDegraded
		res.Reason = fmt.Sprintf("mean confidence %.3f below accept threshold %.2f", rec.MeanConfidence, opts.AcceptThreshold)
	}
	p.logger.Debug("pool.page.ok",
		"doc_id", doc.ID,
		"page", pageIndex,
		"status", res.Status,
		"mean_confidence", res.MeanConfidence,
		"elapsed_ms", res.Elapsed.Milliseconds(),
	)
	return res
}

func rasterFailure(err error) (kind, detail string) {
	var re *raster.Error
	if errors.As(err, &re) {
		return string(re.Kind), re.Detail
	}
	return string(raster.KindRasterFailed), err.Error()
}

func ocrFailure(err error) (kind, detail string) {
	var oe *ocr.Error
	if errors.As(err, &oe) {
		return string(oe.Kind), oe.Detail
	}
	return string(ocr.KindEngineFailed), err.Error()
}
