package ocr

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/doculens/doculens/internal/raster"
)

// Adapter drives an Engine with the per-page timeout and classifies every
// failure into the closed *Error kind set before it crosses the package
// boundary. A page that produces zero spans is UnreadableImage, not an empty
// success, so callers can tell "nothing to read" from "read nothing".
type Adapter struct {
	engine Engine
	logger *slog.Logger
}

func NewAdapter(engine Engine, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{engine: engine, logger: logger}
}

// EngineName reports the underlying provider, for diagnostics.
func (a *Adapter) EngineName() string { return a.engine.Name() }

// Recognize runs OCR on one page image within timeout. The timeout is
// per-page so one slow page cannot starve its siblings.
func (a *Adapter) Recognize(ctx context.Context, img *raster.PageImage, lang string, timeout time.Duration) (Recognition, error) {
	if img == nil || len(img.PNG) == 0 || img.Width <= 0 || img.Height <= 0 {
		return Recognition{}, &Error{
			Kind:      KindUnreadableImage,
			PageIndex: pageIndexOf(img),
			Detail:    "empty or degenerate page image",
		}
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	rec, err := a.engine.Recognize(ctx, img, lang)
	if err != nil {
		return Recognition{}, a.classify(img.PageIndex, err, time.Since(start))
	}
	if len(rec.Spans) == 0 {
		return Recognition{}, &Error{
			Kind:      KindUnreadableImage,
			PageIndex: img.PageIndex,
			Detail:    "engine produced no text spans",
		}
	}

	rec.PlainText = Normalize(rec.PlainText)
	a.logger.Debug("ocr.page.ok",
		"page", img.PageIndex,
		"engine", a.engine.Name(),
		"spans", len(rec.Spans),
		"mean_confidence", rec.MeanConfidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rec, nil
}

func (a *Adapter) classify(pageIndex int, err error, elapsed time.Duration) *Error {
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	if errors.Is(err, context.DeadlineExceeded) {
		a.logger.Warn("ocr.page.timeout", "page", pageIndex, "elapsed_ms", elapsed.Milliseconds())
		return &Error{Kind: KindEngineTimeout, PageIndex: pageIndex, Detail: err.Error()}
	}
	return &Error{Kind: KindEngineFailed, PageIndex: pageIndex, Detail: err.Error()}
}

func pageIndexOf(img *raster.PageImage) int {
	if img == nil {
		return -1
	}
	return img.PageIndex
}
