// Package ocr wraps pluggable OCR engines behind one small contract and
// classifies their failures before anything else observes them. Engines can be
// backed by the tesseract binary or by libtesseract (gosseract); neither
// leaks provider-specific errors past the adapter.
package ocr

import (
	"context"
	"fmt"

	"github.com/doculens/doculens/internal/raster"
)

// Region describes a rectangular area in pixel coordinates with the origin in
// the upper-left corner of the image.
type Region struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IsEmpty reports whether the region has non-positive dimensions.
func (r Region) IsEmpty() bool { return r.Width <= 0 || r.Height <= 0 }

// TextSpan is one recognized token in reading order as emitted by the engine.
// Multi-column ordering is the engine's responsibility; spans are never
// reordered here.
type TextSpan struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"` // 0..1
	Region     *Region `json:"region,omitempty"`
}

// Recognition is the raw engine output for one page image.
type Recognition struct {
	Spans          []TextSpan
	PlainText      string
	MeanConfidence float64
	Language       string
}

// Engine is the OCR provider contract: one page image in, one recognition out.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img *raster.PageImage, lang string) (Recognition, error)
}

// ErrorKind classifies OCR failures.
type ErrorKind string

const (
	KindEngineTimeout   ErrorKind = "ENGINE_TIMEOUT"
	KindUnreadableImage ErrorKind = "UNREADABLE_IMAGE"
	KindEngineFailed    ErrorKind = "ENGINE_FAILED"
)

// Error is the typed OCR failure for a single page image.
type Error struct {
	Kind      ErrorKind
	PageIndex int
	Detail    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("ocr page %d (%s): %s", e.PageIndex, e.Kind, e.Detail)
}

// meanConfidence is the arithmetic mean of per-span confidences.
func meanConfidence(spans []TextSpan) float64 {
	if len(spans) == 0 {
		return 0
	}
	var sum float64
	for _, s := range spans {
		sum += s.Confidence
	}
	return sum / float64(len(spans))
}
