package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/doculens/doculens/internal/raster"
)

// GosseractEngine recognizes pages through libtesseract (cgo) instead of the
// tesseract binary, avoiding a process spawn per page. Clients are created
// per call: the underlying API is not safe for concurrent use from one handle,
// and the worker pool calls Recognize from several goroutines.
type GosseractEngine struct {
	tessdataDir   string
	clientFactory func() *gosseract.Client
}

func NewGosseractEngine(tessdataDir string) *GosseractEngine {
	return &GosseractEngine{
		tessdataDir:   tessdataDir,
		clientFactory: gosseract.NewClient,
	}
}

func (e *GosseractEngine) Name() string { return "gosseract" }

func (e *GosseractEngine) Recognize(ctx context.Context, img *raster.PageImage, lang string) (Recognition, error) {
	if err := ctx.Err(); err != nil {
		return Recognition{}, err
	}

	c := e.clientFactory()
	defer c.Close()

	if e.tessdataDir != "" {
		if err := c.SetTessdataPrefix(e.tessdataDir); err != nil {
			return Recognition{}, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if lang != "" {
		if err := c.SetLanguage(strings.Split(lang, "+")...); err != nil {
			return Recognition{}, fmt.Errorf("set language: %w", err)
		}
	}
	if img.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(img.DPI)); err != nil {
			return Recognition{}, fmt.Errorf("set dpi: %w", err)
		}
	}
	if err := c.SetImageFromBytes(img.PNG); err != nil {
		return Recognition{}, fmt.Errorf("set image: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return Recognition{}, fmt.Errorf("recognize text: %w", err)
	}

	spans := wordSpans(c)
	return Recognition{
		Spans:          spans,
		PlainText:      strings.TrimSpace(text),
		MeanConfidence: meanConfidence(spans),
		Language:       lang,
	}, nil
}

func wordSpans(c *gosseract.Client) []TextSpan {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return nil
	}
	spans := make([]TextSpan, 0, len(boxes))
	for _, b := range boxes {
		word := strings.TrimSpace(b.Word)
		if word == "" {
			continue
		}
		spans = append(spans, TextSpan{
			Text:       word,
			Confidence: b.Confidence / 100.0,
			Region: &Region{
				X:      float64(b.Box.Min.X),
				Y:      float64(b.Box.Min.Y),
				Width:  float64(b.Box.Dx()),
				Height: float64(b.Box.Dy()),
			},
		})
	}
	return spans
}
