package ocr

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/doculens/doculens/internal/raster"
)

// fakeEngine scripts one Recognize outcome.
type fakeEngine struct {
	rec   Recognition
	err   error
	block bool // wait for ctx cancellation instead of returning
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(ctx context.Context, img *raster.PageImage, lang string) (Recognition, error) {
	if f.block {
		<-ctx.Done()
		return Recognition{}, ctx.Err()
	}
	return f.rec, f.err
}

func testImage(pageIndex int) *raster.PageImage {
	return &raster.PageImage{PageIndex: pageIndex, PNG: []byte("png"), Width: 100, Height: 100}
}

func TestAdapterRecognize_OK(t *testing.T) {
	eng := &fakeEngine{rec: Recognition{
		Spans:          []TextSpan{{Text: "hello", Confidence: 0.9}},
		PlainText:      "hello   \r\nworld",
		MeanConfidence: 0.9,
	}}
	a := NewAdapter(eng, nil)

	rec, err := a.Recognize(context.Background(), testImage(0), "eng", time.Second)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if rec.PlainText != "hello\nworld" {
		t.Errorf("PlainText = %q, want normalized %q", rec.PlainText, "hello\nworld")
	}
}

func TestAdapterRecognize_UnreadableInputs(t *testing.T) {
	a := NewAdapter(&fakeEngine{}, nil)
	tests := []struct {
		name string
		img  *raster.PageImage
	}{
		{"nil image", nil},
		{"empty png", &raster.PageImage{PageIndex: 1, Width: 10, Height: 10}},
		{"zero dimensions", &raster.PageImage{PageIndex: 1, PNG: []byte("png")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Recognize(context.Background(), tt.img, "eng", time.Second)
			var oe *Error
			if !errors.As(err, &oe) || oe.Kind != KindUnreadableImage {
				t.Fatalf("err = %v, want *Error with KindUnreadableImage", err)
			}
		})
	}
}

func TestAdapterRecognize_ZeroSpans(t *testing.T) {
	a := NewAdapter(&fakeEngine{rec: Recognition{PlainText: ""}}, nil)
	_, err := a.Recognize(context.Background(), testImage(3), "eng", time.Second)

	var oe *Error
	if !errors.As(err, &oe) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if oe.Kind != KindUnreadableImage || oe.PageIndex != 3 {
		t.Errorf("got kind=%s page=%d, want UNREADABLE_IMAGE page 3", oe.Kind, oe.PageIndex)
	}
}

func TestAdapterRecognize_Timeout(t *testing.T) {
	a := NewAdapter(&fakeEngine{block: true}, nil)
	_, err := a.Recognize(context.Background(), testImage(2), "eng", 10*time.Millisecond)

	var oe *Error
	if !errors.As(err, &oe) || oe.Kind != KindEngineTimeout {
		t.Fatalf("err = %v, want KindEngineTimeout", err)
	}
	if oe.PageIndex != 2 {
		t.Errorf("PageIndex = %d, want 2", oe.PageIndex)
	}
}

func TestAdapterRecognize_TypedErrorPassthrough(t *testing.T) {
	typed := &Error{Kind: KindEngineFailed, PageIndex: 5, Detail: "boom"}
	a := NewAdapter(&fakeEngine{err: fmt.Errorf("wrapped: %w", typed)}, nil)

	_, err := a.Recognize(context.Background(), testImage(5), "eng", time.Second)
	var oe *Error
	if !errors.As(err, &oe) || oe != typed {
		t.Fatalf("err = %v, want the engine's own typed error", err)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"crlf", "a\r\nb\rc", "a\nb\nc"},
		{"tabs and runs", "a\t\tb   c", "a b c"},
		{"blank collapse", "a\n\n\n\n\nb", "a\n\nb"},
		{"box noise", "a\n----------\nb", "a\n\nb"},
		{"trailing spaces", "a   \nb", "a\nb"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
