package ocr

import (
	"context"
	"math"
	"testing"

	"github.com/doculens/doculens/internal/raster"
)

const sampleTSV = `level	page_num	block_num	par_num	line_num	word_num	left	top	width	height	conf	text
1	1	0	0	0	0	0	0	2550	3300	-1
2	1	1	0	0	0	100	100	800	60	-1
4	1	1	1	1	0	100	100	800	30	-1
5	1	1	1	1	1	100	100	120	30	96.5	Invoice
5	1	1	1	1	2	240	100	90	30	88.0	#42
4	1	1	1	2	0	100	160	800	30	-1
5	1	1	1	2	1	100	160	150	30	91.2	Total:
5	1	1	1	2	2	270	160	110	30	79.3	$14.00
5	1	1	1	2	3	400	160	40	30	70.0
`

func TestParseTSV(t *testing.T) {
	spans, plain := parseTSV(sampleTSV)

	if len(spans) != 4 {
		t.Fatalf("spans = %d, want 4 (structural and empty rows skipped)", len(spans))
	}
	if spans[0].Text != "Invoice" {
		t.Errorf("spans[0].Text = %q, want Invoice", spans[0].Text)
	}
	if math.Abs(spans[0].Confidence-0.965) > 1e-9 {
		t.Errorf("spans[0].Confidence = %v, want 0.965", spans[0].Confidence)
	}
	if spans[0].Region == nil || spans[0].Region.X != 100 || spans[0].Region.Width != 120 {
		t.Errorf("spans[0].Region = %+v, want X=100 Width=120", spans[0].Region)
	}

	want := "Invoice #42\nTotal: $14.00"
	if plain != want {
		t.Errorf("plain = %q, want %q", plain, want)
	}
}

func TestParseTSV_Empty(t *testing.T) {
	spans, plain := parseTSV("level\tpage_num\n")
	if len(spans) != 0 || plain != "" {
		t.Errorf("expected no spans for header-only TSV, got %d spans, %q", len(spans), plain)
	}
}

func TestMeanConfidence(t *testing.T) {
	tests := []struct {
		name  string
		spans []TextSpan
		want  float64
	}{
		{"empty", nil, 0},
		{"single", []TextSpan{{Confidence: 0.8}}, 0.8},
		{"averaged", []TextSpan{{Confidence: 1.0}, {Confidence: 0.5}, {Confidence: 0.3}}, 0.6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := meanConfidence(tt.spans)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("meanConfidence = %v, want %v", got, tt.want)
			}
		})
	}
}

// stubRunner returns canned output without executing anything.
type stubRunner struct {
	stdout []byte
	stderr []byte
	err    error
}

func (s stubRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return s.stdout, s.stderr, s.err
}

func TestCLIEngineRecognize(t *testing.T) {
	eng := NewCLIEngineWithRunner(CLIConfig{}, stubRunner{stdout: []byte(sampleTSV)}, nil)
	img := &raster.PageImage{PageIndex: 0, PNG: []byte("png"), Width: 100, Height: 100, DPI: 300}

	rec, err := eng.Recognize(context.Background(), img, "eng")
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if len(rec.Spans) != 4 {
		t.Errorf("spans = %d, want 4", len(rec.Spans))
	}
	wantMean := (0.965 + 0.88 + 0.912 + 0.793) / 4
	if math.Abs(rec.MeanConfidence-wantMean) > 1e-9 {
		t.Errorf("MeanConfidence = %v, want %v", rec.MeanConfidence, wantMean)
	}
	if rec.Language != "eng" {
		t.Errorf("Language = %q, want eng", rec.Language)
	}
}

func TestCLIEngineRecognize_Canceled(t *testing.T) {
	eng := NewCLIEngineWithRunner(CLIConfig{}, stubRunner{err: context.Canceled}, nil)
	img := &raster.PageImage{PNG: []byte("png"), Width: 10, Height: 10}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := eng.Recognize(ctx, img, "eng"); err == nil {
		t.Fatal("expected error from canceled context")
	}
}
