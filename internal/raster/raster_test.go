package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"testing"
)

// pngRunner pretends to be pdftoppm: it writes a real PNG at the output
// prefix the rasterizer passed as the last argument.
type pngRunner struct {
	width, height int
	calls         int
}

func (r *pngRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	r.calls++
	prefix := args[len(args)-1]
	img := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, nil, err
	}
	if err := os.WriteFile(prefix+"-1.png", buf.Bytes(), 0o600); err != nil {
		return nil, nil, err
	}
	return nil, nil, nil
}

// failRunner fails with scripted stderr, writing nothing.
type failRunner struct {
	stderr string
}

func (r failRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	return nil, []byte(r.stderr), fmt.Errorf("exit status 1")
}

// noopRunner succeeds without producing any output file.
type noopRunner struct{}

func (noopRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	return nil, nil, nil
}

func TestRasterize_OK(t *testing.T) {
	runner := &pngRunner{width: 850, height: 1100}
	r := NewWithRunner(Config{}, runner, nil)

	img, err := r.Rasterize(context.Background(), "doc.pdf", 3, 1, 300)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	if img.PageIndex != 1 || img.DPI != 300 {
		t.Errorf("got page=%d dpi=%d, want page=1 dpi=300", img.PageIndex, img.DPI)
	}
	if img.Width != 850 || img.Height != 1100 {
		t.Errorf("got %dx%d, want 850x1100", img.Width, img.Height)
	}
	if len(img.PNG) == 0 {
		t.Error("PNG bytes are empty")
	}
	img.Release()
	if img.PNG != nil {
		t.Error("Release did not drop the pixel data")
	}
}

func TestRasterize_PageOutOfRange(t *testing.T) {
	runner := &pngRunner{width: 10, height: 10}
	r := NewWithRunner(Config{}, runner, nil)

	for _, idx := range []int{-1, 3, 100} {
		_, err := r.Rasterize(context.Background(), "doc.pdf", 3, idx, 300)
		var re *Error
		if !errors.As(err, &re) || re.Kind != KindPageOutOfRange {
			t.Fatalf("index %d: err = %v, want KindPageOutOfRange", idx, err)
		}
	}
	if runner.calls != 0 {
		t.Errorf("tool ran %d times for out-of-range pages, want 0", runner.calls)
	}
}

func TestRasterize_NoOutput(t *testing.T) {
	r := NewWithRunner(Config{}, noopRunner{}, nil)
	_, err := r.Rasterize(context.Background(), "doc.pdf", 1, 0, 150)

	var re *Error
	if !errors.As(err, &re) || re.Kind != KindCorruptPage {
		t.Fatalf("err = %v, want KindCorruptPage when no image is produced", err)
	}
}

func TestRasterize_ToolFailureClassification(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		want   ErrorKind
	}{
		{"encrypted", "Command Line Error: Incorrect password", KindEncrypted},
		{"encrypted document", "Error: file is encrypted", KindEncrypted},
		{"corrupt page", "Syntax Error (1234): could not parse content stream", KindCorruptPage},
		{"not a pdf", "Syntax Warning: May not be a PDF file", KindCorruptPage},
		{"unreadable", "Error: Couldn't read page catalog", KindCorruptPage},
		{"other", "some unexpected tool failure", KindRasterFailed},
		{"empty stderr", "", KindRasterFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewWithRunner(Config{}, failRunner{stderr: tt.stderr}, nil)
			_, err := r.Rasterize(context.Background(), "doc.pdf", 5, 2, 300)

			var re *Error
			if !errors.As(err, &re) {
				t.Fatalf("err = %v, want *Error", err)
			}
			if re.Kind != tt.want {
				t.Errorf("kind = %s, want %s", re.Kind, tt.want)
			}
			if re.PageIndex != 2 {
				t.Errorf("PageIndex = %d, want 2", re.PageIndex)
			}
		})
	}
}
