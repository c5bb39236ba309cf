package document

import (
	"errors"
	"strings"
	"testing"
)

func TestIngest_Rejections(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		data []byte
		want RejectionKind
	}{
		{"empty", Config{}, nil, RejectionUnreadable},
		{"not a pdf", Config{}, []byte("hello, I am a text file"), RejectionUnreadable},
		{"truncated header", Config{}, []byte("%PDF-1.7\n"), RejectionUnreadable},
		{"too large", Config{MaxBytes: 8}, []byte("0123456789"), RejectionTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ing := NewIngestor(tt.cfg, nil)
			_, err := ing.Ingest(tt.name+".pdf", tt.data)

			var rej *RejectionError
			if !errors.As(err, &rej) {
				t.Fatalf("err = %v, want *RejectionError", err)
			}
			if rej.Kind != tt.want {
				t.Errorf("kind = %s, want %s", rej.Kind, tt.want)
			}
			if rej.Detail == "" {
				t.Error("rejection has no detail")
			}
		})
	}
}

func TestClassifyReadError(t *testing.T) {
	tests := []struct {
		msg  string
		want RejectionKind
	}{
		{"pdfcpu: please provide the correct password", RejectionEncrypted},
		{"this file is encrypted", RejectionEncrypted},
		{"pdfcpu: validation error", RejectionUnreadable},
		{"unexpected EOF", RejectionUnreadable},
	}
	for _, tt := range tests {
		got := classifyReadError(errors.New(tt.msg))
		if got.Kind != tt.want {
			t.Errorf("classifyReadError(%q) = %s, want %s", tt.msg, got.Kind, tt.want)
		}
	}
}

func TestUsableEmbeddedText(t *testing.T) {
	clean := strings.Repeat("the quick brown fox jumps over the lazy dog ", 2)
	garbled := strings.Repeat(" ", 20)
	singles := strings.Repeat("a b c d e f g h i j ", 5)

	doc := &Document{
		PageCount:    4,
		EmbeddedText: []string{clean, garbled, singles, "short"},
	}

	if text, ok := doc.UsableEmbeddedText(0); !ok || text != clean {
		t.Error("clean page text should be usable")
	}
	if _, ok := doc.UsableEmbeddedText(1); ok {
		t.Error("PUA-garbled text should not be usable")
	}
	if _, ok := doc.UsableEmbeddedText(2); ok {
		t.Error("single-char token streams should not be usable")
	}
	if _, ok := doc.UsableEmbeddedText(3); ok {
		t.Error("too-short text should not be usable")
	}
	if _, ok := doc.UsableEmbeddedText(7); ok {
		t.Error("out-of-range page should not be usable")
	}
	if _, ok := doc.UsableEmbeddedText(-1); ok {
		t.Error("negative page should not be usable")
	}
}

func TestPrintableRatio(t *testing.T) {
	if r := printableRatio("plain text with spaces\nand a newline"); r < 0.99 {
		t.Errorf("printableRatio(plain) = %v, want ~1", r)
	}
	if r := printableRatio("abcd"); r > 0.60 {
		t.Errorf("printableRatio(garbled) = %v, want low", r)
	}
	if r := printableRatio(""); r != 1.0 {
		t.Errorf("printableRatio(empty) = %v, want 1.0", r)
	}
}

func TestWordlikeRatio(t *testing.T) {
	if r := wordlikeRatio("these are normal words"); r != 1.0 {
		t.Errorf("wordlikeRatio(words) = %v, want 1.0", r)
	}
	if r := wordlikeRatio("a b c d e f"); r != 0 {
		t.Errorf("wordlikeRatio(singles) = %v, want 0", r)
	}
	if r := wordlikeRatio(""); r != 0 {
		t.Errorf("wordlikeRatio(empty) = %v, want 0", r)
	}
}
