package summarize

import (
	"strings"
	"testing"
)

func TestChunkText_ShortInput(t *testing.T) {
	chunks := ChunkText("one small document", 1000)
	if len(chunks) != 1 || chunks[0] != "one small document" {
		t.Errorf("chunks = %v, want the input unchanged", chunks)
	}
}

func TestChunkText_Empty(t *testing.T) {
	if chunks := ChunkText("   \n  ", 100); chunks != nil {
		t.Errorf("chunks = %v, want nil for blank input", chunks)
	}
}

func TestChunkText_SplitsAtParagraphs(t *testing.T) {
	para := strings.Repeat("word ", 20) // ~100 chars
	text := para + "\n\n" + para + "\n\n" + para

	chunks := ChunkText(text, 150)
	if len(chunks) < 2 {
		t.Fatalf("chunks = %d, want a split", len(chunks))
	}
	for i, c := range chunks {
		if len([]rune(c)) > 150 {
			t.Errorf("chunk %d has %d runes, want <= 150", i, len([]rune(c)))
		}
		if strings.HasPrefix(c, " ") || strings.HasSuffix(c, " ") {
			t.Errorf("chunk %d not trimmed: %q", i, c)
		}
	}
}

func TestChunkText_NeverSplitsWords(t *testing.T) {
	text := strings.Repeat("abcdefghij ", 50)
	chunks := ChunkText(text, 95)

	for i, c := range chunks {
		for _, f := range strings.Fields(c) {
			if f != "abcdefghij" {
				t.Fatalf("chunk %d contains split word %q", i, f)
			}
		}
	}
	// Nothing lost.
	var total int
	for _, c := range chunks {
		total += len(strings.Fields(c))
	}
	if total != 50 {
		t.Errorf("total words = %d, want 50", total)
	}
}

func TestChunkText_DefaultSize(t *testing.T) {
	text := strings.Repeat("word ", DefaultChunkSize/2)
	chunks := ChunkText(text, 0)
	if len(chunks) < 2 {
		t.Errorf("chunks = %d, want a split at the default size", len(chunks))
	}
}

func TestBreakPoint_NoWhitespace(t *testing.T) {
	runes := []rune(strings.Repeat("x", 40))
	if got := breakPoint(runes); got != 40 {
		t.Errorf("breakPoint = %d, want the full window when nothing splits", got)
	}
}
