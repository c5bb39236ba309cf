package document

import (
	"strings"
	"unicode"
)

// Embedded-text quality gates for the fast path. A page whose content-stream
// text clears both ratios is trusted without rasterization; anything garbled
// (CIDFont without ToUnicode, PUA runes) falls through to OCR.
const (
	minPrintableRatio = 0.85
	minWordlikeRatio  = 0.50
	minEmbeddedChars  = 40
)

// UsableEmbeddedText reports whether the page's embedded text is good enough
// to skip raster+OCR for that page.
func (d *Document) UsableEmbeddedText(pageIndex int) (string, bool) {
	if pageIndex < 0 || pageIndex >= len(d.EmbeddedText) {
		return "", false
	}
	text := d.EmbeddedText[pageIndex]
	if len([]rune(text)) < minEmbeddedChars {
		return "", false
	}
	if printableRatio(text) < minPrintableRatio {
		return "", false
	}
	if wordlikeRatio(text) < minWordlikeRatio {
		return "", false
	}
	return text, true
}

// printableRatio returns the ratio of printable characters in text.
// Excludes PUA U+E000-U+F8FF, control chars < U+0020 (except \n\r\t), U+FFFD.
func printableRatio(text string) float64 {
	if len(text) == 0 {
		return 1.0
	}
	total := 0
	printable := 0
	for _, r := range text {
		total++
		if isGarbageRune(r) {
			continue
		}
		if unicode.IsPrint(r) || r == '\n' || r == '\r' || r == '\t' {
			printable++
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(printable) / float64(total)
}

func isGarbageRune(r rune) bool {
	if r >= 0xE000 && r <= 0xF8FF {
		return true
	}
	if r == 0xFFFD {
		return true
	}
	if r < 0x0020 && r != '\n' && r != '\r' && r != '\t' {
		return true
	}
	return false
}

// wordlikeRatio returns the ratio of tokens that look like words (2-15 runes).
// Character-by-character extraction produces streams of 1-rune tokens.
func wordlikeRatio(text string) float64 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0
	}
	wordlike := 0
	for _, f := range fields {
		n := len([]rune(f))
		if n >= 2 && n <= 15 {
			wordlike++
		}
	}
	return float64(wordlike) / float64(len(fields))
}
