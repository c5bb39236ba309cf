package summarize

import "strings"

// DefaultChunkSize keeps a chunk comfortably inside common context windows.
const DefaultChunkSize = 12000

// ChunkText splits text into pieces of at most size runes, preferring to cut
// at paragraph breaks, then line breaks, then spaces, so no chunk starts or
// ends mid-word. A non-positive size falls back to DefaultChunkSize.
func ChunkText(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= size {
			chunks = append(chunks, strings.TrimSpace(string(runes)))
			break
		}
		cut := breakPoint(runes[:size])
		chunk := strings.TrimSpace(string(runes[:cut]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		runes = runes[cut:]
	}
	return chunks
}

// breakPoint finds the best split inside window: the last paragraph break if
// any, else the last newline, else the last space, else the full window.
func breakPoint(window []rune) int {
	s := string(window)
	if i := strings.LastIndex(s, "\n\n"); i > 0 {
		return len([]rune(s[:i+2]))
	}
	if i := strings.LastIndexByte(s, '\n'); i > 0 {
		return len([]rune(s[:i+1]))
	}
	if i := strings.LastIndexByte(s, ' '); i > 0 {
		return len([]rune(s[:i+1]))
	}
	return len(window)
}
