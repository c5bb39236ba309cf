package openai

import (
	"fmt"
	"strings"

	"github.com/doculens/doculens/internal/summarize"
)

func systemPrompt(req summarize.Request) string {
	parts := []string{
		"You are a document summarizer. Return ONLY JSON that matches the JSON Schema provided.",
		"The 'abstract' is 3-6 sentences covering the document's purpose and conclusions.",
		"Each key point is one self-contained sentence; no numbering, no markdown.",
		"Never output null. If a field is not present, omit it.",
	}
	if req.LanguageHint != "" {
		parts = append(parts, "Write the summary in the language tagged '"+req.LanguageHint+"' unless the document is clearly in another language.")
	}
	return strings.Join(parts, " ")
}

func chunkPrompt(docName string, chunkIndex, chunkCount int, chunk string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Document: %s\nPart %d of %d.\n\n", docName, chunkIndex+1, chunkCount)
	b.WriteString("Summarize this part in a short paragraph, keeping concrete facts, names and figures:\n\n")
	b.WriteString(chunk)
	return b.String()
}

func buildMergeInput(docName string, partials []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Document: %s\n\n", docName)
	b.WriteString("Below are per-part summaries of the document, in order. Merge them into one summary.\n\n")
	for i, p := range partials {
		fmt.Fprintf(&b, "Part %d:\n%s\n\n", i+1, p)
	}
	return b.String()
}
