package summarize

import "context"

// Summary is the normalized shape we want back from the model.
type Summary struct {
	Title           string   `json:"title"`
	Abstract        string   `json:"abstract"`
	KeyPoints       []string `json:"key_points"`
	Language        string   `json:"language,omitempty"`   // BCP-47-ish tag, e.g. "en"
	ModelConfidence float32  `json:"confidence,omitempty"` // optional (0..1)
}

// Request carries the assembled document text plus hints that shape the
// summary.
type Request struct {
	Text         string
	DocumentName string
	LanguageHint string
	MaxKeyPoints int // 0 means the model decides, capped by the schema
}

// Summarizer is the interface the service layer depends on.
type Summarizer interface {
	Summarize(ctx context.Context, req Request) (Summary, []byte /*rawJSON*/, error)
}
