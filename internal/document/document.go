// Package document validates uploaded PDFs and produces the immutable
// Document handed to the pipeline. All document-level failures are classified
// here into a closed set of rejection kinds; nothing downstream ever sees a
// raw pdfcpu error.
package document

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// RejectionKind classifies document-level failures. A rejection means no page
// work was attempted.
type RejectionKind string

const (
	RejectionUnreadable RejectionKind = "UNREADABLE_DOCUMENT"
	RejectionEncrypted  RejectionKind = "ENCRYPTED_DOCUMENT"
	RejectionZeroPages  RejectionKind = "ZERO_PAGE_DOCUMENT"
	RejectionTooLarge   RejectionKind = "DOCUMENT_TOO_LARGE"
)

// RejectionError is the typed document-level failure.
type RejectionError struct {
	Kind   RejectionKind
	Detail string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("document rejected (%s): %s", e.Kind, e.Detail)
}

// Document is an ingested PDF. Immutable once produced; owned by the
// coordinator for the duration of one request and discarded afterwards.
type Document struct {
	ID        uuid.UUID
	Name      string
	Data      []byte
	PageCount int
	Encrypted bool

	// EmbeddedText holds per-page text pulled from the PDF content streams,
	// "" where none was found. Indexed by zero-based page index.
	EmbeddedText []string
}

// Config configures ingestion.
type Config struct {
	// MaxBytes is the maximum accepted document size (default 100 MB).
	MaxBytes int64
	// ExtractEmbeddedText enables the per-page content-stream text pass used
	// by the embedded-text fast path (default on via the coordinator).
	ExtractEmbeddedText bool
}

func (c *Config) defaults() {
	if c.MaxBytes <= 0 {
		c.MaxBytes = 100 << 20
	}
}

// Ingestor validates documents before any page work starts.
type Ingestor struct {
	cfg    Config
	logger *slog.Logger
}

func NewIngestor(cfg Config, logger *slog.Logger) *Ingestor {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{cfg: cfg, logger: logger}
}

// Ingest validates the PDF bytes and returns a Document, or a *RejectionError.
func (i *Ingestor) Ingest(name string, data []byte) (*Document, error) {
	if int64(len(data)) > i.cfg.MaxBytes {
		return nil, &RejectionError{
			Kind:   RejectionTooLarge,
			Detail: fmt.Sprintf("%d bytes (max %d)", len(data), i.cfg.MaxBytes),
		}
	}
	if len(data) == 0 {
		return nil, &RejectionError{Kind: RejectionUnreadable, Detail: "empty document"}
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, classifyReadError(err)
	}
	if ctx.PageCount == 0 {
		return nil, &RejectionError{Kind: RejectionZeroPages, Detail: "document has no pages"}
	}

	doc := &Document{
		ID:        uuid.New(),
		Name:      name,
		Data:      data,
		PageCount: ctx.PageCount,
		Encrypted: ctx.XRefTable != nil && ctx.XRefTable.Encrypt != nil,
	}
	if i.cfg.ExtractEmbeddedText {
		doc.EmbeddedText = extractEmbeddedText(ctx)
	}

	i.logger.Debug("document.ingest.ok",
		"doc_id", doc.ID,
		"name", name,
		"pages", doc.PageCount,
		"bytes", len(data),
		"encrypted", doc.Encrypted,
	)
	return doc, nil
}

// classifyReadError folds pdfcpu's free-form errors into the rejection
// taxonomy so callers never pattern-match on tool output.
func classifyReadError(err error) *RejectionError {
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "password") || strings.Contains(lower, "encrypt") {
		return &RejectionError{Kind: RejectionEncrypted, Detail: msg}
	}
	return &RejectionError{Kind: RejectionUnreadable, Detail: msg}
}
