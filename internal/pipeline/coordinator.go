package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/doculens/doculens/constants"
	"github.com/doculens/doculens/internal/document"
)

// Coordinator drives one request through its lifecycle:
//
//	Ingesting -> Dispatching -> Assembling -> Done
//	Ingesting -> Rejected
//
// Rejection happens only during ingestion; once pages dispatch, the request
// always reaches Done carrying whatever per-page outcomes it collected.
type Coordinator struct {
	ingestor *document.Ingestor
	pool     *Pool
	logger   *slog.Logger
}

func NewCoordinator(ingestor *document.Ingestor, pool *Pool, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{ingestor: ingestor, pool: pool, logger: logger}
}

// Process runs one document end to end under the caller's request ID.
// Progress (state transitions, one event per page result, and a terminal
// done/reject event) is published to bc when it is non-nil; bc is closed
// before Process returns. A document rejection is returned as
// *document.RejectionError; any other error is an environment fault
// (e.g. temp storage).
func (c *Coordinator) Process(ctx context.Context, id uuid.UUID, name string, data []byte, opts Options, bc *Broadcaster) (*DocumentResult, error) {
	start := time.Now()
	if bc != nil {
		defer bc.Close()
	}
	publish := func(ev Event) {
		if bc != nil {
			bc.Publish(ev)
		}
	}

	publish(Event{Type: EventState, State: constants.StateIngesting})
	c.logger.Info("pipeline.request.start", "request_id", id, "name", name, "bytes", len(data))

	opts.Normalize()
	if err := opts.Validate(); err != nil {
		publish(Event{Type: EventDone, State: constants.StateRejected, Reject: &RejectionNotice{
			Kind:   "INVALID_OPTIONS",
			Detail: err.Error(),
		}})
		return nil, err
	}

	doc, err := c.ingestor.Ingest(name, data)
	if err != nil {
		var rej *document.RejectionError
		if errors.As(err, &rej) {
			c.logger.Warn("pipeline.request.rejected", "request_id", id, "name", name, "kind", rej.Kind)
			publish(Event{Type: EventDone, State: constants.StateRejected, Reject: &RejectionNotice{
				Kind:   string(rej.Kind),
				Detail: rej.Detail,
			}})
			return nil, err
		}
		return nil, err
	}

	pdfPath, cleanup, err := writeTemp(doc)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	publish(Event{Type: EventState, State: constants.StateDispatching})
	c.logger.Info("pipeline.request.dispatch",
		"request_id", id,
		"pages", doc.PageCount,
		"max_parallel", opts.MaxParallelPages,
		"dpi", opts.TargetDPI,
	)

	pages := c.pool.Run(ctx, doc, pdfPath, opts, func(pr PageResult) {
		page := pr
		publish(Event{Type: EventPage, Page: &page})
	})

	publish(Event{Type: EventState, State: constants.StateAssembling})
	result := Assemble(id, doc.Name, doc.PageCount, pages, time.Since(start))

	publish(Event{Type: EventDone, State: constants.StateDone, Result: result})
	c.logger.Info("pipeline.request.done",
		"request_id", result.RequestID,
		"overall", result.OverallStatus,
		"recognized", result.Diagnostics.Recognized,
		"degraded", result.Diagnostics.Degraded,
		"failed", result.Diagnostics.Failed,
		"skipped", result.Diagnostics.Skipped,
		"elapsed_ms", result.Elapsed.Milliseconds(),
	)
	return result, nil
}

// writeTemp spills the document bytes to disk for the rasterizer, which only
// speaks file paths.
func writeTemp(doc *document.Document) (string, func(), error) {
	f, err := os.CreateTemp("", "doculens-*.pdf")
	if err != nil {
		return "", nil, fmt.Errorf("create temp pdf: %w", err)
	}
	path := f.Name()
	if _, err := f.Write(doc.Data); err != nil {
		f.Close()
		os.Remove(path)
		return "", nil, fmt.Errorf("write temp pdf: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", nil, fmt.Errorf("close temp pdf: %w", err)
	}
	return path, func() { os.Remove(path) }, nil
}
