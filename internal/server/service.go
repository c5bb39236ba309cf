// Package server is the HTTP boundary: document submission, request polling,
// the per-request event stream and the XLSX report download.
package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/doculens/doculens/internal/common"
	"github.com/doculens/doculens/internal/export"
	"github.com/doculens/doculens/internal/pipeline"
	"github.com/doculens/doculens/internal/store"
	"github.com/doculens/doculens/internal/summarize"
)

// Processor runs one document through the pipeline. Satisfied by
// *pipeline.Coordinator; handler tests substitute a stub.
type Processor interface {
	Process(ctx context.Context, id uuid.UUID, name string, data []byte, opts pipeline.Options, bc *pipeline.Broadcaster) (*pipeline.DocumentResult, error)
}

// running tracks one in-flight request: its broadcaster for late
// subscribers and its cancel func for early termination.
type running struct {
	bc     *pipeline.Broadcaster
	cancel context.CancelFunc
}

// Service owns request lifecycles on the HTTP side: it assigns IDs, runs the
// processor in the background, persists every event, and fans events out to
// SSE subscribers.
type Service struct {
	proc       Processor
	store      *store.Store
	export     *export.Service
	summarizer summarize.Summarizer // nil when no API key is configured
	logger     *slog.Logger

	baseCtx context.Context // processing outlives individual HTTP requests
	wg      sync.WaitGroup

	mu   sync.Mutex
	live map[uuid.UUID]*running
}

func NewService(baseCtx context.Context, proc Processor, st *store.Store, exp *export.Service, summarizer summarize.Summarizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		proc:       proc,
		store:      st,
		export:     exp,
		summarizer: summarizer,
		logger:     logger,
		baseCtx:    baseCtx,
		live:       make(map[uuid.UUID]*running),
	}
}

// Submit registers a new request and starts processing in the background.
// The returned channel closes once the terminal state has been persisted, so
// synchronous callers can wait on it.
func (s *Service) Submit(ctx context.Context, name string, data []byte, opts pipeline.Options, wantSummary bool) (uuid.UUID, <-chan struct{}, error) {
	id := uuid.New()
	if err := s.store.CreateRequest(ctx, id, name); err != nil {
		return uuid.Nil, nil, err
	}

	procCtx, cancel := context.WithCancel(s.baseCtx)
	bc := pipeline.NewBroadcaster()

	s.mu.Lock()
	s.live[id] = &running{bc: bc, cancel: cancel}
	s.mu.Unlock()

	// The persistence subscription exists before processing starts, so no
	// event can be published without it attached.
	sub := bc.Subscribe()
	done := make(chan struct{})

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		defer cancel()
		if _, err := s.proc.Process(procCtx, id, name, data, opts, bc); err != nil {
			s.logger.Warn("server.request.failed", "request_id", id, "error", err)
		}
	}()
	go func() {
		defer s.wg.Done()
		defer close(done)
		s.persist(id, sub, wantSummary)
		s.mu.Lock()
		delete(s.live, id)
		s.mu.Unlock()
	}()

	return id, done, nil
}

// persist mirrors the event stream into the store. It is the single writer
// for this request's rows, so page inserts never race the terminal update.
func (s *Service) persist(id uuid.UUID, sub *pipeline.Subscription, wantSummary bool) {
	ctx := context.Background() // persistence finishes even during shutdown
	for ev := range sub.Events() {
		switch ev.Type {
		case pipeline.EventState:
			if err := s.store.SetState(ctx, id, ev.State); err != nil {
				s.logger.Error("server.persist.state", "request_id", id, "error", err)
			}
		case pipeline.EventPage:
			if err := s.store.SavePageResult(ctx, id, *ev.Page); err != nil {
				s.logger.Error("server.persist.page", "request_id", id, "page", ev.Page.PageIndex, "error", err)
			}
		case pipeline.EventDone:
			if ev.Reject != nil {
				if err := s.store.Reject(ctx, id, ev.Reject.Kind, ev.Reject.Detail); err != nil {
					s.logger.Error("server.persist.reject", "request_id", id, "error", err)
				}
				continue
			}
			var summaryJSON []byte
			if wantSummary && s.summarizer != nil && ev.Result != nil {
				summaryJSON = s.summarizeResult(ev.Result)
			}
			if err := s.store.Finish(ctx, ev.Result, summaryJSON); err != nil {
				s.logger.Error("server.persist.finish", "request_id", id, "error", err)
			}
		}
	}
}

func (s *Service) summarizeResult(result *pipeline.DocumentResult) []byte {
	text := result.Text()
	if text == "" {
		return nil
	}
	_, raw, err := s.summarizer.Summarize(s.baseCtx, summarize.Request{
		Text:         text,
		DocumentName: result.Name,
	})
	if err != nil {
		// Summaries are best effort; the document result stands on its own.
		s.logger.Warn("server.summarize.failed", "request_id", result.RequestID, "error", err)
		return nil
	}
	return raw
}

// Get returns the stored request record.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*store.RequestRecord, error) {
	return s.store.GetRequest(ctx, id)
}

// Subscribe attaches to a live request's event stream; ok is false when the
// request is not currently running.
func (s *Service) Subscribe(id uuid.UUID) (*pipeline.Subscription, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.live[id]
	if !ok {
		return nil, false
	}
	return r.bc.Subscribe(), true
}

// Cancel stops an in-flight request; pages not yet scheduled end up Skipped.
// Canceling a finished or unknown request is not an error worth surfacing.
func (s *Service) Cancel(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.live[id]
	if ok {
		r.cancel()
	}
	return ok
}

// Report renders the XLSX diagnostic report for a request.
func (s *Service) Report(ctx context.Context, id uuid.UUID) ([]byte, error) {
	rec, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.State.Terminal() {
		return nil, common.NewAppError("REQUEST_NOT_FINISHED", "report is available once processing finishes", common.ErrInvalidInput)
	}
	return s.export.RequestReportXLSX(rec)
}

// Wait blocks until all background processing has drained. Called on
// shutdown after the listener stops.
func (s *Service) Wait() {
	s.wg.Wait()
}
