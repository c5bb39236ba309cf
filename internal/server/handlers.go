package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/doculens/doculens/constants"
	"github.com/doculens/doculens/internal/common"
	"github.com/doculens/doculens/internal/pipeline"
)

// maxUploadBytes caps the multipart body; the ingestor applies its own
// per-document limit on top.
const maxUploadBytes = 128 << 20

// Router builds the HTTP surface.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/documents", s.handleSubmit)
		r.Route("/requests/{id}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Delete("/", s.handleCancel)
			r.Get("/events", s.handleEvents)
			r.Get("/export", s.handleExport)
		})
	})
	return r
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	common.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSubmit accepts a multipart upload under field "file". Processing is
// asynchronous by default; ?wait=true blocks until the terminal state and
// returns the full record.
func (s *Service) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		common.WriteError(w, http.StatusBadRequest, "expected multipart form upload: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		common.WriteError(w, http.StatusBadRequest, "missing form file \"file\"")
		return
	}
	defer file.Close()

	if ext := filepath.Ext(header.Filename); !constants.IsAllowedExt(ext) {
		common.WriteError(w, http.StatusBadRequest, fmt.Sprintf("unsupported file extension %q", ext))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		common.WriteError(w, http.StatusBadRequest, "read upload: "+err.Error())
		return
	}

	opts, err := optionsFromForm(r)
	if err != nil {
		common.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	wantSummary := r.FormValue("summarize") == "true"

	id, done, err := s.Submit(r.Context(), header.Filename, data, opts, wantSummary)
	if err != nil {
		common.WriteError(w, common.HTTPStatus(err), err.Error())
		return
	}
	s.logger.Info("server.submit",
		"request_id", id,
		"name", header.Filename,
		"bytes", len(data),
		"summarize", wantSummary,
	)

	if r.FormValue("wait") == "true" {
		select {
		case <-done:
		case <-r.Context().Done():
			common.WriteError(w, http.StatusRequestTimeout, "client went away while waiting")
			return
		}
		rec, err := s.Get(r.Context(), id)
		if err != nil {
			common.WriteError(w, common.HTTPStatus(err), err.Error())
			return
		}
		common.WriteJSON(w, http.StatusOK, rec)
		return
	}

	common.WriteJSON(w, http.StatusAccepted, map[string]string{"id": id.String()})
}

func (s *Service) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := requestID(r)
	if err != nil {
		common.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := s.Get(r.Context(), id)
	if err != nil {
		common.WriteError(w, common.HTTPStatus(err), err.Error())
		return
	}
	common.WriteJSON(w, http.StatusOK, rec)
}

func (s *Service) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := requestID(r)
	if err != nil {
		common.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.Cancel(id) {
		common.WriteJSON(w, http.StatusAccepted, map[string]string{"id": id.String(), "canceling": "true"})
		return
	}
	// Not running: either finished or never existed; the record answers which.
	if _, err := s.Get(r.Context(), id); err != nil {
		common.WriteError(w, common.HTTPStatus(err), err.Error())
		return
	}
	common.WriteJSON(w, http.StatusOK, map[string]string{"id": id.String(), "canceling": "false"})
}

// handleEvents streams the request's events as SSE. For a finished request a
// single terminal event is replayed from the store so late clients still get
// an answer.
func (s *Service) handleEvents(w http.ResponseWriter, r *http.Request) {
	id, err := requestID(r)
	if err != nil {
		common.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		common.WriteError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sub, live := s.Subscribe(id)
	if !live {
		rec, err := s.Get(r.Context(), id)
		if err != nil {
			common.WriteError(w, common.HTTPStatus(err), err.Error())
			return
		}
		writeSSEHeaders(w)
		writeSSE(w, "done", rec)
		flusher.Flush()
		return
	}
	defer sub.Cancel()

	writeSSEHeaders(w)
	flusher.Flush()
	sawDone := false
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				// The broadcaster can close between the terminal event and
				// the live-map cleanup; a subscriber caught in that window
				// still gets the stored outcome.
				if !sawDone {
					if rec, err := s.Get(r.Context(), id); err == nil {
						writeSSE(w, "done", rec)
						flusher.Flush()
					}
				}
				return
			}
			if ev.Type == pipeline.EventDone {
				sawDone = true
			}
			writeSSE(w, string(ev.Type), ev)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Service) handleExport(w http.ResponseWriter, r *http.Request) {
	id, err := requestID(r)
	if err != nil {
		common.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	b, err := s.Report(r.Context(), id)
	if err != nil {
		common.WriteError(w, common.HTTPStatus(err), err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id.String()+".xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func requestID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid request id %q", raw)
	}
	return id, nil
}

// optionsFromForm reads the per-request knobs from the upload form. Absent
// fields keep their zero values; the pipeline fills defaults.
func optionsFromForm(r *http.Request) (pipeline.Options, error) {
	var opts pipeline.Options
	var err error
	if v := r.FormValue("target_dpi"); v != "" {
		if opts.TargetDPI, err = strconv.Atoi(v); err != nil {
			return opts, fmt.Errorf("invalid target_dpi %q", v)
		}
	}
	if v := r.FormValue("accept_threshold"); v != "" {
		if opts.AcceptThreshold, err = strconv.ParseFloat(v, 64); err != nil {
			return opts, fmt.Errorf("invalid accept_threshold %q", v)
		}
	}
	if v := r.FormValue("max_parallel_pages"); v != "" {
		if opts.MaxParallelPages, err = strconv.Atoi(v); err != nil {
			return opts, fmt.Errorf("invalid max_parallel_pages %q", v)
		}
	}
	if v := r.FormValue("per_page_timeout"); v != "" {
		if opts.PerPageTimeout, err = time.ParseDuration(v); err != nil {
			return opts, fmt.Errorf("invalid per_page_timeout %q", v)
		}
	}
	opts.LanguageHint = r.FormValue("language_hint")
	opts.DisableEmbeddedText = r.FormValue("disable_embedded_text") == "true"
	return opts, nil
}

func writeSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
}

func writeSSE(w io.Writer, event string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b)
}
