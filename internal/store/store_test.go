package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/doculens/doculens/constants"
	"github.com/doculens/doculens/internal/common"
	"github.com/doculens/doculens/internal/pipeline"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RequestLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := uuid.New()

	if err := s.CreateRequest(ctx, id, "doc.pdf"); err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if err := s.SetState(ctx, id, constants.StateDispatching); err != nil {
		t.Fatalf("SetState: %v", err)
	}

	pages := []pipeline.PageResult{
		{PageIndex: 0, Status: constants.PageRecognized, Text: "first page", MeanConfidence: 0.91, Source: pipeline.SourceOCR, Elapsed: 1200 * time.Millisecond},
		{PageIndex: 1, Status: constants.PageDegraded, Text: "second", MeanConfidence: 0.40, Source: pipeline.SourceOCR, Reason: "below threshold"},
		{PageIndex: 2, Status: constants.PageFailed, ErrorKind: "CORRUPT_PAGE", Detail: "bad xref"},
	}
	for _, pr := range pages {
		if err := s.SavePageResult(ctx, id, pr); err != nil {
			t.Fatalf("SavePageResult(%d): %v", pr.PageIndex, err)
		}
	}

	result := &pipeline.DocumentResult{
		RequestID:     id,
		Name:          "doc.pdf",
		PageCount:     3,
		Pages:         pages,
		OverallStatus: constants.OverallPartialFailure,
		Elapsed:       3 * time.Second,
	}
	if err := s.Finish(ctx, result, []byte(`{"title":"t"}`)); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	rec, err := s.GetRequest(ctx, id)
	if err != nil {
		t.Fatalf("GetRequest: %v", err)
	}
	if rec.State != constants.StateDone {
		t.Errorf("State = %s, want DONE", rec.State)
	}
	if rec.OverallStatus != constants.OverallPartialFailure {
		t.Errorf("OverallStatus = %s, want PARTIAL_FAILURE", rec.OverallStatus)
	}
	if rec.PageCount != 3 || len(rec.Pages) != 3 {
		t.Errorf("pages = %d/%d, want 3/3", rec.PageCount, len(rec.Pages))
	}
	if rec.Pages[0].Text != "first page" || rec.Pages[0].MeanConfidence != 0.91 {
		t.Errorf("Pages[0] = %+v", rec.Pages[0])
	}
	if rec.Pages[2].ErrorKind != "CORRUPT_PAGE" {
		t.Errorf("Pages[2].ErrorKind = %s", rec.Pages[2].ErrorKind)
	}
	if rec.Text != "first page\n\f\nsecond" {
		t.Errorf("Text = %q", rec.Text)
	}
	if rec.SummaryJSON != `{"title":"t"}` {
		t.Errorf("SummaryJSON = %q", rec.SummaryJSON)
	}
	if rec.FinishedAt == nil {
		t.Error("FinishedAt not set")
	}
}

func TestStore_Reject(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := uuid.New()

	if err := s.CreateRequest(ctx, id, "junk.pdf"); err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if err := s.Reject(ctx, id, "UNREADABLE_DOCUMENT", "no pdf header"); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	rec, err := s.GetRequest(ctx, id)
	if err != nil {
		t.Fatalf("GetRequest: %v", err)
	}
	if rec.State != constants.StateRejected {
		t.Errorf("State = %s, want REJECTED", rec.State)
	}
	if rec.RejectKind != "UNREADABLE_DOCUMENT" || rec.RejectDetail != "no pdf header" {
		t.Errorf("rejection = %s/%s", rec.RejectKind, rec.RejectDetail)
	}
	if len(rec.Pages) != 0 {
		t.Errorf("rejected request has %d page rows, want 0", len(rec.Pages))
	}
}

func TestStore_GetUnknown(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetRequest(context.Background(), uuid.New())
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStore_DeleteExpired(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	finished := uuid.New()
	if err := s.CreateRequest(ctx, finished, "old.pdf"); err != nil {
		t.Fatal(err)
	}
	if err := s.Reject(ctx, finished, "UNREADABLE_DOCUMENT", "x"); err != nil {
		t.Fatal(err)
	}

	pending := uuid.New()
	if err := s.CreateRequest(ctx, pending, "inflight.pdf"); err != nil {
		t.Fatal(err)
	}

	// A negative retention window expires everything already finished.
	n, err := s.DeleteExpired(ctx, -time.Hour)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
	if _, err := s.GetRequest(ctx, finished); !errors.Is(err, common.ErrNotFound) {
		t.Error("finished request survived the sweep")
	}
	if _, err := s.GetRequest(ctx, pending); err != nil {
		t.Errorf("in-flight request was swept: %v", err)
	}
}

func TestRebind(t *testing.T) {
	sqlite := &Store{driver: "sqlite"}
	pg := &Store{driver: "pgx"}

	q := `INSERT INTO t (a, b, c) VALUES (?, ?, ?)`
	if got := sqlite.rebind(q); got != q {
		t.Errorf("sqlite rebind changed the query: %q", got)
	}
	want := `INSERT INTO t (a, b, c) VALUES ($1, $2, $3)`
	if got := pg.rebind(q); got != want {
		t.Errorf("pgx rebind = %q, want %q", got, want)
	}
}
