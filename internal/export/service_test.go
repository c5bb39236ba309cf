package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/doculens/doculens/constants"
	"github.com/doculens/doculens/internal/pipeline"
	"github.com/doculens/doculens/internal/store"
)

func TestRequestReportXLSX(t *testing.T) {
	rec := &store.RequestRecord{
		ID:    uuid.New(),
		Name:  "doc.pdf",
		State: constants.StateDone,
		Pages: []pipeline.PageResult{
			{PageIndex: 0, Status: constants.PageRecognized, Source: pipeline.SourceOCR, MeanConfidence: 0.93, Elapsed: 1500 * time.Millisecond},
			{PageIndex: 1, Status: constants.PageDegraded, Source: pipeline.SourceOCR, MeanConfidence: 0.41, Reason: "below threshold"},
			{PageIndex: 2, Status: constants.PageFailed, ErrorKind: "CORRUPT_PAGE", Detail: "bad xref table"},
		},
	}

	b, err := NewService(nil).RequestReportXLSX(rec)
	if err != nil {
		t.Fatalf("RequestReportXLSX: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	get := func(cell string) string {
		v, err := f.GetCellValue("Pages", cell)
		if err != nil {
			t.Fatalf("GetCellValue(%s): %v", cell, err)
		}
		return v
	}

	if get("A1") != "Page" || get("B1") != "Status" {
		t.Errorf("header row = %q/%q", get("A1"), get("B1"))
	}
	if get("A2") != "1" || get("B2") != "RECOGNIZED" {
		t.Errorf("row 2 = %q/%q, want 1/RECOGNIZED", get("A2"), get("B2"))
	}
	if get("B3") != "DEGRADED" || get("E3") != "below threshold" {
		t.Errorf("row 3 = %q/%q", get("B3"), get("E3"))
	}
	if get("B4") != "FAILED" || get("F4") != "CORRUPT_PAGE" {
		t.Errorf("row 4 = %q/%q", get("B4"), get("F4"))
	}
}

func TestRequestReportXLSX_NoPages(t *testing.T) {
	rec := &store.RequestRecord{ID: uuid.New(), Name: "rejected.pdf", State: constants.StateRejected}
	b, err := NewService(nil).RequestReportXLSX(rec)
	if err != nil {
		t.Fatalf("RequestReportXLSX: %v", err)
	}
	if len(b) == 0 {
		t.Error("empty workbook bytes")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
	long := "this detail is far too long for the cell"
	got := truncate(long, 10)
	if len(got) > 13 { // 9 bytes + ellipsis rune
		t.Errorf("truncate left %d bytes", len(got))
	}
}
