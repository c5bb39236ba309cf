package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/doculens/doculens/internal/store"
)

// Service produces XLSX bytes for per-request diagnostic reports.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// RequestReportXLSX returns an XLSX workbook (as bytes) with one row per page
// of the request: status, confidence, source and failure detail, so a caller
// can decide which pages to re-submit.
func (s *Service) RequestReportXLSX(rec *store.RequestRecord) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	const sheet = "Pages"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		_, err := f.NewSheet(sheet)
		if err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Page",
		"Status",
		"Source",
		"Mean Confidence",
		"Reason",
		"Error Kind",
		"Detail",
		"Elapsed (ms)",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, p := range rec.Pages {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		// 1-based page numbers for humans
		write(1, p.PageIndex+1)
		write(2, string(p.Status))
		write(3, string(p.Source))
		write(4, p.MeanConfidence)
		write(5, p.Reason)
		write(6, p.ErrorKind)
		write(7, truncate(p.Detail, 140))
		write(8, p.Elapsed.Milliseconds())

		row++
	}

	// Widen a few columns
	_ = f.SetColWidth(sheet, "A", "A", 8)  // page
	_ = f.SetColWidth(sheet, "B", "C", 14) // status, source
	_ = f.SetColWidth(sheet, "D", "D", 16) // confidence
	_ = f.SetColWidth(sheet, "E", "F", 24) // reason, error kind
	_ = f.SetColWidth(sheet, "G", "G", 48) // detail

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"request_id", rec.ID.String(),
		"rows", len(rec.Pages),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
