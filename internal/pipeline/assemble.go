package pipeline

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/doculens/doculens/constants"
)

// Assemble orders page results by index and derives the document-level
// outcome. Pages that were never processed (Skipped) count against the
// document the same way Failed pages do: the caller did not get their text.
func Assemble(requestID uuid.UUID, name string, pageCount int, pages []PageResult, elapsed time.Duration) *DocumentResult {
	ordered := make([]PageResult, len(pages))
	copy(ordered, pages)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].PageIndex < ordered[j].PageIndex })

	diag := Diagnostics{}
	for _, pr := range ordered {
		switch pr.Status {
		case constants.PageRecognized:
			diag.Recognized++
		case constants.PageDegraded:
			diag.Degraded++
		case constants.PageSkipped:
			diag.Skipped++
			diag.FailedPages = append(diag.FailedPages, FailedPage{PageIndex: pr.PageIndex, ErrorKind: pr.ErrorKind})
		default:
			diag.Failed++
			diag.FailedPages = append(diag.FailedPages, FailedPage{PageIndex: pr.PageIndex, ErrorKind: pr.ErrorKind})
		}
	}

	return &DocumentResult{
		RequestID:     requestID,
		Name:          name,
		PageCount:     pageCount,
		Pages:         ordered,
		OverallStatus: deriveOverall(diag),
		Diagnostics:   diag,
		Elapsed:       elapsed,
	}
}

func deriveOverall(diag Diagnostics) constants.OverallStatus {
	unusable := diag.Failed + diag.Skipped
	switch {
	case diag.Recognized == 0 && diag.Degraded == 0:
		return constants.OverallAllFailed
	case unusable > 0:
		return constants.OverallPartialFailure
	case diag.Degraded > 0:
		return constants.OverallDegraded
	default:
		return constants.OverallSuccess
	}
}
