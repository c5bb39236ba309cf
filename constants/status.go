package constants

// RequestState tracks a processing request through the coordinator.
type RequestState string

// Stable values (store these exact strings in DB).
const (
	StateIngesting   RequestState = "INGESTING"   // validating the document, obtaining page count
	StateDispatching RequestState = "DISPATCHING" // page tasks submitted to the worker pool
	StateAssembling  RequestState = "ASSEMBLING"  // all page results in, building the document result
	StateDone        RequestState = "DONE"        // terminal: document result produced
	StateRejected    RequestState = "REJECTED"    // terminal: document-level failure, no page work ran
)

// Terminal reports whether the state is final.
func (s RequestState) Terminal() bool {
	return s == StateDone || s == StateRejected
}

// PageStatus is the outcome classification for a single page.
type PageStatus string

const (
	PageRecognized PageStatus = "RECOGNIZED" // mean confidence at or above the acceptance threshold
	PageDegraded   PageStatus = "DEGRADED"   // usable text below the threshold, never dropped
	PageFailed     PageStatus = "FAILED"     // raster or OCR failure, isolated to this page
	PageSkipped    PageStatus = "SKIPPED"    // cancellation arrived before the page was scheduled
)

// OverallStatus is derived from the per-page outcomes, never set directly.
type OverallStatus string

const (
	OverallSuccess        OverallStatus = "SUCCESS"
	OverallDegraded       OverallStatus = "DEGRADED"
	OverallPartialFailure OverallStatus = "PARTIAL_FAILURE"
	OverallAllFailed      OverallStatus = "ALL_FAILED"
)
