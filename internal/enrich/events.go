package enrich

import "jobveille/internal/offer"

// EventKind discriminates the events a run emits.
type EventKind string

const (
	// EventProgress is emitted before each candidate is fetched.
	EventProgress EventKind = "progress"
	// EventTransition is emitted before a status change is written, so
	// observers see the attempt even when the write later fails.
	EventTransition EventKind = "transition"
)

// Event is written to the channel supplied by the caller, who is expected to
// drain it for the duration of the run. This decouples the pipeline from any
// particular UI.
type Event struct {
	Kind  EventKind
	Offer *offer.Offer

	// Progress payload.
	Index int
	Total int

	// Transition payload.
	From offer.Status
	To   offer.Status
}
