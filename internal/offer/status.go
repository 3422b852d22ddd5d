// Package offer defines the tracked job-offer entity and the status state
// machine that governs its lifecycle.
//
// Valid status graph:
//
//	À compléter ──► À analyser ──► À traiter
//	     │
//	     ├──► Expirée
//	     └──► Ignorée
//
// Expirée and Ignorée are terminal for the pipeline: there is no automatic
// retry, a human re-queues an offer by resetting its status.
package offer

import "fmt"

// Status values are persisted verbatim; they keep the French labels used by
// the store schema.
type Status string

const (
	StatusToComplete Status = "À compléter"
	StatusToAnalyze  Status = "À analyser"
	StatusToProcess  Status = "À traiter"
	StatusExpired    Status = "Expirée"
	StatusIgnored    Status = "Ignorée"
)

// validTransitions lists every allowed (from → to) pair. The enrichment
// pipeline only ever moves offers out of À compléter; the analysis pipeline
// out of À analyser.
var validTransitions = map[Status][]Status{
	StatusToComplete: {StatusToAnalyze, StatusExpired, StatusIgnored},
	StatusToAnalyze:  {StatusToProcess},
	// Expirée, Ignorée and À traiter are terminal here.
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusToComplete, StatusToAnalyze, StatusToProcess, StatusExpired, StatusIgnored:
		return st, nil
	}
	return "", fmt.Errorf("unknown offer status %q", s)
}

// IsTransitionAllowed returns true when moving from → to is permitted by the
// state machine.
func IsTransitionAllowed(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true when the status has no outgoing transitions.
func IsTerminal(s Status) bool {
	return len(validTransitions[s]) == 0
}
