package ledger

import "time"

// State is the processing state of a recorded event.
type State string

const (
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// ProcessingRecord is the per-event audit row. One record per event id,
// created on first sighting, mutated only through the Store.
type ProcessingRecord struct {
	EventID         string
	Kind            string
	State           State
	CustomerRef     string
	SubscriptionRef string
	StartedAt       time.Time
	CompletedAt     *time.Time
	ResultSummary   string
	LastError       string
}

// BeginOutcome reports how a Begin call resolved.
type BeginOutcome int

const (
	// Started means this caller inserted the record and owns processing.
	Started BeginOutcome = iota
	// Duplicate means a record already exists: either terminal, or in
	// flight within the staleness budget. The event must be acknowledged
	// without reprocessing.
	Duplicate
	// Reclaimed means a stale in-flight record was taken over by this
	// caller after its previous owner exceeded the staleness threshold.
	Reclaimed
)

// BeginRequest carries the audit fields recorded when an event is claimed.
// CustomerRef and SubscriptionRef are best-effort linkage, allowed to be
// empty.
type BeginRequest struct {
	EventID         string
	Kind            string
	CustomerRef     string
	SubscriptionRef string
}

// Outcome is the terminal result recorded by Complete.
type Outcome struct {
	Success bool
	Summary string // set on success
	Err     string // set on failure
}
