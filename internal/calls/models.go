package calls

import "time"

// Call tracks one outbound call attempt from initiation through the
// provider's terminal state.
//
// Lifecycle invariants:
// - Exactly one record exists per placed call attempt; it is created
//   synchronously before the provider confirms anything.
// - ProviderCallID is write-once: empty until the provider registers the
//   call, never changed afterwards. It is the sole correlation key for
//   inbound webhook events.
// - Transcript is written by call_ended (authoritative) or backfilled by
//   call_analyzed; call_analyzed must never clobber an existing transcript.
// - Records are never deleted once registered; they are the audit trail.
//   The only deletion happens when the placement call fails with a
//   configuration error before the record ever reached the provider.

type Call struct {
	ID             string `json:"id" db:"id"`
	ProviderCallID string `json:"provider_call_id,omitempty" db:"provider_call_id"`

	LeadID    string `json:"lead_id,omitempty" db:"lead_id"`
	LeadName  string `json:"lead_name,omitempty" db:"lead_name"`
	LeadPhone string `json:"lead_phone" db:"lead_phone"`

	Status CallStatus `json:"status" db:"status"`

	Transcript   string `json:"transcript,omitempty" db:"transcript"`
	CallSummary  string `json:"call_summary,omitempty" db:"call_summary"`
	RecordingURL string `json:"recording_url,omitempty" db:"recording_url"`

	// DurationMs is set by the call_ended event. Zero means not reported.
	DurationMs int64 `json:"duration_ms,omitempty" db:"duration_ms"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CallStatus is deliberately an open vocabulary: the provider may report
// call-status strings this service does not enumerate, and those must be
// stored and surfaced verbatim.
type CallStatus string

const (
	CallStatusQueued     CallStatus = "queued"
	CallStatusInitiated  CallStatus = "initiated"
	CallStatusRegistered CallStatus = "registered"
	CallStatusOngoing    CallStatus = "ongoing"
	CallStatusEnded      CallStatus = "ended"
	CallStatusFailed     CallStatus = "failed"
)

// IsTerminal reports whether the record has reached a final state in the
// known vocabulary. Provider-reported statuses outside the vocabulary are
// treated as non-terminal; a later event may still move them.
func (s CallStatus) IsTerminal() bool {
	switch s {
	case CallStatusEnded, CallStatusFailed:
		return true
	default:
		return false
	}
}
