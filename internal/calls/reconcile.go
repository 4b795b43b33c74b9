package calls

import (
	"context"
	"encoding/json"
	"errors"

	"callbridge/internal/voiceai"
	"callbridge/pkg/logger"
)

// Engine reconciles inbound provider events with persisted call records.
//
// Events arrive asynchronously in any order, possibly duplicated or
// delayed. Each event kind maps to an independent idempotent merge; there
// is no strict linear state machine. Merges are applied under the store's
// per-record atomic read-modify-write, so near-simultaneous deliveries for
// the same provider call id cannot lose updates.
//
// Error policy: only authentication failures and malformed bodies surface
// as errors. Everything else, including events this service cannot
// correlate, resolves to an acknowledgment so the provider's retry
// machinery is never triggered by conditions internal to this system.

var (
	ErrBadSignature     = errors.New("calls: webhook signature verification failed")
	ErrMalformedPayload = errors.New("calls: malformed webhook payload")
)

// Disposition reports what the engine did with an event. It exists for
// logging and tests; every disposition is acknowledged to the provider.
type Disposition string

const (
	DispositionApplied      Disposition = "applied"
	DispositionNoCallID     Disposition = "no_call_id"
	DispositionUnknownCall  Disposition = "unknown_call"
	DispositionParked       Disposition = "parked"
	DispositionUnknownEvent Disposition = "unknown_event"
)

// EventCall is the nested call object carried by every provider event.
type EventCall struct {
	CallID       string       `json:"call_id"`
	CallStatus   string       `json:"call_status"`
	Transcript   string       `json:"transcript"`
	DurationMs   int64        `json:"duration_ms"`
	RecordingURL string       `json:"recording_url"`
	CallAnalysis CallAnalysis `json:"call_analysis"`
}

type CallAnalysis struct {
	CallSummary string `json:"call_summary"`
}

type webhookPayload struct {
	Event string    `json:"event"`
	Call  EventCall `json:"call"`
}

// TransitionFunc merges one event into a call record. Implementations must
// be pure and safe to re-apply: the same event arriving twice must leave
// the record in the same state as arriving once.
type TransitionFunc func(Call, EventCall) (Call, bool)

// transitions is the explicit dispatch table from event kind to merge.
var transitions = map[string]TransitionFunc{
	"call_started":  applyCallStarted,
	"call_ended":    applyCallEnded,
	"call_analyzed": applyCallAnalyzed,
}

func applyCallStarted(c Call, ev EventCall) (Call, bool) {
	if c.Status == CallStatusOngoing {
		return c, false
	}
	c.Status = CallStatusOngoing
	return c, true
}

// applyCallEnded is authoritative for status, transcript and duration:
// the event's values overwrite unconditionally, including an empty
// transcript.
func applyCallEnded(c Call, ev EventCall) (Call, bool) {
	status := CallStatus(ev.CallStatus)
	if status == "" {
		status = CallStatusEnded
	}
	if c.Status == status && c.Transcript == ev.Transcript && c.DurationMs == ev.DurationMs {
		return c, false
	}
	c.Status = status
	c.Transcript = ev.Transcript
	c.DurationMs = ev.DurationMs
	return c, true
}

// applyCallAnalyzed sets the analysis fields. The transcript is backfill
// only: it is written solely when the record has none, so an analyzed
// event arriving after call_ended never clobbers the authoritative copy.
func applyCallAnalyzed(c Call, ev EventCall) (Call, bool) {
	changed := false
	if c.CallSummary != ev.CallAnalysis.CallSummary {
		c.CallSummary = ev.CallAnalysis.CallSummary
		changed = true
	}
	if c.RecordingURL != ev.RecordingURL {
		c.RecordingURL = ev.RecordingURL
		changed = true
	}
	if c.Transcript == "" && ev.Transcript != "" {
		c.Transcript = ev.Transcript
		changed = true
	}
	return c, changed
}

// EventParker buffers events that arrive before the initiation flow has
// committed the provider call id, keyed by that id.
type EventParker interface {
	Park(ctx context.Context, providerCallID string, payload []byte) error
	Drain(ctx context.Context, providerCallID string) ([][]byte, error)
}

type Engine struct {
	store  Store
	parker EventParker // optional; nil degrades unmatched events to a drop

	// webhookSecret enables signature verification when non-empty and a
	// signature header is present.
	webhookSecret string

	verify func(payload []byte, key, signature string) (bool, error)
}

func NewEngine(store Store, parker EventParker, webhookSecret string) *Engine {
	return &Engine{
		store:         store,
		parker:        parker,
		webhookSecret: webhookSecret,
		verify:        voiceai.VerifySignature,
	}
}

// HandleEvent validates, parses and applies one webhook delivery.
//
// Verification is skipped (and logged) when either the secret or the
// signature is absent. A verification mismatch is rejected; an unexpected
// verification failure is logged and processing proceeds, favoring
// availability over strictness.
func (e *Engine) HandleEvent(ctx context.Context, body []byte, signature string) (Disposition, error) {
	log := logger.From(ctx)

	switch {
	case e.webhookSecret == "" || signature == "":
		log.Debug("webhook signature verification skipped",
			"secret_configured", e.webhookSecret != "",
			"signature_present", signature != "")
	default:
		ok, err := e.verify(body, e.webhookSecret, signature)
		if err != nil {
			log.Warn("webhook signature verification errored, proceeding", "err", err)
		} else if !ok {
			log.Warn("webhook rejected: invalid signature")
			return "", ErrBadSignature
		}
	}

	return e.apply(ctx, body, true)
}

// Replay drains parked events for a provider call id and applies them in
// arrival order. Called by the initiation flow right after it commits the
// provider call id. Best effort: failures are logged, never propagated.
func (e *Engine) Replay(ctx context.Context, providerCallID string) int {
	if e.parker == nil || providerCallID == "" {
		return 0
	}
	log := logger.From(ctx)

	payloads, err := e.parker.Drain(ctx, providerCallID)
	if err != nil {
		log.Warn("parked event drain failed", "provider_call_id", providerCallID, "err", err)
		return 0
	}

	applied := 0
	for _, p := range payloads {
		d, err := e.apply(ctx, p, false)
		if err != nil {
			log.Warn("parked event replay failed", "provider_call_id", providerCallID, "err", err)
			continue
		}
		if d == DispositionApplied {
			applied++
		}
	}
	if applied > 0 {
		log.Info("parked events replayed", "provider_call_id", providerCallID, "applied", applied)
	}
	return applied
}

func (e *Engine) apply(ctx context.Context, body []byte, allowPark bool) (Disposition, error) {
	log := logger.From(ctx)

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", ErrMalformedPayload
	}
	if payload.Event == "" {
		return "", ErrMalformedPayload
	}

	if payload.Call.CallID == "" {
		log.Warn("webhook event has no call_id, ignoring", "event", payload.Event)
		return DispositionNoCallID, nil
	}

	transition, ok := transitions[payload.Event]
	if !ok {
		log.Debug("unhandled webhook event", "event", payload.Event, "provider_call_id", payload.Call.CallID)
		return DispositionUnknownEvent, nil
	}

	updated, found, err := e.store.UpdateByProviderCallID(ctx, payload.Call.CallID, func(c Call) (Call, bool) {
		return transition(c, payload.Call)
	})
	if err != nil {
		// Store failures still acknowledge toward the provider; the caller
		// logs and returns success so delivery retries are not triggered.
		log.Error("webhook apply failed", "event", payload.Event, "provider_call_id", payload.Call.CallID, "err", err)
		return DispositionUnknownCall, nil
	}
	if !found {
		// Benign: the record may belong to another instance, or the event
		// raced the initiation flow. Park for replay when possible.
		if allowPark && e.parker != nil {
			if err := e.parker.Park(ctx, payload.Call.CallID, body); err != nil {
				log.Warn("event parking failed", "provider_call_id", payload.Call.CallID, "err", err)
				return DispositionUnknownCall, nil
			}
			log.Info("event parked for later reconciliation", "event", payload.Event, "provider_call_id", payload.Call.CallID)
			return DispositionParked, nil
		}
		log.Info("no record for provider call id, ignoring", "event", payload.Event, "provider_call_id", payload.Call.CallID)
		return DispositionUnknownCall, nil
	}

	log.Info("webhook event applied",
		"event", payload.Event,
		"provider_call_id", payload.Call.CallID,
		"call_id", updated.ID,
		"status", updated.Status)
	return DispositionApplied, nil
}
