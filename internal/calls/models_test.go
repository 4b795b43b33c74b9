package calls

import "testing"

func TestCallStatus_IsTerminal(t *testing.T) {
	terminal := []CallStatus{CallStatusEnded, CallStatusFailed}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Fatalf("expected %q terminal", s)
		}
	}

	open := []CallStatus{
		CallStatusQueued,
		CallStatusInitiated,
		CallStatusRegistered,
		CallStatusOngoing,
		CallStatus("voicemail_detected"), // provider-reported, unknown here
	}
	for _, s := range open {
		if s.IsTerminal() {
			t.Fatalf("expected %q non-terminal", s)
		}
	}
}
