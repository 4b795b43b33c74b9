package calls

import (
	"context"
	"errors"
	"testing"
	"time"

	"callbridge/internal/voiceai"
)

// fakeGateway scripts the provider's immediate responses.
type fakeGateway struct {
	phoneCallErr error
	phoneCall    voiceai.CallInfo
	webCallErr   error
	webCall      voiceai.WebCallInfo

	lastPhoneReq voiceai.CreatePhoneCallRequest
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) CreatePhoneCall(ctx context.Context, req voiceai.CreatePhoneCallRequest) (voiceai.CallInfo, error) {
	g.lastPhoneReq = req
	if g.phoneCallErr != nil {
		return voiceai.CallInfo{}, g.phoneCallErr
	}
	return g.phoneCall, nil
}

func (g *fakeGateway) CreateWebCall(ctx context.Context, req voiceai.CreateWebCallRequest) (voiceai.WebCallInfo, error) {
	if g.webCallErr != nil {
		return voiceai.WebCallInfo{}, g.webCallErr
	}
	return g.webCall, nil
}

func (g *fakeGateway) ImportPhoneNumber(ctx context.Context, req voiceai.ImportPhoneNumberRequest) (voiceai.PhoneNumber, error) {
	return voiceai.PhoneNumber{}, errors.New("not scripted")
}

func (g *fakeGateway) ListPhoneNumbers(ctx context.Context) ([]voiceai.PhoneNumber, error) {
	return nil, errors.New("not scripted")
}

func (g *fakeGateway) DeletePhoneNumber(ctx context.Context, number string) error {
	return errors.New("not scripted")
}

func TestInitiateCall_HappyPath(t *testing.T) {
	store := NewMemoryStore()
	gw := &fakeGateway{phoneCall: voiceai.CallInfo{CallID: "prov-9", CallStatus: "registered"}}
	svc := NewService(store, gw, nil)

	res, err := svc.InitiateCall(context.Background(), InitiateCallRequest{
		ToNumber: "+15550001111",
		LeadID:   "lead-7",
		LeadName: "Ada",
		Metadata: map[string]any{"campaign": "q3"},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.ProviderCallID != "prov-9" {
		t.Fatalf("expected provider call id, got %q", res.ProviderCallID)
	}
	if res.Status != CallStatusRegistered {
		t.Fatalf("expected registered, got %q", res.Status)
	}

	c, err := store.GetByID(context.Background(), res.InternalCallID)
	if err != nil {
		t.Fatalf("record missing: %v", err)
	}
	if c.ProviderCallID != "prov-9" || c.LeadName != "Ada" || c.LeadPhone != "+15550001111" {
		t.Fatalf("record not reconciled: %+v", c)
	}

	// The correlation payload must carry the internal id and caller metadata.
	if got := gw.lastPhoneReq.Metadata["internal_call_id"]; got != res.InternalCallID {
		t.Fatalf("expected internal_call_id in metadata, got %v", got)
	}
	if got := gw.lastPhoneReq.Metadata["campaign"]; got != "q3" {
		t.Fatalf("caller metadata dropped: %v", got)
	}
	if got := gw.lastPhoneReq.DynamicVariables["customer_name"]; got != "Ada" {
		t.Fatalf("expected customer_name prompt variable, got %q", got)
	}
}

func TestInitiateCall_ConfigErrorDeletesRecord(t *testing.T) {
	store := NewMemoryStore()
	gw := &fakeGateway{phoneCallErr: &voiceai.ConfigError{Reason: "no agent_id provided and no default configured"}}
	svc := NewService(store, gw, nil)

	_, err := svc.InitiateCall(context.Background(), InitiateCallRequest{ToNumber: "+15550001111"})
	var cfgErr *voiceai.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}

	// No record survives: it never reached the provider.
	if rows, _ := store.ListRegistered(context.Background(), 10); len(rows) != 0 {
		t.Fatalf("expected no registered records")
	}
	if _, err := store.GetByProviderCallID(context.Background(), ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected empty store")
	}
}

func TestInitiateCall_ProviderErrorKeepsFailedRecord(t *testing.T) {
	store := NewMemoryStore()
	gw := &fakeGateway{phoneCallErr: errors.New("upstream timeout")}
	svc := NewService(store, gw, nil)

	_, err := svc.InitiateCall(context.Background(), InitiateCallRequest{ToNumber: "+15550001111", LeadName: "Ada"})
	if !errors.Is(err, ErrPlacementFailed) {
		t.Fatalf("expected ErrPlacementFailed, got %v", err)
	}

	// The provisional record stays for audit, marked failed.
	all := storeDump(t, store)
	if len(all) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(all))
	}
	kept := all[0]
	if kept.Status != CallStatusFailed {
		t.Fatalf("expected failed, got %q", kept.Status)
	}
	if kept.ProviderCallID != "" {
		t.Fatalf("provider id must stay empty on failure")
	}
}

func storeDump(t *testing.T, s *MemoryStore) []Call {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, 0, len(s.byID))
	for _, c := range s.byID {
		out = append(out, c)
	}
	return out
}

func TestInitiateCall_RejectsBadDestination(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, &fakeGateway{}, nil)

	for _, num := range []string{"", "15550001111", "+1555ABC1111", "+1"} {
		_, err := svc.InitiateCall(context.Background(), InitiateCallRequest{ToNumber: num})
		if !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("number %q: expected ErrInvalidRequest, got %v", num, err)
		}
	}
	if len(storeDump(t, store)) != 0 {
		t.Fatalf("invalid request must not create records")
	}
}

func TestInitiateCall_ReplaysParkedEvents(t *testing.T) {
	store := NewMemoryStore()
	parker := newMemoryParker()
	engine := NewEngine(store, parker, "")

	// A call_started for the soon-to-exist call is already parked.
	early := []byte(`{"event":"call_started","call":{"call_id":"prov-race"}}`)
	if d, err := engine.HandleEvent(context.Background(), early, ""); err != nil || d != DispositionParked {
		t.Fatalf("expected parked, got %s / %v", d, err)
	}

	gw := &fakeGateway{phoneCall: voiceai.CallInfo{CallID: "prov-race", CallStatus: "registered"}}
	svc := NewService(store, gw, engine)

	res, err := svc.InitiateCall(context.Background(), InitiateCallRequest{ToNumber: "+15550001111"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	c, err := store.GetByID(context.Background(), res.InternalCallID)
	if err != nil {
		t.Fatalf("record missing: %v", err)
	}
	if c.Status != CallStatusOngoing {
		t.Fatalf("expected parked call_started replayed onto record, got %q", c.Status)
	}
}

func TestCreateWebCall_CreatesOngoingRecord(t *testing.T) {
	store := NewMemoryStore()
	gw := &fakeGateway{webCall: voiceai.WebCallInfo{CallID: "web-1", AccessToken: "tok", AgentID: "agent-1"}}
	svc := NewService(store, gw, nil)

	res, err := svc.CreateWebCall(context.Background(), WebCallRequest{LeadName: "Tester"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.AccessToken != "tok" {
		t.Fatalf("expected access token passthrough")
	}

	c, err := store.GetByProviderCallID(context.Background(), "web-1")
	if err != nil {
		t.Fatalf("record missing: %v", err)
	}
	if c.Status != CallStatusOngoing || c.LeadPhone != "WEB_CALL" {
		t.Fatalf("unexpected web call record: %+v", c)
	}
}

func TestGet_FallsBackToProviderCallID(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, &fakeGateway{}, nil)
	seedRegisteredCall(t, store, "prov-1")

	byInternal, err := svc.Get(context.Background(), "internal-1")
	if err != nil {
		t.Fatalf("by internal id: %v", err)
	}
	byProvider, err := svc.Get(context.Background(), "prov-1")
	if err != nil {
		t.Fatalf("by provider id: %v", err)
	}
	if byInternal.ID != byProvider.ID {
		t.Fatalf("expected same record")
	}

	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestList_OnlyRegisteredNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, &fakeGateway{}, nil)

	base := time.Unix(1700000000, 0).UTC()
	for i, pid := range []string{"prov-a", "", "prov-b"} {
		c := Call{
			ID:             "id-" + pid + "x",
			ProviderCallID: pid,
			LeadPhone:      "+15550001111",
			Status:         CallStatusRegistered,
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}
		if pid == "" {
			c.ID = "id-unregistered"
		}
		if err := store.Create(context.Background(), c); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	rows, err := svc.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 registered rows, got %d", len(rows))
	}
	if rows[0].ProviderCallID != "prov-b" {
		t.Fatalf("expected newest first, got %q", rows[0].ProviderCallID)
	}

	capped, _ := svc.List(context.Background(), 1)
	if len(capped) != 1 {
		t.Fatalf("expected limit applied, got %d", len(capped))
	}
}
