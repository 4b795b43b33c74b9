package calls

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"callbridge/internal/voiceai"
	"callbridge/pkg/logger"

	"github.com/google/uuid"
)

// ErrPlacementFailed wraps provider-side placement failures (network,
// rejection). The provisional record is kept and marked failed for audit;
// the caller must re-invoke if a retry is wanted.
var ErrPlacementFailed = errors.New("calls: placement failed")

// metadataInternalCallID is the reserved metadata key carrying the internal
// record id on the provider's call object, so events echoed back can be
// traced to this record even before the provider call id is known.
const metadataInternalCallID = "internal_call_id"

// Service implements the call initiation flow and read paths.
//
// Guarantees per initiation request: exactly one record created, zero or
// one placement attempt, no retries. The provisional record is committed
// before the gateway is invoked so a queryable row exists even if the
// placement call never returns.
type Service struct {
	store   Store
	gateway voiceai.Gateway

	// engine replays parked events once a provider call id is committed.
	// Optional; nil skips replay.
	engine *Engine

	clock func() time.Time
}

func NewService(store Store, gateway voiceai.Gateway, engine *Engine) *Service {
	return &Service{store: store, gateway: gateway, engine: engine, clock: time.Now}
}

type InitiateCallRequest struct {
	ToNumber   string `json:"to_number"`
	AgentID    string `json:"agent_id,omitempty"`
	FromNumber string `json:"from_number,omitempty"`

	LeadID   string `json:"lead_id,omitempty"`
	LeadName string `json:"lead_name,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

type InitiateCallResult struct {
	InternalCallID string     `json:"internal_call_id"`
	ProviderCallID string     `json:"provider_call_id"`
	Status         CallStatus `json:"status"`
}

func (s *Service) InitiateCall(ctx context.Context, req InitiateCallRequest) (InitiateCallResult, error) {
	log := logger.From(ctx)

	if !isE164(req.ToNumber) {
		return InitiateCallResult{}, fmt.Errorf("%w: to_number must be E.164", ErrInvalidRequest)
	}

	now := s.clock().UTC()
	record := Call{
		ID:        uuid.NewString(),
		LeadID:    defaultString(req.LeadID, "N/A"),
		LeadName:  defaultString(req.LeadName, "Unknown"),
		LeadPhone: req.ToNumber,
		Status:    CallStatusInitiated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, record); err != nil {
		return InitiateCallResult{}, fmt.Errorf("calls: create provisional record: %w", err)
	}

	metadata := map[string]any{}
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	metadata[metadataInternalCallID] = record.ID
	if req.LeadID != "" {
		metadata["lead_id"] = req.LeadID
	}

	var dynamicVars map[string]string
	if req.LeadName != "" {
		dynamicVars = map[string]string{"customer_name": req.LeadName}
	}

	info, err := s.gateway.CreatePhoneCall(ctx, voiceai.CreatePhoneCallRequest{
		ToNumber:         req.ToNumber,
		AgentID:          req.AgentID,
		FromNumber:       req.FromNumber,
		Metadata:         metadata,
		DynamicVariables: dynamicVars,
	})
	if err != nil {
		var cfgErr *voiceai.ConfigError
		if errors.As(err, &cfgErr) {
			// The record never reached the provider; remove it and report a
			// client error.
			if delErr := s.store.Delete(ctx, record.ID); delErr != nil {
				log.Error("provisional record cleanup failed", "call_id", record.ID, "err", delErr)
			}
			return InitiateCallResult{}, err
		}

		// Provider-side failure: keep the record for audit, mark it failed.
		record.Status = CallStatusFailed
		if updErr := s.store.Update(ctx, record); updErr != nil {
			log.Error("failed-status update failed", "call_id", record.ID, "err", updErr)
		}
		log.Error("call placement failed", "call_id", record.ID, "err", err)
		return InitiateCallResult{}, fmt.Errorf("%w: %v", ErrPlacementFailed, err)
	}

	record.ProviderCallID = info.CallID
	record.Status = CallStatus(defaultString(info.CallStatus, string(CallStatusRegistered)))
	if err := s.store.Update(ctx, record); err != nil {
		return InitiateCallResult{}, fmt.Errorf("calls: commit provider call id: %w", err)
	}

	log.Info("call initiated",
		"call_id", record.ID,
		"provider_call_id", record.ProviderCallID,
		"status", record.Status)

	// The provider may have delivered events for this call before the id
	// was committed; replay anything that got parked meanwhile.
	if s.engine != nil {
		s.engine.Replay(ctx, record.ProviderCallID)
	}

	return InitiateCallResult{
		InternalCallID: record.ID,
		ProviderCallID: record.ProviderCallID,
		Status:         record.Status,
	}, nil
}

type WebCallRequest struct {
	AgentID  string         `json:"agent_id,omitempty"`
	LeadName string         `json:"lead_name,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type WebCallResult struct {
	InternalCallID string `json:"internal_call_id"`
	ProviderCallID string `json:"provider_call_id"`
	AccessToken    string `json:"access_token"`
	AgentID        string `json:"agent_id"`
}

// CreateWebCall starts a browser test session. Unlike phone calls the
// provider responds with the call id up front, so the record is created
// after the gateway call with the id already attached.
func (s *Service) CreateWebCall(ctx context.Context, req WebCallRequest) (WebCallResult, error) {
	var dynamicVars map[string]string
	if req.LeadName != "" {
		dynamicVars = map[string]string{"customer_name": req.LeadName}
	}

	info, err := s.gateway.CreateWebCall(ctx, voiceai.CreateWebCallRequest{
		AgentID:          req.AgentID,
		Metadata:         req.Metadata,
		DynamicVariables: dynamicVars,
	})
	if err != nil {
		var cfgErr *voiceai.ConfigError
		if errors.As(err, &cfgErr) {
			return WebCallResult{}, err
		}
		return WebCallResult{}, fmt.Errorf("%w: %v", ErrPlacementFailed, err)
	}

	now := s.clock().UTC()
	record := Call{
		ID:             uuid.NewString(),
		ProviderCallID: info.CallID,
		LeadName:       defaultString(req.LeadName, "Web User"),
		LeadPhone:      "WEB_CALL",
		Status:         CallStatusOngoing,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Create(ctx, record); err != nil {
		return WebCallResult{}, fmt.Errorf("calls: create web call record: %w", err)
	}

	return WebCallResult{
		InternalCallID: record.ID,
		ProviderCallID: info.CallID,
		AccessToken:    info.AccessToken,
		AgentID:        info.AgentID,
	}, nil
}

// List returns registered calls (provider call id present), newest first.
func (s *Service) List(ctx context.Context, limit int) ([]Call, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListRegistered(ctx, limit)
}

// Get retrieves one record by internal id, falling back to provider call
// id so callers can use whichever identifier they hold.
func (s *Service) Get(ctx context.Context, id string) (Call, error) {
	if id == "" {
		return Call{}, ErrInvalidRequest
	}
	c, err := s.store.GetByID(ctx, id)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Call{}, err
	}
	return s.store.GetByProviderCallID(ctx, id)
}

func defaultString(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

// isE164 accepts +<digits>, 8 to 15 digits total.
func isE164(s string) bool {
	if len(s) < 9 || len(s) > 16 || s[0] != '+' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
