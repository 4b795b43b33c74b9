package voiceai

import (
	"context"
	"fmt"
)

// Gateway is the provider-agnostic contract the rest of the service depends
// on. One long-lived implementation is constructed at process start from
// config and shared read-only across request handlers.
//
// Rules:
// - No provider HTTP calls outside this package.
// - Failures that mean "this process is not configured to place calls"
//   must be reported as *ConfigError so callers can distinguish them from
//   provider rejections.
type Gateway interface {
	Name() string

	CreatePhoneCall(ctx context.Context, req CreatePhoneCallRequest) (CallInfo, error)
	CreateWebCall(ctx context.Context, req CreateWebCallRequest) (WebCallInfo, error)

	ImportPhoneNumber(ctx context.Context, req ImportPhoneNumberRequest) (PhoneNumber, error)
	ListPhoneNumbers(ctx context.Context) ([]PhoneNumber, error)
	DeletePhoneNumber(ctx context.Context, number string) error
}

// ConfigError means a required piece of provider configuration (agent id,
// caller number) could not be resolved. The placement never reached the
// provider; callers report it as a client error and do not retry.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("voiceai: configuration missing: %s", e.Reason)
}

type CreatePhoneCallRequest struct {
	// ToNumber is the destination in E.164 format.
	ToNumber string

	// AgentID and FromNumber override the process-wide defaults when set.
	AgentID    string
	FromNumber string

	// Metadata is stored on the provider's call object and echoed back in
	// webhook events; the initiation flow uses it to carry the internal
	// call id before the provider call id is known.
	Metadata map[string]any

	// DynamicVariables are injected into the agent's prompt at runtime.
	DynamicVariables map[string]string
}

// CallInfo is the provider's immediate response to call placement.
type CallInfo struct {
	CallID     string `json:"call_id"`
	CallStatus string `json:"call_status"`
	AgentID    string `json:"agent_id"`
}

type CreateWebCallRequest struct {
	AgentID          string
	Metadata         map[string]any
	DynamicVariables map[string]string
}

// WebCallInfo describes a browser test session.
type WebCallInfo struct {
	CallID      string `json:"call_id"`
	AccessToken string `json:"access_token"`
	AgentID     string `json:"agent_id"`
	CallStatus  string `json:"call_status"`
}

type ImportPhoneNumberRequest struct {
	PhoneNumber    string `json:"phone_number"`
	TerminationURI string `json:"termination_uri"`

	SIPTrunkAuthUsername string `json:"sip_trunk_auth_username,omitempty"`
	SIPTrunkAuthPassword string `json:"sip_trunk_auth_password,omitempty"`

	InboundAgentID  string `json:"inbound_agent_id,omitempty"`
	OutboundAgentID string `json:"outbound_agent_id,omitempty"`

	Nickname  string `json:"nickname,omitempty"`
	Transport string `json:"transport,omitempty"`
}

type PhoneNumber struct {
	PhoneNumber     string `json:"phone_number"`
	PhoneNumberType string `json:"phone_number_type,omitempty"`
	Nickname        string `json:"nickname,omitempty"`
	InboundAgentID  string `json:"inbound_agent_id,omitempty"`
	OutboundAgentID string `json:"outbound_agent_id,omitempty"`
}
