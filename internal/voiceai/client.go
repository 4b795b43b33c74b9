package voiceai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.retellai.com"

// Client is the REST implementation of Gateway. Construct once at startup
// and share across requests; it has no mutable state after construction.
type Client struct {
	baseURL string
	apiKey  string

	// Process-wide defaults applied when a request omits them. Resolution
	// happens here, at the provider boundary, so the initiation flow only
	// has to distinguish *ConfigError from upstream failures.
	defaultAgentID    string
	defaultFromNumber string

	httpc *http.Client
}

type ClientConfig struct {
	BaseURL string
	APIKey  string

	DefaultAgentID    string
	DefaultFromNumber string

	Timeout time.Duration
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &ConfigError{Reason: "api key is not set"}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:           base,
		apiKey:            cfg.APIKey,
		defaultAgentID:    cfg.DefaultAgentID,
		defaultFromNumber: cfg.DefaultFromNumber,
		httpc:             &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) Name() string { return "voiceai" }

func (c *Client) CreatePhoneCall(ctx context.Context, req CreatePhoneCallRequest) (CallInfo, error) {
	agentID := req.AgentID
	if agentID == "" {
		agentID = c.defaultAgentID
	}
	fromNumber := req.FromNumber
	if fromNumber == "" {
		fromNumber = c.defaultFromNumber
	}
	if agentID == "" {
		return CallInfo{}, &ConfigError{Reason: "no agent_id provided and no default configured"}
	}
	if fromNumber == "" {
		return CallInfo{}, &ConfigError{Reason: "no from_number provided and no default configured"}
	}

	body := map[string]any{
		"from_number":       fromNumber,
		"to_number":         req.ToNumber,
		"override_agent_id": agentID,
	}
	if len(req.Metadata) > 0 {
		body["metadata"] = req.Metadata
	}
	if len(req.DynamicVariables) > 0 {
		body["retell_llm_dynamic_variables"] = req.DynamicVariables
	}

	var out CallInfo
	if err := c.do(ctx, http.MethodPost, "/v2/create-phone-call", body, &out); err != nil {
		return CallInfo{}, err
	}
	return out, nil
}

func (c *Client) CreateWebCall(ctx context.Context, req CreateWebCallRequest) (WebCallInfo, error) {
	agentID := req.AgentID
	if agentID == "" {
		agentID = c.defaultAgentID
	}
	if agentID == "" {
		return WebCallInfo{}, &ConfigError{Reason: "no agent_id provided and no default configured"}
	}

	body := map[string]any{"agent_id": agentID}
	if len(req.Metadata) > 0 {
		body["metadata"] = req.Metadata
	}
	if len(req.DynamicVariables) > 0 {
		body["retell_llm_dynamic_variables"] = req.DynamicVariables
	}

	var out WebCallInfo
	if err := c.do(ctx, http.MethodPost, "/v2/create-web-call", body, &out); err != nil {
		return WebCallInfo{}, err
	}
	return out, nil
}

func (c *Client) ImportPhoneNumber(ctx context.Context, req ImportPhoneNumberRequest) (PhoneNumber, error) {
	if req.PhoneNumber == "" || req.TerminationURI == "" {
		return PhoneNumber{}, &ConfigError{Reason: "phone_number and termination_uri are required"}
	}
	if req.InboundAgentID == "" {
		req.InboundAgentID = c.defaultAgentID
	}
	if req.OutboundAgentID == "" {
		req.OutboundAgentID = c.defaultAgentID
	}
	if req.Transport == "" {
		req.Transport = "TCP"
	}

	var out PhoneNumber
	if err := c.do(ctx, http.MethodPost, "/import-phone-number", req, &out); err != nil {
		return PhoneNumber{}, err
	}
	return out, nil
}

func (c *Client) ListPhoneNumbers(ctx context.Context) ([]PhoneNumber, error) {
	var out []PhoneNumber
	if err := c.do(ctx, http.MethodGet, "/list-phone-numbers", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeletePhoneNumber(ctx context.Context, number string) error {
	if number == "" {
		return &ConfigError{Reason: "phone_number is required"}
	}
	return c.do(ctx, http.MethodDelete, "/delete-phone-number/"+url.PathEscape(number), nil, nil)
}

// APIError is a non-2xx response from the provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("voiceai: provider returned %d: %s", e.StatusCode, e.Body)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("voiceai: encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("voiceai: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("voiceai: decode response: %w", err)
	}
	return nil
}
