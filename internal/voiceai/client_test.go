package voiceai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, defaults ClientConfig) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	defaults.BaseURL = srv.URL
	if defaults.APIKey == "" {
		defaults.APIKey = "key-123"
	}
	c, err := NewClient(defaults)
	if err != nil {
		t.Fatalf("client init: %v", err)
	}
	return c
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestCreatePhoneCall_ResolvesDefaults(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/create-phone-call" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key-123" {
			t.Errorf("missing bearer auth")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(CallInfo{CallID: "prov-1", CallStatus: "registered"})
	}, ClientConfig{DefaultAgentID: "agent-default", DefaultFromNumber: "+15550009999"})

	info, err := c.CreatePhoneCall(context.Background(), CreatePhoneCallRequest{
		ToNumber: "+15550001111",
		Metadata: map[string]any{"internal_call_id": "id-1"},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if info.CallID != "prov-1" {
		t.Fatalf("expected call id, got %q", info.CallID)
	}
	if got["override_agent_id"] != "agent-default" || got["from_number"] != "+15550009999" {
		t.Fatalf("defaults not applied: %v", got)
	}
	if md, ok := got["metadata"].(map[string]any); !ok || md["internal_call_id"] != "id-1" {
		t.Fatalf("metadata not forwarded: %v", got["metadata"])
	}
}

func TestCreatePhoneCall_MissingConfigIsTyped(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("request must not reach the provider")
	}, ClientConfig{})

	_, err := c.CreatePhoneCall(context.Background(), CreatePhoneCallRequest{ToNumber: "+15550001111"})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestCreatePhoneCall_UpstreamFailureIsAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "agent busy", http.StatusServiceUnavailable)
	}, ClientConfig{DefaultAgentID: "a", DefaultFromNumber: "+15550009999"})

	_, err := c.CreatePhoneCall(context.Background(), CreatePhoneCallRequest{ToNumber: "+15550001111"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", apiErr.StatusCode)
	}
}

func TestDeletePhoneNumber_EscapesPath(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.WriteHeader(http.StatusOK)
	}, ClientConfig{})

	if err := c.DeletePhoneNumber(context.Background(), "+15550001111"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if gotPath != "/delete-phone-number/%2B15550001111" {
		t.Fatalf("expected escaped number in path, got %q", gotPath)
	}
}
