package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"callbridge/internal/calls"
	"callbridge/internal/voiceai"
	"callbridge/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Calls   *calls.Service
	Gateway voiceai.Gateway
}

// --- Calls ---

// InitiateCall places an outbound call via the provider.
// 400: unresolvable configuration or bad input (record deleted).
// 502: provider rejected or unreachable (record kept, marked failed).
func (h Handlers) InitiateCall(c *gin.Context) {
	var req calls.InitiateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	res, err := h.Calls.InitiateCall(c.Request.Context(), req)
	if err != nil {
		var cfgErr *voiceai.ConfigError
		switch {
		case errors.As(err, &cfgErr), errors.Is(err, calls.ErrInvalidRequest):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, calls.ErrPlacementFailed):
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		default:
			logger.FromGin(c).Error("call initiation failed", "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"internal_call_id": res.InternalCallID,
		"provider_call_id": res.ProviderCallID,
		"status":           res.Status,
		"to_number":        req.ToNumber,
		"lead_name":        req.LeadName,
	})
}

// CreateWebCall starts a browser-based test session against the agent.
func (h Handlers) CreateWebCall(c *gin.Context) {
	var req calls.WebCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	res, err := h.Calls.CreateWebCall(c.Request.Context(), req)
	if err != nil {
		var cfgErr *voiceai.ConfigError
		switch {
		case errors.As(err, &cfgErr):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, calls.ErrPlacementFailed):
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		default:
			logger.FromGin(c).Error("web call creation failed", "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"internal_call_id": res.InternalCallID,
		"call_id":          res.ProviderCallID,
		"access_token":     res.AccessToken,
		"agent_id":         res.AgentID,
	})
}

// callSummary is the list representation: a strict subset of the detail
// fields, never the transcript body.
type callSummary struct {
	ID             string           `json:"id"`
	ProviderCallID string           `json:"provider_call_id"`
	LeadName       string           `json:"lead_name,omitempty"`
	LeadPhone      string           `json:"lead_phone"`
	Status         calls.CallStatus `json:"status"`
	DurationMs     int64            `json:"duration_ms,omitempty"`
	HasTranscript  bool             `json:"has_transcript"`
	HasSummary     bool             `json:"has_summary"`
	RecordingURL   string           `json:"recording_url,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

func (h Handlers) ListCalls(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	rows, err := h.Calls.List(c.Request.Context(), limit)
	if err != nil {
		logger.FromGin(c).Error("call listing failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	out := make([]callSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, callSummary{
			ID:             r.ID,
			ProviderCallID: r.ProviderCallID,
			LeadName:       r.LeadName,
			LeadPhone:      r.LeadPhone,
			Status:         r.Status,
			DurationMs:     r.DurationMs,
			HasTranscript:  r.Transcript != "",
			HasSummary:     r.CallSummary != "",
			RecordingURL:   r.RecordingURL,
			CreatedAt:      r.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"total": len(out), "calls": out})
}

// GetCall retrieves one record by internal id or provider call id,
// including the full transcript and summary.
func (h Handlers) GetCall(c *gin.Context) {
	id := c.Param("id")
	rec, err := h.Calls.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, calls.ErrNotFound) || errors.Is(err, calls.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
			return
		}
		logger.FromGin(c).Error("call lookup failed", "id", id, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// --- Phone numbers (provider passthrough) ---

func (h Handlers) ImportPhoneNumber(c *gin.Context) {
	var req voiceai.ImportPhoneNumberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	res, err := h.Gateway.ImportPhoneNumber(c.Request.Context(), req)
	if err != nil {
		var cfgErr *voiceai.ConfigError
		if errors.As(err, &cfgErr) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.FromGin(c).Error("phone number import failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "phone_number": res})
}

func (h Handlers) ListPhoneNumbers(c *gin.Context) {
	numbers, err := h.Gateway.ListPhoneNumbers(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("phone number listing failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(numbers), "phone_numbers": numbers})
}

func (h Handlers) DeletePhoneNumber(c *gin.Context) {
	// Wildcard route keeps the leading slash.
	number := c.Param("number")
	if len(number) > 0 && number[0] == '/' {
		number = number[1:]
	}
	if number == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "phone number required"})
		return
	}
	if err := h.Gateway.DeletePhoneNumber(c.Request.Context(), number); err != nil {
		logger.FromGin(c).Error("phone number deletion failed", "number", number, "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "phone_number": number})
}
