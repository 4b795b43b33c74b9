package httpapi

import (
	"errors"
	"io"
	"net/http"

	"callbridge/internal/calls"
	"callbridge/pkg/logger"

	"github.com/gin-gonic/gin"
)

// signatureHeader carries the provider's HMAC of the raw request body.
const signatureHeader = "X-Provider-Signature"

// WebhookHandler feeds provider events into the reconciliation engine.
//
// Response contract: 204 for every accepted event, whether or not a record
// matched, so the provider never retries conditions this system considers
// benign. Only authentication failures (401) and malformed bodies (400)
// are rejected.
type WebhookHandler struct {
	Engine *calls.Engine
}

func (h WebhookHandler) HandleEvent(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Engine == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reconciliation engine not configured"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	ctx := logger.With(c.Request.Context(), log)
	disposition, err := h.Engine.HandleEvent(ctx, body, c.GetHeader(signatureHeader))
	if err != nil {
		switch {
		case errors.Is(err, calls.ErrBadSignature):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook signature"})
		case errors.Is(err, calls.ErrMalformedPayload):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		default:
			log.Error("webhook handling failed", "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	log.Debug("webhook acknowledged", "disposition", disposition)
	c.Status(http.StatusNoContent)
}
