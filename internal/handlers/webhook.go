package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"heysheet/internal/webhook"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type DeliveryRelay interface {
	Relay(ctx context.Context, job webhook.Job) (*webhook.DeliveryResult, error)
}

// WebhookHandler exposes the dispatcher as an HTTP function. The caller owns
// the retry schedule: a failed delivery is answered with the next retry
// count and delay, and the caller re-invokes with them.
type WebhookHandler struct {
	relay DeliveryRelay
}

func NewWebhookHandler(relay DeliveryRelay) *WebhookHandler {
	return &WebhookHandler{relay: relay}
}

type deliveryRequest struct {
	WebhookURL string          `json:"webhookUrl"`
	Payload    json.RawMessage `json:"payload"`
	Secret     string          `json:"secret"`
	Retries    int             `json:"retries"`
}

// Deliver POST /functions/v1/webhook-delivery
func (h *WebhookHandler) Deliver(c *gin.Context) {
	var req deliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	result, err := h.relay.Relay(c.Request.Context(), webhook.Job{
		ID:         uuid.New().String(),
		WebhookURL: req.WebhookURL,
		Payload:    req.Payload,
		Secret:     req.Secret,
		Retries:    req.Retries,
	})
	if errors.Is(err, webhook.ErrInvalidRequest) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		log.Printf("webhook: delivery to %s failed: %v", req.WebhookURL, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	switch {
	case result.Success:
		c.JSON(http.StatusOK, gin.H{"success": true})
	case result.RetryNeeded:
		c.JSON(http.StatusBadGateway, gin.H{
			"error":      "Webhook delivery failed",
			"status":     result.Status,
			"statusText": result.StatusText,
			"retries":    result.Retries,
			"delay":      result.Delay.Milliseconds(),
		})
	default:
		c.JSON(http.StatusBadGateway, gin.H{
			"error":      "Max retries exceeded",
			"status":     result.Status,
			"statusText": result.StatusText,
			"retries":    result.Retries,
		})
	}
}
