package handler

import (
	"context"
	"io"
	"net/http"

	"affiliate-server/internal/clients/platform"
	"affiliate-server/internal/observability"
	"affiliate-server/internal/webhooks/processor"

	"github.com/gin-gonic/gin"
)

const (
	signatureHeader = "X-Platform-Signature"
	maxWebhookBytes = 1 << 20
)

type Handler struct {
	processor processor.WebhookProcessor
	secret    string
	logger    *observability.Logger
}

func New(processor processor.WebhookProcessor, secret string, logger *observability.Logger) Handler {
	return Handler{
		processor: processor,
		secret:    secret,
		logger:    logger,
	}
}

// HandlePlatformWebhook validates the signed payload and always answers 200,
// even on validation failure, so the platform stops retrying. The follow-up
// runs after the response on its own goroutine.
func (h *Handler) HandlePlatformWebhook(c *gin.Context) {
	ctx := c.Request.Context()

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		h.logger.InfoWithError(ctx, "failed to read webhook body", err)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if err := platform.ValidateWebhookSignature(h.secret, payload, c.GetHeader(signatureHeader)); err != nil {
		h.logger.InfoWithError(ctx, "rejecting webhook with invalid signature", err)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	event, err := platform.ParseWebhookEvent(payload)
	if err != nil {
		h.logger.InfoWithError(ctx, "failed to parse webhook event", err)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	go h.processor.ProcessEvent(context.WithoutCancel(ctx), event)

	c.JSON(http.StatusOK, gin.H{"received": true})
}
