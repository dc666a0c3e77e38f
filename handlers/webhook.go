package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"tutorbook/models"
	"tutorbook/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxWebhookBody caps the payload read before signature verification.
const maxWebhookBody = 64 << 10

type WebhookProcessor interface {
	HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error
}

type WebhookHandler struct {
	Processor WebhookProcessor
}

func NewWebhookHandler(p WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{Processor: p}
}

// PaymentWebhookHandler answers 200 once an event is applied or ignored,
// 400 for an unverifiable payload (the gateway does not retry those), 413 for
// a body over maxWebhookBody and 500 otherwise so the gateway redelivers.
func (h *WebhookHandler) PaymentWebhookHandler(c *gin.Context) {
	logger := utils.GetLogger()

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		utils.JSONError(c, http.StatusRequestEntityTooLarge, "Webhook body too large", err.Error())
		return
	}
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Could not read webhook body", err.Error())
		return
	}

	err = h.Processor.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"received": true})
	case errors.Is(err, models.ErrInvalidSignature):
		c.JSON(http.StatusBadRequest, utils.ErrorResponse{Message: "invalid signature", Code: "invalid_signature"})
	default:
		logger.Error("Webhook processing failed, awaiting redelivery", zap.Error(err))
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse{Message: "processing failed", Code: "internal"})
	}
}
