// File: tutorbook/handlers/bundle.go
package handlers

import (
	"github.com/gin-gonic/gin"
)

// HandlerBundle groups all endpoint handlers into one struct.
type HandlerBundle struct {
	// Buyer endpoints
	AcquireHoldHandler   gin.HandlerFunc
	ReleaseHoldHandler   gin.HandlerFunc
	StartCheckoutHandler gin.HandlerFunc
	CancelBookingHandler gin.HandlerFunc

	// Gateway callbacks
	PaymentWebhookHandler gin.HandlerFunc

	HealthHandler gin.HandlerFunc
}

// NewHandlerBundle wires the handler methods into a bundle.
func NewHandlerBundle(bookings *BookingHandler, webhooks *WebhookHandler) *HandlerBundle {
	return &HandlerBundle{
		AcquireHoldHandler:    bookings.AcquireHoldHandler,
		ReleaseHoldHandler:    bookings.ReleaseHoldHandler,
		StartCheckoutHandler:  bookings.StartCheckoutHandler,
		CancelBookingHandler:  bookings.CancelBookingHandler,
		PaymentWebhookHandler: webhooks.PaymentWebhookHandler,
		HealthHandler:         HealthHandler,
	}
}
