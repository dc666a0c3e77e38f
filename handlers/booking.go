package handlers

import (
	"context"
	"net/http"

	"tutorbook/middleware"
	"tutorbook/models"
	"tutorbook/services/checkout"
	"tutorbook/utils"

	"github.com/gin-gonic/gin"
)

type HoldService interface {
	Acquire(ctx context.Context, slotID, buyerID string) (*models.Slot, error)
	Release(ctx context.Context, slotID, buyerID string) error
}

type CheckoutService interface {
	Start(ctx context.Context, bookingID, buyerID string) (*checkout.Session, error)
}

type CancellationService interface {
	Cancel(ctx context.Context, bookingID, buyerID string) (string, error)
}

// BookingHandler serves the buyer-facing reservation endpoints.
type BookingHandler struct {
	Holds        HoldService
	Checkout     CheckoutService
	Cancellation CancellationService
}

func NewBookingHandler(holds HoldService, checkout CheckoutService, cancellation CancellationService) *BookingHandler {
	return &BookingHandler{
		Holds:        holds,
		Checkout:     checkout,
		Cancellation: cancellation,
	}
}

func (h *BookingHandler) AcquireHoldHandler(c *gin.Context) {
	buyerID, ok := buyerFrom(c)
	if !ok {
		return
	}
	slot, err := h.Holds.Acquire(c.Request.Context(), c.Param("slotId"), buyerID)
	if err != nil {
		utils.DomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slotId": slot.ID, "holdUntil": slot.HoldUntil})
}

func (h *BookingHandler) ReleaseHoldHandler(c *gin.Context) {
	buyerID, ok := buyerFrom(c)
	if !ok {
		return
	}
	if err := h.Holds.Release(c.Request.Context(), c.Param("slotId"), buyerID); err != nil {
		utils.DomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *BookingHandler) StartCheckoutHandler(c *gin.Context) {
	buyerID, ok := buyerFrom(c)
	if !ok {
		return
	}
	sess, err := h.Checkout.Start(c.Request.Context(), c.Param("bookingId"), buyerID)
	if err != nil {
		utils.DomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *BookingHandler) CancelBookingHandler(c *gin.Context) {
	buyerID, ok := buyerFrom(c)
	if !ok {
		return
	}
	refundID, err := h.Cancellation.Cancel(c.Request.Context(), c.Param("bookingId"), buyerID)
	if err != nil {
		utils.DomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refundId": refundID})
}

// buyerFrom reads the buyer set by the auth middleware.
func buyerFrom(c *gin.Context) (string, bool) {
	buyerID := middleware.UserID(c)
	if buyerID == "" {
		c.JSON(http.StatusUnauthorized, utils.ErrorResponse{Message: "User ID not found in context", Code: "unauthorized"})
		return "", false
	}
	return buyerID, true
}
