// Package cancellation cancels confirmed bookings, refunds them and returns
// the slot to sale.
package cancellation

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingRepo "tutorbook/database/repository/booking"
	paymentRepo "tutorbook/database/repository/payment"
	timeslotRepo "tutorbook/database/repository/timeslot"
	"tutorbook/models"
	"tutorbook/services/payment"

	"go.uber.org/zap"
)

// DefaultWindow is how close to the lesson start cancellation stops.
const DefaultWindow = 24 * time.Hour

type Handler struct {
	bookings bookingRepo.BookingRepository
	slots    timeslotRepo.SlotRepository
	payments paymentRepo.PaymentRepository
	gateway  payment.Gateway
	window   time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func NewHandler(
	bookings bookingRepo.BookingRepository,
	slots timeslotRepo.SlotRepository,
	payments paymentRepo.PaymentRepository,
	gateway payment.Gateway,
	window time.Duration,
	logger *zap.Logger,
) *Handler {
	if window <= 0 {
		window = DefaultWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		bookings: bookings,
		slots:    slots,
		payments: payments,
		gateway:  gateway,
		window:   window,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Cancel refunds and cancels buyerID's confirmed booking and returns the
// refund id. The booking only changes once the gateway has accepted the
// refund. Calling it again on a booking it already cancelled finishes any
// step a failed attempt left behind and returns the same refund id.
func (h *Handler) Cancel(ctx context.Context, bookingID, buyerID string) (string, error) {
	b, err := h.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return "", err
	}
	if b.BuyerID != buyerID {
		return "", fmt.Errorf("booking %s: %w", bookingID, models.ErrNotOwner)
	}
	if b.Status == models.BookingStatusCancelled && b.RefundID != "" {
		if err := h.reopenSlot(ctx, b); err != nil {
			return "", err
		}
		return b.RefundID, nil
	}
	if b.Status != models.BookingStatusConfirmed {
		return "", fmt.Errorf("booking %s is %s: %w", bookingID, b.Status, models.ErrWrongState)
	}
	now := h.now()
	if b.Start.Sub(now) < h.window {
		return "", fmt.Errorf("booking %s starts %s: %w", bookingID, b.Start.Format(time.RFC3339), models.ErrTooLate)
	}

	refund, err := h.gateway.Refund(ctx, payment.RefundRequest{
		PaymentID:      b.PaymentID,
		BookingID:      b.ID,
		IdempotencyKey: payment.RefundKey(b.PaymentID),
	})
	if err != nil {
		h.logger.Warn("Refund request failed, booking unchanged",
			zap.String("bookingId", bookingID),
			zap.Error(err))
		if errors.Is(err, models.ErrGateway) {
			return "", err
		}
		return "", payment.NewGatewayError("refund", err)
	}

	cancelled, err := h.bookings.Transact(ctx, bookingID, func(cur *models.Booking) (*models.Booking, error) {
		if cur == nil {
			return nil, fmt.Errorf("booking %s: %w", bookingID, models.ErrNotFound)
		}
		if cur.Status == models.BookingStatusCancelled && cur.RefundID == refund.ID {
			return nil, nil
		}
		if cur.Status != models.BookingStatusConfirmed {
			return nil, fmt.Errorf("booking %s is %s: %w", bookingID, cur.Status, models.ErrWrongState)
		}
		cur.Status = models.BookingStatusCancelled
		cur.RefundStatus = models.RefundStatusSucceeded
		cur.RefundID = refund.ID
		cur.CancelledAt = &now
		return cur, nil
	})
	if err != nil {
		return "", fmt.Errorf("cancel booking %s: %w", bookingID, err)
	}

	if err := h.reopenSlot(ctx, cancelled); err != nil {
		return "", err
	}

	if err := h.payments.SetRefundStatus(ctx, b.PaymentID, models.RefundStatusPending); err != nil {
		h.logger.Warn("Could not mark payment refund pending",
			zap.String("paymentId", b.PaymentID),
			zap.Error(err))
	}

	h.logger.Info("Booking cancelled",
		zap.String("bookingId", bookingID),
		zap.String("refundId", refund.ID))
	return refund.ID, nil
}

// reopenSlot frees the booking's slot if this booking still holds it.
func (h *Handler) reopenSlot(ctx context.Context, b *models.Booking) error {
	_, err := h.slots.Transact(ctx, b.SlotID, func(cur *models.Slot) (*models.Slot, error) {
		if cur == nil || !cur.IsBooked || cur.BookedBy != b.ID {
			return nil, nil
		}
		cur.IsBooked = false
		cur.BookedBy = ""
		cur.ClearHold()
		return cur, nil
	})
	if err != nil {
		return fmt.Errorf("reopen slot %s: %w", b.SlotID, err)
	}
	return nil
}
