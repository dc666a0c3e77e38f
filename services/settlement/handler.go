// Package settlement applies signed payment webhook events to bookings,
// slots and payment records. Every event may arrive more than once; handling
// is keyed on the gateway payment id so a redelivery changes nothing.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingRepo "tutorbook/database/repository/booking"
	paymentRepo "tutorbook/database/repository/payment"
	timeslotRepo "tutorbook/database/repository/timeslot"
	"tutorbook/models"
	"tutorbook/services/notification"
	"tutorbook/services/payment"

	"go.uber.org/zap"
)

type Handler struct {
	slots    timeslotRepo.SlotRepository
	bookings bookingRepo.BookingRepository
	payments paymentRepo.PaymentRepository
	gateway  payment.Gateway
	queue    notification.Queue
	logger   *zap.Logger
	now      func() time.Time
}

func NewHandler(
	slots timeslotRepo.SlotRepository,
	bookings bookingRepo.BookingRepository,
	payments paymentRepo.PaymentRepository,
	gateway payment.Gateway,
	queue notification.Queue,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		slots:    slots,
		bookings: bookings,
		payments: payments,
		gateway:  gateway,
		queue:    queue,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// HandleWebhook verifies and applies one gateway delivery. A nil return
// acknowledges the event; models.ErrInvalidSignature must be answered with a
// non-retryable rejection; any other error asks the gateway to redeliver.
func (h *Handler) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	ev, err := h.gateway.ParseEvent(payload, signatureHeader)
	if err != nil {
		if errors.Is(err, models.ErrInvalidSignature) {
			h.logger.Warn("Rejected webhook with invalid signature", zap.Error(err))
		}
		return err
	}
	return h.Apply(ctx, ev)
}

// Apply dispatches a verified event.
func (h *Handler) Apply(ctx context.Context, ev payment.Event) error {
	switch e := ev.(type) {
	case payment.CheckoutCompleted:
		return h.handleCheckoutCompleted(ctx, e)
	case payment.ChargeRefunded:
		return h.handleChargeRefunded(ctx, e)
	case payment.UnknownEvent:
		h.logger.Info("Ignoring payment event",
			zap.String("eventId", e.EventID),
			zap.String("type", e.Type),
			zap.String("reason", e.Reason))
		return nil
	default:
		h.logger.Warn("Unhandled event variant", zap.String("eventId", payment.EventID(ev)))
		return nil
	}
}

func (h *Handler) handleCheckoutCompleted(ctx context.Context, e payment.CheckoutCompleted) error {
	log := h.logger.With(
		zap.String("eventId", e.EventID),
		zap.String("bookingId", e.BookingID),
		zap.String("paymentId", e.PaymentID))

	b, err := h.bookings.GetByID(ctx, e.BookingID)
	if errors.Is(err, models.ErrNotFound) {
		return h.orphan(ctx, e, nil, "booking does not exist")
	}
	if err != nil {
		return err
	}
	if b.PaymentID == e.PaymentID && b.Status == models.BookingStatusCancelled {
		log.Info("Payment already settled and cancelled")
		return nil
	}
	if reason := bookingConflict(b, e.PaymentID); reason != "" {
		return h.orphan(ctx, e, b, reason)
	}
	if e.SlotID != "" && e.SlotID != b.SlotID {
		log.Warn("Event slot differs from booking slot, using booking",
			zap.String("eventSlotId", e.SlotID),
			zap.String("slotId", b.SlotID))
	}

	slot, err := h.slots.GetByID(ctx, b.SlotID)
	if errors.Is(err, models.ErrNotFound) {
		return h.revertAndOrphan(ctx, e, b, "slot no longer exists")
	}
	if err != nil {
		return err
	}
	if slot.IsBooked && slot.BookedBy != b.ID {
		return h.revertAndOrphan(ctx, e, b, "slot sold to booking "+slot.BookedBy)
	}

	paidAt := h.now()
	confirmed, err := h.bookings.Transact(ctx, b.ID, func(cur *models.Booking) (*models.Booking, error) {
		if cur == nil {
			return nil, fmt.Errorf("booking %s: %w", b.ID, models.ErrNotFound)
		}
		if cur.Status == models.BookingStatusConfirmed && cur.PaymentID == e.PaymentID {
			return nil, nil
		}
		if reason := bookingConflict(cur, e.PaymentID); reason != "" {
			return nil, fmt.Errorf("%s: %w", reason, models.ErrWrongState)
		}
		cur.Status = models.BookingStatusConfirmed
		cur.PaymentID = e.PaymentID
		cur.PaidAt = &paidAt
		if e.Amount > 0 {
			cur.Price = e.Amount
		}
		if e.Currency != "" {
			cur.Currency = e.Currency
		}
		return cur, nil
	})
	if errors.Is(err, models.ErrWrongState) {
		return h.orphan(ctx, e, b, err.Error())
	}
	if err != nil {
		return fmt.Errorf("confirm booking %s: %w", b.ID, err)
	}

	_, err = h.slots.Transact(ctx, confirmed.SlotID, func(cur *models.Slot) (*models.Slot, error) {
		if cur == nil {
			return nil, fmt.Errorf("slot %s: %w", confirmed.SlotID, models.ErrSlotGone)
		}
		if cur.IsBooked && cur.BookedBy == confirmed.ID {
			return nil, nil
		}
		if cur.IsBooked {
			return nil, fmt.Errorf("slot %s booked by %s: %w", cur.ID, cur.BookedBy, models.ErrSlotConflict)
		}
		cur.IsBooked = true
		cur.BookedBy = confirmed.ID
		cur.ClearHold()
		return cur, nil
	})
	if errors.Is(err, models.ErrSlotConflict) {
		// Another settlement won the slot between the read and this write.
		if rerr := h.revertConfirmation(ctx, confirmed.ID, e.PaymentID); rerr != nil {
			return rerr
		}
		return h.orphan(ctx, e, confirmed, err.Error())
	}
	if err != nil {
		log.Error("Booking confirmed but slot not marked booked", zap.Error(err))
		return fmt.Errorf("book slot %s: %w", confirmed.SlotID, err)
	}

	_, err = h.payments.CreateIfAbsent(ctx, &models.Payment{
		PaymentID: e.PaymentID,
		BookingID: confirmed.ID,
		BuyerID:   confirmed.BuyerID,
		Amount:    e.Amount,
		Currency:  e.Currency,
		Status:    models.PaymentStatusSucceeded,
		CreatedAt: paidAt,
	})
	if err != nil {
		return fmt.Errorf("record payment %s: %w", e.PaymentID, err)
	}

	err = h.queue.EnqueueBookingConfirmed(ctx, models.BookingConfirmedPayload{
		BookingID:  confirmed.ID,
		BuyerID:    confirmed.BuyerID,
		ProviderID: confirmed.ProviderID,
		SlotID:     confirmed.SlotID,
		PaymentID:  e.PaymentID,
		Amount:     e.Amount,
		Currency:   e.Currency,
		Start:      confirmed.Start,
	})
	if err != nil {
		return err
	}

	log.Info("Booking settled", zap.String("slotId", confirmed.SlotID))
	return nil
}

// bookingConflict explains why paymentID cannot confirm b, or returns "".
func bookingConflict(b *models.Booking, paymentID string) string {
	switch {
	case b.Status == models.BookingStatusCancelled:
		return "booking is cancelled"
	case b.Status == models.BookingStatusConfirmed && b.PaymentID != paymentID:
		return "booking already paid by " + b.PaymentID
	}
	return ""
}

// revertConfirmation undoes a confirmation this payment made when the slot
// turned out to belong to another booking.
func (h *Handler) revertConfirmation(ctx context.Context, bookingID, paymentID string) error {
	_, err := h.bookings.Transact(ctx, bookingID, func(cur *models.Booking) (*models.Booking, error) {
		if cur == nil || cur.Status != models.BookingStatusConfirmed || cur.PaymentID != paymentID {
			return nil, nil
		}
		cur.Status = models.BookingStatusPendingPayment
		cur.PaymentID = ""
		cur.PaidAt = nil
		return cur, nil
	})
	if err != nil {
		return fmt.Errorf("revert booking %s: %w", bookingID, err)
	}
	return nil
}

// revertAndOrphan orphans a payment whose booking cannot keep its slot. A
// redelivery may find the booking already confirmed by this payment from an
// earlier attempt whose revert failed; that confirmation is undone first.
func (h *Handler) revertAndOrphan(ctx context.Context, e payment.CheckoutCompleted, b *models.Booking, reason string) error {
	if b.Status == models.BookingStatusConfirmed && b.PaymentID == e.PaymentID {
		if err := h.revertConfirmation(ctx, b.ID, e.PaymentID); err != nil {
			return err
		}
	}
	return h.orphan(ctx, e, b, reason)
}

// orphan records a payment that cannot confirm its booking and refunds it.
// The event is then acknowledged.
func (h *Handler) orphan(ctx context.Context, e payment.CheckoutCompleted, b *models.Booking, reason string) error {
	rec := &models.Payment{
		PaymentID:    e.PaymentID,
		BookingID:    e.BookingID,
		BuyerID:      e.BuyerID,
		Amount:       e.Amount,
		Currency:     e.Currency,
		Status:       models.PaymentStatusOrphaned,
		RefundStatus: models.RefundStatusPending,
		CreatedAt:    h.now(),
	}
	if b != nil {
		rec.BuyerID = b.BuyerID
	}
	if _, err := h.payments.CreateIfAbsent(ctx, rec); err != nil {
		return fmt.Errorf("record orphaned payment %s: %w", e.PaymentID, err)
	}

	refund, err := h.gateway.Refund(ctx, payment.RefundRequest{
		PaymentID:      e.PaymentID,
		BookingID:      e.BookingID,
		IdempotencyKey: payment.RefundKey(e.PaymentID),
	})
	if err != nil {
		return fmt.Errorf("refund orphaned payment %s: %w", e.PaymentID, err)
	}

	h.logger.Error("Payment could not be settled, refunded",
		zap.String("eventId", e.EventID),
		zap.String("bookingId", e.BookingID),
		zap.String("paymentId", e.PaymentID),
		zap.String("refundId", refund.ID),
		zap.String("reason", reason),
		zap.Error(models.ErrSlotConflict))
	return nil
}

func (h *Handler) handleChargeRefunded(ctx context.Context, e payment.ChargeRefunded) error {
	err := h.payments.SetRefundStatus(ctx, e.PaymentID, models.RefundStatusSucceeded)
	if errors.Is(err, models.ErrNotFound) {
		h.logger.Warn("Refund for unknown payment",
			zap.String("eventId", e.EventID),
			zap.String("paymentId", e.PaymentID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark payment %s refunded: %w", e.PaymentID, err)
	}
	h.logger.Info("Refund settled", zap.String("paymentId", e.PaymentID))
	return nil
}
