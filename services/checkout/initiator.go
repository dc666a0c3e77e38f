// Package checkout starts payment for a pending booking once its slot is held.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	bookingRepo "tutorbook/database/repository/booking"
	userRepo "tutorbook/database/repository/user"
	"tutorbook/models"
	"tutorbook/services/hold"
	"tutorbook/services/payment"

	"go.uber.org/zap"
)

// Session is where the buyer goes to pay.
type Session struct {
	RedirectURL string `json:"redirectUrl"`
	SessionID   string `json:"sessionId"`
}

type Initiator struct {
	bookings bookingRepo.BookingRepository
	profiles userRepo.UserRepository
	holds    *hold.Manager
	gateway  payment.Gateway
	pricing  Pricing
	logger   *zap.Logger
}

func NewInitiator(
	bookings bookingRepo.BookingRepository,
	profiles userRepo.UserRepository,
	holds *hold.Manager,
	gateway payment.Gateway,
	pricing Pricing,
	logger *zap.Logger,
) *Initiator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Initiator{
		bookings: bookings,
		profiles: profiles,
		holds:    holds,
		gateway:  gateway,
		pricing:  pricing,
		logger:   logger,
	}
}

// Start holds the booking's slot for buyerID and opens a checkout session.
// Besides the hold it mutates nothing; a failed gateway call leaves the hold
// in place so the buyer can retry until it expires.
func (i *Initiator) Start(ctx context.Context, bookingID, buyerID string) (*Session, error) {
	b, err := i.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.BuyerID != buyerID {
		return nil, fmt.Errorf("booking %s: %w", bookingID, models.ErrNotOwner)
	}
	if b.Status != models.BookingStatusPendingPayment {
		return nil, fmt.Errorf("booking %s is %s: %w", bookingID, b.Status, models.ErrWrongState)
	}

	slot, err := i.holds.Acquire(ctx, b.SlotID, buyerID)
	if err != nil {
		if isSlotRejection(err) {
			return nil, fmt.Errorf("%w: %w", models.ErrSlotUnavailable, err)
		}
		return nil, fmt.Errorf("acquire hold on slot %s: %w", b.SlotID, err)
	}

	discount, err := i.discountApproved(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	tier := TierFor(slot.Level, discount)
	amount, err := i.pricing.Tiers.PriceFor(tier)
	if err != nil {
		i.logger.Error("No price configured for tier",
			zap.String("tier", tier),
			zap.String("bookingId", bookingID),
			zap.String("slotId", slot.ID))
		return nil, err
	}

	sess, err := i.gateway.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		BookingID:      b.ID,
		BuyerID:        buyerID,
		SlotID:         slot.ID,
		Description:    describe(slot),
		Amount:         amount,
		Currency:       i.currencyFor(b),
		IdempotencyKey: payment.CheckoutKey(b.ID),
		ExpiresAt:      *slot.HoldUntil,
	})
	if err != nil {
		i.logger.Warn("Checkout session failed, hold kept",
			zap.String("bookingId", bookingID),
			zap.Error(err))
		if errors.Is(err, models.ErrGateway) {
			return nil, err
		}
		return nil, payment.NewGatewayError("create checkout session", err)
	}

	i.logger.Info("Checkout started",
		zap.String("bookingId", bookingID),
		zap.String("buyerId", buyerID),
		zap.String("tier", tier),
		zap.Int64("amount", amount))
	return &Session{RedirectURL: sess.RedirectURL, SessionID: sess.ID}, nil
}

func (i *Initiator) discountApproved(ctx context.Context, buyerID string) (bool, error) {
	profile, err := i.profiles.GetProfile(ctx, buyerID)
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load profile %s: %w", buyerID, err)
	}
	return profile.DiscountApproved, nil
}

func (i *Initiator) currencyFor(b *models.Booking) string {
	if b.Currency != "" {
		return b.Currency
	}
	return i.pricing.Currency
}

func isSlotRejection(err error) bool {
	return errors.Is(err, models.ErrSlotGone) ||
		errors.Is(err, models.ErrSlotBooked) ||
		errors.Is(err, models.ErrHeldByOther)
}

func describe(slot *models.Slot) string {
	parts := []string{"Tutoring"}
	if slot.Subject != "" {
		parts = append(parts, slot.Subject)
	}
	if slot.Level != "" {
		parts = append(parts, "("+strings.ToUpper(slot.Level)+")")
	}
	parts = append(parts, slot.Start.Format("Mon 2 Jan 15:04"))
	return strings.Join(parts, " ")
}
