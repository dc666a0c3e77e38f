// Package payment adapts the card payment provider: checkout sessions,
// refunds and signed webhook events mapped to a closed set of variants.
package payment

import (
	"context"
	"fmt"
	"time"

	"tutorbook/models"
)

// Gateway is the payment provider as the booking core sees it.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	// Refund refunds the full payment. Repeated calls for one payment return
	// the same refund.
	Refund(ctx context.Context, req RefundRequest) (*Refund, error)
	// ParseEvent verifies the signature and decodes the payload. Unverifiable
	// payloads fail with models.ErrInvalidSignature.
	ParseEvent(payload []byte, signatureHeader string) (Event, error)
}

type CheckoutRequest struct {
	BookingID   string
	BuyerID     string
	SlotID      string
	Description string
	Amount      int64 // minor units
	Currency    string
	// IdempotencyKey collapses repeated requests into one session.
	IdempotencyKey string
	ExpiresAt      time.Time
}

type CheckoutSession struct {
	ID          string
	RedirectURL string
}

type RefundRequest struct {
	PaymentID      string
	BookingID      string
	IdempotencyKey string
}

type Refund struct {
	ID     string
	Status string
}

// Event is one of CheckoutCompleted, ChargeRefunded or UnknownEvent.
type Event interface {
	eventID() string
}

// CheckoutCompleted reports a paid checkout session.
type CheckoutCompleted struct {
	EventID   string
	BookingID string
	BuyerID   string
	SlotID    string
	PaymentID string
	Amount    int64
	Currency  string
}

// ChargeRefunded reports that a refund settled.
type ChargeRefunded struct {
	EventID   string
	PaymentID string
}

// UnknownEvent is anything else. It is acknowledged and not processed.
type UnknownEvent struct {
	EventID string
	Type    string
	Reason  string
}

func (e CheckoutCompleted) eventID() string { return e.EventID }
func (e ChargeRefunded) eventID() string    { return e.EventID }
func (e UnknownEvent) eventID() string      { return e.EventID }

// EventID returns the provider's id for any event variant.
func EventID(e Event) string {
	if e == nil {
		return ""
	}
	return e.eventID()
}

// GatewayError wraps a failed provider call. It matches models.ErrGateway
// under errors.Is and keeps the provider's error reachable.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() []error {
	return []error{models.ErrGateway, e.Err}
}

func NewGatewayError(op string, err error) error {
	return &GatewayError{Op: op, Err: err}
}

// CheckoutKey is the idempotency key of the checkout session for a booking.
func CheckoutKey(bookingID string) string { return "checkout:" + bookingID }

// RefundKey is the idempotency key of the refund for a payment.
func RefundKey(paymentID string) string { return "refund:" + paymentID }
