package models

import "time"

type BookingStatus string

const (
	BookingStatusPendingPayment BookingStatus = "pending_payment"
	BookingStatusConfirmed      BookingStatus = "confirmed"
	BookingStatusCancelled      BookingStatus = "cancelled"
)

type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusSucceeded RefundStatus = "succeeded"
)

// Booking is a buyer's purchase intent for exactly one slot.
type Booking struct {
	ID           string        `bson:"id" json:"id"`
	BuyerID      string        `bson:"buyerId" json:"buyerId"`
	ProviderID   string        `bson:"providerId" json:"providerId"`
	SlotID       string        `bson:"slotId" json:"slotId"`
	Price        int64         `bson:"price" json:"price"` // minor units
	Currency     string        `bson:"currency" json:"currency"`
	Status       BookingStatus `bson:"status" json:"status"`
	PaymentID    string        `bson:"paymentId,omitempty" json:"paymentId,omitempty"`
	RefundID     string        `bson:"refundId,omitempty" json:"refundId,omitempty"`
	RefundStatus RefundStatus  `bson:"refundStatus,omitempty" json:"refundStatus,omitempty"`
	Start        time.Time     `bson:"start" json:"start"`
	End          time.Time     `bson:"end" json:"end"`
	CreatedAt    time.Time     `bson:"createdAt" json:"createdAt"`
	PaidAt       *time.Time    `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
	CancelledAt  *time.Time    `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
	Version      int           `bson:"version" json:"version"`
}

func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	c := *b
	if b.PaidAt != nil {
		t := *b.PaidAt
		c.PaidAt = &t
	}
	if b.CancelledAt != nil {
		t := *b.CancelledAt
		c.CancelledAt = &t
	}
	return &c
}
