package models

import "time"

type PaymentStatus string

const (
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	// PaymentStatusOrphaned marks money taken for a booking that could not be
	// confirmed; such payments are refunded automatically.
	PaymentStatusOrphaned PaymentStatus = "orphaned"
)

// Payment is written once per settled checkout and keyed by the gateway's
// payment id. Only RefundStatus changes afterwards.
type Payment struct {
	PaymentID    string        `bson:"_id" json:"paymentId"`
	BookingID    string        `bson:"bookingId" json:"bookingId"`
	BuyerID      string        `bson:"buyerId" json:"buyerId"`
	Amount       int64         `bson:"amount" json:"amount"`
	Currency     string        `bson:"currency" json:"currency"`
	Status       PaymentStatus `bson:"status" json:"status"`
	RefundStatus RefundStatus  `bson:"refundStatus,omitempty" json:"refundStatus,omitempty"`
	CreatedAt    time.Time     `bson:"createdAt" json:"createdAt"`
}
