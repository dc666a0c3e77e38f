package models

import "time"

// BookingConfirmedPayload is the queued side effect emitted after settlement.
type BookingConfirmedPayload struct {
	BookingID  string    `json:"bookingId"`
	BuyerID    string    `json:"buyerId"`
	ProviderID string    `json:"providerId"`
	SlotID     string    `json:"slotId"`
	PaymentID  string    `json:"paymentId"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
	Start      time.Time `json:"start"`
}
