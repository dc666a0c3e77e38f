package models

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrNotOwner           = errors.New("not the owner of this booking")
	ErrWrongState         = errors.New("booking is not in a valid state for this operation")
	ErrSlotUnavailable    = errors.New("slot is unavailable")
	ErrSlotGone           = errors.New("slot no longer exists")
	ErrSlotBooked         = errors.New("slot is already booked")
	ErrHeldByOther        = errors.New("slot is held by another buyer")
	ErrPriceNotConfigured = errors.New("no price configured for tier")
	ErrTooLate            = errors.New("cancellation window has closed")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrGateway            = errors.New("payment gateway error")
	ErrSlotConflict       = errors.New("slot was sold to another booking")
)
