package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"tutorbook/models"

	"github.com/hibiken/asynq"
)

const (
	TypeBookingConfirmed  = "booking:confirmed"
	TypeSweepHolds        = "holds:sweep"
	TypeReconcileBookings = "bookings:reconcile"
)

// ConfirmationRetention keeps completed confirmation tasks long enough to
// absorb webhook redeliveries, which Stripe spreads over three days.
const ConfirmationRetention = 72 * time.Hour

// NewBookingConfirmedTask builds the confirmation notification for a
// settled payment. The task id is derived from the payment id so a
// redelivered webhook cannot queue a second copy while the first is retained.
func NewBookingConfirmedTask(payload models.BookingConfirmedPayload) (*asynq.Task, []asynq.Option, error) {
	if payload.PaymentID == "" {
		return nil, nil, fmt.Errorf("booking confirmed task: payment id is required")
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeBookingConfirmed, b)
	opts := []asynq.Option{
		asynq.TaskID(TypeBookingConfirmed + ":" + payload.PaymentID),
		asynq.MaxRetry(8),
		asynq.Retention(ConfirmationRetention),
	}
	return task, opts, nil
}

// ParseBookingConfirmed decodes a booking:confirmed payload.
func ParseBookingConfirmed(t *asynq.Task) (models.BookingConfirmedPayload, error) {
	var p models.BookingConfirmedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("invalid %s payload: %w", TypeBookingConfirmed, err)
	}
	return p, nil
}

func NewSweepHoldsTask() *asynq.Task {
	return asynq.NewTask(TypeSweepHolds, nil)
}

func NewReconcileBookingsTask() *asynq.Task {
	return asynq.NewTask(TypeReconcileBookings, nil)
}
