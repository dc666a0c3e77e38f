package notification

import (
	"context"
	"errors"
	"fmt"

	"tutorbook/models"
	"tutorbook/services/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Queue hands confirmation side effects to the background worker so the
// webhook can answer without waiting on push delivery.
type Queue interface {
	EnqueueBookingConfirmed(ctx context.Context, p models.BookingConfirmedPayload) error
}

// Enqueuer is the part of *asynq.Client the queue needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type AsynqQueue struct {
	client Enqueuer
	logger *zap.Logger
}

func NewAsynqQueue(client Enqueuer, logger *zap.Logger) *AsynqQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AsynqQueue{client: client, logger: logger}
}

// EnqueueBookingConfirmed queues one confirmation per payment. A task that
// is already queued for the payment counts as success.
func (q *AsynqQueue) EnqueueBookingConfirmed(ctx context.Context, p models.BookingConfirmedPayload) error {
	task, opts, err := tasks.NewBookingConfirmedTask(p)
	if err != nil {
		return err
	}
	info, err := q.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		q.logger.Debug("Confirmation already queued", zap.String("paymentId", p.PaymentID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue %s for booking %s: %w", tasks.TypeBookingConfirmed, p.BookingID, err)
	}
	q.logger.Info("Confirmation queued",
		zap.String("bookingId", p.BookingID),
		zap.String("taskId", info.ID),
		zap.String("queue", info.Queue))
	return nil
}
