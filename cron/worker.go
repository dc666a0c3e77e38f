package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tutorbook/models"
	"tutorbook/services/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// ConfirmationDeliverer pushes a booking confirmation to devices.
type ConfirmationDeliverer interface {
	DeliverBookingConfirmed(ctx context.Context, p models.BookingConfirmedPayload) error
}

// Maintenance is the periodic slot upkeep.
type Maintenance interface {
	Sweep(ctx context.Context) (int, error)
	Reconcile(ctx context.Context) (int, error)
}

type Jobs struct {
	Confirmations ConfirmationDeliverer
	Maintenance   Maintenance
}

type Schedule struct {
	SweepInterval     time.Duration
	ReconcileInterval time.Duration
}

// Worker runs queued tasks and the scheduler that enqueues periodic ones.
type Worker struct {
	srv       *asynq.Server
	scheduler *asynq.Scheduler
	logger    *zap.Logger
}

// NewMux routes every task type to its job.
func NewMux(jobs Jobs, logger *zap.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeBookingConfirmed, handleBookingConfirmed(jobs.Confirmations, logger))
	mux.HandleFunc(tasks.TypeSweepHolds, handleSweep(jobs.Maintenance, logger))
	mux.HandleFunc(tasks.TypeReconcileBookings, handleReconcile(jobs.Maintenance, logger))
	return mux
}

// StartWorker starts the asynq server and the periodic scheduler in the
// background. Both retry their start with backoff while Redis is unreachable.
func StartWorker(redisOpt asynq.RedisClientOpt, concurrency int, jobs Jobs, schedule Schedule, logger *zap.Logger) (*Worker, error) {
	sugar := logger.Sugar()
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			"default": 1,
		},
		Logger: sugar,
	})
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   sugar,
	})

	if err := registerPeriodic(scheduler, schedule); err != nil {
		return nil, err
	}

	mux := NewMux(jobs, logger)
	go startWithRetry(logger, "worker", func() error { return srv.Start(mux) })
	go startWithRetry(logger, "scheduler", scheduler.Start)

	return &Worker{srv: srv, scheduler: scheduler, logger: logger}, nil
}

// Shutdown stops scheduling and waits for in-flight tasks.
func (w *Worker) Shutdown() {
	w.scheduler.Shutdown()
	w.srv.Shutdown()
	w.logger.Info("Worker stopped")
}

func registerPeriodic(scheduler *asynq.Scheduler, schedule Schedule) error {
	periodic := []struct {
		task  *asynq.Task
		every time.Duration
	}{
		{tasks.NewSweepHoldsTask(), schedule.SweepInterval},
		{tasks.NewReconcileBookingsTask(), schedule.ReconcileInterval},
	}
	for _, p := range periodic {
		if p.every <= 0 {
			return fmt.Errorf("interval for %s must be positive", p.task.Type())
		}
		// Unique keeps a slow run from piling up copies behind it.
		_, err := scheduler.Register("@every "+p.every.String(), p.task,
			asynq.Unique(p.every),
			asynq.MaxRetry(0),
			asynq.Timeout(p.every))
		if err != nil {
			return fmt.Errorf("register %s: %w", p.task.Type(), err)
		}
	}
	return nil
}

func startWithRetry(logger *zap.Logger, name string, start func() error) {
	const maxAttempts = 5
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err := start()
		if err == nil {
			logger.Info("Background "+name+" started")
			return
		}
		logger.Warn("Background "+name+" failed to start",
			zap.Int("attempt", attempts),
			zap.Int("maxAttempts", maxAttempts),
			zap.Error(err))
		if attempts == maxAttempts {
			logger.Fatal("Background " + name + " could not start")
		}
		time.Sleep(time.Duration(attempts*2) * time.Second)
	}
}

func handleBookingConfirmed(d ConfirmationDeliverer, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		p, err := tasks.ParseBookingConfirmed(task)
		if err != nil {
			logger.Error("Dropping malformed task", zap.String("type", task.Type()), zap.Error(err))
			return errors.Join(err, asynq.SkipRetry)
		}
		if err := d.DeliverBookingConfirmed(ctx, p); err != nil {
			logger.Warn("Confirmation delivery failed", zap.String("bookingId", p.BookingID), zap.Error(err))
			return err
		}
		return nil
	}
}

func handleSweep(m Maintenance, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		n, err := m.Sweep(ctx)
		if err != nil {
			logger.Error("Hold sweep incomplete", zap.Int("cleared", n), zap.Error(err))
			return err
		}
		logger.Debug("Hold sweep finished", zap.Int("cleared", n))
		return nil
	}
}

func handleReconcile(m Maintenance, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		n, err := m.Reconcile(ctx)
		if err != nil {
			logger.Error("Reconciliation incomplete", zap.Int("repaired", n), zap.Error(err))
			return err
		}
		logger.Debug("Reconciliation finished", zap.Int("repaired", n))
		return nil
	}
}
